package api

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/vitaminmoo/geniusdl/internal/protocol"
)

// ErrNotFound is returned when the device aborts a read of an object that a
// typed method expects to exist.
var ErrNotFound = errors.New("object not found")

// Client provides typed access to a GENIUS-family dive computer.
// It wraps the transfer engine and knows the object dictionary.
type Client struct {
	engine *protocol.Engine
}

// New creates a client over an already-connected transport.
func New(t protocol.Transport, opts ...protocol.Option) *Client {
	return &Client{engine: protocol.NewEngine(t, opts...)}
}

// Engine returns the underlying transfer engine.
func (c *Client) Engine() *protocol.Engine {
	return c.engine
}

// ReadObject reads any object, including absent ones (Aborted outcome).
func (c *Client) ReadObject(addr protocol.ObjectAddress) (protocol.Outcome, error) {
	return c.engine.ReadObject(addr)
}

// readExisting reads addr and turns an abort into ErrNotFound.
func (c *Client) readExisting(addr protocol.ObjectAddress) ([]byte, error) {
	out, err := c.engine.ReadObject(addr)
	if err != nil {
		return nil, err
	}
	if !out.Found() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, addr)
	}
	return out.Data, nil
}

// CountDives returns the number of dives stored on the device.
func (c *Client) CountDives() (int, error) {
	return c.engine.CountDives()
}

// ReadDiveHeader returns the raw header object of dive ordinal i.
func (c *Client) ReadDiveHeader(i int) ([]byte, error) {
	return c.readExisting(protocol.DiveHeaderAddress(i))
}

// ReadDiveProfile returns the raw profile object of dive ordinal i.
func (c *Client) ReadDiveProfile(i int) ([]byte, error) {
	return c.readExisting(protocol.DiveProfileAddress(i))
}

// SetClock sets the device clock.
func (c *Client) SetClock(t time.Time) error {
	if err := c.engine.SetClock(t); err != nil {
		return fmt.Errorf("failed to set clock: %w", err)
	}
	return nil
}

// PCBNumber reads the PCB serial string.
func (c *Client) PCBNumber() (string, error) {
	data, err := c.readExisting(protocol.PCBNumberAddress)
	if err != nil {
		return "", fmt.Errorf("failed to read PCB number: %w", err)
	}
	return string(bytes.TrimRight(data, "\x00")), nil
}

// DeviceInfo summarises the connected device.
type DeviceInfo struct {
	ModelName string `json:"model_name"`
	Model     Model  `json:"model"`
	PCBNumber string `json:"pcb_number,omitempty"`
	DiveCount int    `json:"dive_count"`
}

// GetDeviceInfo queries version, PCB number and dive count.
func (c *Client) GetDeviceInfo() (*DeviceInfo, error) {
	v, err := c.engine.Version()
	if err != nil {
		return nil, fmt.Errorf("failed to query version: %w", err)
	}
	info := &DeviceInfo{
		ModelName: v.ModelName,
		Model:     ModelFromName(v.ModelName),
	}

	pcb, err := c.PCBNumber()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	info.PCBNumber = pcb

	info.DiveCount, err = c.CountDives()
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Diagnostic is the result of reading one fixed diagnostic object.
type Diagnostic struct {
	Name    string
	Address protocol.ObjectAddress
	Outcome protocol.Outcome
	Err     error
}

// ReadDiagnostics reads all fixed diagnostic objects. A protocol error on one
// object is recorded on it; a transport error stops the scan.
func (c *Client) ReadDiagnostics() ([]Diagnostic, error) {
	var out []Diagnostic
	for _, obj := range protocol.DiagnosticObjects {
		res, err := c.engine.ReadObject(obj.Address)
		if protocol.IsTransport(err) {
			return out, err
		}
		out = append(out, Diagnostic{Name: obj.Name, Address: obj.Address, Outcome: res, Err: err})
	}
	return out, nil
}
