package ble

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/vitaminmoo/geniusdl/internal/logging"
	"github.com/vitaminmoo/geniusdl/internal/protocol"
)

// ErrClosed is returned by Write and Receive after Close.
var ErrClosed = errors.New("connection closed")

// writer is the part of a GATT characteristic used for commands.
type writer interface {
	WriteWithoutResponse(p []byte) (int, error)
}

// Conn is a connected device. It implements protocol.Transport: writes go to
// the command characteristic in 20-byte chunks and notifications are queued
// until Receive takes them.
type Conn struct {
	device     bluetooth.Device
	writeChar  *bluetooth.DeviceCharacteristic
	notifyChar *bluetooth.DeviceCharacteristic
	target     Found

	w   writer
	log *zap.Logger

	mu      sync.Mutex
	rx      chan []byte
	closed  chan struct{}
	dropped int
}

var _ protocol.Transport = (*Conn)(nil)

func newConn(device bluetooth.Device, target Found) *Conn {
	return &Conn{
		device: device,
		target: target,
		log:    logging.Named("ble"),
		rx:     make(chan []byte, notifyQueueLen),
		closed: make(chan struct{}),
	}
}

// Name returns the advertised name of the connected device.
func (c *Conn) Name() string { return c.target.Name }

// Address returns the address of the connected device.
func (c *Conn) Address() string { return c.target.Address }

// onNotify runs on the BLE stack's goroutine. It must not block.
func (c *Conn) onNotify(buf []byte) {
	data := append([]byte(nil), buf...)
	select {
	case c.rx <- data:
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		c.log.Warn("notification queue full, dropping", zap.Int("bytes", len(data)))
	}
}

// Write sends data in WriteChunkSize pieces without response.
func (c *Conn) Write(data []byte) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	w := c.w
	if w == nil {
		w = c.writeChar
	}
	for off := 0; off < len(data); off += WriteChunkSize {
		end := min(off+WriteChunkSize, len(data))
		if _, err := w.WriteWithoutResponse(data[off:end]); err != nil {
			return fmt.Errorf("failed to write chunk at offset %d: %w", off, err)
		}
	}
	return nil
}

// Receive returns the next notification, or protocol.ErrTimeout.
func (c *Conn) Receive(timeout time.Duration) ([]byte, error) {
	select {
	case data := <-c.rx:
		return data, nil
	case <-c.closed:
		return nil, ErrClosed
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case data := <-c.rx:
		return data, nil
	case <-c.closed:
		return nil, ErrClosed
	case <-timer.C:
		return nil, protocol.ErrTimeout
	}
}

// Drain discards queued notifications.
func (c *Conn) Drain() {
	for {
		select {
		case <-c.rx:
		default:
			return
		}
	}
}

// Dropped returns the number of notifications lost to a full queue.
func (c *Conn) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close disconnects from the device. It is safe to call more than once.
func (c *Conn) Close() error {
	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return nil
	default:
		close(c.closed)
	}
	c.mu.Unlock()

	if c.notifyChar != nil {
		c.notifyChar.EnableNotifications(nil)
	}
	if err := c.device.Disconnect(); err != nil {
		return fmt.Errorf("failed to disconnect: %w", err)
	}
	return nil
}
