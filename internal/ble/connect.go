package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/vitaminmoo/geniusdl/internal/logging"
)

// ErrNoDevice is returned when a scan ends without a matching device.
var ErrNoDevice = errors.New("no Mares device found")

// Found is a device seen during a scan.
type Found struct {
	Name    string
	Address string
	RSSI    int16

	addr bluetooth.Address
}

// ScanOptions selects which advertisements match.
type ScanOptions struct {
	// Prefixes match the advertised name; defaults to NamePrefixes.
	Prefixes []string
	// Address, when set, matches only that device regardless of name.
	Address string
	Timeout time.Duration
	// First stops the scan at the first match.
	First bool
}

func (o ScanOptions) matches(name, address string) bool {
	if o.Address != "" {
		return strings.EqualFold(o.Address, address)
	}
	prefixes := o.Prefixes
	if len(prefixes) == 0 {
		prefixes = NamePrefixes
	}
	return IsMaresDevice(name, prefixes)
}

var (
	enableOnce sync.Once
	enableErr  error
)

// Adapter returns the default adapter, enabling it on first use.
func Adapter() (*bluetooth.Adapter, error) {
	adapter := bluetooth.DefaultAdapter
	enableOnce.Do(func() {
		enableErr = adapter.Enable()
	})
	if enableErr != nil {
		return nil, fmt.Errorf("failed to enable Bluetooth: %w", enableErr)
	}
	return adapter, nil
}

// Scan lists matching devices until the timeout expires, ctx is cancelled,
// or, with First set, the first match is seen.
func Scan(ctx context.Context, opts ScanOptions) ([]Found, error) {
	adapter, err := Adapter()
	if err != nil {
		return nil, err
	}
	log := logging.Named("ble")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}
	go func() {
		<-ctx.Done()
		adapter.StopScan()
	}()

	var (
		mu    sync.Mutex
		found []Found
		seen  = make(map[string]bool)
	)
	err = adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		name := result.LocalName()
		address := result.Address.String()
		if name != "" {
			log.Debug("advertisement", zap.String("name", name), zap.String("address", address), zap.Int16("rssi", result.RSSI))
		}
		if !opts.matches(name, address) {
			return
		}

		mu.Lock()
		defer mu.Unlock()
		if seen[address] {
			return
		}
		seen[address] = true
		found = append(found, Found{Name: name, Address: address, RSSI: result.RSSI, addr: result.Address})
		if opts.First {
			cancel()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("scan error: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	return found, nil
}

// ConnectOptions configures Connect.
type ConnectOptions struct {
	Scan       ScanOptions
	WriteUUID  string
	NotifyUUID string
}

// Connect scans for the first matching device, connects, and sets up the
// command and notification characteristics.
func Connect(ctx context.Context, opts ConnectOptions) (*Conn, error) {
	adapter, err := Adapter()
	if err != nil {
		return nil, err
	}

	scan := opts.Scan
	scan.First = true
	found, err := Scan(ctx, scan)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoDevice
	}
	target := found[0]

	logging.Info("connecting", zap.String("name", target.Name), zap.String("address", target.Address))
	device, err := adapter.Connect(target.addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target.Address, err)
	}

	conn, err := setup(device, target, opts)
	if err != nil {
		device.Disconnect()
		return nil, err
	}
	return conn, nil
}

func setup(device bluetooth.Device, target Found, opts ConnectOptions) (*Conn, error) {
	writeUUID, notifyUUID := opts.WriteUUID, opts.NotifyUUID
	if writeUUID == "" {
		writeUUID = WriteCharUUID
	}
	if notifyUUID == "" {
		notifyUUID = NotifyCharUUID
	}

	services, err := device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover services: %w", err)
	}

	c := newConn(device, target)
	for i := range services {
		chars, err := services[i].DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to discover characteristics of %s: %w", services[i].UUID(), err)
		}
		for j := range chars {
			uuid := chars[j].UUID().String()
			c.log.Debug("characteristic", zap.String("service", services[i].UUID().String()), zap.String("uuid", uuid))
			if strings.EqualFold(uuid, writeUUID) {
				c.writeChar = &chars[j]
			}
			if strings.EqualFold(uuid, notifyUUID) {
				c.notifyChar = &chars[j]
			}
		}
	}

	if c.writeChar == nil {
		return nil, fmt.Errorf("write characteristic %s not found", writeUUID)
	}
	if c.notifyChar == nil {
		return nil, fmt.Errorf("notify characteristic %s not found", notifyUUID)
	}

	if err := c.notifyChar.EnableNotifications(c.onNotify); err != nil {
		return nil, fmt.Errorf("failed to enable notifications: %w", err)
	}
	return c, nil
}
