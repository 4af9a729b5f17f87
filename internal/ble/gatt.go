package ble

import (
	"context"
	"fmt"

	"tinygo.org/x/bluetooth"
)

// Service is a GATT service and its characteristics.
type Service struct {
	UUID            string
	Characteristics []string
}

// EnumerateGATT connects to a scanned device, lists its services and
// characteristics, and disconnects.
func EnumerateGATT(ctx context.Context, target Found) ([]Service, error) {
	adapter, err := Adapter()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	device, err := adapter.Connect(target.addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target.Address, err)
	}
	defer device.Disconnect()

	services, err := device.DiscoverServices(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to discover services: %w", err)
	}

	out := make([]Service, 0, len(services))
	for i := range services {
		chars, err := services[i].DiscoverCharacteristics(nil)
		if err != nil {
			return out, fmt.Errorf("failed to discover characteristics of %s: %w", services[i].UUID(), err)
		}
		svc := Service{UUID: services[i].UUID().String()}
		for j := range chars {
			svc.Characteristics = append(svc.Characteristics, chars[j].UUID().String())
		}
		out = append(out, svc)
	}
	return out, nil
}
