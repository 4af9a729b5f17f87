package protocol

import "time"

// Transport is an already-connected notify/write channel to one device.
type Transport interface {
	// Write sends bytes to the device's write characteristic.
	Write(data []byte) error
	// Receive returns the next notification. It returns ErrTimeout when
	// nothing arrives within timeout; any other error is a link failure.
	Receive(timeout time.Duration) ([]byte, error)
	// Drain discards notifications that are already queued.
	Drain()
}
