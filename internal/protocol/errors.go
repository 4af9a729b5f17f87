package protocol

import (
	"errors"
	"fmt"
)

// Sentinel errors for the ECOP link.
var (
	// ErrTimeout is returned by a Transport when no notification arrived in time,
	// and matched by ProtocolError values of kind KindTimeout.
	ErrTimeout = errors.New("timed out waiting for device")

	ErrUnexpectedResponse = errors.New("unexpected response")
	ErrMalformed          = errors.New("malformed frame")

	// ErrInvalidPayload is returned when a command payload does not have the
	// length the opcode requires.
	ErrInvalidPayload = errors.New("invalid command payload")

	// ErrIncomplete means the stream does not hold a full frame yet.
	ErrIncomplete = errors.New("incomplete frame")

	ErrTooManyDives = errors.New("dive index block exhausted")
)

// Kind classifies a ProtocolError.
type Kind int

const (
	KindTimeout Kind = iota
	KindUnexpectedResponse
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindUnexpectedResponse:
		return "unexpected response"
	case KindMalformed:
		return "malformed frame"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ProtocolError is a recoverable exchange failure. The caller may retry the
// whole object read; the engine never retries a single segment.
type ProtocolError struct {
	Kind    Kind
	Opcode  byte
	Address *ObjectAddress
	Detail  string
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("protocol %s (opcode 0x%02X", e.Kind, e.Opcode)
	if e.Address != nil {
		msg += ", object " + e.Address.String()
	}
	msg += ")"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches the kind sentinels so callers can use errors.Is(err, ErrTimeout).
func (e *ProtocolError) Is(target error) bool {
	switch target {
	case ErrTimeout:
		return e.Kind == KindTimeout
	case ErrUnexpectedResponse:
		return e.Kind == KindUnexpectedResponse
	case ErrMalformed:
		return e.Kind == KindMalformed
	}
	return false
}

// TransportError wraps a link-level failure. It ends the current run.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err may succeed if the whole object read is
// attempted again.
func IsRetryable(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsTransport reports whether err is a link-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
