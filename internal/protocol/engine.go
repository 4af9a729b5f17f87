package protocol

import (
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitaminmoo/geniusdl/internal/logging"
)

// DefaultTimeout bounds the wait for each command's response.
const DefaultTimeout = 5 * time.Second

// Engine runs request/response exchanges against one device. All per-device
// state (framer, segment toggle) lives here, so independent devices each get
// their own Engine.
type Engine struct {
	mu      sync.Mutex
	t       Transport
	timeout time.Duration
	log     *zap.Logger

	framer Framer
	toggle byte
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-command response timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger used for frame tracing.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// NewEngine creates an engine over t.
func NewEngine(t Transport, opts ...Option) *Engine {
	e := &Engine{
		t:       t,
		timeout: DefaultTimeout,
		log:     logging.Named("ecop"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the per-command timeout.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}

// bodyLen returns the minimum interior length of the response given what has
// arrived after the start marker so far.
type bodyLen func(partial []byte) int

func fixedLen(n int) bodyLen {
	return func([]byte) int { return n }
}

// exchange sends cmd and returns the body of its response frame. Commands
// with a payload are sent in two writes: the device acknowledges the header
// with a start marker before it accepts the payload.
//
// A positive floor also accepts an end marker that closes a notification
// chunk once floor body bytes have arrived, for responses shorter than need.
func (e *Engine) exchange(cmd Command, need bodyLen, floor int, addr *ObjectAddress) ([]byte, error) {
	if _, err := cmd.Encode(); err != nil {
		return nil, err
	}

	e.t.Drain()
	e.framer.Reset()
	deadline := time.Now().Add(e.timeout)

	if err := e.write(cmd.Header()); err != nil {
		return nil, err
	}

	if len(cmd.Payload) > 0 {
		for !e.framer.Started() {
			if err := e.receive(deadline, cmd.Opcode, addr); err != nil {
				return nil, err
			}
		}
		if err := e.write(cmd.Payload); err != nil {
			return nil, err
		}
	}

	for {
		var body []byte
		var err error
		if floor > 0 {
			body, err = e.framer.NextAtChunkEnd(floor, need(e.framer.pending()))
		} else {
			body, err = e.framer.Next(need(e.framer.pending()))
		}
		if err == nil {
			e.log.Debug("frame", zap.Uint8("opcode", cmd.Opcode), zap.String("body", hex.EncodeToString(body)))
			return body, nil
		}
		if errors.Is(err, ErrMalformed) {
			return nil, &ProtocolError{Kind: KindMalformed, Opcode: cmd.Opcode, Address: addr, Detail: err.Error()}
		}
		if err := e.receive(deadline, cmd.Opcode, addr); err != nil {
			return nil, err
		}
	}
}

func (e *Engine) write(data []byte) error {
	e.log.Debug("tx", zap.String("data", hex.EncodeToString(data)))
	if err := e.t.Write(data); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

func (e *Engine) receive(deadline time.Time, opcode byte, addr *ObjectAddress) error {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return e.timeoutError(opcode, addr)
	}
	chunk, err := e.t.Receive(remaining)
	if errors.Is(err, ErrTimeout) {
		return e.timeoutError(opcode, addr)
	}
	if err != nil {
		return &TransportError{Op: "receive", Err: err}
	}
	e.log.Debug("rx", zap.String("data", hex.EncodeToString(chunk)))
	e.framer.Feed(chunk)
	return nil
}

func (e *Engine) timeoutError(opcode byte, addr *ObjectAddress) error {
	return &ProtocolError{
		Kind:    KindTimeout,
		Opcode:  opcode,
		Address: addr,
		Detail:  fmt.Sprintf("no complete response after %s (%d bytes buffered)", e.Timeout(), e.framer.Buffered()),
	}
}
