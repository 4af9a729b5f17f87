package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"
)

// modelNameOffset is where the NUL-terminated model name sits in the C2 body.
const (
	modelNameOffset = 0x46
	modelNameMaxLen = 16
)

// VersionInfo is the decoded C2 response.
type VersionInfo struct {
	ModelName string
	Raw       []byte
}

// Version queries the device version block.
func (e *Engine) Version() (*VersionInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	body, err := e.exchange(Command{Opcode: CmdVersion}, fixedLen(VersionBodyLen), 0, nil)
	if err != nil {
		return nil, err
	}

	name := body[modelNameOffset:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	} else if len(name) > modelNameMaxLen {
		name = name[:modelNameMaxLen]
	}

	return &VersionInfo{
		ModelName: string(bytes.TrimSpace(name)),
		Raw:       body,
	}, nil
}

// SetClock sets the device clock to t (Unix seconds, little-endian).
func (e *Engine) SetClock(t time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	secs := t.Unix()
	if secs < 0 || secs > int64(^uint32(0)) {
		return fmt.Errorf("%w: time %s does not fit in 32 bits", ErrInvalidPayload, t)
	}
	payload := make([]byte, SetClockPayloadLen)
	binary.LittleEndian.PutUint32(payload, uint32(secs))

	_, err := e.exchange(Command{Opcode: CmdSetClock, Payload: payload}, fixedLen(0), 0, nil)
	return err
}
