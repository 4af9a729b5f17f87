package protocol

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/zap"
)

// SDO status bytes and segment header bits.
const (
	sdoInitiateUpload byte = 0x40

	sdoSegmented byte = 0x41
	sdoExpedited byte = 0x42
	sdoAbort     byte = 0x80

	// A segment response header has scs=000 in the top three bits and the
	// toggle in bit 4.
	segmentCommandMask byte = 0xE0
	segmentToggleBit   byte = 0x10

	// ExpeditedLen is the data size of an expedited response.
	ExpeditedLen = 12

	// abortBodyLen covers status, index and sub-index of an abort response.
	abortBodyLen = 4

	// minSegmentBody is a toggle header plus one data byte.
	minSegmentBody = 2
)

// OutcomeKind is the result class of an object read.
type OutcomeKind int

const (
	Expedited OutcomeKind = iota + 1
	Segmented
	Aborted
)

func (k OutcomeKind) String() string {
	switch k {
	case Expedited:
		return "expedited"
	case Segmented:
		return "segmented"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the result of ReadObject. For Segmented, len(Data) == Size.
type Outcome struct {
	Kind OutcomeKind
	Size int
	Data []byte
}

// Found reports whether the object exists on the device.
func (o Outcome) Found() bool {
	return o.Kind == Expedited || o.Kind == Segmented
}

func uploadBodyLen(partial []byte) int {
	if len(partial) > 0 && partial[0] == sdoAbort {
		return abortBodyLen
	}
	return UploadBodyLen
}

// ReadObject reads one object. An absent object is reported as an Aborted
// outcome, not an error.
func (e *Engine) ReadObject(addr ObjectAddress) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	body, err := e.exchange(Command{Opcode: CmdUpload, Payload: uploadPayload(addr)}, uploadBodyLen, 0, &addr)
	if err != nil {
		return Outcome{}, err
	}

	switch body[0] {
	case sdoAbort:
		e.log.Debug("object aborted", zap.Stringer("object", addr))
		return Outcome{Kind: Aborted}, nil

	case sdoExpedited:
		if err := checkEcho(body, addr); err != nil {
			return Outcome{}, err
		}
		data := make([]byte, ExpeditedLen)
		copy(data, body[4:4+ExpeditedLen])
		return Outcome{Kind: Expedited, Size: ExpeditedLen, Data: data}, nil

	case sdoSegmented:
		if err := checkEcho(body, addr); err != nil {
			return Outcome{}, err
		}
		size := int(binary.LittleEndian.Uint16(body[4:6]))
		data, err := e.readSegments(addr, size)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Kind: Segmented, Size: size, Data: data}, nil

	default:
		return Outcome{}, &ProtocolError{
			Kind:    KindUnexpectedResponse,
			Opcode:  CmdUpload,
			Address: &addr,
			Detail:  fmt.Sprintf("unknown status 0x%02X", body[0]),
		}
	}
}

func checkEcho(body []byte, addr ObjectAddress) error {
	index := binary.LittleEndian.Uint16(body[1:3])
	if index != addr.Index || body[3] != addr.SubIndex {
		return &ProtocolError{
			Kind:    KindUnexpectedResponse,
			Opcode:  CmdUpload,
			Address: &addr,
			Detail:  fmt.Sprintf("response is for object 0x%04X/%d", index, body[3]),
		}
	}
	return nil
}

// readSegments pulls size bytes with alternating AC/FE segment reads. A
// segment carries up to MaxSegmentData bytes and ends at the end marker that
// closes a notification; a marker inside a notification only ends a segment
// once the full remaining length has arrived.
func (e *Engine) readSegments(addr ObjectAddress, size int) ([]byte, error) {
	data := make([]byte, 0, size)
	e.toggle = 0

	for len(data) < size {
		opcode := CmdSegment0
		if e.toggle == 1 {
			opcode = CmdSegment1
		}
		want := min(size-len(data), MaxSegmentData)

		body, err := e.exchange(Command{Opcode: opcode}, fixedLen(1+want), minSegmentBody, &addr)
		if err != nil {
			return nil, err
		}

		echo := body[0]
		if echo&segmentCommandMask != 0 || (echo&segmentToggleBit)>>4 != e.toggle {
			return nil, &ProtocolError{
				Kind:    KindUnexpectedResponse,
				Opcode:  opcode,
				Address: &addr,
				Detail:  fmt.Sprintf("segment header 0x%02X does not carry toggle %d", echo, e.toggle),
			}
		}

		data = append(data, body[1:]...)
		e.toggle ^= 1
	}

	// The last segment may be padded.
	return data[:size], nil
}
