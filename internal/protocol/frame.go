package protocol

import (
	"bytes"
	"fmt"
)

// Frame markers and the header checksum constant.
const (
	FrameStart byte = 0xAA
	FrameEnd   byte = 0xEA
	HeaderXOR  byte = 0xA5
)

// Opcodes understood by GENIUS-family devices.
const (
	CmdVersion  byte = 0xC2
	CmdUpload   byte = 0xBF
	CmdSegment0 byte = 0xAC
	CmdSegment1 byte = 0xFE
	CmdSetClock byte = 0xB0
)

const (
	UploadPayloadLen   = 18
	SetClockPayloadLen = 4
	MaxPayloadLen      = 18

	// VersionBodyLen is the size of the C2 response body.
	VersionBodyLen = 140
	// UploadBodyLen is the size of the BF response body: status, index, sub, data[12].
	UploadBodyLen = 16
	// MaxSegmentData is the largest payload carried by one AC/FE segment.
	MaxSegmentData = 241

	// MaxFrameSize bounds how many bytes may follow a start marker before the
	// frame is declared malformed.
	MaxFrameSize = 256
)

// payloadLen gives the fixed payload size of known opcodes.
var payloadLen = map[byte]int{
	CmdVersion:  0,
	CmdUpload:   UploadPayloadLen,
	CmdSegment0: 0,
	CmdSegment1: 0,
	CmdSetClock: SetClockPayloadLen,
}

// Command is one request frame.
type Command struct {
	Opcode  byte
	Payload []byte
}

// Header returns the two header bytes [opcode, opcode^0xA5].
func (c Command) Header() []byte {
	return []byte{c.Opcode, c.Opcode ^ HeaderXOR}
}

// Encode is EncodeCommand for c.
func (c Command) Encode() ([]byte, error) {
	return EncodeCommand(c.Opcode, c.Payload)
}

// EncodeCommand emits [opcode, opcode^0xA5, payload...]. Known opcodes require
// their exact payload length; unknown opcodes accept up to MaxPayloadLen bytes.
func EncodeCommand(opcode byte, payload []byte) ([]byte, error) {
	if want, ok := payloadLen[opcode]; ok {
		if len(payload) != want {
			return nil, fmt.Errorf("%w: opcode 0x%02X takes %d bytes, got %d", ErrInvalidPayload, opcode, want, len(payload))
		}
	} else if len(payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidPayload, len(payload), MaxPayloadLen)
	}

	out := make([]byte, 0, 2+len(payload))
	out = append(out, opcode, opcode^HeaderXOR)
	out = append(out, payload...)
	return out, nil
}

// ExtractFrame finds the first 0xAA...0xEA frame in stream and returns its
// interior. Bytes before the start marker are skipped. The end marker is only
// accepted once at least minBody interior bytes have been seen, since data
// bytes of fixed-size bodies may themselves equal 0xEA.
//
// consumed is the number of stream bytes the frame (and any leading noise)
// occupies. ErrIncomplete means more data is needed; ErrMalformed means more
// than MaxFrameSize bytes followed the start marker without a terminator.
func ExtractFrame(stream []byte, minBody int) (body []byte, consumed int, err error) {
	start := bytes.IndexByte(stream, FrameStart)
	if start < 0 {
		return nil, 0, ErrIncomplete
	}
	if minBody < 0 {
		minBody = 0
	}

	from := start + 1 + minBody
	if from < len(stream) {
		if rel := bytes.IndexByte(stream[from:], FrameEnd); rel >= 0 {
			end := from + rel
			if end-start-1 <= MaxFrameSize {
				body = make([]byte, end-start-1)
				copy(body, stream[start+1:end])
				return body, end + 1, nil
			}
		}
	}

	if len(stream)-start-1 > MaxFrameSize {
		return nil, 0, fmt.Errorf("%w: no end marker within %d bytes", ErrMalformed, MaxFrameSize)
	}
	return nil, 0, ErrIncomplete
}

// Framer accumulates notification chunks for one exchange.
type Framer struct {
	buf []byte
	// ends holds the offset just past each fed chunk.
	ends []int
}

// Feed appends a notification chunk.
func (f *Framer) Feed(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	f.buf = append(f.buf, chunk...)
	f.ends = append(f.ends, len(f.buf))
}

// Started reports whether a start marker has been received.
func (f *Framer) Started() bool {
	return bytes.IndexByte(f.buf, FrameStart) >= 0
}

// Next extracts the next frame, consuming its bytes on success.
func (f *Framer) Next(minBody int) ([]byte, error) {
	body, n, err := ExtractFrame(f.buf, minBody)
	if err != nil {
		return nil, err
	}
	f.consume(n)
	return body, nil
}

// NextAtChunkEnd is Next for variable-length bodies. An end marker that is
// the last byte of a chunk closes the frame once floor interior bytes
// precede it. Markers inside a chunk only count after minBody bytes.
func (f *Framer) NextAtChunkEnd(floor, minBody int) ([]byte, error) {
	start := bytes.IndexByte(f.buf, FrameStart)
	if start >= 0 {
		for _, end := range f.ends {
			n := end - start - 2
			if n < floor {
				continue
			}
			if n >= minBody {
				break
			}
			if f.buf[end-1] == FrameEnd {
				body := make([]byte, n)
				copy(body, f.buf[start+1:end-1])
				f.consume(end)
				return body, nil
			}
		}
	}
	return f.Next(minBody)
}

// pending returns the bytes received after the start marker.
func (f *Framer) pending() []byte {
	if i := bytes.IndexByte(f.buf, FrameStart); i >= 0 {
		return f.buf[i+1:]
	}
	return nil
}

func (f *Framer) consume(n int) {
	f.buf = f.buf[n:]
	ends := f.ends[:0]
	for _, end := range f.ends {
		if end > n {
			ends = append(ends, end-n)
		}
	}
	f.ends = ends
}

// Buffered returns the number of unconsumed bytes.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// Reset drops any stale bytes.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
	f.ends = f.ends[:0]
}
