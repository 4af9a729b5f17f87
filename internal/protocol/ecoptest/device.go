// Package ecoptest provides a simulated GENIUS device that speaks ECOP over
// the protocol.Transport interface, for use in tests.
package ecoptest

import (
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/vitaminmoo/geniusdl/internal/protocol"
)

// ErrLinkDown is returned by Write and Receive after Disconnect.
var ErrLinkDown = errors.New("link down")

// Device simulates the device side of the link. Objects up to 12 bytes are
// served expedited, larger ones segmented. Responses are split into
// ChunkSize-byte notifications.
type Device struct {
	mu sync.Mutex

	Objects   map[protocol.ObjectAddress][]byte
	ModelName string
	ChunkSize int
	// SegmentSize caps the data bytes per segment. Zero means
	// protocol.MaxSegmentData.
	SegmentSize int
	// SegmentPad is appended to the last segment of every segmented read.
	SegmentPad int
	// Noise is queued ahead of every response.
	Noise []byte
	// Drop, when set, suppresses the response to a command so the engine
	// times out. n counts commands with that opcode, starting at 1.
	Drop func(opcode byte, addr protocol.ObjectAddress, n int) bool
	// Corrupt, when set, may rewrite a response body before it is sent.
	Corrupt func(opcode byte, body []byte) []byte

	// Opcodes logs the opcode of every command header received.
	Opcodes []byte
	// Writes logs every raw write.
	Writes [][]byte
	// Reads counts BF requests per address.
	Reads map[protocol.ObjectAddress]int
	// Clock holds the last B0 payload value.
	Clock uint32
	// ToggleViolations counts segment commands that repeated the previous toggle.
	ToggleViolations int

	rx       [][]byte
	down     bool
	counts   map[byte]int
	pending  byte
	payload  []byte
	lastAddr protocol.ObjectAddress

	segData   []byte
	segToggle byte
}

// NewDevice returns a device with no objects and 20-byte notifications.
func NewDevice() *Device {
	return &Device{
		Objects:   make(map[protocol.ObjectAddress][]byte),
		ModelName: "Sirius",
		ChunkSize: 20,
		Reads:     make(map[protocol.ObjectAddress]int),
		counts:    make(map[byte]int),
	}
}

// AddDive stores the header and profile objects of dive ordinal i.
func (d *Device) AddDive(i int, header, profile []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Objects[protocol.DiveHeaderAddress(i)] = header
	d.Objects[protocol.DiveProfileAddress(i)] = profile
}

// Disconnect makes all further link operations fail.
func (d *Device) Disconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.down = true
}

// Write implements protocol.Transport.
func (d *Device) Write(data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.down {
		return ErrLinkDown
	}
	d.Writes = append(d.Writes, append([]byte(nil), data...))

	if d.pending != 0 {
		d.payload = append(d.payload, data...)
		want := payloadLen(d.pending)
		if len(d.payload) >= want {
			op := d.pending
			d.pending = 0
			d.handlePayload(op, d.payload[:want])
		}
		return nil
	}

	if len(data) < 2 || data[1] != data[0]^protocol.HeaderXOR {
		return nil
	}
	op := data[0]
	d.Opcodes = append(d.Opcodes, op)
	d.counts[op]++

	if n := payloadLen(op); n > 0 {
		d.pending = op
		d.payload = d.payload[:0]
		d.queue([]byte{protocol.FrameStart})
		if len(data) > 2 {
			d.payload = append(d.payload, data[2:]...)
			if len(d.payload) >= n {
				d.pending = 0
				d.handlePayload(op, d.payload[:n])
			}
		}
		return nil
	}

	switch op {
	case protocol.CmdVersion:
		body := make([]byte, protocol.VersionBodyLen)
		copy(body[0x46:], d.ModelName)
		d.respond(op, protocol.DiveHeaderAddress(0), body, true)
	case protocol.CmdSegment0, protocol.CmdSegment1:
		d.segment(op)
	}
	return nil
}

// Receive implements protocol.Transport. It never blocks: an empty queue is
// reported as a timeout straight away.
func (d *Device) Receive(timeout time.Duration) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.down {
		return nil, ErrLinkDown
	}
	if len(d.rx) == 0 {
		return nil, protocol.ErrTimeout
	}
	chunk := d.rx[0]
	d.rx = d.rx[1:]
	return chunk, nil
}

// Drain implements protocol.Transport.
func (d *Device) Drain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rx = nil
}

// Count returns how many commands with opcode were received.
func (d *Device) Count(opcode byte) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[opcode]
}

func payloadLen(op byte) int {
	switch op {
	case protocol.CmdUpload:
		return protocol.UploadPayloadLen
	case protocol.CmdSetClock:
		return protocol.SetClockPayloadLen
	}
	return 0
}

func (d *Device) handlePayload(op byte, payload []byte) {
	switch op {
	case protocol.CmdSetClock:
		d.Clock = binary.LittleEndian.Uint32(payload)
		d.respond(op, d.lastAddr, nil, false)
	case protocol.CmdUpload:
		addr := protocol.ObjectAddress{
			Index:    binary.LittleEndian.Uint16(payload[1:3]),
			SubIndex: payload[3],
		}
		d.lastAddr = addr
		d.Reads[addr]++
		d.upload(addr)
	}
}

func (d *Device) upload(addr protocol.ObjectAddress) {
	body := make([]byte, protocol.UploadBodyLen)
	body[1] = byte(addr.Index)
	body[2] = byte(addr.Index >> 8)
	body[3] = addr.SubIndex

	obj, ok := d.Objects[addr]
	switch {
	case !ok:
		body[0] = 0x80
	case len(obj) <= protocol.ExpeditedLen:
		body[0] = 0x42
		copy(body[4:], obj)
	default:
		body[0] = 0x41
		binary.LittleEndian.PutUint16(body[4:6], uint16(len(obj)))
		d.segData = append([]byte(nil), obj...)
		if d.SegmentPad > 0 {
			d.segData = append(d.segData, make([]byte, d.SegmentPad)...)
		}
		d.segToggle = 0
	}
	d.respond(protocol.CmdUpload, addr, body, false)
}

func (d *Device) segment(op byte) {
	toggle := byte(0)
	if op == protocol.CmdSegment1 {
		toggle = 1
	}
	if toggle != d.segToggle {
		d.ToggleViolations++
	}
	d.segToggle = toggle ^ 1

	size := d.SegmentSize
	if size <= 0 || size > protocol.MaxSegmentData {
		size = protocol.MaxSegmentData
	}
	n := min(len(d.segData), size)
	// A padded tail goes out in full with the last segment.
	if rest := len(d.segData) - n; rest > 0 && rest <= d.SegmentPad {
		n = len(d.segData)
	}
	body := make([]byte, 0, 1+n)
	body = append(body, toggle<<4)
	body = append(body, d.segData[:n]...)
	d.segData = d.segData[n:]
	d.respond(op, d.lastAddr, body, true)
}

// respond queues body followed by the end marker, preceded by a start marker
// unless the header acknowledgement already carried it.
func (d *Device) respond(op byte, addr protocol.ObjectAddress, body []byte, withStart bool) {
	if d.Drop != nil && d.Drop(op, addr, d.counts[op]) {
		return
	}
	if d.Corrupt != nil {
		body = d.Corrupt(op, append([]byte(nil), body...))
	}
	var frame []byte
	if withStart {
		frame = append(frame, protocol.FrameStart)
	}
	frame = append(frame, body...)
	frame = append(frame, protocol.FrameEnd)
	d.queue(frame)
}

func (d *Device) queue(frame []byte) {
	if len(d.Noise) > 0 && frame[0] == protocol.FrameStart {
		d.rx = append(d.rx, append([]byte(nil), d.Noise...))
	}
	size := d.ChunkSize
	if size <= 0 {
		size = len(frame)
	}
	for len(frame) > 0 {
		n := min(size, len(frame))
		d.rx = append(d.rx, append([]byte(nil), frame[:n]...))
		frame = frame[n:]
	}
}
