package protocol_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vitaminmoo/geniusdl/internal/protocol"
)

func TestEncodeCommand(t *testing.T) {
	upload := make([]byte, protocol.UploadPayloadLen)
	upload[0] = 0x40
	upload[2] = 0x30
	upload[3] = 0x04

	tests := []struct {
		name    string
		opcode  byte
		payload []byte
		want    []byte
		wantErr bool
	}{
		{"version", protocol.CmdVersion, nil, []byte{0xC2, 0x67}, false},
		{"segment0", protocol.CmdSegment0, nil, []byte{0xAC, 0x09}, false},
		{"segment1", protocol.CmdSegment1, nil, []byte{0xFE, 0x5B}, false},
		{"upload", protocol.CmdUpload, upload, append([]byte{0xBF, 0x1A}, upload...), false},
		{"set clock", protocol.CmdSetClock, []byte{1, 2, 3, 4}, []byte{0xB0, 0x15, 1, 2, 3, 4}, false},
		{"upload short payload", protocol.CmdUpload, upload[:17], nil, true},
		{"version with payload", protocol.CmdVersion, []byte{1}, nil, true},
		{"set clock long payload", protocol.CmdSetClock, []byte{1, 2, 3, 4, 5}, nil, true},
		{"unknown opcode", 0x10, []byte{9, 9}, []byte{0x10, 0xB5, 9, 9}, false},
		{"unknown opcode oversized", 0x10, make([]byte, 19), nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := protocol.EncodeCommand(tt.opcode, tt.payload)
			if tt.wantErr {
				if !errors.Is(err, protocol.ErrInvalidPayload) {
					t.Fatalf("EncodeCommand() error = %v, want ErrInvalidPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("EncodeCommand() unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeCommand() = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestEncodeCommandRoundTrip(t *testing.T) {
	for op := 0; op < 256; op++ {
		payload := []byte{byte(op), 0xEA, 0xAA}
		opcode := byte(op)
		switch opcode {
		case protocol.CmdUpload:
			payload = make([]byte, protocol.UploadPayloadLen)
		case protocol.CmdSetClock:
			payload = []byte{1, 2, 3, 4}
		case protocol.CmdVersion, protocol.CmdSegment0, protocol.CmdSegment1:
			payload = nil
		}

		wire, err := protocol.EncodeCommand(opcode, payload)
		if err != nil {
			t.Fatalf("opcode 0x%02X: %v", opcode, err)
		}
		if h := (protocol.Command{Opcode: opcode, Payload: payload}).Header(); !bytes.Equal(h, wire[:2]) {
			t.Errorf("opcode 0x%02X: Header() = % X, want % X", opcode, h, wire[:2])
		}
		if wire[0]^wire[1] != protocol.HeaderXOR {
			t.Errorf("opcode 0x%02X: header check %02X ^ %02X != A5", opcode, wire[0], wire[1])
		}
		if !bytes.Equal(wire[2:], payload) {
			t.Errorf("opcode 0x%02X: payload % X, want % X", opcode, wire[2:], payload)
		}
	}
}

func TestExtractFrame(t *testing.T) {
	long := append([]byte{0xAA}, bytes.Repeat([]byte{0x11}, protocol.MaxFrameSize+1)...)

	tests := []struct {
		name     string
		stream   []byte
		minBody  int
		want     []byte
		consumed int
		wantErr  error
	}{
		{"simple", []byte{0xAA, 1, 2, 3, 0xEA}, 0, []byte{1, 2, 3}, 5, nil},
		{"empty body", []byte{0xAA, 0xEA}, 0, []byte{}, 2, nil},
		{"leading noise", []byte{0x00, 0x13, 0xAA, 7, 0xEA, 0x55}, 0, []byte{7}, 5, nil},
		{"end marker inside fixed body", []byte{0xAA, 0xEA, 0x30, 0x04, 0xEA}, 3, []byte{0xEA, 0x30, 0x04}, 5, nil},
		{"no start", []byte{1, 2, 3}, 0, nil, 0, protocol.ErrIncomplete},
		{"no end yet", []byte{0xAA, 1, 2}, 0, nil, 0, protocol.ErrIncomplete},
		{"end before min body", []byte{0xAA, 1, 0xEA}, 4, nil, 0, protocol.ErrIncomplete},
		{"overflow", long, 0, nil, 0, protocol.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, consumed, err := protocol.ExtractFrame(tt.stream, tt.minBody)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ExtractFrame() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractFrame() unexpected error: %v", err)
			}
			if !bytes.Equal(body, tt.want) {
				t.Errorf("body = % X, want % X", body, tt.want)
			}
			if consumed != tt.consumed {
				t.Errorf("consumed = %d, want %d", consumed, tt.consumed)
			}
		})
	}
}

func TestFramerAcrossNotifications(t *testing.T) {
	var f protocol.Framer

	f.Feed([]byte{0x01, 0xAA, 0x42})
	if !f.Started() {
		t.Fatal("Started() = false after start marker")
	}
	if _, err := f.Next(2); !errors.Is(err, protocol.ErrIncomplete) {
		t.Fatalf("Next() error = %v, want ErrIncomplete", err)
	}

	f.Feed([]byte{0x00, 0xEA})
	body, err := f.Next(2)
	if err != nil {
		t.Fatalf("Next() unexpected error: %v", err)
	}
	if !bytes.Equal(body, []byte{0x42, 0x00}) {
		t.Errorf("body = % X, want 42 00", body)
	}
	if f.Buffered() != 0 {
		t.Errorf("Buffered() = %d after full frame, want 0", f.Buffered())
	}

	f.Feed([]byte{0xAA, 0x01})
	f.Reset()
	if f.Started() || f.Buffered() != 0 {
		t.Error("Reset() left stale bytes")
	}
}

func TestFramerNextAtChunkEnd(t *testing.T) {
	tests := []struct {
		name    string
		chunks  [][]byte
		minBody int
		want    []byte
		wantErr error
	}{
		{"short frame in one chunk", [][]byte{{0xAA, 0x10, 1, 2, 0xEA}}, 50, []byte{0x10, 1, 2}, nil},
		{"marker inside chunk", [][]byte{{0xAA, 0x10, 0xEA, 5}, {6, 0xEA}}, 50, []byte{0x10, 0xEA, 5, 6}, nil},
		{"below floor", [][]byte{{0xAA, 0x10, 0xEA}}, 50, nil, protocol.ErrIncomplete},
		{"marker splits chunk", [][]byte{{0xAA, 0x10, 1, 0xEA, 7}}, 50, nil, protocol.ErrIncomplete},
		{"full length inside chunk", [][]byte{{0xAA, 0x10, 1, 0xEA, 7}}, 2, []byte{0x10, 1}, nil},
		{"noise before start", [][]byte{{0x00, 0xEA}, {0xAA, 0x00, 9, 0xEA}}, 50, []byte{0x00, 9}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f protocol.Framer
			for _, c := range tt.chunks {
				f.Feed(c)
			}
			body, err := f.NextAtChunkEnd(2, tt.minBody)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NextAtChunkEnd() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NextAtChunkEnd() unexpected error: %v", err)
			}
			if !bytes.Equal(body, tt.want) {
				t.Errorf("body = % X, want % X", body, tt.want)
			}
		})
	}
}

func TestFramerQueuedShortFrames(t *testing.T) {
	var f protocol.Framer
	f.Feed([]byte{0xAA, 0x00, 1, 0xEA})
	f.Feed([]byte{0xAA, 0x10, 2, 3, 0xEA})

	first, err := f.NextAtChunkEnd(2, 100)
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if !bytes.Equal(first, []byte{0x00, 1}) {
		t.Errorf("first = % X, want 00 01", first)
	}
	if f.Buffered() != 5 {
		t.Errorf("Buffered() = %d, want 5", f.Buffered())
	}

	second, err := f.NextAtChunkEnd(2, 100)
	if err != nil {
		t.Fatalf("second frame: %v", err)
	}
	if !bytes.Equal(second, []byte{0x10, 2, 3}) {
		t.Errorf("second = % X, want 10 02 03", second)
	}
}
