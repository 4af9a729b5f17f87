package dive

import (
	"bytes"
	"iter"

	"github.com/sigurn/crc16"
)

// Tag identifies a profile record type.
type Tag string

const (
	TagDiveStart Tag = "DSTR"
	TagTissue    Tag = "TISS"
	TagSample    Tag = "DPRS"
	TagAir       Tag = "AIRS"
	TagDiveEnd   Tag = "DEND"
)

// recordSizes holds the total length of each record, both tag copies and the
// CRC included.
var recordSizes = map[Tag]int{
	TagDiveStart: 58,
	TagTissue:    138,
	TagSample:    34,
	TagAir:       16,
	TagDiveEnd:   162,
}

// RecordSize returns the total length of records with tag t, or 0.
func RecordSize(t Tag) int {
	return recordSizes[t]
}

const (
	classifierLen = 4
	tagLen        = 4
	// trailerLen is the CRC plus the trailing tag copy.
	trailerLen = 6
)

// The device uses the reflected CCITT polynomial with init 0xFFFF and no
// final xor (CRC-16/MCRF4XX).
var crcTable = crc16.MakeTable(crc16.CRC16_MCRF4XX)

// Checksum computes the record CRC over payload.
func Checksum(payload []byte) uint16 {
	return crc16.Checksum(payload, crcTable)
}

// Record is one tagged profile record. Raw is a private copy of the record
// bytes. Valid is false when the CRC or trailing tag did not verify.
type Record struct {
	Tag         Tag
	Offset      int
	Raw         []byte
	StoredCRC   uint16
	ComputedCRC uint16
	Valid       bool

	Sample *Sample
	Air    *AirSample
}

// Payload returns the bytes covered by the CRC.
func (r Record) Payload() []byte {
	if len(r.Raw) < tagLen+trailerLen {
		return nil
	}
	return r.Raw[tagLen : len(r.Raw)-trailerLen]
}

// Sample is a DPRS record.
type Sample struct {
	Depth       uint16 `json:"depth"`       // 0.1 m
	Temperature int16  `json:"temperature"` // 0.1 °C
	DecoTime    uint16 `json:"deco_time"`   // minutes
	Alarms      uint32 `json:"alarms"`

	// Misc is the raw packed word. The sub-fields below are provisional.
	Misc      uint32 `json:"misc"`
	GasMix    uint8  `json:"gas_mix"`
	Bookmark  bool   `json:"bookmark"`
	DecoStop  bool   `json:"deco_stop"`
	DecoDepth uint8  `json:"deco_depth"`
}

// DepthMeters returns the depth in metres.
func (s Sample) DepthMeters() float64 {
	return float64(s.Depth) / 10
}

// TemperatureCelsius returns the water temperature in °C.
func (s Sample) TemperatureCelsius() float64 {
	return float64(s.Temperature) / 10
}

// AirSample is an AIRS record.
type AirSample struct {
	Pressure uint16 `json:"pressure"` // 0.01 bar
}

// PressureBar returns the tank pressure in bar.
func (a AirSample) PressureBar() float64 {
	return float64(a.Pressure) / 100
}

// DPRS field offsets from the start of the record.
const (
	dprsDepth    = 4
	dprsTemp     = 8
	dprsDecoTime = 10
	dprsAlarms   = 12
	dprsMisc     = 20

	airsPressure = 4
)

// DecodeProfile returns the records of a profile object in stream order.
// Decoding is lazy and pure: ranging over the result again yields the same
// sequence.
//
// A record whose trailing tag or CRC does not verify is yielded with
// Valid=false and an ErrTagMismatch or ErrCrcMismatch error, and decoding
// continues. An unknown tag or a truncated record ends the sequence, since
// record lengths depend on the tag.
func DecodeProfile(b []byte) iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		if len(b) < classifierLen {
			yield(Record{}, decodeErr(ErrTruncated, 0, "profile is %d bytes", len(b)))
			return
		}

		off := classifierLen
		for off < len(b) {
			if off+tagLen > len(b) {
				yield(Record{Offset: off}, decodeErr(ErrTruncated, off, "%d trailing bytes", len(b)-off))
				return
			}
			tag := Tag(b[off : off+tagLen])
			size, ok := recordSizes[tag]
			if !ok {
				yield(Record{Tag: tag, Offset: off}, decodeErr(ErrUnknownTag, off, "tag % X", []byte(tag)))
				return
			}
			if off+size > len(b) {
				yield(Record{Tag: tag, Offset: off}, decodeErr(ErrTruncated, off, "%s needs %d bytes, %d left", tag, size, len(b)-off))
				return
			}

			rec, err := decodeRecord(tag, b[off:off+size], off)
			if !yield(rec, err) {
				return
			}
			off += size
		}
	}
}

func decodeRecord(tag Tag, raw []byte, off int) (Record, error) {
	rec := Record{
		Tag:    tag,
		Offset: off,
		Raw:    bytes.Clone(raw),
	}
	size := len(raw)

	if !bytes.Equal(raw[size-tagLen:], raw[:tagLen]) {
		return rec, decodeErr(ErrTagMismatch, off+size-tagLen, "%s closed by % X", tag, raw[size-tagLen:])
	}

	rec.StoredCRC = u16(raw, size-trailerLen)
	rec.ComputedCRC = Checksum(raw[tagLen : size-trailerLen])

	switch tag {
	case TagSample:
		rec.Sample = decodeSample(raw)
	case TagAir:
		rec.Air = &AirSample{Pressure: u16(raw, airsPressure)}
	}

	if rec.StoredCRC != rec.ComputedCRC {
		return rec, decodeErr(ErrCrcMismatch, off, "%s stored %04X computed %04X", tag, rec.StoredCRC, rec.ComputedCRC)
	}
	rec.Valid = true
	return rec, nil
}

// decodeSample unpacks a DPRS record. Misc layout, not yet confirmed against
// enough dives: bit 2 bookmark, bits 3-6 gas mix, bit 18 deco stop,
// bits 19-25 deco depth.
func decodeSample(raw []byte) *Sample {
	misc := u32(raw, dprsMisc)
	return &Sample{
		Depth:       u16(raw, dprsDepth),
		Temperature: i16(raw, dprsTemp),
		DecoTime:    u16(raw, dprsDecoTime),
		Alarms:      u32(raw, dprsAlarms),
		Misc:        misc,
		Bookmark:    bit(misc, 2),
		GasMix:      uint8(bits(misc, 3, 7)),
		DecoStop:    bit(misc, 18),
		DecoDepth:   uint8(bits(misc, 19, 26)),
	}
}
