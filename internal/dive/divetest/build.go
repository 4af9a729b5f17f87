// Package divetest builds synthetic header and profile objects for tests.
package divetest

import (
	"encoding/binary"

	"github.com/vitaminmoo/geniusdl/internal/dive"
)

// HeaderSpec describes a synthetic header. A zero Type is written as 1.
type HeaderSpec struct {
	Type           uint16
	Number         uint32
	Time           dive.DateTime
	Mode           uint32
	Salinity       uint32
	SurfaceTimeout uint32
	Samples        uint16
	MaxDepth       uint16
	TempMax        int16
	TempMin        int16
	Atmospheric    uint16
	Gases          [dive.NumGasMixes]dive.GasMix
}

// DefaultTime is used when a spec leaves Time empty.
var DefaultTime = dive.DateTime{Year: 2025, Month: 6, Day: 21, Hour: 10, Minute: 42}

// Header encodes spec as a 200-byte header object.
func Header(spec HeaderSpec) []byte {
	b := make([]byte, dive.HeaderSize)
	if spec.Type == 0 {
		spec.Type = 1
	}
	if spec.Time == (dive.DateTime{}) {
		spec.Time = DefaultTime
	}
	binary.LittleEndian.PutUint16(b[0x00:], spec.Type)
	b[0x02] = 3
	b[0x03] = 1
	binary.LittleEndian.PutUint32(b[0x04:], spec.Number)
	binary.LittleEndian.PutUint32(b[0x08:], dive.EncodeDateTime(spec.Time))
	settings := spec.Mode&0x0F | (spec.Salinity&0x03)<<5 | (spec.SurfaceTimeout&0x3F)<<13
	binary.LittleEndian.PutUint32(b[0x0C:], settings)
	binary.LittleEndian.PutUint16(b[0x20:], spec.Samples)
	binary.LittleEndian.PutUint16(b[0x22:], spec.MaxDepth)
	binary.LittleEndian.PutUint16(b[0x26:], uint16(spec.TempMax))
	binary.LittleEndian.PutUint16(b[0x28:], uint16(spec.TempMin))
	binary.LittleEndian.PutUint16(b[0x3E:], spec.Atmospheric)
	for i, g := range spec.Gases {
		off := 0x54 + i*20
		params := uint32(g.O2)&0x7F | (uint32(g.N2)&0x7F)<<7 | (uint32(g.He)&0x7F)<<14 | (uint32(g.State)&0x03)<<21
		binary.LittleEndian.PutUint32(b[off:], params)
		binary.LittleEndian.PutUint16(b[off+4:], g.BeginPressure)
		binary.LittleEndian.PutUint16(b[off+6:], g.EndPressure)
		binary.LittleEndian.PutUint16(b[off+8:], g.Volume)
		binary.LittleEndian.PutUint16(b[off+10:], g.WorkingPressure)
	}
	return b
}

// Record builds a tagged record with a valid CRC. payload is padded or cut
// to the size the tag requires.
func Record(tag dive.Tag, payload []byte) []byte {
	size := dive.RecordSize(tag)
	r := make([]byte, size)
	copy(r, tag)
	copy(r[4:size-6], payload)
	binary.LittleEndian.PutUint16(r[size-6:], dive.Checksum(r[4:size-6]))
	copy(r[size-4:], tag)
	return r
}

// SampleRecord builds a DPRS record.
func SampleRecord(depth uint16, temp int16, misc uint32) []byte {
	p := make([]byte, dive.RecordSize(dive.TagSample)-10)
	binary.LittleEndian.PutUint16(p[0:], depth)
	binary.LittleEndian.PutUint16(p[4:], uint16(temp))
	binary.LittleEndian.PutUint16(p[6:], 3)
	binary.LittleEndian.PutUint32(p[8:], 0)
	binary.LittleEndian.PutUint32(p[16:], misc)
	return Record(dive.TagSample, p)
}

// AirRecord builds an AIRS record.
func AirRecord(pressure uint16) []byte {
	p := make([]byte, 2)
	binary.LittleEndian.PutUint16(p, pressure)
	return Record(dive.TagAir, p)
}

// Profile prefixes records with the 4-byte classifier.
func Profile(records ...[]byte) []byte {
	out := []byte{0x02, 0x00, 0x01, 0x00}
	for _, r := range records {
		out = append(out, r...)
	}
	return out
}

// SimpleProfile builds DSTR, TISS, n samples with an AIRS record after every
// tenth sample, and DEND.
func SimpleProfile(n int) []byte {
	recs := [][]byte{Record(dive.TagDiveStart, nil), Record(dive.TagTissue, nil)}
	for i := 0; i < n; i++ {
		recs = append(recs, SampleRecord(uint16(10*i), 215, 0))
		if i%10 == 9 {
			recs = append(recs, AirRecord(uint16(20000-100*i)))
		}
	}
	recs = append(recs, Record(dive.TagDiveEnd, nil))
	return Profile(recs...)
}
