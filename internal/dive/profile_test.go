package dive_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/vitaminmoo/geniusdl/internal/dive"
	"github.com/vitaminmoo/geniusdl/internal/dive/divetest"
)

func TestChecksum(t *testing.T) {
	// CRC-16/MCRF4XX check value.
	if got := dive.Checksum([]byte("123456789")); got != 0x6F91 {
		t.Errorf("Checksum(123456789) = %04X, want 6F91", got)
	}
}

func collect(b []byte) ([]dive.Record, []error) {
	var recs []dive.Record
	var errs []error
	for r, err := range dive.DecodeProfile(b) {
		recs = append(recs, r)
		errs = append(errs, err)
	}
	return recs, errs
}

func TestDecodeProfile(t *testing.T) {
	profile := divetest.Profile(
		divetest.Record(dive.TagDiveStart, nil),
		divetest.Record(dive.TagTissue, nil),
		divetest.SampleRecord(125, 198, 1<<2|3<<3|1<<18|9<<19),
		divetest.AirRecord(19850),
		divetest.SampleRecord(131, -4, 0),
		divetest.Record(dive.TagDiveEnd, nil),
	)

	recs, errs := collect(profile)
	wantTags := []dive.Tag{dive.TagDiveStart, dive.TagTissue, dive.TagSample, dive.TagAir, dive.TagSample, dive.TagDiveEnd}
	if len(recs) != len(wantTags) {
		t.Fatalf("got %d records, want %d", len(recs), len(wantTags))
	}
	offset := 4
	for i, r := range recs {
		if errs[i] != nil {
			t.Fatalf("record %d: %v", i, errs[i])
		}
		if r.Tag != wantTags[i] || !r.Valid {
			t.Errorf("record %d = %s valid=%v, want %s", i, r.Tag, r.Valid, wantTags[i])
		}
		if r.Offset != offset {
			t.Errorf("record %d offset = %d, want %d", i, r.Offset, offset)
		}
		offset += dive.RecordSize(r.Tag)
	}

	s := recs[2].Sample
	if s == nil {
		t.Fatal("DPRS record has no sample")
	}
	if s.Depth != 125 || s.Temperature != 198 || s.DecoTime != 3 {
		t.Errorf("sample = %+v", s)
	}
	if !s.Bookmark || s.GasMix != 3 || !s.DecoStop || s.DecoDepth != 9 {
		t.Errorf("misc fields = bookmark %v gas %d stop %v depth %d", s.Bookmark, s.GasMix, s.DecoStop, s.DecoDepth)
	}
	if s.DepthMeters() != 12.5 {
		t.Errorf("DepthMeters() = %v", s.DepthMeters())
	}
	if recs[4].Sample.Temperature != -4 {
		t.Errorf("negative temperature = %d", recs[4].Sample.Temperature)
	}
	if recs[3].Air == nil || recs[3].Air.Pressure != 19850 || recs[3].Air.PressureBar() != 198.5 {
		t.Errorf("air = %+v", recs[3].Air)
	}
}

func TestDecodeProfileRestartable(t *testing.T) {
	seq := dive.DecodeProfile(divetest.SimpleProfile(25))

	var first, second []dive.Record
	for r := range seq {
		first = append(first, r)
	}
	for r := range seq {
		second = append(second, r)
	}
	if len(first) != len(second) || len(first) != 2+25+2+1 {
		t.Fatalf("passes yielded %d and %d records", len(first), len(second))
	}
	for i := range first {
		if !bytes.Equal(first[i].Raw, second[i].Raw) {
			t.Fatalf("record %d differs between passes", i)
		}
	}
}

func TestDecodeProfileStopsEarly(t *testing.T) {
	n := 0
	for range dive.DecodeProfile(divetest.SimpleProfile(50)) {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("consumed %d records", n)
	}
}

func TestDecodeProfileCorruptTrailingTag(t *testing.T) {
	rec := divetest.SampleRecord(100, 200, 0)
	copy(rec[len(rec)-4:], "DPRX")
	profile := divetest.Profile(rec, divetest.SampleRecord(110, 200, 0))

	recs, errs := collect(profile)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if !errors.Is(errs[0], dive.ErrTagMismatch) {
		t.Errorf("error = %v, want ErrTagMismatch", errs[0])
	}
	if recs[0].Valid || recs[0].Sample != nil {
		t.Error("record with bad trailing tag must be rejected even though its CRC passes")
	}
	if errs[1] != nil || !recs[1].Valid {
		t.Errorf("next record: %v", errs[1])
	}
}

func TestDecodeProfileFlippedCRC(t *testing.T) {
	rec := divetest.SampleRecord(100, 200, 0)
	rec[len(rec)-6] ^= 0x01
	profile := divetest.Profile(rec, divetest.AirRecord(15000))

	recs, errs := collect(profile)
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if !errors.Is(errs[0], dive.ErrCrcMismatch) {
		t.Errorf("error = %v, want ErrCrcMismatch", errs[0])
	}
	if recs[0].Valid {
		t.Error("record with flipped CRC is marked valid")
	}
	if recs[0].StoredCRC == recs[0].ComputedCRC {
		t.Error("stored and computed CRC should differ")
	}
	if recs[0].Sample == nil || recs[0].Sample.Depth != 100 {
		t.Error("flagged record should still be surfaced")
	}
	if errs[1] != nil || recs[1].Air.Pressure != 15000 {
		t.Errorf("decoding did not continue: %v", errs[1])
	}
}

func TestDecodeProfilePayloadCorruption(t *testing.T) {
	rec := divetest.SampleRecord(100, 200, 0)
	rec[5] ^= 0x80
	recs, errs := collect(divetest.Profile(rec))
	if len(recs) != 1 || !errors.Is(errs[0], dive.ErrCrcMismatch) {
		t.Fatalf("got %d records, err %v", len(recs), errs)
	}
}

func TestDecodeProfileFatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		profile []byte
		records int
		want    error
	}{
		{"unknown tag", divetest.Profile(divetest.SampleRecord(1, 1, 0), []byte("XXXX0000000000")), 2, dive.ErrUnknownTag},
		{"truncated record", divetest.Profile(divetest.SampleRecord(1, 1, 0))[:30], 1, dive.ErrTruncated},
		{"trailing bytes", append(divetest.Profile(divetest.AirRecord(1)), 'D', 'P'), 2, dive.ErrTruncated},
		{"short classifier", []byte{1, 2}, 1, dive.ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, errs := collect(tt.profile)
			if len(recs) != tt.records {
				t.Fatalf("got %d records, want %d", len(recs), tt.records)
			}
			if last := errs[len(errs)-1]; !errors.Is(last, tt.want) {
				t.Errorf("last error = %v, want %v", last, tt.want)
			}
		})
	}
}

func TestDecodeProfileEmpty(t *testing.T) {
	recs, _ := collect(divetest.Profile())
	if len(recs) != 0 {
		t.Errorf("got %d records from an empty profile", len(recs))
	}
}
