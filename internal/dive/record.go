package dive

import (
	"errors"
	"time"
)

// Point is one entry of a dive timeline: a depth sample or a tank pressure
// reading. Seconds is the elapsed time of the latest depth sample.
type Point struct {
	Seconds int        `json:"time_s"`
	Sample  *Sample    `json:"sample,omitempty"`
	Air     *AirSample `json:"air,omitempty"`
}

// DiveRecord is a fully downloaded dive. Partial is set when some profile
// records failed verification or the profile could not be read to the end.
type DiveRecord struct {
	Identity       Identity `json:"identity"`
	Header         *Header  `json:"header"`
	Points         []Point  `json:"points"`
	Partial        bool     `json:"partial,omitempty"`
	InvalidRecords int      `json:"invalid_records,omitempty"`
	Problems       []string `json:"problems,omitempty"`
}

// Samples returns the depth samples in order.
func (d *DiveRecord) Samples() []Sample {
	var out []Sample
	for _, p := range d.Points {
		if p.Sample != nil {
			out = append(out, *p.Sample)
		}
	}
	return out
}

// Assemble builds a DiveRecord from a decoded header and a raw profile.
//
// Records that fail verification are left out of the timeline and counted in
// InvalidRecords. A bad DPRS record still occupies its 5 s slot so later
// samples keep their times. When the profile cannot be decoded to the end the
// record built so far is returned together with the error.
func Assemble(h *Header, profile []byte) (*DiveRecord, error) {
	rec := &DiveRecord{
		Identity: h.Identity(),
		Header:   h,
	}

	var elapsed time.Duration
	samples := 0
	for r, err := range DecodeProfile(profile) {
		if err != nil && !errors.Is(err, ErrCrcMismatch) && !errors.Is(err, ErrTagMismatch) {
			rec.Partial = true
			rec.Problems = append(rec.Problems, err.Error())
			return rec, err
		}

		if r.Tag == TagSample {
			elapsed = time.Duration(samples) * SampleInterval
			samples++
		}
		if err != nil {
			rec.Partial = true
			rec.InvalidRecords++
			rec.Problems = append(rec.Problems, err.Error())
			continue
		}

		switch r.Tag {
		case TagSample:
			rec.Points = append(rec.Points, Point{Seconds: int(elapsed / time.Second), Sample: r.Sample})
		case TagAir:
			rec.Points = append(rec.Points, Point{Seconds: int(elapsed / time.Second), Air: r.Air})
		}
	}

	return rec, nil
}
