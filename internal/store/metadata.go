package store

import (
	"strings"
	"time"

	"github.com/vitaminmoo/geniusdl/internal/dive"
)

// Metadata describes where a stored dive came from and what was kept.
type Metadata struct {
	Key            string        `json:"key"`
	Identity       dive.Identity `json:"identity"`
	ContentHash    string        `json:"content_hash"`
	HeaderSize     int           `json:"header_size"`
	ProfileSize    int           `json:"profile_size"`
	Partial        bool          `json:"partial,omitempty"`
	InvalidRecords int           `json:"invalid_records,omitempty"`
	RawHeader      string        `json:"raw_header,omitempty"`  // relative to the store
	RawProfile     string        `json:"raw_profile,omitempty"` // relative to the store
	Sources        []Source      `json:"sources"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Source records where a dive was obtained from.
type Source struct {
	Model       string    `json:"model,omitempty"`
	PCBNumber   string    `json:"pcb_number,omitempty"`
	DeviceAddr  string    `json:"device_addr,omitempty"`
	Index       int       `json:"index"`
	ContentHash string    `json:"content_hash,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Method      string    `json:"method"` // "download", "parse"
	Filename    string    `json:"filename,omitempty"`
}

// DeviceDir names the raw directory for the source device.
func (s Source) DeviceDir() string {
	name := s.Model
	if s.PCBNumber != "" {
		name += "_" + s.PCBNumber
	}
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return '_'
		}
	}, strings.TrimSpace(name))
	name = strings.Trim(name, "_.")
	if name == "" {
		return "unknown"
	}
	return name
}

// ExtractMetadata summarises a dive and its raw objects.
func ExtractMetadata(rec *dive.DiveRecord, raw Raw) *Metadata {
	now := time.Now()
	return &Metadata{
		Key:            rec.Identity.Key(),
		Identity:       rec.Identity,
		ContentHash:    ContentHash(raw.Header, raw.Profile),
		HeaderSize:     len(raw.Header),
		ProfileSize:    len(raw.Profile),
		Partial:        rec.Partial,
		InvalidRecords: rec.InvalidRecords,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
