package dive_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/vitaminmoo/geniusdl/internal/dive"
	"github.com/vitaminmoo/geniusdl/internal/dive/divetest"
)

func TestDecodeHeader(t *testing.T) {
	gases := [dive.NumGasMixes]dive.GasMix{
		{O2: 21, N2: 79, State: dive.GasInUse, BeginPressure: 20000, EndPressure: 5500, Volume: 12, WorkingPressure: 23200},
		{O2: 50, N2: 50, State: dive.GasReady},
		{O2: 18, N2: 37, He: 45, State: dive.GasIgnored},
	}
	raw := divetest.Header(divetest.HeaderSpec{
		Number:         142,
		Time:           dive.DateTime{Year: 2024, Month: 11, Day: 3, Hour: 14, Minute: 7},
		Mode:           1,
		Salinity:       1,
		SurfaceTimeout: 3,
		Samples:        720,
		MaxDepth:       284,
		TempMax:        271,
		TempMin:        -15,
		Atmospheric:    1013,
		Gases:          gases,
	})

	h, err := dive.DecodeHeader(raw)
	if err != nil {
		t.Fatalf("DecodeHeader() error: %v", err)
	}

	if h.DiveNumber != 142 {
		t.Errorf("DiveNumber = %d, want 142", h.DiveNumber)
	}
	if h.DateTime.String() != "2024-11-03T14:07:00" {
		t.Errorf("DateTime = %s", h.DateTime)
	}
	if h.Mode != dive.ModeEANx {
		t.Errorf("Mode = %v, want EANx", h.Mode)
	}
	if h.Salinity != dive.SalinitySalt {
		t.Errorf("Salinity = %v, want Salt", h.Salinity)
	}
	if h.SurfaceTimeoutMinutes != 3 {
		t.Errorf("SurfaceTimeoutMinutes = %d, want 3", h.SurfaceTimeoutMinutes)
	}
	if h.SampleCount != 720 || h.MaxDepth != 284 || h.Atmospheric != 1013 {
		t.Errorf("SampleCount/MaxDepth/Atmospheric = %d/%d/%d", h.SampleCount, h.MaxDepth, h.Atmospheric)
	}
	if h.MaxDepthMeters() != 28.4 {
		t.Errorf("MaxDepthMeters() = %v, want 28.4", h.MaxDepthMeters())
	}
	if h.TemperatureMax != 271 || h.TemperatureMin != -15 {
		t.Errorf("temperatures = %d/%d, want 271/-15", h.TemperatureMax, h.TemperatureMin)
	}
	if h.MajorVersion != 1 || h.MinorVersion != 3 {
		t.Errorf("version = %d.%d, want 1.3", h.MajorVersion, h.MinorVersion)
	}
	if h.GasMixes != gases {
		t.Errorf("GasMixes = %+v, want %+v", h.GasMixes, gases)
	}
	if !h.GasMixes[0].Used() || h.GasMixes[2].Used() || h.GasMixes[3].Used() {
		t.Error("Used() does not follow gas state")
	}
	if got, want := h.DurationSeconds(), 720*5-3*60; got != want {
		t.Errorf("DurationSeconds() = %d, want %d", got, want)
	}
	if h.Identity() != (dive.Identity{Number: 142, Time: h.DateTime}) {
		t.Errorf("Identity() = %v", h.Identity())
	}
}

func TestDurationSeconds(t *testing.T) {
	tests := []struct {
		name    string
		samples uint16
		surface uint32
		want    int
	}{
		{"normal", 600, 5, 2700},
		{"no surface timeout", 12, 0, 60},
		{"zero", 36, 3, 0},
		{"negative", 10, 3, -130},
		{"max surface timeout, no samples", 0, 63, -3780},
		{"max samples", 65535, 0, 327675},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := dive.DecodeHeader(divetest.Header(divetest.HeaderSpec{Samples: tt.samples, SurfaceTimeout: tt.surface}))
			if err != nil {
				t.Fatalf("DecodeHeader() error: %v", err)
			}
			if got := h.DurationSeconds(); got != tt.want {
				t.Errorf("DurationSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDecodeHeaderErrors(t *testing.T) {
	withDateTime := func(v uint32) []byte {
		b := divetest.Header(divetest.HeaderSpec{})
		binary.LittleEndian.PutUint32(b[0x08:], v)
		return b
	}
	pack := func(year, month, day, hour, minute uint32) uint32 {
		return hour | minute<<5 | day<<11 | month<<16 | year<<20
	}

	tests := []struct {
		name string
		raw  []byte
		want error
	}{
		{"type 0", func() []byte { b := divetest.Header(divetest.HeaderSpec{}); b[0] = 0; return b }(), dive.ErrBadMagic},
		{"type 2", divetest.Header(divetest.HeaderSpec{Type: 2}), dive.ErrBadMagic},
		{"hour 24", withDateTime(pack(2024, 1, 1, 24, 0)), dive.ErrBadTimestamp},
		{"minute 60", withDateTime(pack(2024, 1, 1, 0, 60)), dive.ErrBadTimestamp},
		{"day 0", withDateTime(pack(2024, 1, 0, 0, 0)), dive.ErrBadTimestamp},
		{"month 0", withDateTime(pack(2024, 0, 1, 0, 0)), dive.ErrBadTimestamp},
		{"month 13", withDateTime(pack(2024, 13, 1, 0, 0)), dive.ErrBadTimestamp},
		{"mode 8", divetest.Header(divetest.HeaderSpec{Mode: 8}), dive.ErrUnknownMode},
		{"mode 15", divetest.Header(divetest.HeaderSpec{Mode: 15}), dive.ErrUnknownMode},
		{"short", make([]byte, 199), dive.ErrTruncated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dive.DecodeHeader(tt.raw)
			if !errors.Is(err, tt.want) {
				t.Fatalf("DecodeHeader() error = %v, want %v", err, tt.want)
			}
			if !dive.IsDecode(err) {
				t.Errorf("IsDecode(%v) = false", err)
			}
		})
	}
}

func TestDecodeHeaderAllModes(t *testing.T) {
	want := []string{"Air", "EANx", "EANx-Multi", "Trimix", "Gauge", "Freedive", "SCR", "OC"}
	for i, name := range want {
		h, err := dive.DecodeHeader(divetest.Header(divetest.HeaderSpec{Mode: uint32(i)}))
		if err != nil {
			t.Fatalf("mode %d: %v", i, err)
		}
		if h.Mode.String() != name {
			t.Errorf("mode %d = %s, want %s", i, h.Mode, name)
		}
	}
}

func TestDecodeHeaderUnusedSalinity(t *testing.T) {
	h, err := dive.DecodeHeader(divetest.Header(divetest.HeaderSpec{Salinity: 3}))
	if err != nil {
		t.Fatalf("DecodeHeader() error: %v", err)
	}
	if h.Salinity != dive.SalinityUnknown {
		t.Errorf("Salinity = %v, want Unknown", h.Salinity)
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	dt := dive.DateTime{Year: 4095, Month: 12, Day: 31, Hour: 23, Minute: 59}
	raw := divetest.Header(divetest.HeaderSpec{Time: dt})
	h, err := dive.DecodeHeader(raw)
	if err != nil {
		t.Fatalf("DecodeHeader() error: %v", err)
	}
	if h.DateTime != dt {
		t.Errorf("DateTime = %+v, want %+v", h.DateTime, dt)
	}
}

func TestIdentityKey(t *testing.T) {
	id := dive.Identity{Number: 7, Time: dive.DateTime{Year: 2025, Month: 1, Day: 2, Hour: 3, Minute: 4}}
	if got := id.Key(); got != "00007_20250102T0304" {
		t.Errorf("Key() = %q", got)
	}
}
