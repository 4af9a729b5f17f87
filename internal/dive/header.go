package dive

import (
	"fmt"
	"time"
)

// HeaderSize is the size of a dive header object.
const HeaderSize = 200

// SampleInterval is the fixed cadence of DPRS samples.
const SampleInterval = 5 * time.Second

// Header field offsets.
const (
	offType        = 0x00
	offMinor       = 0x02
	offMajor       = 0x03
	offDiveNumber  = 0x04
	offDateTime    = 0x08
	offSettings    = 0x0C
	offSampleCount = 0x20
	offMaxDepth    = 0x22
	offTempMax     = 0x26
	offTempMin     = 0x28
	offAtmospheric = 0x3E
	offGasMixes    = 0x54

	gasMixSize  = 20
	NumGasMixes = 5

	headerType = 1
)

// Mode is the dive mode from the settings word.
type Mode uint8

const (
	ModeAir Mode = iota
	ModeEANx
	ModeEANxMulti
	ModeTrimix
	ModeGauge
	ModeFreedive
	ModeSCR
	ModeOC
)

var modeNames = [...]string{"Air", "EANx", "EANx-Multi", "Trimix", "Gauge", "Freedive", "SCR", "OC"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	for i, name := range modeNames {
		if name == string(text) {
			*m = Mode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown dive mode %q", text)
}

// Salinity is the water type setting.
type Salinity uint8

const (
	SalinityFresh Salinity = iota
	SalinitySalt
	SalinityEN13319
	// SalinityUnknown is the unused fourth value of the 2-bit field.
	SalinityUnknown
)

var salinityNames = [...]string{"Fresh", "Salt", "EN13319", "Unknown"}

func (s Salinity) String() string {
	if int(s) < len(salinityNames) {
		return salinityNames[s]
	}
	return fmt.Sprintf("Salinity(%d)", uint8(s))
}

func (s Salinity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Salinity) UnmarshalText(text []byte) error {
	for i, name := range salinityNames {
		if name == string(text) {
			*s = Salinity(i)
			return nil
		}
	}
	return fmt.Errorf("unknown salinity %q", text)
}

// GasState is the state of a gas mix slot.
type GasState uint8

const (
	GasOff GasState = iota
	GasReady
	GasInUse
	GasIgnored
)

var gasStateNames = [...]string{"OFF", "READY", "INUSE", "IGNORED"}

func (g GasState) String() string {
	if int(g) < len(gasStateNames) {
		return gasStateNames[g]
	}
	return fmt.Sprintf("GasState(%d)", uint8(g))
}

func (g GasState) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *GasState) UnmarshalText(text []byte) error {
	for i, name := range gasStateNames {
		if name == string(text) {
			*g = GasState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown gas state %q", text)
}

// GasMix is one of the five gas slots. O2+N2+He is not checked against 100.
type GasMix struct {
	O2              uint8    `json:"o2"`
	N2              uint8    `json:"n2"`
	He              uint8    `json:"he"`
	State           GasState `json:"state"`
	BeginPressure   uint16   `json:"begin_pressure"` // 0.01 bar
	EndPressure     uint16   `json:"end_pressure"`   // 0.01 bar
	Volume          uint16   `json:"volume"`
	WorkingPressure uint16   `json:"working_pressure"`
}

// Used reports whether the slot was enabled for the dive.
func (g GasMix) Used() bool {
	return g.State == GasReady || g.State == GasInUse
}

// DateTime is the device's wall clock time. The device has no time zone.
type DateTime struct {
	Year   int `json:"year"`
	Month  int `json:"month"`
	Day    int `json:"day"`
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// Time returns the wall clock time in UTC.
func (d DateTime) Time() time.Time {
	return time.Date(d.Year, time.Month(d.Month), d.Day, d.Hour, d.Minute, 0, 0, time.UTC)
}

func (d DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:00", d.Year, d.Month, d.Day, d.Hour, d.Minute)
}

// decodeDateTime unpacks the datetime word:
//
//	bits  0-4   hour
//	bits  5-10  minute
//	bits 11-15  day
//	bits 16-19  month
//	bits 20-31  year
func decodeDateTime(v uint32) (DateTime, error) {
	d := DateTime{
		Hour:   int(bits(v, 0, 5)),
		Minute: int(bits(v, 5, 11)),
		Day:    int(bits(v, 11, 16)),
		Month:  int(bits(v, 16, 20)),
		Year:   int(bits(v, 20, 32)),
	}
	switch {
	case d.Hour > 23:
		return d, decodeErr(ErrBadTimestamp, offDateTime, "hour %d", d.Hour)
	case d.Minute > 59:
		return d, decodeErr(ErrBadTimestamp, offDateTime, "minute %d", d.Minute)
	case d.Day < 1 || d.Day > 31:
		return d, decodeErr(ErrBadTimestamp, offDateTime, "day %d", d.Day)
	case d.Month < 1 || d.Month > 12:
		return d, decodeErr(ErrBadTimestamp, offDateTime, "month %d", d.Month)
	}
	return d, nil
}

// EncodeDateTime packs d into the device's datetime word.
func EncodeDateTime(d DateTime) uint32 {
	return uint32(d.Hour)&0x1F |
		(uint32(d.Minute)&0x3F)<<5 |
		(uint32(d.Day)&0x1F)<<11 |
		(uint32(d.Month)&0x0F)<<16 |
		(uint32(d.Year)&0xFFF)<<20
}

// Identity distinguishes dives across downloads.
type Identity struct {
	Number uint32   `json:"number"`
	Time   DateTime `json:"time"`
}

// Key is a filesystem-safe rendering of the identity.
func (id Identity) Key() string {
	return fmt.Sprintf("%05d_%04d%02d%02dT%02d%02d", id.Number,
		id.Time.Year, id.Time.Month, id.Time.Day, id.Time.Hour, id.Time.Minute)
}

func (id Identity) String() string {
	return fmt.Sprintf("#%d %s", id.Number, id.Time)
}

// Header is a decoded dive header.
type Header struct {
	MinorVersion uint8 `json:"minor_version"`
	MajorVersion uint8 `json:"major_version"`

	DiveNumber uint32   `json:"dive_number"`
	DateTime   DateTime `json:"datetime"`

	Settings              uint32   `json:"settings"`
	Mode                  Mode     `json:"mode"`
	Salinity              Salinity `json:"salinity"`
	SurfaceTimeoutMinutes uint8    `json:"surface_timeout_minutes"`

	SampleCount    uint16 `json:"sample_count"`
	MaxDepth       uint16 `json:"max_depth"`       // 0.1 m
	TemperatureMax int16  `json:"temperature_max"` // 0.1 °C
	TemperatureMin int16  `json:"temperature_min"` // 0.1 °C
	Atmospheric    uint16 `json:"atmospheric"`     // 0.001 bar

	GasMixes [NumGasMixes]GasMix `json:"gas_mixes"`
}

// DurationSeconds is sample_count*5 minus the surface timeout. It is not
// clamped and may be zero or negative for very short dives.
func (h *Header) DurationSeconds() int {
	return int(h.SampleCount)*int(SampleInterval/time.Second) - int(h.SurfaceTimeoutMinutes)*60
}

// Identity returns the dive's identity.
func (h *Header) Identity() Identity {
	return Identity{Number: h.DiveNumber, Time: h.DateTime}
}

// MaxDepthMeters returns the maximum depth in metres.
func (h *Header) MaxDepthMeters() float64 {
	return float64(h.MaxDepth) / 10
}

// DecodeHeader decodes a 200-byte header object.
func DecodeHeader(b []byte) (*Header, error) {
	if len(b) < HeaderSize {
		return nil, decodeErr(ErrTruncated, len(b), "header is %d bytes, want %d", len(b), HeaderSize)
	}
	if t := u16(b, offType); t != headerType {
		return nil, decodeErr(ErrBadMagic, offType, "type %d", t)
	}

	dt, err := decodeDateTime(u32(b, offDateTime))
	if err != nil {
		return nil, err
	}

	// settings: bits 0-3 mode, 5-6 salinity, 13-18 surface timeout
	settings := u32(b, offSettings)
	mode := bits(settings, 0, 4)
	if int(mode) >= len(modeNames) {
		return nil, decodeErr(ErrUnknownMode, offSettings, "mode %d", mode)
	}

	h := &Header{
		MinorVersion:          b[offMinor],
		MajorVersion:          b[offMajor],
		DiveNumber:            u32(b, offDiveNumber),
		DateTime:              dt,
		Settings:              settings,
		Mode:                  Mode(mode),
		Salinity:              Salinity(bits(settings, 5, 7)),
		SurfaceTimeoutMinutes: uint8(bits(settings, 13, 19)),
		SampleCount:           u16(b, offSampleCount),
		MaxDepth:              u16(b, offMaxDepth),
		TemperatureMax:        i16(b, offTempMax),
		TemperatureMin:        i16(b, offTempMin),
		Atmospheric:           u16(b, offAtmospheric),
	}

	for i := range h.GasMixes {
		h.GasMixes[i] = decodeGasMix(b[offGasMixes+i*gasMixSize:])
	}

	return h, nil
}

// decodeGasMix unpacks one 20-byte gas entry. The params word holds
// O2 in bits 0-6, N2 in bits 7-13, He in bits 14-20, state in bits 21-22.
func decodeGasMix(b []byte) GasMix {
	params := u32(b, 0)
	return GasMix{
		O2:              uint8(bits(params, 0, 7)),
		N2:              uint8(bits(params, 7, 14)),
		He:              uint8(bits(params, 14, 21)),
		State:           GasState(bits(params, 21, 23)),
		BeginPressure:   u16(b, 4),
		EndPressure:     u16(b, 6),
		Volume:          u16(b, 8),
		WorkingPressure: u16(b, 10),
	}
}

// DiveNumber reads the dive number without a full decode.
func DiveNumber(b []byte) (uint32, bool) {
	if len(b) < offDiveNumber+4 {
		return 0, false
	}
	return u32(b, offDiveNumber), true
}
