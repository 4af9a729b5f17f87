package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/vitaminmoo/geniusdl/internal/dive"
)

// Export formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ExportData is the document written by the JSON exporter.
type ExportData struct {
	Dives []ExportDive `json:"dives"`
}

// ExportDive is a flattened dive for interchange.
type ExportDive struct {
	Number          uint32         `json:"number"`
	DateTime        string         `json:"datetime"`
	DurationSeconds int            `json:"duration_seconds"`
	MaxDepthM       float64        `json:"max_depth_m"`
	DiveMode        dive.Mode      `json:"dive_mode"`
	GasMixes        []ExportGas    `json:"gas_mixes"`
	Samples         []ExportSample `json:"samples"`
	Partial         bool           `json:"partial,omitempty"`
}

type ExportGas struct {
	O2 uint8 `json:"o2"`
	He uint8 `json:"he,omitempty"`
}

// ExportSample is one depth sample. Pressure carries the latest tank reading
// forward; temperature is left out when the sensor reports zero or below.
type ExportSample struct {
	TimeS       int      `json:"time_s"`
	DepthM      float64  `json:"depth_m"`
	TempC       *float64 `json:"temp_c,omitempty"`
	PressureBar *float64 `json:"pressure_bar,omitempty"`
}

// Flatten converts a dive record to its export form.
func Flatten(rec *dive.DiveRecord) ExportDive {
	d := ExportDive{
		Number:   rec.Identity.Number,
		DateTime: rec.Identity.Time.String(),
		Partial:  rec.Partial,
		Samples:  []ExportSample{},
	}
	if h := rec.Header; h != nil {
		d.DurationSeconds = h.DurationSeconds()
		d.MaxDepthM = h.MaxDepthMeters()
		d.DiveMode = h.Mode
		for _, g := range h.GasMixes {
			if g.Used() && g.O2 > 0 && g.O2 <= 100 {
				d.GasMixes = append(d.GasMixes, ExportGas{O2: g.O2, He: g.He})
			}
		}
	}
	if len(d.GasMixes) == 0 {
		d.GasMixes = []ExportGas{{O2: 21}}
	}

	var pressure *float64
	for _, p := range rec.Points {
		if p.Air != nil {
			if p.Air.Pressure > 0 {
				bar := p.Air.PressureBar()
				pressure = &bar
			}
			continue
		}
		if p.Sample == nil {
			continue
		}
		s := ExportSample{
			TimeS:       p.Seconds,
			DepthM:      p.Sample.DepthMeters(),
			PressureBar: pressure,
		}
		if p.Sample.Temperature > 0 {
			t := p.Sample.TemperatureCelsius()
			s.TempC = &t
		}
		d.Samples = append(d.Samples, s)
	}
	return d
}

// WriteJSON writes all dives as one document, ordered by dive number.
func WriteJSON(w io.Writer, recs []*dive.DiveRecord) error {
	data := ExportData{Dives: make([]ExportDive, 0, len(recs))}
	for _, rec := range recs {
		data.Dives = append(data.Dives, Flatten(rec))
	}
	sort.SliceStable(data.Dives, func(i, j int) bool {
		return data.Dives[i].Number < data.Dives[j].Number
	})

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

var csvHeader = []string{"time_s", "depth_m", "temp_c", "pressure_bar"}

// WriteCSV writes the samples of one dive.
func WriteCSV(w io.Writer, rec *dive.DiveRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range Flatten(rec).Samples {
		row := []string{
			strconv.Itoa(s.TimeS),
			formatFloat(&s.DepthM),
			formatFloat(s.TempC),
			formatFloat(s.PressureBar),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}

// ExportFile writes recs to path. JSON goes to path itself; CSV writes one
// file per dive next to it, named <stem>_<number>.csv. It returns the files
// written.
func ExportFile(path, format string, recs []*dive.DiveRecord) ([]string, error) {
	switch format {
	case FormatJSON:
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		if err := WriteJSON(f, recs); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		return []string{path}, nil

	case FormatCSV:
		dir := filepath.Dir(path)
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		var written []string
		for _, rec := range recs {
			name := filepath.Join(dir, fmt.Sprintf("%s_%03d.csv", stem, rec.Identity.Number))
			f, err := os.Create(name)
			if err != nil {
				return written, fmt.Errorf("failed to create %s: %w", name, err)
			}
			if err := WriteCSV(f, rec); err != nil {
				f.Close()
				return written, fmt.Errorf("failed to write %s: %w", name, err)
			}
			if err := f.Close(); err != nil {
				return written, err
			}
			written = append(written, name)
		}
		return written, nil

	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}
