package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/vitaminmoo/geniusdl/internal/config"
	"github.com/vitaminmoo/geniusdl/internal/dive"
	"github.com/vitaminmoo/geniusdl/internal/store"
	"github.com/vitaminmoo/geniusdl/internal/tui"
)

// ParseOptions configures Parse.
type ParseOptions struct {
	// Import adds the decoded dives to the store.
	Import bool
	Export string
	Format string
}

// DecodeRaw decodes one raw dive. A dive whose profile stops early is
// returned together with the error.
func DecodeRaw(raw store.Raw) (*dive.DiveRecord, error) {
	h, err := dive.DecodeHeader(raw.Header)
	if err != nil {
		return nil, fmt.Errorf("failed to decode header: %w", err)
	}
	rec, err := dive.Assemble(h, raw.Profile)
	if err != nil {
		return rec, fmt.Errorf("failed to decode profile: %w", err)
	}
	return rec, nil
}

// Parse decodes a directory written by download --save-raw.
func Parse(cfg *config.Config, dir string, opts ParseOptions) error {
	dives, err := store.ReadRawDir(dir)
	if err != nil {
		return err
	}

	var st *store.Store
	if opts.Import {
		if st, err = OpenStore(cfg); err != nil {
			return err
		}
	}

	var (
		recs  []*dive.DiveRecord
		tally tui.Tally
	)
	for _, rd := range dives {
		status, label, detail := parseOne(st, dir, rd, &recs)
		tally.Add(status)

		line := fmt.Sprintf("  %03d %-8s %s", rd.Index, status, label)
		if detail != "" {
			line += "  " + styles.Muted.Render(detail)
		}
		fmt.Println(line)
	}
	fmt.Println()
	if st != nil {
		fmt.Println(tally.String())
	} else {
		fmt.Printf("Decoded %d of %d dives\n", len(recs), len(dives))
	}

	if opts.Export != "" && len(recs) > 0 {
		files, err := store.ExportFile(opts.Export, opts.Format, recs)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println("Exported " + f)
		}
	}
	return nil
}

func parseOne(st *store.Store, dir string, rd store.RawDive, recs *[]*dive.DiveRecord) (tui.Status, string, string) {
	label := fmt.Sprintf("dive %d", rd.Index+1)
	rec, err := DecodeRaw(rd.Raw)
	if rec == nil {
		return tui.StatusFailed, label, err.Error()
	}
	label = rec.Identity.String()
	*recs = append(*recs, rec)

	status := tui.StatusNew
	detail := fmt.Sprintf("%s, %.1f m, %d samples",
		time.Duration(rec.Header.DurationSeconds())*time.Second,
		rec.Header.MaxDepthMeters(), len(rec.Samples()))
	switch {
	case err != nil:
		status, detail = tui.StatusPartial, err.Error()
	case rec.Partial:
		status, detail = tui.StatusPartial, fmt.Sprintf("%d invalid records", rec.InvalidRecords)
	}

	if st == nil {
		return status, label, detail
	}
	header, _ := store.RawFileNames(rd.Index)
	_, isNew, ierr := st.Import(rec, rd.Raw, store.Source{
		Index:     rd.Index,
		Timestamp: time.Now(),
		Method:    "parse",
		Filename:  filepath.Join(dir, header),
	})
	if ierr != nil {
		return tui.StatusFailed, label, ierr.Error()
	}
	if !isNew && status == tui.StatusNew {
		status, detail = tui.StatusSkipped, "already stored"
	}
	return status, label, detail
}
