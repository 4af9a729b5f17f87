package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vitaminmoo/geniusdl/internal/api"
	"github.com/vitaminmoo/geniusdl/internal/config"
	"github.com/vitaminmoo/geniusdl/internal/dive"
	"github.com/vitaminmoo/geniusdl/internal/download"
	"github.com/vitaminmoo/geniusdl/internal/logging"
	"github.com/vitaminmoo/geniusdl/internal/store"
	"github.com/vitaminmoo/geniusdl/internal/tui"
)

// DownloadOptions configures Download.
type DownloadOptions struct {
	// RawDir, when set, also receives dive_NNN_header.bin/profile.bin files.
	RawDir string
	NoTUI  bool
	// Export writes the dives downloaded in this run to a file.
	Export string
	Format string
}

// Download fetches the dives that are not in the store yet.
func Download(ctx context.Context, cfg *config.Config, opts DownloadOptions) error {
	st, err := OpenStore(cfg)
	if err != nil {
		return err
	}
	known, err := st.Known()
	if err != nil {
		return err
	}

	conn, client, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeConn(conn)

	src, err := deviceSource(client, conn)
	if err != nil {
		return err
	}
	if cfg.Download.SetClock {
		if err := client.SetClock(time.Now()); err != nil {
			return err
		}
		logging.Info("device clock set")
	}

	run := &downloadRun{
		client:  client,
		store:   st,
		source:  src,
		known:   known,
		retries: cfg.Protocol.Retries,
		saveRaw: cfg.Download.SaveRaw,
		rawDir:  opts.RawDir,
	}

	if opts.NoTUI {
		err = run.job(ctx, &plainReporter{})
		fmt.Println()
		fmt.Println(run.tally.String())
	} else {
		title := fmt.Sprintf("Downloading from %s", src.Model)
		_, err = tui.Run(ctx, title, run.job)
	}
	if errors.Is(err, context.Canceled) {
		fmt.Println(styles.Warning.Render("Download stopped."))
		err = nil
	}

	if opts.Export != "" && len(run.records) > 0 {
		files, xerr := store.ExportFile(opts.Export, opts.Format, run.records)
		if xerr != nil {
			return errors.Join(err, xerr)
		}
		for _, f := range files {
			fmt.Println("Exported " + f)
		}
	}
	return err
}

// downloadRun holds the state of one download and stores each dive as it
// arrives.
type downloadRun struct {
	client  *api.Client
	store   *store.Store
	source  store.Source
	known   download.IdentitySet
	retries int
	saveRaw bool
	rawDir  string

	records []*dive.DiveRecord
	tally   tui.Tally
}

func (d *downloadRun) job(ctx context.Context, r tui.Reporter) error {
	syncer := download.New(d.client,
		download.WithRetries(d.retries),
		download.WithProgress(r.Progress),
	)
	for out, err := range syncer.Sync(ctx, d.known) {
		// Outcomes without a per-dive error only carry the run error.
		if err == nil || out.Err != nil {
			r.Dive(d.handle(out))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *downloadRun) handle(out download.Outcome) tui.Result {
	res := tui.Result{Index: out.Index, Label: fmt.Sprintf("dive %d", out.Index+1)}
	if out.Header != nil {
		res.Label = out.Identity.String()
	}

	switch {
	case out.Skipped:
		res.Status = tui.StatusSkipped
	case out.Record == nil:
		res.Status = tui.StatusFailed
		res.Detail = out.Err.Error()
	default:
		res.Status, res.Detail = d.save(out)
	}
	d.tally.Add(res.Status)
	return res
}

func (d *downloadRun) save(out download.Outcome) (tui.Status, string) {
	raw := store.Raw{Header: out.RawHeader, Profile: out.RawProfile}
	if d.rawDir != "" {
		if err := store.WriteRawDive(d.rawDir, out.Index, raw); err != nil {
			return tui.StatusFailed, err.Error()
		}
	}

	src := d.source
	src.Index = out.Index
	src.Timestamp = time.Now()
	if !d.saveRaw {
		raw = store.Raw{}
	}
	key, isNew, err := d.store.Import(out.Record, raw, src)
	if err != nil {
		logging.Error("import failed", zap.Stringer("identity", out.Identity), zap.Error(err))
		return tui.StatusFailed, err.Error()
	}
	logging.Debug("dive stored", zap.String("key", key), zap.Bool("new", isNew))
	d.records = append(d.records, out.Record)

	rec := out.Record
	switch {
	case out.Err != nil:
		return tui.StatusPartial, out.Err.Error()
	case rec.Partial:
		return tui.StatusPartial, fmt.Sprintf("%d invalid records", rec.InvalidRecords)
	case !isNew:
		return tui.StatusSkipped, "already stored"
	}
	return tui.StatusNew, fmt.Sprintf("%d samples, %.1f m", len(rec.Samples()), rec.Header.MaxDepthMeters())
}

// plainReporter prints results line by line when the TUI is off.
type plainReporter struct {
	total int
}

func (p *plainReporter) Progress(done, total int, stage string) {
	switch {
	case stage == download.StageCount:
		fmt.Println("Counting dives...")
	case total != p.total:
		p.total = total
		fmt.Printf("%d dives on device\n", total)
	}
}

func (p *plainReporter) Dive(r tui.Result) {
	line := fmt.Sprintf("  [%d/%d] %-8s %s", r.Index+1, p.total, r.Status, r.Label)
	if r.Detail != "" {
		line += "  " + styles.Muted.Render(r.Detail)
	}
	fmt.Println(line)
}
