package commands

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/vitaminmoo/geniusdl/internal/api"
	"github.com/vitaminmoo/geniusdl/internal/dive/divetest"
	"github.com/vitaminmoo/geniusdl/internal/protocol"
	"github.com/vitaminmoo/geniusdl/internal/protocol/ecoptest"
	"github.com/vitaminmoo/geniusdl/internal/store"
	"github.com/vitaminmoo/geniusdl/internal/tui"
)

type recorder struct {
	results []tui.Result
}

func (r *recorder) Progress(done, total int, stage string) {}

func (r *recorder) Dive(res tui.Result) {
	r.results = append(r.results, res)
}

func newDevice(n int) *ecoptest.Device {
	dev := ecoptest.NewDevice()
	for i := range n {
		dev.AddDive(i,
			divetest.Header(divetest.HeaderSpec{Number: uint32(i + 1), Samples: 12}),
			divetest.SimpleProfile(12))
	}
	return dev
}

func newRun(t *testing.T, dev *ecoptest.Device, st *store.Store) *downloadRun {
	t.Helper()
	known, err := st.Known()
	if err != nil {
		t.Fatalf("Known() error: %v", err)
	}
	return &downloadRun{
		client:  api.New(dev),
		store:   st,
		source:  store.Source{Model: "Sirius", PCBNumber: "A1B2", Method: "download"},
		known:   known,
		retries: 1,
		saveRaw: true,
	}
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	return st
}

func statuses(results []tui.Result) []tui.Status {
	out := make([]tui.Status, len(results))
	for i, r := range results {
		out[i] = r.Status
	}
	return out
}

func TestDownloadStoresThenSkips(t *testing.T) {
	dev := newDevice(3)
	st := openTestStore(t)

	first := &recorder{}
	run := newRun(t, dev, st)
	if err := run.job(context.Background(), first); err != nil {
		t.Fatalf("job() error: %v", err)
	}
	for i, s := range statuses(first.results) {
		if s != tui.StatusNew {
			t.Errorf("first run dive %d: status %v, want new", i, s)
		}
	}
	if n, _ := st.Count(); n != 3 {
		t.Errorf("store has %d dives, want 3", n)
	}
	if len(run.records) != 3 {
		t.Errorf("run kept %d records, want 3", len(run.records))
	}

	second := &recorder{}
	if err := newRun(t, dev, st).job(context.Background(), second); err != nil {
		t.Fatalf("second job() error: %v", err)
	}
	for i, s := range statuses(second.results) {
		if s != tui.StatusSkipped {
			t.Errorf("second run dive %d: status %v, want stored", i, s)
		}
	}
	if got := dev.Reads[protocol.DiveProfileAddress(0)]; got != 1 {
		t.Errorf("profile of dive 0 read %d times, want 1", got)
	}
	if got := run.tally.String(); got != "3 new, 0 already stored" {
		t.Errorf("tally = %q", got)
	}
}

func TestDownloadWritesRawDir(t *testing.T) {
	dev := newDevice(2)
	run := newRun(t, dev, openTestStore(t))
	run.rawDir = t.TempDir()

	if err := run.job(context.Background(), &recorder{}); err != nil {
		t.Fatalf("job() error: %v", err)
	}

	dives, err := store.ReadRawDir(run.rawDir)
	if err != nil {
		t.Fatalf("ReadRawDir() error: %v", err)
	}
	if len(dives) != 2 {
		t.Fatalf("got %d raw dives, want 2", len(dives))
	}
	want := dev.Objects[protocol.DiveProfileAddress(1)]
	if !bytes.Equal(dives[1].Profile, want) {
		t.Error("raw profile differs from device object")
	}
}

func TestDownloadPartialAndFailedDives(t *testing.T) {
	dev := newDevice(3)
	dev.AddDive(1, divetest.Header(divetest.HeaderSpec{Number: 2, Samples: 2}),
		divetest.Profile(divetest.SampleRecord(10, 200, 0), []byte("ZZZZ")))
	dev.AddDive(2, divetest.Header(divetest.HeaderSpec{Type: 9, Number: 3}), divetest.SimpleProfile(1))
	st := openTestStore(t)

	rec := &recorder{}
	run := newRun(t, dev, st)
	if err := run.job(context.Background(), rec); err != nil {
		t.Fatalf("job() error: %v", err)
	}

	want := []tui.Status{tui.StatusNew, tui.StatusPartial, tui.StatusFailed}
	got := statuses(rec.results)
	if len(got) != len(want) {
		t.Fatalf("statuses = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("dive %d: status %v, want %v", i, got[i], want[i])
		}
	}
	if n, _ := st.Count(); n != 2 {
		t.Errorf("store has %d dives, want the complete and the partial one", n)
	}
	if got := run.tally.String(); got != "2 new, 0 already stored, 1 partial, 1 failed" {
		t.Errorf("tally = %q", got)
	}
}

func TestDownloadTransportErrorReported(t *testing.T) {
	dev := newDevice(3)
	rec := &recorder{}
	run := newRun(t, dev, openTestStore(t))

	r := &disconnectAfter{recorder: rec, dev: dev, dives: 1}
	err := run.job(context.Background(), r)
	if !errors.Is(err, ecoptest.ErrLinkDown) {
		t.Fatalf("job() error = %v, want link down", err)
	}
	got := statuses(rec.results)
	if len(got) != 2 || got[0] != tui.StatusNew || got[1] != tui.StatusFailed {
		t.Errorf("statuses = %v, want [new failed]", got)
	}
}

// disconnectAfter drops the link once the given number of dives completed.
type disconnectAfter struct {
	*recorder
	dev   *ecoptest.Device
	dives int
}

func (d *disconnectAfter) Progress(done, total int, stage string) {
	if done == d.dives {
		d.dev.Disconnect()
	}
}
