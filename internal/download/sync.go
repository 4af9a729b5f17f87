// Package download fetches new dives from a device, skipping the ones that
// are already stored.
package download

import (
	"context"
	"fmt"
	"iter"

	"go.uber.org/zap"

	"github.com/vitaminmoo/geniusdl/internal/api"
	"github.com/vitaminmoo/geniusdl/internal/dive"
	"github.com/vitaminmoo/geniusdl/internal/logging"
	"github.com/vitaminmoo/geniusdl/internal/protocol"
)

// Progress stages reported to a ProgressFunc.
const (
	StageCount   = "count"
	StageHeader  = "header"
	StageProfile = "profile"
	StageDone    = "done"
)

// DefaultRetries is the number of extra attempts for a failed object read.
const DefaultRetries = 2

// ProgressFunc is called before each step. done is the number of dives
// finished so far, total is zero until the dive count is known.
type ProgressFunc func(done, total int, stage string)

// IdentitySet holds the identities of dives that are already downloaded.
type IdentitySet map[dive.Identity]struct{}

// NewIdentitySet returns a set holding ids.
func NewIdentitySet(ids ...dive.Identity) IdentitySet {
	s := make(IdentitySet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s IdentitySet) Has(id dive.Identity) bool {
	_, ok := s[id]
	return ok
}

func (s IdentitySet) Add(id dive.Identity) {
	s[id] = struct{}{}
}

// Outcome is the result for one dive ordinal. Err is set when the dive could
// not be read or decoded; Record may still hold a partial dive in that case.
type Outcome struct {
	Index      int
	Identity   dive.Identity
	Header     *dive.Header
	Record     *dive.DiveRecord
	RawHeader  []byte
	RawProfile []byte
	Skipped    bool
	Err        error
}

// Syncer downloads dives over one client. It is not safe for concurrent use.
type Syncer struct {
	client   *api.Client
	retries  int
	progress ProgressFunc
	log      *zap.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithRetries sets how many times a failed object read is repeated.
func WithRetries(n int) Option {
	return func(s *Syncer) {
		if n >= 0 {
			s.retries = n
		}
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Syncer) { s.progress = fn }
}

// WithLogger replaces the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Syncer) { s.log = l }
}

// New creates a Syncer.
func New(client *api.Client, opts ...Option) *Syncer {
	s := &Syncer{
		client:  client,
		retries: DefaultRetries,
		log:     logging.Named("download"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync counts the dives on the device and yields one Outcome per ordinal.
//
// Dives whose identity is in known are skipped after the header read. Each
// downloaded identity is added to known. Per-dive failures are reported on
// the Outcome and the run goes on. A transport failure, a failed dive count
// or a cancelled ctx ends the run with a non-nil second value. Cancellation
// is only checked between dives.
func (s *Syncer) Sync(ctx context.Context, known IdentitySet) iter.Seq2[Outcome, error] {
	return func(yield func(Outcome, error) bool) {
		if known == nil {
			known = IdentitySet{}
		}
		if err := ctx.Err(); err != nil {
			yield(Outcome{Index: -1}, err)
			return
		}

		s.report(0, 0, StageCount)
		var total int
		err := s.retry("count dives", func() error {
			var err error
			total, err = s.client.CountDives()
			return err
		})
		if err != nil {
			yield(Outcome{Index: -1}, fmt.Errorf("failed to count dives: %w", err))
			return
		}
		s.log.Info("dives on device", zap.Int("count", total), zap.Int("known", len(known)))

		for i := range total {
			if err := ctx.Err(); err != nil {
				yield(Outcome{Index: i}, err)
				return
			}

			out := s.syncDive(i, total, known)
			if protocol.IsTransport(out.Err) {
				yield(out, out.Err)
				return
			}
			if !yield(out, nil) {
				return
			}
		}
		s.report(total, total, StageDone)
	}
}

func (s *Syncer) syncDive(i, total int, known IdentitySet) Outcome {
	out := Outcome{Index: i}

	s.report(i, total, StageHeader)
	err := s.retry(fmt.Sprintf("read header %d", i), func() error {
		var err error
		out.RawHeader, err = s.client.ReadDiveHeader(i)
		return err
	})
	if err != nil {
		out.Err = fmt.Errorf("failed to read header of dive %d: %w", i, err)
		return out
	}

	out.Header, err = dive.DecodeHeader(out.RawHeader)
	if err != nil {
		out.Err = fmt.Errorf("failed to decode header of dive %d: %w", i, err)
		return out
	}
	out.Identity = out.Header.Identity()

	if known.Has(out.Identity) {
		s.log.Debug("skipping known dive", zap.Int("index", i), zap.Stringer("identity", out.Identity))
		out.Skipped = true
		return out
	}

	s.report(i, total, StageProfile)
	err = s.retry(fmt.Sprintf("read profile %d", i), func() error {
		var err error
		out.RawProfile, err = s.client.ReadDiveProfile(i)
		return err
	})
	if err != nil {
		out.Err = fmt.Errorf("failed to read profile of dive %d: %w", i, err)
		return out
	}

	out.Record, err = dive.Assemble(out.Header, out.RawProfile)
	if err != nil {
		out.Err = fmt.Errorf("failed to decode profile of dive %d: %w", i, err)
		return out
	}
	if out.Record.Partial {
		s.log.Warn("dive decoded partially",
			zap.Stringer("identity", out.Identity),
			zap.Int("invalid_records", out.Record.InvalidRecords))
	}

	known.Add(out.Identity)
	return out
}

// retry runs fn until it succeeds, fails with a non-protocol error, or the
// retry budget is spent. Each attempt is a complete object read.
func (s *Syncer) retry(what string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		err = fn()
		if err == nil || !protocol.IsRetryable(err) || attempt == s.retries {
			return err
		}
		s.log.Warn("retrying after protocol error",
			zap.String("op", what),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return err
}

func (s *Syncer) report(done, total int, stage string) {
	if s.progress != nil {
		s.progress(done, total, stage)
	}
}
