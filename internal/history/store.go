package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"eexcot/internal/validation"
	"eexcot/pkg/contracts/domain"
)

// ErrInvalidSnapshot is returned by Merge for a snapshot that breaks the
// record contract. Parse and normalize failures never get this far.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// ErrInvalidInstrument rejects codes that cannot name a history file
var ErrInvalidInstrument = errors.New("invalid instrument code")

// Store persists one canonical series per instrument.
//
// Merge upserts by (instrument, report date, category, position type): an
// absent key is inserted, a key with different long/short is overwritten and
// logged as a revision, an identical key is left alone. A category block is
// replaced as a unit, so stored position types missing from the incoming
// block of the same date are removed and logged. Merging the same
// snapshot twice is a no-op. Merges for one instrument are serialized; merges
// for different instruments run in parallel.
type Store interface {
	// Load returns the instrument's series in canonical order. An unknown
	// instrument yields an empty series.
	Load(ctx context.Context, instrument string) (domain.Series, error)

	Merge(ctx context.Context, snap *domain.Snapshot) (MergeResult, error)

	// Instruments lists the instruments with stored history, sorted
	Instruments(ctx context.Context) ([]string, error)

	// Reset drops the instrument's series and revision log
	Reset(ctx context.Context, instrument string) error

	// Revisions returns the instrument's revision log, oldest first
	Revisions(ctx context.Context, instrument string) ([]Revision, error)
}

// Revision records one overwritten or removed value. A removed record keeps
// its old values and carries zero new values.
type Revision struct {
	Instrument   string              `json:"instrument"`
	RevisedAt    time.Time           `json:"revised_at"`
	RunID        string              `json:"run_id,omitempty"`
	ReportDate   time.Time           `json:"report_date"`
	Category     domain.Category     `json:"category"`
	PositionType domain.PositionType `json:"position_type"`
	OldLong      decimal.Decimal     `json:"old_long"`
	OldShort     decimal.Decimal     `json:"old_short"`
	NewLong      decimal.Decimal     `json:"new_long"`
	NewShort     decimal.Decimal     `json:"new_short"`
	Removed      bool                `json:"removed,omitempty"`
}

// Key returns the revised record's key
func (r Revision) Key() domain.RecordKey {
	return domain.RecordKey{ReportDate: r.ReportDate, Category: r.Category, PositionType: r.PositionType}
}

// MergeResult summarizes one Merge call
type MergeResult struct {
	Instrument string      `json:"instrument"`
	Inserted   int         `json:"inserted"`
	Revised    int         `json:"revised"`
	Unchanged  int         `json:"unchanged"`
	Removed    int         `json:"removed"`
	NewDates   []time.Time `json:"new_dates,omitempty"`
	Revisions  []Revision  `json:"revisions,omitempty"`
}

// Changed reports whether the merge wrote anything
func (r MergeResult) Changed() bool {
	return r.Inserted > 0 || r.Revised > 0 || r.Removed > 0
}

// instrumentLocks serializes work per instrument. Waiting respects ctx.
type instrumentLocks struct {
	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

func newInstrumentLocks() *instrumentLocks {
	return &instrumentLocks{locks: make(map[string]*semaphore.Weighted)}
}

func (l *instrumentLocks) acquire(ctx context.Context, instrument string) (func(), error) {
	l.mu.Lock()
	sem, ok := l.locks[instrument]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.locks[instrument] = sem
	}
	l.mu.Unlock()

	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for %s history lock: %w", instrument, err)
	}
	return func() { sem.Release(1) }, nil
}

func checkInstrument(instrument string) error {
	if !validation.ValidInstrument(instrument) {
		return fmt.Errorf("%w: %q", ErrInvalidInstrument, instrument)
	}
	return nil
}

// validateSnapshot checks the record contract the normalizer guarantees
func validateSnapshot(snap *domain.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	if err := checkInstrument(snap.Instrument); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if len(snap.Records) == 0 {
		return fmt.Errorf("%w: %s snapshot has no records", ErrInvalidSnapshot, snap.Instrument)
	}

	seen := make(map[domain.RecordKey]bool, len(snap.Records))
	for i, r := range snap.Records {
		if err := validation.Struct(r); err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrInvalidSnapshot, i, err)
		}
		switch {
		case r.Instrument != snap.Instrument:
			return fmt.Errorf("%w: record %d belongs to %s, not %s", ErrInvalidSnapshot, i, r.Instrument, snap.Instrument)
		case r.ReportDate.IsZero():
			return fmt.Errorf("%w: record %d has no report date", ErrInvalidSnapshot, i)
		case !r.Category.Valid():
			return fmt.Errorf("%w: record %d has unknown category %q", ErrInvalidSnapshot, i, r.Category)
		case !r.PositionType.Valid():
			return fmt.Errorf("%w: record %d has unknown position type %q", ErrInvalidSnapshot, i, r.PositionType)
		case r.Long.IsNegative() || r.Short.IsNegative():
			return fmt.Errorf("%w: record %d (%s) is negative", ErrInvalidSnapshot, i, r.Key())
		}

		key := canonicalKey(r)
		if seen[key] {
			return fmt.Errorf("%w: duplicate record %s", ErrInvalidSnapshot, key)
		}
		seen[key] = true
	}
	return nil
}
