package history

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"eexcot/internal/infrastructure"
	"eexcot/pkg/contracts/domain"
)

// MemoryStore is an in-memory implementation of Store
type MemoryStore struct {
	mu        sync.RWMutex
	series    map[string]domain.Series
	revisions map[string][]Revision

	locks  *instrumentLocks
	logger *slog.Logger
	now    func() time.Time
}

// NewMemoryStore creates a new in-memory history store
func NewMemoryStore(logger *slog.Logger) *MemoryStore {
	return &MemoryStore{
		series:    make(map[string]domain.Series),
		revisions: make(map[string][]Revision),
		locks:     newInstrumentLocks(),
		logger:    infrastructure.WithComponent(logger, "history_memory"),
		now:       time.Now,
	}
}

// Load returns a copy of the instrument's series
func (s *MemoryStore) Load(ctx context.Context, instrument string) (domain.Series, error) {
	if err := checkInstrument(instrument); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(domain.Series, len(s.series[instrument]))
	copy(out, s.series[instrument])
	return out, nil
}

// Merge upserts the snapshot's records
func (s *MemoryStore) Merge(ctx context.Context, snap *domain.Snapshot) (MergeResult, error) {
	if err := validateSnapshot(snap); err != nil {
		return MergeResult{Instrument: instrumentOf(snap)}, err
	}

	release, err := s.locks.acquire(ctx, snap.Instrument)
	if err != nil {
		return MergeResult{Instrument: snap.Instrument}, err
	}
	defer release()

	s.mu.RLock()
	existing := s.series[snap.Instrument]
	s.mu.RUnlock()

	merged, result := mergeRecords(existing, snap.Records, s.now().UTC(), infrastructure.GetTraceID(ctx))
	result.Instrument = snap.Instrument
	if !result.Changed() {
		return result, nil
	}

	s.mu.Lock()
	s.series[snap.Instrument] = merged
	s.revisions[snap.Instrument] = append(s.revisions[snap.Instrument], result.Revisions...)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Snapshot merged",
		slog.String("instrument", snap.Instrument),
		slog.Int("inserted", result.Inserted),
		slog.Int("revised", result.Revised),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("removed", result.Removed))
	return result, nil
}

// Instruments lists instruments with a non-empty series
func (s *MemoryStore) Instruments(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.series))
	for code, series := range s.series {
		if len(series) > 0 {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Reset drops the instrument's series and revision log
func (s *MemoryStore) Reset(ctx context.Context, instrument string) error {
	if err := checkInstrument(instrument); err != nil {
		return err
	}
	release, err := s.locks.acquire(ctx, instrument)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	delete(s.series, instrument)
	delete(s.revisions, instrument)
	s.mu.Unlock()
	return nil
}

// Revisions returns a copy of the instrument's revision log
func (s *MemoryStore) Revisions(ctx context.Context, instrument string) ([]Revision, error) {
	if err := checkInstrument(instrument); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Revision, len(s.revisions[instrument]))
	copy(out, s.revisions[instrument])
	return out, nil
}

func instrumentOf(snap *domain.Snapshot) string {
	if snap == nil {
		return ""
	}
	return snap.Instrument
}
