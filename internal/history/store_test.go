package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"eexcot/internal/dataprocessing"
	"eexcot/internal/infrastructure"
	"eexcot/pkg/contracts/domain"
)

// StoreTestSuite runs the same contract against every Store implementation
type StoreTestSuite struct {
	suite.Suite
	newStore func(t *testing.T) Store
	store    Store
	ctx      context.Context
}

func (s *StoreTestSuite) SetupTest() {
	s.store = s.newStore(s.T())
	s.ctx = context.Background()
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreTestSuite{newStore: func(t *testing.T) Store {
		return NewMemoryStore(quietLogger())
	}})
}

func TestCSVStore(t *testing.T) {
	suite.Run(t, &StoreTestSuite{newStore: func(t *testing.T) Store {
		store, err := NewCSVStore(t.TempDir(), quietLogger())
		require.NoError(t, err)
		return store
	}})
}

// seriesText renders a series for comparisons that ignore decimal representation
func seriesText(series domain.Series) []string {
	out := make([]string, len(series))
	for i, r := range series {
		out[i] = fmt.Sprintf("%s %s %s/%s %s %s", r.Instrument, r.ReportDate.Format(domain.DateFormat),
			r.Category, r.PositionType, r.Long.String(), r.Short.String())
	}
	return out
}

func (s *StoreTestSuite) mustMerge(snap *domain.Snapshot) MergeResult {
	result, err := s.store.Merge(s.ctx, snap)
	s.Require().NoError(err)
	return result
}

func (s *StoreTestSuite) mustLoad(instrument string) domain.Series {
	series, err := s.store.Load(s.ctx, instrument)
	s.Require().NoError(err)
	return series
}

func (s *StoreTestSuite) TestLoadUnknownInstrument() {
	series := s.mustLoad("DEBM")
	s.Empty(series)

	_, err := s.store.Load(s.ctx, "../etc")
	s.ErrorIs(err, ErrInvalidInstrument)
}

func (s *StoreTestSuite) TestMergeIsIdempotent() {
	snap := weeklySnapshot("DEBM", weeklyDates(day(s.T(), "2026-01-02"), 4), 1000000)

	first := s.mustMerge(snap)
	s.Equal(len(snap.Records), first.Inserted)
	s.Len(first.NewDates, 4)
	after := seriesText(s.mustLoad("DEBM"))

	second := s.mustMerge(snap)
	s.False(second.Changed())
	s.Equal(len(snap.Records), second.Unchanged)
	s.Empty(second.NewDates)
	s.Equal(after, seriesText(s.mustLoad("DEBM")))

	revisions, err := s.store.Revisions(s.ctx, "DEBM")
	s.Require().NoError(err)
	s.Empty(revisions)
}

func (s *StoreTestSuite) TestMergeOrderDoesNotMatterWhenOverlapAgrees() {
	dates := weeklyDates(day(s.T(), "2026-01-02"), 6)
	full := weeklySnapshot("DEPM", dates, 2000000)

	// Two overlapping windows cut from the same publication history
	a := snapshot("DEPM", recordsOn(full.Records, dates[:4])...)
	b := snapshot("DEPM", recordsOn(full.Records, dates[2:])...)

	s.mustMerge(a)
	s.mustMerge(b)
	ab := seriesText(s.mustLoad("DEPM"))

	other := s.newStore(s.T())
	_, err := other.Merge(s.ctx, b)
	s.Require().NoError(err)
	_, err = other.Merge(s.ctx, a)
	s.Require().NoError(err)
	ba, err := other.Load(s.ctx, "DEPM")
	s.Require().NoError(err)

	s.Equal(ab, seriesText(ba))
	s.Len(ab, len(full.Records))
}

func recordsOn(records []domain.PositionRecord, dates []time.Time) []domain.PositionRecord {
	keep := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		keep[d] = true
	}
	var out []domain.PositionRecord
	for _, r := range records {
		if keep[r.ReportDate] {
			out = append(out, r)
		}
	}
	return out
}

func (s *StoreTestSuite) TestLastMergedWins() {
	d := day(s.T(), "2026-01-23")
	older := snapshot("DEBM", triplet("DEBM", d, domain.CategoryCommercial, 100, 90, 50, 40)...)
	newer := snapshot("DEBM", triplet("DEBM", d, domain.CategoryCommercial, 100, 90, 60, 40)...)

	s.mustMerge(older)
	result := s.mustMerge(newer)
	s.Equal(2, result.Revised)
	s.Equal(1, result.Unchanged)
	s.Empty(result.NewDates)

	series := s.mustLoad("DEBM")
	s.Len(series, 3)
	total := findRecord(s.T(), series, d, domain.CategoryCommercial, domain.PositionTotal)
	s.True(total.Long.Equal(decimal.NewFromInt(160)))

	// Merging the older snapshot again restores its values
	s.mustMerge(older)
	total = findRecord(s.T(), s.mustLoad("DEBM"), d, domain.CategoryCommercial, domain.PositionTotal)
	s.True(total.Long.Equal(decimal.NewFromInt(150)))
}

func (s *StoreTestSuite) TestTotalOnlyBlockReplacesSplit() {
	d := day(s.T(), "2026-01-09")
	split := snapshot("DEBM", triplet("DEBM", d, domain.CategoryCommercial, 300, 200, 40, 30)...)
	totalOnly := snapshot("DEBM", record("DEBM", d, domain.CategoryCommercial, domain.PositionTotal, 999, 999))

	s.mustMerge(split)
	result := s.mustMerge(totalOnly)
	s.True(result.Changed())
	s.Equal(1, result.Revised)
	s.Equal(2, result.Removed)

	series := s.mustLoad("DEBM")
	s.Equal([]string{"DEBM 2026-01-09 commercial/total 999 999"}, seriesText(series))
	s.NoError(dataprocessing.CheckTotals(series, decimal.NewFromFloat(0.5)))

	revisions, err := s.store.Revisions(s.ctx, "DEBM")
	s.Require().NoError(err)
	s.Require().Len(revisions, 3)
	s.True(revisions[0].Removed)
	s.Equal(domain.PositionRiskReducing, revisions[0].PositionType)
	s.True(revisions[0].OldLong.Equal(decimal.NewFromInt(300)))
	s.True(revisions[0].NewLong.IsZero())
	s.True(revisions[1].Removed)
	s.Equal(domain.PositionOther, revisions[1].PositionType)
	s.False(revisions[2].Removed)
	s.Equal(domain.PositionTotal, revisions[2].PositionType)

	// The same total-only report again is a no-op
	s.False(s.mustMerge(totalOnly).Changed())
}

func (s *StoreTestSuite) TestSplitBlockReplacesTotalOnly() {
	d := day(s.T(), "2026-01-09")
	s.mustMerge(snapshot("DEBM", record("DEBM", d, domain.CategoryCommercial, domain.PositionTotal, 999, 999)))
	result := s.mustMerge(snapshot("DEBM", triplet("DEBM", d, domain.CategoryCommercial, 300, 200, 40, 30)...))
	s.Equal(2, result.Inserted)
	s.Equal(1, result.Revised)
	s.Zero(result.Removed)

	series := s.mustLoad("DEBM")
	s.Len(series, 3)
	s.NoError(dataprocessing.CheckTotals(series, decimal.NewFromFloat(0.5)))
}

func (s *StoreTestSuite) TestBlockReplacementLeavesOtherBlocksAlone() {
	d1 := day(s.T(), "2026-01-02")
	d2 := day(s.T(), "2026-01-09")
	var records []domain.PositionRecord
	records = append(records, triplet("DEBM", d1, domain.CategoryCommercial, 10, 10, 5, 5)...)
	records = append(records, triplet("DEBM", d2, domain.CategoryCommercial, 10, 10, 5, 5)...)
	records = append(records, triplet("DEBM", d2, domain.CategoryInvestmentFunds, 3, 1, 2, 1)...)
	s.mustMerge(snapshot("DEBM", records...))

	result := s.mustMerge(snapshot("DEBM", record("DEBM", d2, domain.CategoryCommercial, domain.PositionTotal, 15, 15)))
	s.Equal(2, result.Removed)
	s.Equal(1, result.Unchanged)

	series := s.mustLoad("DEBM")
	s.Len(series, 7)
	findRecord(s.T(), series, d1, domain.CategoryCommercial, domain.PositionRiskReducing)
	findRecord(s.T(), series, d2, domain.CategoryInvestmentFunds, domain.PositionOther)
	s.NoError(dataprocessing.CheckTotals(series, decimal.NewFromFloat(0.5)))
}

func (s *StoreTestSuite) TestSeriesStaysCanonical() {
	start := day(s.T(), "2026-01-02")
	s.mustMerge(weeklySnapshot("DEBM", weeklyDates(start.AddDate(0, 0, 28), 3), 500000))
	s.mustMerge(weeklySnapshot("DEBM", weeklyDates(start, 5), 500000))
	s.mustMerge(weeklySnapshot("DEBM", weeklyDates(start.AddDate(0, 0, 14), 2), 700000))

	series := s.mustLoad("DEBM")
	dates := series.Dates()
	s.Len(dates, 7)
	for i := 1; i < len(dates); i++ {
		s.True(dates[i].After(dates[i-1]), "dates must be strictly increasing")
	}

	seen := make(map[domain.RecordKey]bool)
	for i, r := range series {
		s.False(seen[r.Key()], "duplicate key %s", r.Key())
		seen[r.Key()] = true
		if i > 0 {
			s.False(r.Less(series[i-1]), "series out of order at %d", i)
		}
	}

	s.NoError(dataprocessing.CheckTotals(series, decimal.NewFromFloat(0.5)))
}

func (s *StoreTestSuite) TestInstrumentsAndReset() {
	d := weeklyDates(day(s.T(), "2026-01-02"), 2)
	s.mustMerge(weeklySnapshot("DEPM", d, 10))
	s.mustMerge(weeklySnapshot("DEBM", d, 10))

	instruments, err := s.store.Instruments(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"DEBM", "DEPM"}, instruments)

	s.Require().NoError(s.store.Reset(s.ctx, "DEBM"))
	s.Empty(s.mustLoad("DEBM"))
	s.NotEmpty(s.mustLoad("DEPM"))

	instruments, err = s.store.Instruments(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"DEPM"}, instruments)

	// Resetting an unknown instrument is not an error
	s.NoError(s.store.Reset(s.ctx, "F7BM"))
	s.ErrorIs(s.store.Reset(s.ctx, "bad code"), ErrInvalidInstrument)
}

func (s *StoreTestSuite) TestRevisionsCarryRunID() {
	d := day(s.T(), "2026-01-09")
	s.mustMerge(snapshot("DEBM", record("DEBM", d, domain.CategoryTotal, domain.PositionTotal, 10, 10)))

	ctx := infrastructure.WithTraceID(s.ctx, "run-7")
	_, err := s.store.Merge(ctx, snapshot("DEBM", record("DEBM", d, domain.CategoryTotal, domain.PositionTotal, 12, 10)))
	s.Require().NoError(err)

	revisions, err := s.store.Revisions(s.ctx, "DEBM")
	s.Require().NoError(err)
	s.Require().Len(revisions, 1)
	rev := revisions[0]
	s.Equal("DEBM", rev.Instrument)
	s.Equal("run-7", rev.RunID)
	s.True(rev.ReportDate.Equal(d))
	s.True(rev.OldLong.Equal(decimal.NewFromInt(10)))
	s.True(rev.NewLong.Equal(decimal.NewFromInt(12)))
	s.False(rev.RevisedAt.IsZero())

	s.Require().NoError(s.store.Reset(s.ctx, "DEBM"))
	revisions, err = s.store.Revisions(s.ctx, "DEBM")
	s.Require().NoError(err)
	s.Empty(revisions)
}

func (s *StoreTestSuite) TestRejectsInvalidSnapshot() {
	d := day(s.T(), "2026-01-02")
	good := record("DEBM", d, domain.CategoryTotal, domain.PositionTotal, 10, 10)
	s.mustMerge(snapshot("DEBM", good))
	before := seriesText(s.mustLoad("DEBM"))

	negative := good
	negative.Short = decimal.NewFromInt(-1)
	foreign := good
	foreign.Instrument = "DEPM"
	unknown := good
	unknown.Category = "speculators"
	undated := good
	undated.ReportDate = time.Time{}

	tests := []struct {
		name string
		snap *domain.Snapshot
	}{
		{"nil snapshot", nil},
		{"bad instrument", snapshot("de bm", good)},
		{"no records", snapshot("DEBM")},
		{"negative value", snapshot("DEBM", negative)},
		{"record for another instrument", snapshot("DEBM", foreign)},
		{"unknown category", snapshot("DEBM", unknown)},
		{"missing date", snapshot("DEBM", undated)},
		{"duplicate key", snapshot("DEBM", good, good)},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := s.store.Merge(s.ctx, tt.snap)
			s.ErrorIs(err, ErrInvalidSnapshot)
			s.Equal(before, seriesText(s.mustLoad("DEBM")))
		})
	}
}

func (s *StoreTestSuite) TestConcurrentMerges() {
	start := day(s.T(), "2026-01-02")
	g, ctx := errgroup.WithContext(s.ctx)
	for i := 0; i < 8; i++ {
		dates := weeklyDates(start.AddDate(0, 0, 7*i), 1)
		for _, code := range []string{"DEBM", "DEPM"} {
			snap := weeklySnapshot(code, dates, int64(1000*(i+1)))
			g.Go(func() error {
				_, err := s.store.Merge(ctx, snap)
				return err
			})
		}
	}
	s.Require().NoError(g.Wait())

	for _, code := range []string{"DEBM", "DEPM"} {
		series := s.mustLoad(code)
		s.Len(series.Dates(), 8, code)
		s.Len(series, 8*4, code)
	}
}

func (s *StoreTestSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.store.Merge(ctx, weeklySnapshot("DEBM", weeklyDates(day(s.T(), "2026-01-02"), 1), 10))
	s.ErrorIs(err, context.Canceled)
	s.Empty(s.mustLoad("DEBM"))

	_, err = s.store.Load(ctx, "DEBM")
	s.ErrorIs(err, context.Canceled)
}

// TestRevisionAcrossOverlappingReports follows one instrument across two
// consecutive publications that overlap by twelve weeks
func (s *StoreTestSuite) TestRevisionAcrossOverlappingReports() {
	t := s.T()
	processor := dataprocessing.NewSnapshotProcessor(dataprocessing.DefaultOptions(), quietLogger())

	firstDates := weeklyDates(day(t, "2025-10-31"), 13)
	s.Require().Equal(day(t, "2026-01-23"), firstDates[12])
	base := [4]string{"200000000", "180000000", "57331824", "55468105"}

	first, err := processor.ProcessGrid("DEBM", reportGrid("DEBM", firstDates, func(int) [4]string { return base }), nil)
	s.Require().NoError(err)
	s.mustMerge(first)

	jan02 := day(t, "2026-01-02")
	jan23 := day(t, "2026-01-23")
	jan30 := day(t, "2026-01-30")

	total := findRecord(t, s.mustLoad("DEBM"), jan23, domain.CategoryCommercial, domain.PositionTotal)
	s.Equal("257331824", total.Long.String())
	s.Equal("235468105", total.Short.String())

	secondDates := weeklyDates(day(t, "2025-11-07"), 13)
	s.Require().Equal(jan30, secondDates[12])
	revised := base
	revised[2] = "58000000"
	second, err := processor.ProcessGrid("DEBM", reportGrid("DEBM", secondDates, func(i int) [4]string {
		if secondDates[i].Equal(jan23) {
			return revised
		}
		return base
	}), nil)
	s.Require().NoError(err)

	result := s.mustMerge(second)
	s.Equal([]time.Time{jan30}, result.NewDates)
	s.Equal(3, result.Inserted)
	s.Equal(2, result.Revised, "other and derived total for 2026-01-23")
	s.Equal(34, result.Unchanged)

	series := s.mustLoad("DEBM")
	s.Len(series.Dates(), 14)
	s.NoError(dataprocessing.CheckTotals(series, decimal.NewFromFloat(0.5)))

	untouched := findRecord(t, series, jan02, domain.CategoryCommercial, domain.PositionTotal)
	s.Equal("257331824", untouched.Long.String())
	revisedTotal := findRecord(t, series, jan23, domain.CategoryCommercial, domain.PositionTotal)
	s.Equal("258000000", revisedTotal.Long.String())

	metrics := dataprocessing.ComputeMetrics(series)
	var found bool
	for _, m := range metrics {
		s.GreaterOrEqual(m.LongPct, 0.0)
		s.LessOrEqual(m.LongPct, 1.0)
		s.GreaterOrEqual(m.ShortPct, 0.0)
		s.LessOrEqual(m.ShortPct, 1.0)

		if m.ReportDate.Equal(jan30) && m.Category == domain.CategoryCommercial && m.PositionType == domain.PositionTotal {
			found = true
			s.Require().True(m.NetChange.Valid)
			// 21,863,719 on 01-30 against the revised 22,531,895 on 01-23
			s.Equal("-668176", m.NetChange.Decimal.String())
			s.Equal("-668176", m.LongChange.Decimal.String())
		}
	}
	s.True(found)
}

func TestLockWaitHonoursContext(t *testing.T) {
	csvStore, err := NewCSVStore(t.TempDir(), quietLogger())
	require.NoError(t, err)
	memStore := NewMemoryStore(quietLogger())

	tests := []struct {
		name  string
		store Store
		locks *instrumentLocks
	}{
		{"memory", memStore, memStore.locks},
		{"csv", csvStore, csvStore.locks},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release, err := tt.locks.acquire(context.Background(), "DEBM")
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()
			_, err = tt.store.Merge(ctx, weeklySnapshot("DEBM", weeklyDates(day(t, "2026-01-02"), 1), 10))
			require.Error(t, err)
			require.True(t, errors.Is(err, context.DeadlineExceeded))

			// A different instrument is not blocked
			_, err = tt.store.Merge(context.Background(), weeklySnapshot("DEPM", weeklyDates(day(t, "2026-01-02"), 1), 10))
			require.NoError(t, err)

			release()
			_, err = tt.store.Merge(context.Background(), weeklySnapshot("DEBM", weeklyDates(day(t, "2026-01-02"), 1), 10))
			require.NoError(t, err)
		})
	}
}
