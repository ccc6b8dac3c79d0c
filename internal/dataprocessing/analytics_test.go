package dataprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eexcot/pkg/contracts/domain"
)

func analyzerFixture(t *testing.T) *Analyzer {
	t.Helper()
	dates := weeklyDates(day(t, "2026-01-02"), 5)
	var series domain.Series
	for i, d := range dates {
		step := []string{"100", "110", "120", "130", "140"}[i]
		series = append(series,
			rec(d, domain.CategoryInvestmentFunds, domain.PositionTotal, step, "50"),
			rec(d, domain.CategoryCommercial, domain.PositionRiskReducing, "200", "300"),
			rec(d, domain.CategoryCommercial, domain.PositionOther, "0", "0"),
			rec(d, domain.CategoryCommercial, domain.PositionTotal, "200", "300"),
			rec(d, domain.CategoryTotal, domain.PositionTotal, "1000", "1000"),
		)
	}
	return NewAnalyzer("DEBM", ComputeMetrics(series))
}

func TestAnalyzerLatest(t *testing.T) {
	a := analyzerFixture(t)

	latest, ok := a.LatestDate()
	require.True(t, ok)
	assert.Equal(t, day(t, "2026-01-30"), latest)

	positions := a.LatestPositions(domain.PositionTotal)
	require.Len(t, positions, 3)
	// largest net first: total 0, funds 90, commercial -100
	assert.Equal(t, domain.CategoryInvestmentFunds, positions[0].Category)
	assert.Equal(t, domain.CategoryTotal, positions[1].Category)
	assert.Equal(t, domain.CategoryCommercial, positions[2].Category)

	assert.Equal(t, []domain.Category{
		domain.CategoryInvestmentFunds,
		domain.CategoryCommercial,
		domain.CategoryTotal,
	}, a.CategoriesPresent())
}

func TestAnalyzerSummary(t *testing.T) {
	a := analyzerFixture(t)

	s, err := a.Summary()
	require.NoError(t, err)
	assert.Equal(t, "DEBM", s.Instrument)
	assert.Equal(t, day(t, "2026-01-30"), s.ReportDate)
	require.Len(t, s.Categories, 3)

	// open interest is listed but not summed
	assert.True(t, s.TotalLong.Equal(dec("340")), s.TotalLong.String())
	assert.True(t, s.TotalShort.Equal(dec("350")), s.TotalShort.String())
	assert.True(t, s.NetPosition.Equal(dec("-10")), s.NetPosition.String())

	funds := s.Categories[0]
	assert.Equal(t, "Investment Funds", funds.Name)
	require.True(t, funds.LongChange.Valid)
	assert.True(t, funds.LongChange.Decimal.Equal(dec("10")))
	assert.InDelta(t, 0.14, funds.LongPct, 1e-9)

	// funds net +90, commercial net -100; open interest is not ranked
	assert.Equal(t, []domain.Category{domain.CategoryInvestmentFunds, domain.CategoryCommercial}, s.NetRanking)
}

func TestAnalyzerComparePeriods(t *testing.T) {
	a := analyzerFixture(t)

	cmp, err := a.ComparePeriods(4)
	require.NoError(t, err)
	require.Len(t, cmp, 3)

	funds := cmp[0]
	assert.Equal(t, domain.CategoryInvestmentFunds, funds.Category)
	assert.Equal(t, day(t, "2026-01-02"), funds.PastDate)
	assert.True(t, funds.LongChange.Equal(dec("40")))
	require.True(t, funds.LongPctChange.Valid)
	assert.True(t, funds.LongPctChange.Decimal.Equal(dec("40")))
	assert.True(t, funds.NetChange.Equal(dec("40")))

	total := cmp[2]
	assert.False(t, total.NetPctChange.Valid, "zero past net has no percent change")

	far, err := a.ComparePeriods(52)
	require.NoError(t, err)
	assert.Equal(t, day(t, "2026-01-02"), far[0].PastDate, "clamped to the earliest date")
}

func TestAnalyzerWindows(t *testing.T) {
	a := analyzerFixture(t)

	recent := a.RecentWeeks(2, domain.PositionTotal)
	assert.Len(t, recent, 2*3)
	assert.Equal(t, day(t, "2026-01-23"), recent[0].ReportDate)

	between := a.Between(day(t, "2026-01-09"), day(t, "2026-01-16"))
	assert.Len(t, between, 2*5)

	totals := a.WeeklyTotals(3)
	require.Len(t, totals, 3)
	assert.Equal(t, day(t, "2026-01-16"), totals[0].ReportDate)
	assert.Len(t, a.WeeklyTotals(0), 5)
	assert.Len(t, a.WeeklyTotals(50), 5)
	assert.Empty(t, NewAnalyzer("DEBM", nil).WeeklyTotals(3))
}

func TestAnalyzerEmpty(t *testing.T) {
	a := NewAnalyzer("DEBM", nil)

	_, ok := a.LatestDate()
	assert.False(t, ok)
	_, err := a.Summary()
	assert.ErrorIs(t, err, ErrNoData)
	_, err = a.ComparePeriods(4)
	assert.ErrorIs(t, err, ErrNoData)
	assert.Empty(t, a.LatestPositions(domain.PositionTotal))
	assert.Empty(t, a.RecentWeeks(4, domain.PositionTotal))
}
