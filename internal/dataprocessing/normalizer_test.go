package dataprocessing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eexcot/pkg/contracts/domain"
)

func rawRow(date time.Time, row int, category, ptype, long, short string) RawRow {
	return RawRow{
		Date:              date,
		SourceRow:         row,
		CategoryLabel:     category,
		PositionTypeLabel: ptype,
		Long:              dec(long),
		Short:             dec(short),
	}
}

func TestNormalizeMapsLabels(t *testing.T) {
	d := day(t, "2026-01-23")
	raw := &RawSnapshot{
		Instrument: "DEBM",
		Dates:      []time.Time{d},
		Rows: []RawRow{
			rawRow(d, 10, "Total", "Total", "500", "500"),
			rawRow(d, 5, "Commercial Undertakings", "Risk-reducing", "200", "180"),
			rawRow(d, 6, "Commercial Undertakings", "Other positions", "57", "55"),
			rawRow(d, 7, "Commercial Undertakings", "TOTAL", "257", "235"),
		},
	}
	n := NewNormalizer(DefaultTolerance, quietLogger())
	snap, err := n.Normalize(raw, nil)
	require.NoError(t, err)

	assert.Equal(t, "DEBM", snap.Instrument)
	assert.Equal(t, []time.Time{d}, snap.Dates)
	require.Len(t, snap.Records, 4)

	// series order: commercial before total, risk reducing before other before total
	assert.Equal(t, domain.CategoryCommercial, snap.Records[0].Category)
	assert.Equal(t, domain.PositionRiskReducing, snap.Records[0].PositionType)
	assert.Equal(t, domain.PositionOther, snap.Records[1].PositionType)
	assert.Equal(t, domain.PositionTotal, snap.Records[2].PositionType)
	assert.Equal(t, domain.CategoryTotal, snap.Records[3].Category)
	for _, r := range snap.Records {
		assert.Equal(t, "DEBM", r.Instrument)
	}
}

func TestNormalizeRejections(t *testing.T) {
	d := day(t, "2026-01-23")
	tests := []struct {
		name     string
		rows     []RawRow
		sentinel error
		check    func(t *testing.T, err error)
	}{
		{
			name:     "unknown category",
			rows:     []RawRow{rawRow(d, 12, "Market makers", "Total", "1", "1")},
			sentinel: ErrUnknownCategory,
			check: func(t *testing.T, err error) {
				var e *UnknownCategoryError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, 12, e.Row)
				assert.Equal(t, "Market makers", e.Label)
				assert.Equal(t, "DEBM", e.Instrument)
			},
		},
		{
			name:     "unknown position type",
			rows:     []RawRow{rawRow(d, 4, "Commercial", "Speculative", "1", "1")},
			sentinel: ErrUnknownPositionType,
			check: func(t *testing.T, err error) {
				var e *UnknownPositionTypeError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, 4, e.Row)
				assert.Equal(t, "Speculative", e.Label)
			},
		},
		{
			name: "total does not reconcile",
			rows: []RawRow{
				rawRow(d, 5, "Commercial", "Risk reducing", "200", "180"),
				rawRow(d, 6, "Commercial", "Other", "57", "55"),
				rawRow(d, 7, "Commercial", "Total", "258", "235"),
			},
			sentinel: ErrReconciliation,
			check: func(t *testing.T, err error) {
				var e *ReconciliationError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, domain.CategoryCommercial, e.Category)
				assert.Equal(t, domain.SideLong, e.Side)
				assert.True(t, e.Expected.Equal(dec("257")))
				assert.True(t, e.Actual.Equal(dec("258")))
				assert.True(t, e.Date.Equal(d))
			},
		},
		{
			name: "short side does not reconcile",
			rows: []RawRow{
				rawRow(d, 5, "Commercial", "Risk reducing", "200", "180"),
				rawRow(d, 6, "Commercial", "Other", "57", "55"),
				rawRow(d, 7, "Commercial", "Total", "257", "240"),
			},
			sentinel: ErrReconciliation,
			check: func(t *testing.T, err error) {
				var e *ReconciliationError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, domain.SideShort, e.Side)
			},
		},
		{
			name: "partial split",
			rows: []RawRow{
				rawRow(d, 5, "Commercial", "Risk reducing", "200", "180"),
				rawRow(d, 7, "Commercial", "Total", "200", "180"),
			},
			sentinel: ErrLayout,
		},
		{
			name: "duplicate key",
			rows: []RawRow{
				rawRow(d, 5, "Total", "Total", "1", "1"),
				rawRow(d, 9, "Total open interest", "Total", "1", "1"),
			},
			sentinel: ErrLayout,
			check: func(t *testing.T, err error) {
				var e *LayoutError
				require.True(t, errors.As(err, &e))
				assert.Equal(t, 9, e.Row)
			},
		},
	}

	n := NewNormalizer(DefaultTolerance, quietLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &RawSnapshot{Instrument: "DEBM", Dates: []time.Time{d}, Rows: tt.rows}
			snap, err := n.Normalize(raw, nil)
			require.Error(t, err)
			assert.Nil(t, snap)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.True(t, IsSnapshotRejection(err))
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestNormalizeToleranceAbsorbsRounding(t *testing.T) {
	d := day(t, "2026-01-23")
	raw := &RawSnapshot{
		Instrument: "DEBM",
		Rows: []RawRow{
			rawRow(d, 5, "Commercial", "Risk reducing", "100.2", "10"),
			rawRow(d, 6, "Commercial", "Other", "50.2", "10"),
			rawRow(d, 7, "Commercial", "Total", "150", "20.5"),
		},
	}

	_, err := NewNormalizer(DefaultTolerance, quietLogger()).Normalize(raw, nil)
	assert.NoError(t, err, "0.4 and 0.5 are inside the default tolerance")

	_, err = NewNormalizer(dec("0.1"), quietLogger()).Normalize(raw, nil)
	assert.ErrorIs(t, err, ErrReconciliation)
}

func TestNormalizeZeroToleranceIsExact(t *testing.T) {
	d := day(t, "2026-01-23")
	raw := func(total string) *RawSnapshot {
		return &RawSnapshot{
			Instrument: "DEBM",
			Rows: []RawRow{
				rawRow(d, 5, "Commercial", "Risk reducing", "100", "10"),
				rawRow(d, 6, "Commercial", "Other", "50", "10"),
				rawRow(d, 7, "Commercial", "Total", total, "20"),
			},
		}
	}

	n := NewNormalizer(decimal.Zero, quietLogger())
	_, err := n.Normalize(raw("150"), nil)
	assert.NoError(t, err)
	_, err = n.Normalize(raw("150.2"), nil)
	assert.ErrorIs(t, err, ErrReconciliation, "an exact check rejects what the default tolerance absorbs")
	_, err = NewNormalizer(DefaultTolerance, quietLogger()).Normalize(raw("150.2"), nil)
	assert.NoError(t, err)
}

func TestNormalizeDerivesMissingTotal(t *testing.T) {
	d := day(t, "2026-01-23")
	raw := &RawSnapshot{
		Instrument: "DEBM",
		Rows: []RawRow{
			rawRow(d, 5, "Commercial", "Risk reducing", "200000000", "180000000"),
			rawRow(d, 6, "Commercial", "Other", "57331824", "55468105"),
		},
	}

	snap, err := NewNormalizer(DefaultTolerance, quietLogger()).Normalize(raw, nil)
	require.NoError(t, err)
	require.Len(t, snap.Records, 3)

	total := findRecord(t, snap.Records, d, domain.CategoryCommercial, domain.PositionTotal)
	assert.True(t, total.Long.Equal(dec("257331824")), total.Long.String())
	assert.True(t, total.Short.Equal(dec("235468105")), total.Short.String())
}

func TestNormalizeWindow(t *testing.T) {
	dates := weeklyDates(day(t, "2026-01-02"), 4)
	var rows []RawRow
	for _, d := range dates {
		rows = append(rows, rawRow(d, 5, "Total", "Total", "1", "1"))
	}
	raw := &RawSnapshot{Instrument: "DEBM", Dates: dates, Rows: rows}
	n := NewNormalizer(DefaultTolerance, quietLogger())

	t.Run("keeps dates inside the window", func(t *testing.T) {
		snap, err := n.Normalize(raw, &domain.DateRange{From: dates[1], To: dates[2]})
		require.NoError(t, err)
		assert.Equal(t, dates[1:3], snap.Dates)
		assert.Len(t, snap.Records, 2)
	})

	t.Run("open upper bound", func(t *testing.T) {
		snap, err := n.Normalize(raw, &domain.DateRange{From: dates[2]})
		require.NoError(t, err)
		assert.Equal(t, dates[2:], snap.Dates)
	})

	t.Run("nothing left is a layout error", func(t *testing.T) {
		_, err := n.Normalize(raw, &domain.DateRange{From: dates[3].AddDate(0, 0, 1)})
		assert.ErrorIs(t, err, ErrLayout)
	})
}

func TestCheckTotals(t *testing.T) {
	d := day(t, "2026-01-23")
	series := domain.Series{
		{Instrument: "DEBM", ReportDate: d, Category: domain.CategoryCommercial, PositionType: domain.PositionRiskReducing, Long: dec("2"), Short: dec("1")},
		{Instrument: "DEBM", ReportDate: d, Category: domain.CategoryCommercial, PositionType: domain.PositionOther, Long: dec("3"), Short: dec("1")},
		{Instrument: "DEBM", ReportDate: d, Category: domain.CategoryCommercial, PositionType: domain.PositionTotal, Long: dec("5"), Short: dec("2")},
	}
	assert.NoError(t, CheckTotals(series, DefaultTolerance))

	series[2].Long = dec("9")
	assert.ErrorIs(t, CheckTotals(series, DefaultTolerance), ErrReconciliation)
}

func TestLookupLabels(t *testing.T) {
	tests := []struct {
		label string
		want  domain.Category
	}{
		{"Investment Firms or Credit Institutions", domain.CategoryInvestmentFirms},
		{"  investment   funds ", domain.CategoryInvestmentFunds},
		{"Other Financial Institutions:", domain.CategoryOtherFinancial},
		{"Commercial Undertakings", domain.CategoryCommercial},
		{"Operators with compliance obligations under Directive 2003/87/EC", domain.CategoryComplianceOperators},
		{"Total", domain.CategoryTotal},
	}
	for _, tt := range tests {
		got, ok := LookupCategory(tt.label)
		assert.True(t, ok, tt.label)
		assert.Equal(t, tt.want, got, tt.label)
	}

	_, ok := LookupCategory("Commercial Undertaking Subsidiaries")
	assert.False(t, ok, "labels are matched exactly, never by prefix")

	p, ok := LookupPositionType("Risk-Reducing")
	assert.True(t, ok)
	assert.Equal(t, domain.PositionRiskReducing, p)
}
