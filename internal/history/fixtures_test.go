package history

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"eexcot/pkg/contracts/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(domain.DateFormat, s)
	require.NoError(t, err)
	return d
}

func weeklyDates(start time.Time, n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, 7*i)
	}
	return dates
}

func record(instrument string, date time.Time, c domain.Category, p domain.PositionType, long, short int64) domain.PositionRecord {
	return domain.PositionRecord{
		Instrument:   instrument,
		ReportDate:   date,
		Category:     c,
		PositionType: p,
		Long:         decimal.NewFromInt(long),
		Short:        decimal.NewFromInt(short),
	}
}

// triplet returns a reconciled risk reducing / other / total group
func triplet(instrument string, date time.Time, c domain.Category, rrLong, rrShort, otherLong, otherShort int64) []domain.PositionRecord {
	return []domain.PositionRecord{
		record(instrument, date, c, domain.PositionRiskReducing, rrLong, rrShort),
		record(instrument, date, c, domain.PositionOther, otherLong, otherShort),
		record(instrument, date, c, domain.PositionTotal, rrLong+otherLong, rrShort+otherShort),
	}
}

func snapshot(instrument string, records ...domain.PositionRecord) *domain.Snapshot {
	snap := &domain.Snapshot{Instrument: instrument, Records: records}
	seen := make(map[time.Time]bool)
	for _, r := range records {
		if !seen[r.ReportDate] {
			seen[r.ReportDate] = true
			snap.Dates = append(snap.Dates, r.ReportDate)
		}
	}
	return snap
}

// weeklySnapshot holds a Commercial triplet and an open interest row per date
func weeklySnapshot(instrument string, dates []time.Time, base int64) *domain.Snapshot {
	var records []domain.PositionRecord
	for i, d := range dates {
		step := int64(i) * 1000
		records = append(records, triplet(instrument, d, domain.CategoryCommercial, base+step, base/2+step, base/4, base/8)...)
		records = append(records, record(instrument, d, domain.CategoryTotal, domain.PositionTotal, 4*base, 4*base))
	}
	return snapshot(instrument, records...)
}

func findRecord(t *testing.T, series domain.Series, date time.Time, c domain.Category, p domain.PositionType) domain.PositionRecord {
	t.Helper()
	for _, r := range series {
		if r.ReportDate.Equal(date) && r.Category == c && r.PositionType == p {
			return r
		}
	}
	require.Failf(t, "record not found", "%s/%s/%s", date.Format(domain.DateFormat), c, p)
	return domain.PositionRecord{}
}

// reportGrid lays out a Commercial block the way the weekly report does.
// cells maps a date index to its {rrLong, rrShort, otherLong, otherShort}.
func reportGrid(instrument string, dates []time.Time, cells func(i int) [4]string) [][]string {
	grid := [][]string{
		{"Trading venue", "European Energy Exchange AG"},
		{"Contract code", instrument},
		{},
	}
	header := []string{"Category", "Position"}
	sub := []string{"", ""}
	rr := []string{"Commercial undertakings", "Risk reducing"}
	other := []string{"", "Other"}
	for i, d := range dates {
		header = append(header, d.Format(domain.DateFormat), "")
		sub = append(sub, "Long", "Short")
		c := cells(i)
		rr = append(rr, c[0], c[1])
		other = append(other, c[2], c[3])
	}
	return append(grid, header, sub, rr, other)
}
