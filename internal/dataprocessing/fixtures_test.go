package dataprocessing

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

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func weeklyDates(start time.Time, n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, 7*i)
	}
	return dates
}

// gridRow is one body row; cells holds a long/short pair per header date
type gridRow struct {
	label string
	ptype string
	cells [][2]string
}

// same repeats one long/short pair for n dates
func same(n int, long, short string) [][2]string {
	cells := make([][2]string, n)
	for i := range cells {
		cells[i] = [2]string{long, short}
	}
	return cells
}

// buildGrid lays out a report the way the weekly publication does: a
// metadata block, the date header, a Long/Short sub-header and the body.
func buildGrid(instrument string, dates []time.Time, rows []gridRow) [][]string {
	grid := [][]string{
		{"Trading venue", "European Energy Exchange AG"},
		{"Contract code", instrument},
		{"Report status", "NEW"},
		{},
	}
	header := []string{"Category", "Position"}
	sub := []string{"", ""}
	for _, d := range dates {
		header = append(header, d.Format(domain.DateFormat), "")
		sub = append(sub, "Long", "Short")
	}
	grid = append(grid, header, sub)
	for _, r := range rows {
		line := []string{r.label, r.ptype}
		for _, c := range r.cells {
			line = append(line, c[0], c[1])
		}
		grid = append(grid, line)
	}
	return grid
}

// tripletRows emits a labelled risk reducing / other / total block
func tripletRows(label string, n int, rr, other, total [2]string) []gridRow {
	return []gridRow{
		{label: label, ptype: "Risk reducing", cells: same(n, rr[0], rr[1])},
		{ptype: "Other", cells: same(n, other[0], other[1])},
		{ptype: "Total", cells: same(n, total[0], total[1])},
	}
}

func findRecord(t *testing.T, records []domain.PositionRecord, date time.Time, c domain.Category, p domain.PositionType) domain.PositionRecord {
	t.Helper()
	for _, r := range records {
		if r.ReportDate.Equal(date) && r.Category == c && r.PositionType == p {
			return r
		}
	}
	require.Failf(t, "record not found", "%s/%s/%s", date.Format(domain.DateFormat), c, p)
	return domain.PositionRecord{}
}
