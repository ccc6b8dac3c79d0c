package testutil

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"eexcot/pkg/contracts/domain"
)

// Date parses a YYYY-MM-DD report date
func Date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(domain.DateFormat, s)
	require.NoError(t, err)
	return d
}

// WeeklyDates returns n dates seven days apart
func WeeklyDates(start time.Time, n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, 7*i)
	}
	return dates
}

// GridRow is one body row; Cells holds a long/short pair per header date
type GridRow struct {
	Label        string
	PositionType string
	Cells        [][2]string
}

// Same repeats one long/short pair for n dates
func Same(n int, long, short string) [][2]string {
	cells := make([][2]string, n)
	for i := range cells {
		cells[i] = [2]string{long, short}
	}
	return cells
}

// Triplet emits a labelled risk reducing / other / total block. A zero total
// omits the total row.
func Triplet(label string, n int, rr, other, total [2]string) []GridRow {
	rows := []GridRow{
		{Label: label, PositionType: "Risk reducing", Cells: Same(n, rr[0], rr[1])},
		{PositionType: "Other", Cells: Same(n, other[0], other[1])},
	}
	if total != [2]string{} {
		rows = append(rows, GridRow{PositionType: "Total", Cells: Same(n, total[0], total[1])})
	}
	return rows
}

// BuildGrid lays out a report the way the weekly publication does: a
// metadata block, the date header, a Long/Short sub-header and the body.
func BuildGrid(instrument string, dates []time.Time, blocks ...[]GridRow) [][]string {
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
	for _, rows := range blocks {
		for _, r := range rows {
			line := []string{r.Label, r.PositionType}
			for _, c := range r.Cells {
				line = append(line, c[0], c[1])
			}
			grid = append(grid, line)
		}
	}
	return grid
}

// WorkbookBytes writes grid into a one-sheet xlsx file
func WorkbookBytes(t *testing.T, sheet string, grid [][]string) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), sheet))

	for i, row := range grid {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		require.NoError(t, f.SetSheetRow(sheet, cell, &values))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}
