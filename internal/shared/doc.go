// Package shared holds code used by more than one layer that does not belong
// to any of them.
//
// The testutil subpackage provides a buffered slog handler for asserting on
// log output and builders for weekly report grids and xlsx workbooks:
//
//	dates := testutil.WeeklyDates(testutil.Date(t, "2026-01-02"), 4)
//	grid := testutil.BuildGrid("DEBM", dates,
//	    testutil.Triplet("Commercial undertakings", len(dates),
//	        [2]string{"100", "80"}, [2]string{"50", "40"}, [2]string{}))
//	xlsx := testutil.WorkbookBytes(t, "Weekly_Report", grid)
//
// Nothing here is imported by production code.
package shared
