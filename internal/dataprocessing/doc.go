// Package dataprocessing turns weekly EEX Commitment of Traders spreadsheets
// into canonical position records and derives metrics over stored history.
//
// # Architecture
//
// The package is organized into four components:
//
// 1. Parser: reads a report grid (or xlsx workbook) into raw tuples
// 2. Normalizer: maps labels onto the closed category and position type
// vocabulary and reconciles totals
// 3. Metrics: annotates a full series with changes and shares of open interest
// 4. Analyzer: latest positions, summaries and period comparisons
//
// # Usage
//
//	proc := dataprocessing.NewSnapshotProcessor(dataprocessing.DefaultOptions(), logger)
//	snap, err := proc.ProcessWorkbook("DEBM", file, nil)
//	if err != nil {
//	    return err
//	}
//
// Annotating a stored series:
//
//	metrics := dataprocessing.ComputeMetrics(series)
//	summary, err := dataprocessing.NewAnalyzer("DEBM", metrics).Summary()
//
// # Data Flow
//
//	xlsx → Parser → RawSnapshot → Normalizer → Snapshot → (history store) → ComputeMetrics → Analyzer
//
// # Error Handling
//
// Every rejection is one of LayoutError, UnknownCategoryError,
// UnknownPositionTypeError or ReconciliationError. Each unwraps to a sentinel
// so callers can use errors.Is, and IsSnapshotRejection matches all four.
// A rejected snapshot produces no records at all.
package dataprocessing
