// Package exporter writes position data to disk.
//
// CSVWriter is the low level writer shared with the history store: plain,
// appending, atomic (temp file and rename) and streaming writes, with an
// optional UTF-8 BOM so spreadsheet tools detect the encoding.
//
// SeriesExporter turns an annotated series into the instrument reports:
// <CODE>_report.csv with one row per record, and <CODE>_report.xlsx with one
// sheet per position type.
//
//	exp := exporter.NewSeriesExporter(paths, logger)
//	err := exp.ExportCSV(exporter.ReportFileName("DEBM"), records)
package exporter
