package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"eexcot/internal/config"
	"eexcot/pkg/contracts/domain"
)

// PositionHeaders are the columns of the stored history file
var PositionHeaders = []string{
	"instrument", "report_date", "category", "position_type",
	"long", "short", "net",
	"long_change", "short_change", "net_change",
	"long_pct", "short_pct",
}

// reportHeaders add a display name for spreadsheet readers
var reportHeaders = append([]string{"category_name"}, PositionHeaders...)

// PositionRow renders one annotated record in PositionHeaders order
func PositionRow(m domain.PositionMetrics) []string {
	return []string{
		m.Instrument,
		formatDate(m.ReportDate),
		string(m.Category),
		string(m.PositionType),
		formatDecimal(m.Long),
		formatDecimal(m.Short),
		formatDecimal(m.Net),
		formatNullDecimal(m.LongChange),
		formatNullDecimal(m.ShortChange),
		formatNullDecimal(m.NetChange),
		formatPct(m.LongPct),
		formatPct(m.ShortPct),
	}
}

// ParsePositionRow reads the primary fields of a row written by PositionRow.
// Derived columns are ignored; they are recomputed from the series.
func ParsePositionRow(header, row []string) (domain.PositionRecord, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}
	get := func(col string) (string, error) {
		i, ok := idx[col]
		if !ok {
			return "", fmt.Errorf("missing column %q", col)
		}
		if i >= len(row) {
			return "", nil
		}
		return strings.TrimSpace(row[i]), nil
	}

	var rec domain.PositionRecord
	var err error
	var cell string

	if rec.Instrument, err = get("instrument"); err != nil {
		return rec, err
	}
	if cell, err = get("report_date"); err != nil {
		return rec, err
	}
	if rec.ReportDate, err = time.Parse(domain.DateFormat, cell); err != nil {
		return rec, fmt.Errorf("invalid report_date %q: %w", cell, err)
	}
	if cell, err = get("category"); err != nil {
		return rec, err
	}
	if rec.Category, err = domain.ParseCategory(cell); err != nil {
		return rec, err
	}
	if cell, err = get("position_type"); err != nil {
		return rec, err
	}
	if rec.PositionType, err = domain.ParsePositionType(cell); err != nil {
		return rec, err
	}
	if cell, err = get("long"); err != nil {
		return rec, err
	}
	if rec.Long, err = parseDecimal(cell); err != nil {
		return rec, fmt.Errorf("invalid long %q: %w", cell, err)
	}
	if cell, err = get("short"); err != nil {
		return rec, err
	}
	if rec.Short, err = parseDecimal(cell); err != nil {
		return rec, fmt.Errorf("invalid short %q: %w", cell, err)
	}
	return rec, nil
}

// SeriesExporter writes annotated series as report files
type SeriesExporter struct {
	csvWriter *CSVWriter
	logger    *slog.Logger
}

// NewSeriesExporter creates a new series report exporter
func NewSeriesExporter(paths *config.Paths, logger *slog.Logger) *SeriesExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SeriesExporter{
		csvWriter: NewCSVWriter(paths, logger),
		logger:    logger,
	}
}

// ReportFileName is the CSV report name for an instrument
func ReportFileName(instrument string) string {
	return fmt.Sprintf("%s_report.csv", instrument)
}

// ExportCSV streams one instrument's annotated series to filePath
func (e *SeriesExporter) ExportCSV(filePath string, records []domain.PositionMetrics) error {
	stream, err := e.csvWriter.CreateStreamWriter(filePath, reportHeaders)
	if err != nil {
		return err
	}
	for i, m := range records {
		if err := stream.WriteRecord(reportRow(m)); err != nil {
			stream.Close()
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filePath, err)
	}

	e.logger.Info("Exported series report",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(records)))
	return nil
}

// WriteSeriesCSV writes the report rows to w, header first and without a BOM
func WriteSeriesCSV(w io.Writer, records []domain.PositionMetrics) error {
	rows := make([][]string, len(records))
	for i, m := range records {
		rows[i] = reportRow(m)
	}
	return writeRows(w, WriteOptions{Headers: reportHeaders, Records: rows}, true)
}

func reportRow(m domain.PositionMetrics) []string {
	return append([]string{m.Category.DisplayName()}, PositionRow(m)...)
}
