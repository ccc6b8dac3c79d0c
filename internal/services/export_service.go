package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"eexcot/internal/config"
	"eexcot/internal/exporter"
	"eexcot/internal/infrastructure"
	"eexcot/internal/validation"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ExportFormats lists the accepted export formats
var ExportFormats = []string{FormatCSV, FormatXLSX}

// ExportService renders metrics series as report files
type ExportService struct {
	series   *SeriesService
	exporter *exporter.SeriesExporter
	paths    *config.Paths
	files    *validation.FileValidator
	logger   *slog.Logger
}

// NewExportService creates an export service writing into the reports directory
func NewExportService(series *SeriesService, paths *config.Paths, logger *slog.Logger) *ExportService {
	logger = infrastructure.WithComponent(logger, "export_service")
	return &ExportService{
		series:   series,
		exporter: exporter.NewSeriesExporter(paths, logger),
		paths:    paths,
		files:    validation.NewFileValidator(logger),
		logger:   logger,
	}
}

// Export writes the filtered series to the reports directory and returns the
// file path
func (s *ExportService) Export(ctx context.Context, instrument, format string, q SeriesQuery) (string, error) {
	format = strings.ToLower(format)
	if format != FormatCSV && format != FormatXLSX {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err := s.files.ValidateOutputDirectory(s.paths.ReportsDir); err != nil {
		return "", err
	}
	ser, err := s.series.Series(ctx, instrument, q)
	if err != nil {
		return "", err
	}

	var name string
	if format == FormatXLSX {
		name = exporter.WorkbookFileName(ser.Instrument)
		err = s.exporter.ExportWorkbook(name, ser.Instrument, ser.Records)
	} else {
		name = exporter.ReportFileName(ser.Instrument)
		err = s.exporter.ExportCSV(name, ser.Records)
	}
	if err != nil {
		return "", fmt.Errorf("failed to export %s: %w", ser.Instrument, err)
	}

	path := s.paths.GetReportPath(name)
	s.logger.InfoContext(ctx, "report exported",
		slog.String("instrument", ser.Instrument),
		slog.String("format", format),
		slog.String("path", path),
		slog.Int("records", len(ser.Records)))
	return path, nil
}

// Write streams the filtered series to w
func (s *ExportService) Write(ctx context.Context, w io.Writer, instrument, format string, q SeriesQuery) error {
	format = strings.ToLower(format)
	if format != FormatCSV && format != FormatXLSX {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	ser, err := s.series.Series(ctx, instrument, q)
	if err != nil {
		return err
	}
	if format == FormatXLSX {
		return exporter.WriteWorkbook(w, ser.Instrument, ser.Records)
	}
	return exporter.WriteSeriesCSV(w, ser.Records)
}
