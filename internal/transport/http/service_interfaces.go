package http

import (
	"context"
	"io"

	"eexcot/internal/dataprocessing"
	"eexcot/internal/history"
	"eexcot/internal/services"
)

// SeriesReader is the read side of the history used by the handlers
type SeriesReader interface {
	Instruments(ctx context.Context) ([]services.InstrumentInfo, error)
	Series(ctx context.Context, instrument string, q services.SeriesQuery) (*services.InstrumentSeries, error)
	Summary(ctx context.Context, instrument string) (*dataprocessing.PositioningSummary, error)
	Compare(ctx context.Context, instrument string, weeks int) ([]dataprocessing.PeriodComparison, error)
	Revisions(ctx context.Context, instrument string) ([]history.Revision, error)
	Reset(ctx context.Context, instrument string) error
}

// SnapshotIngester merges uploaded reports
type SnapshotIngester interface {
	Ingest(ctx context.Context, req services.IngestRequest) (*services.IngestResult, error)
}

// SeriesWriter renders a series as a csv or xlsx download
type SeriesWriter interface {
	Write(ctx context.Context, w io.Writer, instrument, format string, q services.SeriesQuery) error
}

var (
	_ SeriesReader     = (*services.SeriesService)(nil)
	_ SnapshotIngester = (*services.IngestService)(nil)
	_ SeriesWriter     = (*services.ExportService)(nil)
)
