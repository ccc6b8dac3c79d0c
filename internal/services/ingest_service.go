package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"eexcot/internal/dataprocessing"
	apierrors "eexcot/internal/errors"
	"eexcot/internal/history"
	"eexcot/internal/infrastructure"
	"eexcot/internal/validation"
	"eexcot/pkg/contracts/domain"
)

// IngestRequest is one snapshot to merge. Exactly one of Grid and Workbook
// must be set.
type IngestRequest struct {
	Instrument string            `json:"instrument" validate:"required,instrument"`
	Grid       [][]string        `json:"-"`
	Workbook   io.Reader         `json:"-"`
	Window     *domain.DateRange `json:"window,omitempty"`
	// Source names the input in logs and results, e.g. a file path
	Source string `json:"source,omitempty"`
	// Archive keeps a copy of the workbook in the downloads directory once
	// the merge succeeded
	Archive bool `json:"archive,omitempty"`
}

// IngestResult reports the outcome of one request
type IngestResult struct {
	Instrument  string                  `json:"instrument"`
	Source      string                  `json:"source,omitempty"`
	RunID       string                  `json:"run_id"`
	ReportDates []time.Time             `json:"report_dates,omitempty"`
	Metadata    domain.SnapshotMetadata `json:"metadata"`
	Merge       history.MergeResult     `json:"merge"`
	ArchivedAs  string                  `json:"archived_as,omitempty"`
	Duration    time.Duration           `json:"duration"`

	Err error `json:"-"`
}

// Failed reports whether the request was rejected
func (r IngestResult) Failed() bool { return r.Err != nil }

// ReportArchiver stores the workbook behind a merged snapshot
type ReportArchiver interface {
	ArchiveReport(r io.Reader, instrument string, reportDate, published time.Time) (string, error)
}

// IngestOptions configures an IngestService
type IngestOptions struct {
	// Parallelism bounds the instruments processed at once by IngestAll
	Parallelism int
	// Timeout bounds one request; zero means none
	Timeout  time.Duration
	Metrics  *infrastructure.IngestMetrics
	Tracer   trace.Tracer
	Archiver ReportArchiver
}

// IngestService runs snapshots through parse, normalize and merge
type IngestService struct {
	processor   *dataprocessing.SnapshotProcessor
	store       history.Store
	metrics     *infrastructure.IngestMetrics
	tracer      trace.Tracer
	archiver    ReportArchiver
	parallelism int
	timeout     time.Duration
	now         func() time.Time
	logger      *slog.Logger
}

// NewIngestService creates an ingestion service
func NewIngestService(processor *dataprocessing.SnapshotProcessor, store history.Store, opts IngestOptions, logger *slog.Logger) *IngestService {
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(infrastructure.MeterName)
	}
	return &IngestService{
		processor:   processor,
		store:       store,
		metrics:     opts.Metrics,
		tracer:      opts.Tracer,
		archiver:    opts.Archiver,
		parallelism: opts.Parallelism,
		timeout:     opts.Timeout,
		now:         time.Now,
		logger:      infrastructure.WithComponent(logger, "ingest_service"),
	}
}

// Ingest parses, normalizes and merges one snapshot. A rejected snapshot
// leaves the store untouched. The context trace id becomes the run id of any
// revision the merge records.
func (s *IngestService) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	req.Instrument = validation.NormalizeInstrument(req.Instrument)
	result := &IngestResult{
		Instrument: req.Instrument,
		Source:     req.Source,
		RunID:      infrastructure.GetTraceID(ctx),
	}

	ctx, span := s.tracer.Start(ctx, "ingest", trace.WithAttributes(
		attribute.String("instrument", req.Instrument),
		attribute.String("source", req.Source),
		attribute.String("run_id", result.RunID),
	))
	defer span.End()

	start := time.Now()
	err := s.ingest(ctx, req, result)
	result.Duration = time.Since(start)

	logger := s.logger.With(
		slog.String("instrument", req.Instrument),
		slog.String("source", req.Source),
		slog.String("run_id", result.RunID))

	if err != nil {
		result.Err = err
		infrastructure.RecordError(ctx, err)
		s.metrics.RecordRejection(ctx, req.Instrument, rejectionReason(err))
		logger.WarnContext(ctx, "snapshot rejected",
			slog.String("reason", rejectionReason(err)),
			slog.String("error", err.Error()))
		return result, err
	}

	m := result.Merge
	span.SetAttributes(
		attribute.Int("inserted", m.Inserted),
		attribute.Int("revised", m.Revised),
		attribute.Int("unchanged", m.Unchanged),
		attribute.Int("removed", m.Removed))
	s.metrics.RecordMerge(ctx, req.Instrument, m.Inserted, m.Revised+m.Removed, result.Duration)
	logger.InfoContext(ctx, "snapshot merged",
		slog.Int("report_dates", len(result.ReportDates)),
		slog.Int("inserted", m.Inserted),
		slog.Int("revised", m.Revised),
		slog.Int("unchanged", m.Unchanged),
		slog.Int("removed", m.Removed),
		slog.Int("new_dates", len(m.NewDates)),
		slog.Duration("duration", result.Duration))
	for _, rev := range m.Revisions {
		logger.InfoContext(ctx, "position revised",
			slog.String("key", rev.Key().String()),
			slog.String("old_long", rev.OldLong.String()),
			slog.String("new_long", rev.NewLong.String()),
			slog.String("old_short", rev.OldShort.String()),
			slog.String("new_short", rev.NewShort.String()))
	}
	return result, nil
}

func (s *IngestService) ingest(ctx context.Context, req IngestRequest, result *IngestResult) error {
	if err := validation.Struct(req); err != nil {
		return fmt.Errorf("%w: %q", history.ErrInvalidInstrument, req.Instrument)
	}
	switch {
	case req.Grid == nil && req.Workbook == nil:
		return apierrors.NewAppValidationError("nothing to ingest", ErrNoInput)
	case req.Grid != nil && req.Workbook != nil:
		return apierrors.NewAppValidationError("ambiguous ingest input", ErrAmbiguousInput)
	}

	var workbook []byte
	raw, err := s.parse(ctx, req, &workbook)
	if err != nil {
		return err
	}
	result.Metadata = raw.Metadata

	if code := raw.Metadata.ContractCode; code != "" && !strings.EqualFold(code, req.Instrument) {
		return &dataprocessing.LayoutError{
			Instrument: req.Instrument,
			Reason:     fmt.Sprintf("contract code %s does not match instrument %s", code, req.Instrument),
		}
	}

	snap, err := s.normalize(ctx, raw, req.Window)
	if err != nil {
		return err
	}
	result.ReportDates = snap.Dates

	if err := ctx.Err(); err != nil {
		return err
	}

	merge, err := s.merge(ctx, snap)
	if err != nil {
		return err
	}
	result.Merge = merge

	if req.Archive && s.archiver != nil && workbook != nil {
		latest := snap.Dates[len(snap.Dates)-1]
		path, err := s.archiver.ArchiveReport(bytes.NewReader(workbook), req.Instrument, latest, s.now())
		if err != nil {
			// The merge already happened; archiving is best effort
			s.logger.WarnContext(ctx, "failed to archive report",
				slog.String("instrument", req.Instrument),
				slog.String("error", err.Error()))
		} else {
			result.ArchivedAs = path
		}
	}
	return nil
}

// parse reads the grid out of the workbook when needed and runs the layout
// parser. The workbook bytes are kept for archiving.
func (s *IngestService) parse(ctx context.Context, req IngestRequest, workbook *[]byte) (*dataprocessing.RawSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "parse")
	defer span.End()

	parser := s.processor.Parser()
	grid := req.Grid
	if req.Workbook != nil {
		data, err := io.ReadAll(req.Workbook)
		if err != nil {
			return nil, fmt.Errorf("failed to read workbook: %w", err)
		}
		*workbook = data

		grid, err = parser.ReadWorkbook(bytes.NewReader(data))
		if err != nil {
			var layoutErr *dataprocessing.LayoutError
			if errors.As(err, &layoutErr) {
				layoutErr.Instrument = req.Instrument
				return nil, layoutErr
			}
			return nil, apierrors.NewParsingError("the upload is not a readable xlsx workbook", err).
				WithContext("instrument", req.Instrument)
		}
	}
	span.SetAttributes(attribute.Int("grid_rows", len(grid)))

	raw, err := parser.Parse(req.Instrument, grid)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("report_dates", len(raw.Dates)),
		attribute.Int("raw_rows", len(raw.Rows)))
	return raw, nil
}

func (s *IngestService) normalize(ctx context.Context, raw *dataprocessing.RawSnapshot, window *domain.DateRange) (*domain.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "normalize")
	defer span.End()

	snap, err := s.processor.Normalizer().Normalize(raw, window)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("records", len(snap.Records)))
	return snap, nil
}

func (s *IngestService) merge(ctx context.Context, snap *domain.Snapshot) (history.MergeResult, error) {
	ctx, span := s.tracer.Start(ctx, "merge")
	defer span.End()

	merge, err := s.store.Merge(ctx, snap)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		if errors.Is(err, history.ErrInvalidSnapshot) || errors.Is(err, history.ErrInvalidInstrument) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return merge, err
		}
		return merge, apierrors.NewStorageError(fmt.Sprintf("failed to merge %s history", snap.Instrument), err).
			WithContext("instrument", snap.Instrument)
	}
	return merge, nil
}

// IngestAll processes a batch. Different instruments run concurrently, up to
// the configured parallelism; requests for the same instrument run in the
// order given. Every request gets a result; a failure does not stop the
// others. The returned error joins the individual failures.
func (s *IngestService) IngestAll(ctx context.Context, reqs []IngestRequest) ([]IngestResult, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	results := make([]IngestResult, len(reqs))

	groups := make(map[string][]int)
	var order []string
	for i, req := range reqs {
		code := validation.NormalizeInstrument(req.Instrument)
		if _, ok := groups[code]; !ok {
			order = append(order, code)
		}
		groups[code] = append(groups[code], i)
	}

	s.logger.InfoContext(ctx, "ingesting batch",
		slog.Int("requests", len(reqs)),
		slog.Int("instruments", len(order)),
		slog.Int("parallelism", s.parallelism))

	g := new(errgroup.Group)
	g.SetLimit(s.parallelism)
	for _, code := range order {
		indices := groups[code]
		g.Go(func() error {
			for _, i := range indices {
				if err := ctx.Err(); err != nil {
					results[i] = IngestResult{
						Instrument: validation.NormalizeInstrument(reqs[i].Instrument),
						Source:     reqs[i].Source,
						RunID:      infrastructure.GetTraceID(ctx),
						Err:        err,
					}
					continue
				}
				res, _ := s.Ingest(ctx, reqs[i])
				results[i] = *res
			}
			return nil
		})
	}
	g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("%s (%s): %w", res.Instrument, res.Source, res.Err))
		}
	}
	return results, errors.Join(errs...)
}

// rejectionReason labels a failure for metrics and logs
func rejectionReason(err error) string {
	var appErr *apierrors.AppError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, dataprocessing.ErrLayout):
		return "layout"
	case errors.Is(err, dataprocessing.ErrUnknownCategory):
		return "unknown_category"
	case errors.Is(err, dataprocessing.ErrUnknownPositionType):
		return "unknown_position_type"
	case errors.Is(err, dataprocessing.ErrReconciliation):
		return "reconciliation"
	case errors.Is(err, history.ErrInvalidInstrument):
		return "invalid_instrument"
	case errors.Is(err, history.ErrInvalidSnapshot):
		return "invalid_snapshot"
	case errors.As(err, &appErr):
		return strings.ToLower(string(appErr.Type))
	default:
		return "internal"
	}
}
