package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"eexcot/internal/dataprocessing"
	apierrors "eexcot/internal/errors"
	"eexcot/internal/history"
	"eexcot/internal/infrastructure"
	"eexcot/internal/validation"
	"eexcot/pkg/contracts/domain"
)

// InstrumentInfo describes one stored instrument
type InstrumentInfo struct {
	Instrument string            `json:"instrument"`
	FirstDate  time.Time         `json:"first_date"`
	LatestDate time.Time         `json:"latest_date"`
	Dates      int               `json:"dates"`
	Records    int               `json:"records"`
	Categories []domain.Category `json:"categories"`
}

// SeriesQuery narrows a metrics series. Zero values select everything.
type SeriesQuery struct {
	PositionType domain.PositionType
	Window       *domain.DateRange
	Categories   []domain.Category
}

// InstrumentSeries is a filtered metrics series
type InstrumentSeries struct {
	Instrument string                   `json:"instrument"`
	Categories []domain.Category        `json:"categories"`
	Records    []domain.PositionMetrics `json:"records"`
}

// SeriesService reads stored history and derives metrics from it
type SeriesService struct {
	store  history.Store
	logger *slog.Logger
}

// NewSeriesService creates a series service
func NewSeriesService(store history.Store, logger *slog.Logger) *SeriesService {
	return &SeriesService{
		store:  store,
		logger: infrastructure.WithComponent(logger, "series_service"),
	}
}

// Instruments lists every stored instrument with its date coverage
func (s *SeriesService) Instruments(ctx context.Context) ([]InstrumentInfo, error) {
	codes, err := s.store.Instruments(ctx)
	if err != nil {
		return nil, apierrors.NewStorageError("failed to list instruments", err)
	}

	infos := make([]InstrumentInfo, 0, len(codes))
	for _, code := range codes {
		series, err := s.load(ctx, code)
		if err != nil {
			return nil, err
		}
		dates := series.Dates()
		if len(dates) == 0 {
			continue
		}
		infos = append(infos, InstrumentInfo{
			Instrument: code,
			FirstDate:  dates[0],
			LatestDate: dates[len(dates)-1],
			Dates:      len(dates),
			Records:    len(series),
			Categories: series.Categories(),
		})
	}
	return infos, nil
}

// Series returns the instrument's metrics. Week-over-week changes are
// computed over the full stored series before the query filters it, so the
// first date inside a window still carries its change against the week
// before.
func (s *SeriesService) Series(ctx context.Context, instrument string, q SeriesQuery) (*InstrumentSeries, error) {
	code, err := checkInstrument(instrument)
	if err != nil {
		return nil, err
	}
	series, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, apierrors.InstrumentNotFound(code)
	}

	wantCategory := make(map[domain.Category]bool, len(q.Categories))
	for _, c := range q.Categories {
		wantCategory[c] = true
	}

	a := dataprocessing.NewAnalyzer(code, dataprocessing.ComputeMetrics(series))
	records := a.Records()
	if q.Window != nil {
		records = a.Between(q.Window.From, q.Window.To)
	}

	out := &InstrumentSeries{Instrument: code, Categories: a.CategoriesPresent()}
	for _, m := range records {
		if q.PositionType != "" && m.PositionType != q.PositionType {
			continue
		}
		if len(wantCategory) > 0 && !wantCategory[m.Category] {
			continue
		}
		out.Records = append(out.Records, m)
	}
	if out.Records == nil {
		out.Records = []domain.PositionMetrics{}
	}
	return out, nil
}

// Analyzer loads the instrument and wraps its metrics for analysis
func (s *SeriesService) Analyzer(ctx context.Context, instrument string) (*dataprocessing.Analyzer, error) {
	code, err := checkInstrument(instrument)
	if err != nil {
		return nil, err
	}
	series, err := s.load(ctx, code)
	if err != nil {
		return nil, err
	}
	return dataprocessing.NewAnalyzer(code, dataprocessing.ComputeMetrics(series)), nil
}

// Summary describes the instrument's latest report date
func (s *SeriesService) Summary(ctx context.Context, instrument string) (*dataprocessing.PositioningSummary, error) {
	a, err := s.Analyzer(ctx, instrument)
	if err != nil {
		return nil, err
	}
	summary, err := a.Summary()
	if errors.Is(err, dataprocessing.ErrNoData) {
		return nil, apierrors.InstrumentNotFound(validation.NormalizeInstrument(instrument))
	}
	return summary, err
}

// Compare compares the latest report date with the one weeks dates earlier
func (s *SeriesService) Compare(ctx context.Context, instrument string, weeks int) ([]dataprocessing.PeriodComparison, error) {
	if weeks < 1 {
		return nil, apierrors.ErrValidation("weeks", "weeks must be at least 1")
	}
	a, err := s.Analyzer(ctx, instrument)
	if err != nil {
		return nil, err
	}
	cmp, err := a.ComparePeriods(weeks)
	if errors.Is(err, dataprocessing.ErrNoData) {
		return nil, apierrors.InstrumentNotFound(validation.NormalizeInstrument(instrument))
	}
	return cmp, err
}

// Revisions returns the instrument's revision log, oldest first
func (s *SeriesService) Revisions(ctx context.Context, instrument string) ([]history.Revision, error) {
	code, err := checkInstrument(instrument)
	if err != nil {
		return nil, err
	}
	revs, err := s.store.Revisions(ctx, code)
	if err != nil {
		return nil, apierrors.NewStorageError(fmt.Sprintf("failed to read %s revisions", code), err)
	}
	if revs == nil {
		revs = []history.Revision{}
	}
	return revs, nil
}

// Reset drops the instrument's history
func (s *SeriesService) Reset(ctx context.Context, instrument string) error {
	code, err := checkInstrument(instrument)
	if err != nil {
		return err
	}
	if err := s.store.Reset(ctx, code); err != nil {
		return apierrors.NewStorageError(fmt.Sprintf("failed to reset %s", code), err)
	}
	s.logger.InfoContext(ctx, "history reset", slog.String("instrument", code))
	return nil
}

func (s *SeriesService) load(ctx context.Context, code string) (domain.Series, error) {
	series, err := s.store.Load(ctx, code)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, apierrors.NewStorageError(fmt.Sprintf("failed to load %s history", code), err).
			WithContext("instrument", code)
	}
	return series, nil
}

func checkInstrument(instrument string) (string, error) {
	code := validation.NormalizeInstrument(instrument)
	if !validation.ValidInstrument(code) {
		return "", apierrors.InvalidInstrument(instrument)
	}
	return code, nil
}
