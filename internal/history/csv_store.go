package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"eexcot/internal/dataprocessing"
	"eexcot/internal/exporter"
	"eexcot/internal/infrastructure"
	"eexcot/pkg/contracts/domain"
)

const (
	historySuffix   = "_history.csv"
	revisionsSuffix = "_revisions.csv"
)

// RevisionHeaders are the columns of <INSTRUMENT>_revisions.csv
var RevisionHeaders = []string{
	"revised_at", "run_id", "report_date", "category", "position_type",
	"old_long", "old_short", "new_long", "new_short", "removed",
}

// revisionColumns is the column count of logs written before removals were
// recorded; their rows are overwrites
const revisionColumns = 9

// CSVStore keeps each instrument's series in <dir>/<INSTRUMENT>_history.csv.
// The file is rewritten through a temporary file and a rename, and only when
// a merge changed something. Merge and Reset hold <dir>/<INSTRUMENT>.lock, so
// several processes may share the directory. Derived columns are written for readers of the
// file and recomputed on every write; Load ignores them.
type CSVStore struct {
	dir    string
	writer *exporter.CSVWriter
	locks  *instrumentLocks
	logger *slog.Logger
	now    func() time.Time
}

// NewCSVStore creates a CSV-backed store rooted at dir, creating dir if needed
func NewCSVStore(dir string, logger *slog.Logger) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory %s: %w", dir, err)
	}
	return &CSVStore{
		dir:    dir,
		writer: exporter.NewCSVWriter(nil, logger),
		locks:  newInstrumentLocks(),
		logger: infrastructure.WithComponent(logger, "history_csv"),
		now:    time.Now,
	}, nil
}

// Dir returns the directory holding the history files
func (s *CSVStore) Dir() string { return s.dir }

// HistoryPath returns the series file of an instrument
func (s *CSVStore) HistoryPath(instrument string) string {
	return filepath.Join(s.dir, instrument+historySuffix)
}

// RevisionsPath returns the revision log of an instrument
func (s *CSVStore) RevisionsPath(instrument string) string {
	return filepath.Join(s.dir, instrument+revisionsSuffix)
}

// LockPath returns the lock file held while an instrument's files are rewritten
func (s *CSVStore) LockPath(instrument string) string {
	return filepath.Join(s.dir, instrument+lockSuffix)
}

// lock serializes writers of one instrument, both inside this process and
// across processes sharing the directory
func (s *CSVStore) lock(ctx context.Context, instrument string) (func(), error) {
	release, err := s.locks.acquire(ctx, instrument)
	if err != nil {
		return nil, err
	}
	unlock, err := acquireLockFile(ctx, s.LockPath(instrument), s.logger)
	if err != nil {
		release()
		return nil, err
	}
	return func() {
		unlock()
		release()
	}, nil
}

// Load reads the instrument's series from disk
func (s *CSVStore) Load(ctx context.Context, instrument string) (domain.Series, error) {
	if err := checkInstrument(instrument); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.load(instrument)
}

func (s *CSVStore) load(instrument string) (domain.Series, error) {
	path := s.HistoryPath(instrument)
	rows, err := s.writer.ReadCSV(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.Series{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s history: %w", instrument, err)
	}
	if len(rows) == 0 {
		return domain.Series{}, nil
	}

	header := rows[0]
	series := make(domain.Series, 0, len(rows)-1)
	seen := make(map[domain.RecordKey]bool, len(rows)-1)
	for i, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		rec, err := exporter.ParsePositionRow(header, row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), i+2, err)
		}
		if rec.Instrument != instrument {
			return nil, fmt.Errorf("%s line %d: record belongs to %q", filepath.Base(path), i+2, rec.Instrument)
		}
		key := canonicalKey(rec)
		if seen[key] {
			return nil, fmt.Errorf("%s line %d: duplicate record %s", filepath.Base(path), i+2, key)
		}
		seen[key] = true
		series = append(series, rec)
	}
	series.Sort()
	return series, nil
}

// Merge upserts the snapshot's records and rewrites the history file when
// anything changed. Overwritten values are appended to the revision log.
func (s *CSVStore) Merge(ctx context.Context, snap *domain.Snapshot) (MergeResult, error) {
	if err := validateSnapshot(snap); err != nil {
		return MergeResult{Instrument: instrumentOf(snap)}, err
	}
	instrument := snap.Instrument

	release, err := s.lock(ctx, instrument)
	if err != nil {
		return MergeResult{Instrument: instrument}, err
	}
	defer release()

	existing, err := s.load(instrument)
	if err != nil {
		return MergeResult{Instrument: instrument}, err
	}

	runID := infrastructure.GetTraceID(ctx)
	merged, result := mergeRecords(existing, snap.Records, s.now().UTC(), runID)
	result.Instrument = instrument
	if !result.Changed() {
		s.logger.DebugContext(ctx, "Snapshot already stored",
			slog.String("instrument", instrument),
			slog.Int("unchanged", result.Unchanged))
		return result, nil
	}

	// A cancelled run must not leave a half-applied merge behind
	if err := ctx.Err(); err != nil {
		return MergeResult{Instrument: instrument}, err
	}

	annotated := dataprocessing.ComputeMetrics(merged)
	records := make([][]string, len(annotated))
	for i, m := range annotated {
		records[i] = exporter.PositionRow(m)
	}
	if err := s.writer.WriteCSV(s.HistoryPath(instrument), exporter.WriteOptions{
		Headers: exporter.PositionHeaders,
		Records: records,
		Atomic:  true,
	}); err != nil {
		return MergeResult{Instrument: instrument}, fmt.Errorf("failed to write %s history: %w", instrument, err)
	}

	if len(result.Revisions) > 0 {
		rows := make([][]string, len(result.Revisions))
		for i, rev := range result.Revisions {
			rows[i] = revisionRow(rev)
		}
		if err := s.writer.AppendToCSV(s.RevisionsPath(instrument), RevisionHeaders, rows); err != nil {
			return result, fmt.Errorf("history for %s written but revision log failed: %w", instrument, err)
		}
	}

	s.logger.InfoContext(ctx, "Snapshot merged",
		slog.String("instrument", instrument),
		slog.Int("inserted", result.Inserted),
		slog.Int("revised", result.Revised),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("removed", result.Removed),
		slog.Int("new_dates", len(result.NewDates)),
		slog.Int("stored_records", len(merged)))
	return result, nil
}

// Instruments lists instruments with a history file
func (s *CSVStore) Instruments(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, "*"+historySuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to list history files: %w", err)
	}

	out := make([]string, 0, len(matches))
	for _, m := range matches {
		code := strings.TrimSuffix(filepath.Base(m), historySuffix)
		if checkInstrument(code) == nil {
			out = append(out, code)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Reset removes the instrument's history file and revision log
func (s *CSVStore) Reset(ctx context.Context, instrument string) error {
	if err := checkInstrument(instrument); err != nil {
		return err
	}
	release, err := s.lock(ctx, instrument)
	if err != nil {
		return err
	}
	defer release()

	for _, path := range []string{s.HistoryPath(instrument), s.RevisionsPath(instrument)} {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to reset %s: %w", instrument, err)
		}
	}
	s.logger.InfoContext(ctx, "History reset", slog.String("instrument", instrument))
	return nil
}

// Revisions reads the instrument's revision log
func (s *CSVStore) Revisions(ctx context.Context, instrument string) ([]Revision, error) {
	if err := checkInstrument(instrument); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.writer.ReadCSV(s.RevisionsPath(instrument))
	if errors.Is(err, os.ErrNotExist) {
		return []Revision{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s revisions: %w", instrument, err)
	}

	out := make([]Revision, 0, len(rows))
	for i, row := range rows {
		if i == 0 || isEmptyRow(row) {
			continue
		}
		rev, err := parseRevisionRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(s.RevisionsPath(instrument)), i+1, err)
		}
		rev.Instrument = instrument
		out = append(out, rev)
	}
	return out, nil
}

func revisionRow(r Revision) []string {
	return []string{
		r.RevisedAt.UTC().Format(time.RFC3339),
		r.RunID,
		r.ReportDate.Format(domain.DateFormat),
		string(r.Category),
		string(r.PositionType),
		r.OldLong.String(),
		r.OldShort.String(),
		r.NewLong.String(),
		r.NewShort.String(),
		strconv.FormatBool(r.Removed),
	}
}

func parseRevisionRow(row []string) (Revision, error) {
	var rev Revision
	if len(row) < revisionColumns {
		return rev, fmt.Errorf("expected %d columns, got %d", len(RevisionHeaders), len(row))
	}

	var err error
	if rev.RevisedAt, err = time.Parse(time.RFC3339, row[0]); err != nil {
		return rev, fmt.Errorf("invalid revised_at %q: %w", row[0], err)
	}
	rev.RunID = row[1]
	if rev.ReportDate, err = time.Parse(domain.DateFormat, row[2]); err != nil {
		return rev, fmt.Errorf("invalid report_date %q: %w", row[2], err)
	}
	if rev.Category, err = domain.ParseCategory(row[3]); err != nil {
		return rev, err
	}
	if rev.PositionType, err = domain.ParsePositionType(row[4]); err != nil {
		return rev, err
	}

	values := []*decimal.Decimal{&rev.OldLong, &rev.OldShort, &rev.NewLong, &rev.NewShort}
	for i, dst := range values {
		cell := row[5+i]
		if *dst, err = decimal.NewFromString(cell); err != nil {
			return rev, fmt.Errorf("invalid %s %q: %w", RevisionHeaders[5+i], cell, err)
		}
	}
	if len(row) > revisionColumns && strings.TrimSpace(row[revisionColumns]) != "" {
		if rev.Removed, err = strconv.ParseBool(row[revisionColumns]); err != nil {
			return rev, fmt.Errorf("invalid removed %q: %w", row[revisionColumns], err)
		}
	}
	return rev, nil
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
