package dataprocessing

import (
	"io"
	"log/slog"

	"github.com/shopspring/decimal"

	"eexcot/pkg/contracts/domain"
)

// SnapshotProcessor runs the layout parser and the record normalizer back to back
type SnapshotProcessor struct {
	parser     *Parser
	normalizer *Normalizer
}

var _ Processor = (*SnapshotProcessor)(nil)

// NewSnapshotProcessor creates a processor
func NewSnapshotProcessor(opts ProcessingOptions, logger *slog.Logger) *SnapshotProcessor {
	return &SnapshotProcessor{
		parser:     NewParser(opts.Parser, logger),
		normalizer: NewNormalizer(decimal.NewFromFloat(opts.Tolerance), logger),
	}
}

// Parser exposes the layout parser
func (s *SnapshotProcessor) Parser() *Parser { return s.parser }

// Normalizer exposes the record normalizer
func (s *SnapshotProcessor) Normalizer() *Normalizer { return s.normalizer }

// ProcessGrid parses and normalizes one grid
func (s *SnapshotProcessor) ProcessGrid(instrument string, grid [][]string, window *domain.DateRange) (*domain.Snapshot, error) {
	raw, err := s.parser.Parse(instrument, grid)
	if err != nil {
		return nil, err
	}
	return s.normalizer.Normalize(raw, window)
}

// ProcessWorkbook parses and normalizes one xlsx report
func (s *SnapshotProcessor) ProcessWorkbook(instrument string, r io.Reader, window *domain.DateRange) (*domain.Snapshot, error) {
	raw, err := s.parser.ParseWorkbook(instrument, r)
	if err != nil {
		return nil, err
	}
	return s.normalizer.Normalize(raw, window)
}
