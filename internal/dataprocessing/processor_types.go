package dataprocessing

import (
	"io"

	"eexcot/pkg/contracts/domain"
)

// Processor defines the interface for snapshot processing operations
type Processor interface {
	// ProcessGrid parses and normalizes one instrument's report grid
	ProcessGrid(instrument string, grid [][]string, window *domain.DateRange) (*domain.Snapshot, error)

	// ProcessWorkbook parses and normalizes one instrument's xlsx report
	ProcessWorkbook(instrument string, r io.Reader, window *domain.DateRange) (*domain.Snapshot, error)
}

// ProcessingOptions configures processing behavior
type ProcessingOptions struct {
	Parser ParserOptions

	// Tolerance accepted between a reported total and risk_reducing + other.
	// Zero requires an exact match; DefaultOptions uses DefaultTolerance.
	Tolerance float64
}

// DefaultOptions returns default processing options
func DefaultOptions() ProcessingOptions {
	return ProcessingOptions{
		Parser:    DefaultParserOptions(),
		Tolerance: 0.5,
	}
}
