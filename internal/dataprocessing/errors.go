package dataprocessing

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"eexcot/pkg/contracts/domain"
)

// Sentinels matched with errors.Is; every snapshot rejection wraps one of them.
var (
	ErrLayout              = errors.New("unparseable snapshot layout")
	ErrUnknownCategory     = errors.New("unknown category label")
	ErrUnknownPositionType = errors.New("unknown position type label")
	ErrReconciliation      = errors.New("position totals do not reconcile")
)

// LayoutError reports a structural problem in the source grid.
// Row is 1-based as displayed by spreadsheet tools; 0 means not row specific.
type LayoutError struct {
	Instrument string
	Row        int
	Date       time.Time
	Reason     string
}

func (e *LayoutError) Error() string {
	msg := "layout error"
	if e.Instrument != "" {
		msg += fmt.Sprintf(" [%s]", e.Instrument)
	}
	if e.Row > 0 {
		msg += fmt.Sprintf(" row %d", e.Row)
	}
	if !e.Date.IsZero() {
		msg += " date " + e.Date.Format(domain.DateFormat)
	}
	return msg + ": " + e.Reason
}

func (e *LayoutError) Unwrap() error { return ErrLayout }

// UnknownCategoryError reports a category label missing from the label table
type UnknownCategoryError struct {
	Instrument string
	Row        int
	Label      string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category label %q [%s] row %d", e.Label, e.Instrument, e.Row)
}

func (e *UnknownCategoryError) Unwrap() error { return ErrUnknownCategory }

// UnknownPositionTypeError reports a position type label missing from the label table
type UnknownPositionTypeError struct {
	Instrument string
	Row        int
	Label      string
}

func (e *UnknownPositionTypeError) Error() string {
	return fmt.Sprintf("unknown position type label %q [%s] row %d", e.Label, e.Instrument, e.Row)
}

func (e *UnknownPositionTypeError) Unwrap() error { return ErrUnknownPositionType }

// ReconciliationError reports total != risk_reducing + other beyond tolerance
type ReconciliationError struct {
	Instrument string
	Date       time.Time
	Category   domain.Category
	Side       domain.Side
	Expected   decimal.Decimal // risk_reducing + other
	Actual     decimal.Decimal // reported total
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("reconciliation failed [%s] %s %s %s: risk_reducing+other=%s total=%s",
		e.Instrument, e.Date.Format(domain.DateFormat), e.Category, e.Side,
		e.Expected.String(), e.Actual.String())
}

func (e *ReconciliationError) Unwrap() error { return ErrReconciliation }

// IsSnapshotRejection reports whether err rejected a snapshot before it reached the store
func IsSnapshotRejection(err error) bool {
	return errors.Is(err, ErrLayout) ||
		errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrUnknownPositionType) ||
		errors.Is(err, ErrReconciliation)
}

func layoutErrorf(row int, format string, args ...any) *LayoutError {
	return &LayoutError{Row: row, Reason: fmt.Sprintf(format, args...)}
}
