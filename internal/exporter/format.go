package exporter

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"eexcot/pkg/contracts/domain"
)

// formatDecimal renders a quantity without exponent or trailing zeros
func formatDecimal(d decimal.Decimal) string {
	return d.String()
}

// formatNullDecimal renders a change; a null change is an empty cell
func formatNullDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

// formatPct formats a [0,1] share with 6 decimal places
func formatPct(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}

// formatDate formats a report date for CSV output
func formatDate(t time.Time) string {
	return t.Format(domain.DateFormat)
}

// parseDecimal reads a quantity written by formatDecimal; empty is zero
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
