package dataprocessing

import (
	"time"

	"github.com/shopspring/decimal"

	"eexcot/pkg/contracts/domain"
)

// CategorySummary is one category's total position at the latest report date
type CategorySummary struct {
	Category    domain.Category     `json:"category"`
	Name        string              `json:"name"`
	Long        decimal.Decimal     `json:"long"`
	Short       decimal.Decimal     `json:"short"`
	Net         decimal.Decimal     `json:"net"`
	LongChange  decimal.NullDecimal `json:"long_change"`
	ShortChange decimal.NullDecimal `json:"short_change"`
	NetChange   decimal.NullDecimal `json:"net_change"`
	LongPct     float64             `json:"long_pct"`
	ShortPct    float64             `json:"short_pct"`
}

// PositioningSummary describes the latest report date of one instrument.
// Sums exclude the open interest category.
type PositioningSummary struct {
	Instrument  string            `json:"instrument"`
	ReportDate  time.Time         `json:"report_date"`
	TotalLong   decimal.Decimal   `json:"total_long"`
	TotalShort  decimal.Decimal   `json:"total_short"`
	NetPosition decimal.Decimal   `json:"net_position"`
	Categories  []CategorySummary `json:"categories"`
	// NetRanking orders the categories by net position, largest first
	NetRanking []domain.Category `json:"net_ranking"`
}

// PeriodComparison compares a category's total position between two report dates.
// Percent changes are null when the past value is zero.
type PeriodComparison struct {
	Category       domain.Category     `json:"category"`
	CurrentDate    time.Time           `json:"current_date"`
	PastDate       time.Time           `json:"past_date"`
	CurrentLong    decimal.Decimal     `json:"current_long"`
	CurrentShort   decimal.Decimal     `json:"current_short"`
	CurrentNet     decimal.Decimal     `json:"current_net"`
	PastLong       decimal.Decimal     `json:"past_long"`
	PastShort      decimal.Decimal     `json:"past_short"`
	PastNet        decimal.Decimal     `json:"past_net"`
	LongChange     decimal.Decimal     `json:"long_change"`
	ShortChange    decimal.Decimal     `json:"short_change"`
	NetChange      decimal.Decimal     `json:"net_change"`
	LongPctChange  decimal.NullDecimal `json:"long_pct_change"`
	ShortPctChange decimal.NullDecimal `json:"short_pct_change"`
	NetPctChange   decimal.NullDecimal `json:"net_pct_change"`
}

// WeeklyTotal is the open interest reported for one date
type WeeklyTotal struct {
	ReportDate time.Time       `json:"report_date"`
	Long       decimal.Decimal `json:"long"`
	Short      decimal.Decimal `json:"short"`
}
