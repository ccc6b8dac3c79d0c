package domain

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the wire and storage format for report dates
const DateFormat = "2006-01-02"

// Category is a trader classification defined by MiFID II RTS 21
type Category string

const (
	CategoryInvestmentFirms     Category = "investment_firms"
	CategoryInvestmentFunds     Category = "investment_funds"
	CategoryOtherFinancial      Category = "other_financial"
	CategoryCommercial          Category = "commercial"
	CategoryComplianceOperators Category = "compliance_operators"
	// CategoryTotal is the market-wide open interest used as the percentage denominator
	CategoryTotal Category = "total"
)

var categoryOrder = []Category{
	CategoryInvestmentFirms,
	CategoryInvestmentFunds,
	CategoryOtherFinancial,
	CategoryCommercial,
	CategoryComplianceOperators,
	CategoryTotal,
}

var categoryNames = map[Category]string{
	CategoryInvestmentFirms:     "Investment Firms",
	CategoryInvestmentFunds:     "Investment Funds",
	CategoryOtherFinancial:      "Other Financial",
	CategoryCommercial:          "Commercial",
	CategoryComplianceOperators: "Compliance Operators",
	CategoryTotal:               "Total",
}

// Categories returns every category in the regulation's reporting order
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// Ordinal returns the category's position in the reporting order, or -1 if unknown
func (c Category) Ordinal() int {
	for i, cat := range categoryOrder {
		if cat == c {
			return i
		}
	}
	return -1
}

// Valid reports whether c belongs to the closed enumeration
func (c Category) Valid() bool { return c.Ordinal() >= 0 }

// DisplayName returns the short human readable name
func (c Category) DisplayName() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return string(c)
}

// ParseCategory converts a stored category identifier back to a Category
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// PositionType partitions a category's positions by hedging intent
type PositionType string

const (
	PositionRiskReducing PositionType = "risk_reducing"
	PositionOther        PositionType = "other"
	PositionTotal        PositionType = "total"
)

var positionTypeOrder = []PositionType{PositionRiskReducing, PositionOther, PositionTotal}

// PositionTypes returns the position types in reporting order
func PositionTypes() []PositionType {
	out := make([]PositionType, len(positionTypeOrder))
	copy(out, positionTypeOrder)
	return out
}

// Ordinal returns the position type's position in the reporting order, or -1 if unknown
func (p PositionType) Ordinal() int {
	for i, pt := range positionTypeOrder {
		if pt == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p belongs to the closed enumeration
func (p PositionType) Valid() bool { return p.Ordinal() >= 0 }

// ParsePositionType converts a stored position type identifier back to a PositionType
func ParsePositionType(s string) (PositionType, error) {
	p := PositionType(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown position type %q", s)
	}
	return p, nil
}

// Side selects the long or short leg of a position
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// RecordKey identifies a record within one instrument's history
type RecordKey struct {
	ReportDate   time.Time
	Category     Category
	PositionType PositionType
}

// String renders the key for logs and error messages
func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ReportDate.Format(DateFormat), k.Category, k.PositionType)
}

// PositionRecord is one (instrument, report date, category, position type) observation
type PositionRecord struct {
	Instrument   string          `json:"instrument" validate:"required,instrument"`
	ReportDate   time.Time       `json:"report_date" validate:"required"`
	Category     Category        `json:"category" validate:"required"`
	PositionType PositionType    `json:"position_type" validate:"required"`
	Long         decimal.Decimal `json:"long"`
	Short        decimal.Decimal `json:"short"`
}

// Key returns the record's identity within its instrument
func (r PositionRecord) Key() RecordKey {
	return RecordKey{ReportDate: r.ReportDate, Category: r.Category, PositionType: r.PositionType}
}

// Net returns long minus short
func (r PositionRecord) Net() decimal.Decimal {
	return r.Long.Sub(r.Short)
}

// Value returns the long or short magnitude
func (r PositionRecord) Value(side Side) decimal.Decimal {
	if side == SideShort {
		return r.Short
	}
	return r.Long
}

// SameValues reports whether both records carry exactly the same magnitudes
func (r PositionRecord) SameValues(o PositionRecord) bool {
	return r.Long.Equal(o.Long) && r.Short.Equal(o.Short)
}

// Less orders records by report date, then category order, then position type order
func (r PositionRecord) Less(o PositionRecord) bool {
	if !r.ReportDate.Equal(o.ReportDate) {
		return r.ReportDate.Before(o.ReportDate)
	}
	if r.Category != o.Category {
		return r.Category.Ordinal() < o.Category.Ordinal()
	}
	return r.PositionType.Ordinal() < o.PositionType.Ordinal()
}

// Series is the ordered history of one instrument
type Series []PositionRecord

// Sort puts the series in canonical order
func (s Series) Sort() {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Less(s[j]) })
}

// Dates returns the distinct report dates in ascending order
func (s Series) Dates() []time.Time {
	var dates []time.Time
	seen := make(map[time.Time]bool)
	for _, r := range s {
		if !seen[r.ReportDate] {
			seen[r.ReportDate] = true
			dates = append(dates, r.ReportDate)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Categories returns the categories present in the series, in reporting order
func (s Series) Categories() []Category {
	present := make(map[Category]bool)
	for _, r := range s {
		present[r.Category] = true
	}
	var out []Category
	for _, c := range categoryOrder {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

// SnapshotMetadata is the key/value block printed above the position table
type SnapshotMetadata struct {
	TradingVenue        string    `json:"trading_venue,omitempty"`
	VenueIdentifier     string    `json:"venue_identifier,omitempty"`
	ReportDate          time.Time `json:"report_date,omitempty"`
	PublicationDateTime string    `json:"publication_datetime,omitempty"`
	ContractName        string    `json:"contract_name,omitempty"`
	ContractCode        string    `json:"contract_code,omitempty"`
	ReportStatus        string    `json:"report_status,omitempty"`
	ReportType          string    `json:"report_type,omitempty"`
}

// Snapshot is the normalized content of one source file; it is never persisted
type Snapshot struct {
	Instrument string           `json:"instrument"`
	Dates      []time.Time      `json:"dates"`
	Records    []PositionRecord `json:"records"`
	Metadata   SnapshotMetadata `json:"metadata"`
}

// DateRange is an inclusive range of report dates; a zero bound is open
type DateRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// Contains reports whether t lies within the range
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// PositionMetrics is a stored record annotated with its derived fields
type PositionMetrics struct {
	PositionRecord
	Net         decimal.Decimal     `json:"net"`
	LongChange  decimal.NullDecimal `json:"long_change"`
	ShortChange decimal.NullDecimal `json:"short_change"`
	NetChange   decimal.NullDecimal `json:"net_change"`
	LongPct     float64             `json:"long_pct"`
	ShortPct    float64             `json:"short_pct"`
}

// ReportDay truncates t to a UTC calendar day
func ReportDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
