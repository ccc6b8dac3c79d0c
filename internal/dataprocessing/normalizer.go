package dataprocessing

import (
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"eexcot/pkg/contracts/domain"
)

// DefaultTolerance absorbs rounding in the published totals
var DefaultTolerance = decimal.RequireFromString("0.5")

// Normalizer maps raw tuples onto the closed category / position type vocabulary
type Normalizer struct {
	// tolerance is the largest accepted |total - (risk_reducing + other)|
	tolerance decimal.Decimal
	logger    *slog.Logger
}

// NewNormalizer creates a normalizer. A zero tolerance demands totals that
// match risk_reducing + other exactly.
func NewNormalizer(tolerance decimal.Decimal, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		tolerance: tolerance.Abs(),
		logger:    logger.With(slog.String("component", "normalizer")),
	}
}

// triplet gathers the position types of one (date, category)
type triplet struct {
	date     time.Time
	category domain.Category
	row      int
	records  map[domain.PositionType]*domain.PositionRecord
}

// Normalize converts a raw snapshot into canonical records. The window may be nil.
func (n *Normalizer) Normalize(raw *RawSnapshot, window *domain.DateRange) (*domain.Snapshot, error) {
	snap, err := n.normalize(raw, window)
	if err != nil {
		return nil, withInstrument(err, raw.Instrument)
	}
	return snap, nil
}

func (n *Normalizer) normalize(raw *RawSnapshot, window *domain.DateRange) (*domain.Snapshot, error) {
	type tripletKey struct {
		date     time.Time
		category domain.Category
	}
	groups := make(map[tripletKey]*triplet)
	var order []tripletKey
	dropped := 0

	for _, r := range raw.Rows {
		category, ok := LookupCategory(r.CategoryLabel)
		if !ok {
			return nil, &UnknownCategoryError{Row: r.SourceRow, Label: r.CategoryLabel}
		}
		ptype, ok := LookupPositionType(r.PositionTypeLabel)
		if !ok {
			return nil, &UnknownPositionTypeError{Row: r.SourceRow, Label: r.PositionTypeLabel}
		}
		if window != nil && !window.Contains(r.Date) {
			dropped++
			continue
		}

		key := tripletKey{date: r.Date, category: category}
		g, exists := groups[key]
		if !exists {
			g = &triplet{
				date:     r.Date,
				category: category,
				row:      r.SourceRow,
				records:  make(map[domain.PositionType]*domain.PositionRecord, 3),
			}
			groups[key] = g
			order = append(order, key)
		}
		if _, dup := g.records[ptype]; dup {
			return nil, &LayoutError{Row: r.SourceRow, Date: r.Date,
				Reason: "duplicate " + string(category) + "/" + string(ptype) + " row"}
		}
		g.records[ptype] = &domain.PositionRecord{
			Instrument:   raw.Instrument,
			ReportDate:   r.Date,
			Category:     category,
			PositionType: ptype,
			Long:         r.Long,
			Short:        r.Short,
		}
	}

	if len(groups) == 0 {
		return nil, &LayoutError{Reason: "no report dates remain inside the requested window"}
	}
	if dropped > 0 {
		n.logger.Info("Dropped rows outside the report window",
			slog.String("instrument", raw.Instrument),
			slog.Int("dropped", dropped))
	}

	snap := &domain.Snapshot{
		Instrument: raw.Instrument,
		Metadata:   raw.Metadata,
	}
	dates := make(map[time.Time]bool)
	for _, key := range order {
		g := groups[key]
		if err := n.complete(g); err != nil {
			return nil, err
		}
		for _, ptype := range domain.PositionTypes() {
			if rec, ok := g.records[ptype]; ok {
				snap.Records = append(snap.Records, *rec)
			}
		}
		dates[g.date] = true
	}
	for d := range dates {
		snap.Dates = append(snap.Dates, d)
	}
	sort.Slice(snap.Dates, func(i, j int) bool { return snap.Dates[i].Before(snap.Dates[j]) })
	domain.Series(snap.Records).Sort()

	n.logger.Debug("Snapshot normalized",
		slog.String("instrument", raw.Instrument),
		slog.Int("dates", len(snap.Dates)),
		slog.Int("records", len(snap.Records)))

	return snap, nil
}

// complete enforces the all-or-total-only rule and reconciles totals
func (n *Normalizer) complete(g *triplet) error {
	rr, hasRR := g.records[domain.PositionRiskReducing]
	other, hasOther := g.records[domain.PositionOther]
	total, hasTotal := g.records[domain.PositionTotal]

	switch {
	case hasRR != hasOther:
		return &LayoutError{Row: g.row, Date: g.date,
			Reason: "category " + string(g.category) + " reports only one of risk_reducing/other"}
	case !hasRR:
		// total-only layout
		return nil
	case !hasTotal:
		g.records[domain.PositionTotal] = &domain.PositionRecord{
			Instrument:   rr.Instrument,
			ReportDate:   g.date,
			Category:     g.category,
			PositionType: domain.PositionTotal,
			Long:         rr.Long.Add(other.Long),
			Short:        rr.Short.Add(other.Short),
		}
		return nil
	}

	for _, side := range []domain.Side{domain.SideLong, domain.SideShort} {
		expected := rr.Value(side).Add(other.Value(side))
		actual := total.Value(side)
		if expected.Sub(actual).Abs().GreaterThan(n.tolerance) {
			return &ReconciliationError{
				Date:     g.date,
				Category: g.category,
				Side:     side,
				Expected: expected,
				Actual:   actual,
			}
		}
	}
	return nil
}

// CheckTotals reports the first stored triplet whose total does not reconcile
func CheckTotals(series domain.Series, tolerance decimal.Decimal) error {
	type key struct {
		date     time.Time
		category domain.Category
	}
	groups := make(map[key]map[domain.PositionType]domain.PositionRecord)
	for _, r := range series {
		k := key{r.ReportDate, r.Category}
		if groups[k] == nil {
			groups[k] = make(map[domain.PositionType]domain.PositionRecord, 3)
		}
		groups[k][r.PositionType] = r
	}
	for k, g := range groups {
		rr, okRR := g[domain.PositionRiskReducing]
		other, okOther := g[domain.PositionOther]
		total, okTotal := g[domain.PositionTotal]
		if !okRR || !okOther || !okTotal {
			continue
		}
		for _, side := range []domain.Side{domain.SideLong, domain.SideShort} {
			expected := rr.Value(side).Add(other.Value(side))
			if expected.Sub(total.Value(side)).Abs().GreaterThan(tolerance.Abs()) {
				return &ReconciliationError{
					Instrument: total.Instrument,
					Date:       k.date,
					Category:   k.category,
					Side:       side,
					Expected:   expected,
					Actual:     total.Value(side),
				}
			}
		}
	}
	return nil
}
