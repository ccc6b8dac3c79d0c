package dataprocessing

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"eexcot/pkg/contracts/domain"
)

// ErrNoData is returned by analyses that need at least one report date
var ErrNoData = errors.New("no positions stored for instrument")

var hundred = decimal.NewFromInt(100)

// Analyzer answers questions about one instrument's annotated series
type Analyzer struct {
	instrument string
	records    []domain.PositionMetrics
	dates      []time.Time
}

// NewAnalyzer wraps the output of ComputeMetrics. Records must be in series order.
func NewAnalyzer(instrument string, records []domain.PositionMetrics) *Analyzer {
	a := &Analyzer{instrument: instrument, records: records}
	seen := make(map[time.Time]bool)
	for _, r := range records {
		if !seen[r.ReportDate] {
			seen[r.ReportDate] = true
			a.dates = append(a.dates, r.ReportDate)
		}
	}
	sort.Slice(a.dates, func(i, j int) bool { return a.dates[i].Before(a.dates[j]) })
	return a
}

// Records returns the full annotated series
func (a *Analyzer) Records() []domain.PositionMetrics {
	return a.records
}

// LatestDate returns the most recent report date
func (a *Analyzer) LatestDate() (time.Time, bool) {
	if len(a.dates) == 0 {
		return time.Time{}, false
	}
	return a.dates[len(a.dates)-1], true
}

// CategoriesPresent lists the categories in the series in regulation order
func (a *Analyzer) CategoriesPresent() []domain.Category {
	present := make(map[domain.Category]bool)
	for _, r := range a.records {
		present[r.Category] = true
	}
	var out []domain.Category
	for _, c := range domain.Categories() {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

// At returns the records of one report date and position type in category order
func (a *Analyzer) At(date time.Time, ptype domain.PositionType) []domain.PositionMetrics {
	var out []domain.PositionMetrics
	for _, r := range a.records {
		if r.ReportDate.Equal(date) && r.PositionType == ptype {
			out = append(out, r)
		}
	}
	return out
}

// LatestPositions returns the latest date's records of one position type, largest net first
func (a *Analyzer) LatestPositions(ptype domain.PositionType) []domain.PositionMetrics {
	latest, ok := a.LatestDate()
	if !ok {
		return nil
	}
	out := a.At(latest, ptype)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Net.GreaterThan(out[j].Net)
	})
	return out
}

// Summary describes total positions at the latest report date
func (a *Analyzer) Summary() (*PositioningSummary, error) {
	latest, ok := a.LatestDate()
	if !ok {
		return nil, ErrNoData
	}

	summary := &PositioningSummary{
		Instrument:  a.instrument,
		ReportDate:  latest,
		TotalLong:   decimal.Zero,
		TotalShort:  decimal.Zero,
		NetPosition: decimal.Zero,
	}
	for _, r := range a.At(latest, domain.PositionTotal) {
		summary.Categories = append(summary.Categories, CategorySummary{
			Category:    r.Category,
			Name:        r.Category.DisplayName(),
			Long:        r.Long,
			Short:       r.Short,
			Net:         r.Net,
			LongChange:  r.LongChange,
			ShortChange: r.ShortChange,
			NetChange:   r.NetChange,
			LongPct:     r.LongPct,
			ShortPct:    r.ShortPct,
		})
		if r.Category == domain.CategoryTotal {
			continue
		}
		summary.TotalLong = summary.TotalLong.Add(r.Long)
		summary.TotalShort = summary.TotalShort.Add(r.Short)
		summary.NetPosition = summary.NetPosition.Add(r.Net)
	}
	for _, r := range a.LatestPositions(domain.PositionTotal) {
		if r.Category != domain.CategoryTotal {
			summary.NetRanking = append(summary.NetRanking, r.Category)
		}
	}
	return summary, nil
}

// ComparePeriods compares total positions at the latest date with weeksBack report dates earlier.
// When fewer dates are stored the earliest date is used.
func (a *Analyzer) ComparePeriods(weeksBack int) ([]PeriodComparison, error) {
	if len(a.dates) == 0 {
		return nil, ErrNoData
	}
	if weeksBack < 0 {
		weeksBack = 0
	}
	current := a.dates[len(a.dates)-1]
	pastIdx := len(a.dates) - 1 - weeksBack
	if pastIdx < 0 {
		pastIdx = 0
	}
	past := a.dates[pastIdx]

	pastByCategory := make(map[domain.Category]domain.PositionMetrics)
	for _, r := range a.At(past, domain.PositionTotal) {
		pastByCategory[r.Category] = r
	}

	var out []PeriodComparison
	for _, cur := range a.At(current, domain.PositionTotal) {
		old, ok := pastByCategory[cur.Category]
		if !ok {
			continue
		}
		cmp := PeriodComparison{
			Category:     cur.Category,
			CurrentDate:  current,
			PastDate:     past,
			CurrentLong:  cur.Long,
			CurrentShort: cur.Short,
			CurrentNet:   cur.Net,
			PastLong:     old.Long,
			PastShort:    old.Short,
			PastNet:      old.Net,
			LongChange:   cur.Long.Sub(old.Long),
			ShortChange:  cur.Short.Sub(old.Short),
			NetChange:    cur.Net.Sub(old.Net),
		}
		cmp.LongPctChange = percentChange(cmp.LongChange, old.Long)
		cmp.ShortPctChange = percentChange(cmp.ShortChange, old.Short)
		cmp.NetPctChange = percentChange(cmp.NetChange, old.Net.Abs())
		out = append(out, cmp)
	}
	return out, nil
}

// percentChange returns change/base*100 rounded to two places, or null for a zero base
func percentChange(change, base decimal.Decimal) decimal.NullDecimal {
	if base.IsZero() {
		return decimal.NullDecimal{}
	}
	return valid(change.Div(base).Mul(hundred).Round(2))
}

// RecentWeeks returns the records of one position type for the last n report dates, ascending
func (a *Analyzer) RecentWeeks(n int, ptype domain.PositionType) []domain.PositionMetrics {
	if n <= 0 || len(a.dates) == 0 {
		return nil
	}
	start := len(a.dates) - n
	if start < 0 {
		start = 0
	}
	from := a.dates[start]
	var out []domain.PositionMetrics
	for _, r := range a.records {
		if r.PositionType == ptype && !r.ReportDate.Before(from) {
			out = append(out, r)
		}
	}
	return out
}

// Between filters the series to an inclusive date range; zero bounds are open
func (a *Analyzer) Between(from, to time.Time) []domain.PositionMetrics {
	window := domain.DateRange{From: from, To: to}
	var out []domain.PositionMetrics
	for _, r := range a.records {
		if window.Contains(r.ReportDate) {
			out = append(out, r)
		}
	}
	return out
}

// WeeklyTotals returns the open interest for the last n report dates, ascending.
// n <= 0 returns every date.
func (a *Analyzer) WeeklyTotals(n int) []WeeklyTotal {
	if n <= 0 {
		n = len(a.dates)
	}
	var out []WeeklyTotal
	for _, r := range a.RecentWeeks(n, domain.PositionTotal) {
		if r.Category == domain.CategoryTotal {
			out = append(out, WeeklyTotal{ReportDate: r.ReportDate, Long: r.Long, Short: r.Short})
		}
	}
	return out
}
