package dataprocessing

import (
	"time"

	"github.com/shopspring/decimal"

	"eexcot/pkg/contracts/domain"
)

type seriesKey struct {
	category domain.Category
	ptype    domain.PositionType
}

// ComputeMetrics annotates every record of an instrument's series with net,
// week-over-week changes and share of open interest.
//
// Changes compare against the previous report date carrying the same
// (category, position type); the earliest record of each key has null changes.
// Percentages divide by the same-date (total, total) row and are 0 when that
// row is absent or zero. The input is not modified.
func ComputeMetrics(series domain.Series) []domain.PositionMetrics {
	if len(series) == 0 {
		return []domain.PositionMetrics{}
	}

	ordered := make(domain.Series, len(series))
	copy(ordered, series)
	ordered.Sort()

	openInterest := make(map[time.Time]domain.PositionRecord)
	for _, r := range ordered {
		if r.Category == domain.CategoryTotal && r.PositionType == domain.PositionTotal {
			openInterest[r.ReportDate] = r
		}
	}

	previous := make(map[seriesKey]domain.PositionRecord)
	out := make([]domain.PositionMetrics, 0, len(ordered))
	for _, r := range ordered {
		m := domain.PositionMetrics{
			PositionRecord: r,
			Net:            r.Net(),
		}

		key := seriesKey{r.Category, r.PositionType}
		if prev, ok := previous[key]; ok {
			m.LongChange = valid(r.Long.Sub(prev.Long))
			m.ShortChange = valid(r.Short.Sub(prev.Short))
			m.NetChange = valid(r.Net().Sub(prev.Net()))
		}
		previous[key] = r

		if oi, ok := openInterest[r.ReportDate]; ok {
			m.LongPct = share(r.Long, oi.Long)
			m.ShortPct = share(r.Short, oi.Short)
		}
		out = append(out, m)
	}
	return out
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// share returns part/whole clamped to [0,1]; a non-positive whole yields 0
func share(part, whole decimal.Decimal) float64 {
	if !whole.IsPositive() {
		return 0
	}
	f, _ := part.Div(whole).Float64()
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
