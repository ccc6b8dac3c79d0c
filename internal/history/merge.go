package history

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"eexcot/pkg/contracts/domain"
)

// canonicalKey truncates the report date to a UTC day so that keys from the
// parser and from storage compare equal
func canonicalKey(r domain.PositionRecord) domain.RecordKey {
	return domain.RecordKey{
		ReportDate:   domain.ReportDay(r.ReportDate),
		Category:     r.Category,
		PositionType: r.PositionType,
	}
}

// groupKey identifies the position type block of one category on one date
type groupKey struct {
	date     time.Time
	category domain.Category
}

// mergeRecords applies incoming onto existing with last-writer-wins per key.
// Each (date, category) block of incoming replaces the stored block as a
// whole: stored position types the incoming block no longer carries are
// dropped and logged as removals, so a total-only publication never leaves a
// stale risk reducing / other split behind its new total.
// Neither input is modified; the returned series is in canonical order.
func mergeRecords(existing domain.Series, incoming []domain.PositionRecord, revisedAt time.Time, runID string) (domain.Series, MergeResult) {
	var result MergeResult

	incomingTypes := make(map[groupKey]map[domain.PositionType]bool)
	for _, r := range incoming {
		g := groupKey{date: domain.ReportDay(r.ReportDate), category: r.Category}
		if incomingTypes[g] == nil {
			incomingTypes[g] = make(map[domain.PositionType]bool, 3)
		}
		incomingTypes[g][r.PositionType] = true
	}

	merged := make(domain.Series, 0, len(existing)+len(incoming))
	index := make(map[domain.RecordKey]int, len(existing)+len(incoming))
	knownDates := make(map[time.Time]bool)
	for _, r := range existing {
		r.ReportDate = domain.ReportDay(r.ReportDate)
		knownDates[r.ReportDate] = true
		if types, ok := incomingTypes[groupKey{date: r.ReportDate, category: r.Category}]; ok && !types[r.PositionType] {
			result.Removed++
			result.Revisions = append(result.Revisions, Revision{
				Instrument:   r.Instrument,
				RevisedAt:    revisedAt,
				RunID:        runID,
				ReportDate:   r.ReportDate,
				Category:     r.Category,
				PositionType: r.PositionType,
				OldLong:      r.Long,
				OldShort:     r.Short,
				NewLong:      decimal.Zero,
				NewShort:     decimal.Zero,
				Removed:      true,
			})
			continue
		}
		index[canonicalKey(r)] = len(merged)
		merged = append(merged, r)
	}

	newDates := make(map[time.Time]bool)
	for _, r := range incoming {
		r.ReportDate = domain.ReportDay(r.ReportDate)
		if result.Instrument == "" {
			result.Instrument = r.Instrument
		}
		key := canonicalKey(r)

		i, ok := index[key]
		switch {
		case !ok:
			index[key] = len(merged)
			merged = append(merged, r)
			result.Inserted++
			if !knownDates[r.ReportDate] {
				newDates[r.ReportDate] = true
			}
		case !merged[i].SameValues(r):
			old := merged[i]
			merged[i] = r
			result.Revised++
			result.Revisions = append(result.Revisions, Revision{
				Instrument:   r.Instrument,
				RevisedAt:    revisedAt,
				RunID:        runID,
				ReportDate:   r.ReportDate,
				Category:     r.Category,
				PositionType: r.PositionType,
				OldLong:      old.Long,
				OldShort:     old.Short,
				NewLong:      r.Long,
				NewShort:     r.Short,
			})
		default:
			result.Unchanged++
		}
	}

	for d := range newDates {
		result.NewDates = append(result.NewDates, d)
	}
	sort.Slice(result.NewDates, func(i, j int) bool { return result.NewDates[i].Before(result.NewDates[j]) })
	sort.SliceStable(result.Revisions, func(i, j int) bool {
		a, b := result.Revisions[i], result.Revisions[j]
		if !a.ReportDate.Equal(b.ReportDate) {
			return a.ReportDate.Before(b.ReportDate)
		}
		if a.Category != b.Category {
			return a.Category.Ordinal() < b.Category.Ordinal()
		}
		return a.PositionType.Ordinal() < b.PositionType.Ordinal()
	})

	merged.Sort()
	return merged, result
}
