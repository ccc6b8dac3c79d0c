package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"eexcot/internal/dataprocessing"
	"eexcot/internal/services"
	"eexcot/pkg/contracts/domain"
)

func ingestMarkdown(results []services.IngestResult) string {
	var b strings.Builder
	b.WriteString("# Import\n\n")
	b.WriteString("| Source | Instrument | Dates | Inserted | Revised | Removed | Unchanged | Result |\n")
	b.WriteString("|---|---|---:|---:|---:|---:|---:|---|\n")
	for _, res := range results {
		status := "ok"
		if res.Failed() {
			status = "rejected: " + escapeCell(res.Err.Error())
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %d | %d | %s |\n",
			escapeCell(res.Source), res.Instrument, len(res.ReportDates),
			res.Merge.Inserted, res.Merge.Revised, res.Merge.Removed, res.Merge.Unchanged, status)
	}
	return b.String()
}

func instrumentsMarkdown(infos []services.InstrumentInfo) string {
	if len(infos) == 0 {
		return "No instrument history stored yet.\n"
	}
	var b strings.Builder
	b.WriteString("# Instruments\n\n")
	b.WriteString("| Instrument | First date | Latest date | Dates | Records | Categories |\n")
	b.WriteString("|---|---|---|---:|---:|---:|\n")
	for _, info := range infos {
		fmt.Fprintf(&b, "| %s | %s | %s | %d | %d | %d |\n",
			info.Instrument,
			info.FirstDate.Format(domain.DateFormat), info.LatestDate.Format(domain.DateFormat),
			info.Dates, info.Records, len(info.Categories))
	}
	return b.String()
}

func summaryMarkdown(s *dataprocessing.PositioningSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s positioning on %s\n\n", s.Instrument, s.ReportDate.Format(domain.DateFormat))
	fmt.Fprintf(&b, "Total long **%s**, total short **%s**, net **%s**\n\n",
		s.TotalLong, s.TotalShort, s.NetPosition)
	if len(s.NetRanking) > 0 {
		names := make([]string, len(s.NetRanking))
		for i, c := range s.NetRanking {
			names[i] = c.DisplayName()
		}
		fmt.Fprintf(&b, "Net long to net short: %s\n\n", strings.Join(names, ", "))
	}

	b.WriteString("| Category | Long | Short | Net | Long % | Short % | Long Δ | Short Δ | Net Δ |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|---:|---:|\n")
	for _, c := range s.Categories {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %.1f | %.1f | %s | %s | %s |\n",
			c.Name, c.Long, c.Short, c.Net, c.LongPct, c.ShortPct,
			signed(c.LongChange), signed(c.ShortChange), signed(c.NetChange))
	}
	return b.String()
}

func compareMarkdown(weeks int, cmp []dataprocessing.PeriodComparison) string {
	if len(cmp) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n## %d week comparison (%s to %s)\n\n", weeks,
		cmp[0].PastDate.Format(domain.DateFormat), cmp[0].CurrentDate.Format(domain.DateFormat))
	b.WriteString("| Category | Long Δ | Long Δ % | Short Δ | Short Δ % | Net Δ | Net Δ % |\n")
	b.WriteString("|---|---:|---:|---:|---:|---:|---:|\n")
	for _, c := range cmp {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			c.Category.DisplayName(),
			signedDecimal(c.LongChange), percent(c.LongPctChange),
			signedDecimal(c.ShortChange), percent(c.ShortPctChange),
			signedDecimal(c.NetChange), percent(c.NetPctChange))
	}
	return b.String()
}

func weeklyTotalsMarkdown(totals []dataprocessing.WeeklyTotal) string {
	if len(totals) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n## Open interest\n\n")
	b.WriteString("| Report date | Long | Short |\n")
	b.WriteString("|---|---:|---:|\n")
	for _, t := range totals {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", t.ReportDate.Format(domain.DateFormat), t.Long, t.Short)
	}
	return b.String()
}

func seriesMarkdown(ser *services.InstrumentSeries) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s series\n\n", ser.Instrument)
	if len(ser.Records) == 0 {
		b.WriteString("No records in the selected window.\n")
		return b.String()
	}
	b.WriteString("| Report date | Category | Position | Long | Short | Net | Long Δ | Short Δ | Net Δ |\n")
	b.WriteString("|---|---|---|---:|---:|---:|---:|---:|---:|\n")
	for _, r := range ser.Records {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			r.ReportDate.Format(domain.DateFormat), r.Category.DisplayName(), r.PositionType,
			r.Long, r.Short, r.Net,
			signed(r.LongChange), signed(r.ShortChange), signed(r.NetChange))
	}
	return b.String()
}

// signed renders a change with an explicit sign; an absent change is "-"
func signed(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return signedDecimal(d.Decimal)
}

func signedDecimal(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.String()
	}
	return d.String()
}

func percent(d decimal.NullDecimal) string {
	if !d.Valid {
		return "n/a"
	}
	return signedDecimal(d.Decimal.Round(1)) + "%"
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(s)
}
