package main

import (
	"context"
	"flag"
	"strings"

	"github.com/google/subcommands"

	"eexcot/internal/app"
	"eexcot/internal/services"
	"eexcot/pkg/contracts/domain"
)

type listCmd struct{}

func (*listCmd) Name() string             { return "list" }
func (*listCmd) Synopsis() string         { return "list the instruments with stored history" }
func (*listCmd) Usage() string            { return "cot list\n" }
func (*listCmd) SetFlags(_ *flag.FlagSet) {}

func (*listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app.Application) error {
		infos, err := a.Series.Instruments(ctx)
		if err != nil {
			return err
		}
		printMarkdown(instrumentsMarkdown(infos))
		return nil
	})
}

type showCmd struct {
	weeks        int
	totals       int
	series       bool
	positionType string
	categories   string
	window       windowFlags
}

func (*showCmd) Name() string     { return "show" }
func (*showCmd) Synopsis() string { return "print the positioning summary of an instrument" }
func (*showCmd) Usage() string {
	return `cot show [-weeks n] [-totals n] [-series [-position-type t] [-category c,...] [-from d] [-to d]] <code>

  Prints the latest positioning by category, the change over the last n
  weeks and the recent open interest. With -series, prints the derived
  metrics series instead.
`
}

func (c *showCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.weeks, "weeks", 4, "Weeks back for the period comparison")
	f.IntVar(&c.totals, "totals", 5, "Recent report dates of open interest to list")
	f.BoolVar(&c.series, "series", false, "Print the metrics series")
	f.StringVar(&c.positionType, "position-type", "", "Restrict the series to risk_reducing, other or total")
	f.StringVar(&c.categories, "category", "", "Restrict the series to these comma separated categories")
	c.window.register(f)
}

func (c *showCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return usageError("show takes exactly one instrument code")
	}
	codes, err := instrumentArgs(f.Args())
	if err != nil || len(codes) != 1 {
		return usageError("invalid instrument code %q", f.Arg(0))
	}
	code := codes[0]
	if c.weeks < 1 {
		return usageError("-weeks must be at least 1")
	}

	var q services.SeriesQuery
	if c.series {
		if q, err = c.query(); err != nil {
			return usageError("%v", err)
		}
	}

	return run(ctx, func(ctx context.Context, a *app.Application) error {
		if c.series {
			ser, err := a.Series.Series(ctx, code, q)
			if err != nil {
				return err
			}
			printMarkdown(seriesMarkdown(ser))
			return nil
		}

		summary, err := a.Series.Summary(ctx, code)
		if err != nil {
			return err
		}
		md := summaryMarkdown(summary)

		// Too little history for the comparison is not an error here
		if cmp, err := a.Series.Compare(ctx, code, c.weeks); err == nil {
			md += compareMarkdown(c.weeks, cmp)
		}
		if c.totals > 0 {
			analyzer, err := a.Series.Analyzer(ctx, code)
			if err != nil {
				return err
			}
			md += weeklyTotalsMarkdown(analyzer.WeeklyTotals(c.totals))
		}
		printMarkdown(md)
		return nil
	})
}

func (c *showCmd) query() (services.SeriesQuery, error) {
	return seriesQuery(c.positionType, c.categories, &c.window)
}

// seriesQuery builds a SeriesQuery from command line flags
func seriesQuery(positionType, categories string, w *windowFlags) (services.SeriesQuery, error) {
	var q services.SeriesQuery
	if positionType != "" {
		pt, err := domain.ParsePositionType(strings.ToLower(positionType))
		if err != nil {
			return q, err
		}
		q.PositionType = pt
	}
	for _, name := range strings.Split(categories, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		cat, err := domain.ParseCategory(strings.ToLower(name))
		if err != nil {
			return q, err
		}
		q.Categories = append(q.Categories, cat)
	}
	window, err := w.window()
	if err != nil {
		return q, err
	}
	q.Window = window
	return q, nil
}
