package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"eexcot/internal/app"
	"eexcot/internal/services"
)

type exportCmd struct {
	format       string
	positionType string
	categories   string
	window       windowFlags
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the metrics series to the reports directory" }
func (*exportCmd) Usage() string {
	return `cot export [-format csv|xlsx] [-position-type t] [-category c,...] [-from d] [-to d] [<code>...]

  Writes <CODE>_report.csv or <CODE>_report.xlsx for each instrument, or for
  every stored instrument when none is given, and prints the file paths.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.format, "format", services.FormatCSV, "Output format: "+strings.Join(services.ExportFormats, ", "))
	f.StringVar(&c.positionType, "position-type", "", "Restrict to risk_reducing, other or total")
	f.StringVar(&c.categories, "category", "", "Restrict to these comma separated categories")
	c.window.register(f)
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	codes, err := instrumentArgs(f.Args())
	if err != nil {
		return usageError("%v", err)
	}
	q, err := seriesQuery(c.positionType, c.categories, &c.window)
	if err != nil {
		return usageError("%v", err)
	}

	return run(ctx, func(ctx context.Context, a *app.Application) error {
		if len(codes) == 0 {
			infos, err := a.Series.Instruments(ctx)
			if err != nil {
				return err
			}
			for _, info := range infos {
				codes = append(codes, info.Instrument)
			}
		}
		for _, code := range codes {
			path, err := a.Export.Export(ctx, code, c.format, q)
			if err != nil {
				return fmt.Errorf("%s: %w", code, err)
			}
			fmt.Fprintln(stdout, path)
		}
		return nil
	})
}
