package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"eexcot/internal/app"
)

type resetCmd struct {
	yes bool
}

func (*resetCmd) Name() string     { return "reset" }
func (*resetCmd) Synopsis() string { return "delete the stored history of instruments" }
func (*resetCmd) Usage() string {
	return `cot reset -yes <code>...

  Removes the history and revision log of each instrument. Archived report
  workbooks are kept, so import-dir can rebuild the history.
`
}

func (c *resetCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "Confirm the deletion")
}

func (c *resetCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	codes, err := instrumentArgs(f.Args())
	if err != nil {
		return usageError("%v", err)
	}
	if len(codes) == 0 {
		return usageError("no instrument given")
	}
	if !c.yes {
		return usageError("reset deletes stored history; pass -yes to confirm")
	}

	return run(ctx, func(ctx context.Context, a *app.Application) error {
		for _, code := range codes {
			if err := a.Series.Reset(ctx, code); err != nil {
				return fmt.Errorf("%s: %w", code, err)
			}
			fmt.Fprintf(stdout, "reset %s\n", code)
		}
		return nil
	})
}
