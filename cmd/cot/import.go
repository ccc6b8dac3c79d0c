package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/subcommands"

	"eexcot/internal/app"
	"eexcot/internal/files"
	"eexcot/internal/services"
	"eexcot/internal/validation"
	"eexcot/pkg/contracts/domain"
)

type importCmd struct {
	instrument string
	noArchive  bool
	window     windowFlags
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "merge weekly report workbooks into the history" }
func (*importCmd) Usage() string {
	return `cot import [-i <code>] [-from <date>] [-to <date>] [-no-archive] <file.xlsx>...

  Parses each workbook and merges it into the instrument's history. Without
  -i the instrument is taken from the WPR_<date>_<CODE>_COMB_<stamp>.xlsx
  file name. Files are applied in the order given.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.instrument, "i", "", "Instrument code for every file")
	f.BoolVar(&c.noArchive, "no-archive", false, "Do not keep a copy in the downloads directory")
	c.window.register(f)
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		return usageError("no workbook given")
	}
	window, err := c.window.window()
	if err != nil {
		return usageError("%v", err)
	}

	var forced string
	if c.instrument != "" {
		codes, err := instrumentArgs([]string{c.instrument})
		if err != nil || len(codes) != 1 {
			return usageError("invalid instrument code %q", c.instrument)
		}
		forced = codes[0]
	}

	fv := validation.NewFileValidator(nil)
	plan := make([]importFile, 0, f.NArg())
	for _, path := range f.Args() {
		if err := fv.ValidateReportFile(path); err != nil {
			return usageError("%v", err)
		}
		code := forced
		if code == "" {
			rf, ok := files.ParseReportFilename(path)
			if !ok {
				return usageError("%s: cannot infer the instrument from the file name, use -i", path)
			}
			code = rf.Instrument
		}
		plan = append(plan, importFile{path: path, instrument: code})
	}

	return run(ctx, func(ctx context.Context, a *app.Application) error {
		return ingestFiles(ctx, a, plan, window, !c.noArchive)
	})
}

type importDirCmd struct {
	dir         string
	latest      bool
	all         bool
	instruments string
	window      windowFlags
}

func (*importDirCmd) Name() string     { return "import-dir" }
func (*importDirCmd) Synopsis() string { return "merge every report workbook found in a directory" }
func (*importDirCmd) Usage() string {
	return `cot import-dir [-dir <path>] [-latest] [-instruments DEBM,DEPM | -all] [-from <date>] [-to <date>]

  Replays the WPR_*.xlsx reports of a directory oldest first, so the most
  recent publication wins. Defaults to the downloads directory and the
  configured instruments.
`
}

func (c *importDirCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.dir, "dir", "", "Directory to scan (defaults to <data-dir>/downloads)")
	f.BoolVar(&c.latest, "latest", false, "Only import the most recent report of each instrument")
	f.BoolVar(&c.all, "all", false, "Import every instrument found, not only the configured ones")
	f.StringVar(&c.instruments, "instruments", "", "Comma separated instrument codes to import")
	c.window.register(f)
}

func (c *importDirCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	window, err := c.window.window()
	if err != nil {
		return usageError("%v", err)
	}
	wanted, err := instrumentArgs([]string{c.instruments})
	if err != nil {
		return usageError("%v", err)
	}

	return run(ctx, func(ctx context.Context, a *app.Application) error {
		dir := c.dir
		if dir == "" {
			dir = a.Paths.DownloadsDir
		}
		if !c.all && len(wanted) == 0 {
			wanted = a.Config.Ingest.Instruments
		}

		if err := validation.NewFileValidator(a.Logger).ValidateInputDirectory(dir, files.ReportGlob); err != nil {
			return err
		}
		reports, err := files.NewDiscovery("").FindReports(dir)
		if err != nil {
			return err
		}
		if !c.all {
			reports = files.FilterInstruments(reports, wanted)
		}
		if c.latest {
			reports = files.LatestPerInstrument(reports)
		}
		if len(reports) == 0 {
			fmt.Fprintf(stdout, "No report workbooks in %s\n", dir)
			return nil
		}

		plan := make([]importFile, len(reports))
		for i, rf := range reports {
			plan[i] = importFile{path: rf.Path, instrument: rf.Instrument}
		}
		// The files already live on disk; archiving would only duplicate them
		return ingestFiles(ctx, a, plan, window, false)
	})
}

type importFile struct {
	path       string
	instrument string
}

// ingestFiles runs the files through IngestAll, prints one line per file and
// reports the failures together
func ingestFiles(ctx context.Context, a *app.Application, plan []importFile, window *domain.DateRange, archive bool) error {
	reqs := make([]services.IngestRequest, 0, len(plan))
	for _, p := range plan {
		fh, err := os.Open(p.path)
		if err != nil {
			return err
		}
		defer fh.Close()
		reqs = append(reqs, services.IngestRequest{
			Instrument: p.instrument,
			Workbook:   fh,
			Window:     window,
			Source:     filepath.Base(p.path),
			Archive:    archive,
		})
	}

	results, err := a.Ingest.IngestAll(ctx, reqs)
	printMarkdown(ingestMarkdown(results))
	if err != nil {
		failed := 0
		for _, res := range results {
			if res.Failed() {
				failed++
			}
		}
		return fmt.Errorf("%d of %d reports rejected", failed, len(results))
	}
	return nil
}
