package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"eexcot/internal/app"
	"eexcot/internal/config"
	"eexcot/internal/infrastructure"
	"eexcot/internal/middleware"
	"eexcot/internal/validation"
	"eexcot/pkg/contracts/domain"
)

// A command line run is short lived; global flags and writers are fine.
var (
	configFile = flag.String("config", "", "Path to the YAML configuration file (defaults to COT_CONFIG or ./config.yaml)")
	dataDir    = flag.String("data-dir", "", "Override the data directory")
	logLevel   = flag.String("log-level", "", "Override the log level (debug, info, warn, error)")
	rawOutput  = flag.Bool("raw", false, "Print plain markdown instead of rendering it for the terminal")

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if *configFile != "" {
		cfg, err = config.LoadFrom(*configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if *dataDir != "" {
		cfg.Paths.DataDir = *dataDir
		cfg.Paths.HistoryDir = ""
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	return cfg, nil
}

// openApp wires the application for a one-shot command. Logs go to stderr
// and the prometheus exporter stays off.
func openApp() (*app.Application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Telemetry.MetricsEnabled = false

	logger := infrastructure.NewLogger(stderr, cfg.Logging)
	return app.NewApplication(cfg, logger)
}

// run opens the application, hands it to fn and closes it
func run(ctx context.Context, fn func(context.Context, *app.Application) error) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.Close(context.Background())

	if err := fn(ctx, a); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func usageError(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitUsageError
}

// instrumentArgs normalizes and validates instrument codes given as arguments
func instrumentArgs(args []string) ([]string, error) {
	codes := make([]string, 0, len(args))
	for _, raw := range args {
		for _, part := range strings.Split(raw, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			code := validation.NormalizeInstrument(part)
			if !validation.ValidInstrument(code) {
				return nil, fmt.Errorf("invalid instrument code %q", part)
			}
			codes = append(codes, code)
		}
	}
	return codes, nil
}

// windowFlags are the -from and -to flags shared by several commands
type windowFlags struct {
	from, to string
}

func (w *windowFlags) register(f *flag.FlagSet) {
	f.StringVar(&w.from, "from", "", "First report date to include (YYYY-MM-DD)")
	f.StringVar(&w.to, "to", "", "Last report date to include (YYYY-MM-DD)")
}

func (w *windowFlags) window() (*domain.DateRange, error) {
	return middleware.ParseDateRange(w.from, w.to)
}

// printMarkdown renders md for the terminal unless -raw is set
func printMarkdown(md string) {
	if *rawOutput {
		fmt.Fprint(stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Fprint(stdout, out)
			return
		}
	}
	fmt.Fprint(stdout, md)
}
