package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"strconv"

	"github.com/google/subcommands"

	"eexcot/internal/app"
)

type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serve the HTTP API" }
func (*serveCmd) Usage() string {
	return `cot serve [-addr host:port]

  Serves the history API, health checks and prometheus metrics until
  interrupted.
`
}

func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "Listen address, overriding the configured host and port")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.addr != "" {
		host, port, err := net.SplitHostPort(c.addr)
		if err != nil {
			return usageError("invalid -addr %q: %v", c.addr, err)
		}
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return usageError("invalid port in -addr %q", c.addr)
		}
		cfg.Server.Host, cfg.Server.Port = host, p
	}

	// nil logger: the server honours the configured log output
	a, err := app.NewApplication(cfg, nil)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	if err := a.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
