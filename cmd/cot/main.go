// Command cot ingests EEX Commitment of Traders weekly reports into a local
// history and reports on it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/google/subcommands"

	"eexcot/pkg/contracts"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

func register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")
	c.Register(&versionCmd{}, "")

	c.Register(&importCmd{}, "ingestion")
	c.Register(&importDirCmd{}, "ingestion")
	c.Register(&resetCmd{}, "ingestion")

	c.Register(&listCmd{}, "reporting")
	c.Register(&showCmd{}, "reporting")
	c.Register(&exportCmd{}, "reporting")

	c.Register(&serveCmd{}, "server")
}

type versionCmd struct{}

func (*versionCmd) Name() string             { return "version" }
func (*versionCmd) Synopsis() string         { return "print the version" }
func (*versionCmd) Usage() string            { return "cot version\n" }
func (*versionCmd) SetFlags(_ *flag.FlagSet) {}

func (*versionCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Fprintln(stdout, contracts.GetFullVersionString())
	return subcommands.ExitSuccess
}
