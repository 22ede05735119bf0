// Command btx runs and manages sentiment strategy backtests.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/etnz/backtest/cmd"
	"github.com/google/subcommands"
)

func main() {
	name := path.Base(os.Args[0])
	commander := subcommands.NewCommander(flag.CommandLine, name)
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	// answers shell completion requests and exits.
	cmd.Completion(commander).Complete(name)

	flag.Parse()
	cmd.SetupLogging()
	status := commander.Execute(context.Background())
	if err := cmd.WriteMetrics(); err != nil && status == subcommands.ExitSuccess {
		status = subcommands.ExitFailure
	}
	os.Exit(int(status))
}
