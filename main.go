package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/awnumar/memguard"
	"github.com/posener/complete"
	"github.com/willabides/kongplete"

	"github.com/semmy-space/credstore/internal/cli"
	"github.com/semmy-space/credstore/internal/credstore"
	"github.com/semmy-space/credstore/internal/output"
)

var (
	version = "dev"
)

func main() {
	// Wipe locked secret buffers on SIGINT/SIGTERM and on normal exit
	memguard.CatchInterrupt()
	os.Exit(run())
}

func run() int {
	defer memguard.Purge()

	// Parse CLI
	cliInstance := &cli.CLI{}
	parser := kong.Must(cliInstance,
		kong.Name("credstore"),
		kong.Description("Store and retrieve credentials in the platform secure store"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)

	// Answer shell completion requests before parsing for real
	kongplete.Complete(parser,
		kongplete.WithPredictor("backend", complete.PredictSet(credstore.Names...)),
	)

	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	// Run command with bound dependencies
	err = ctx.Run()
	if flushErr := cliInstance.Flush(); flushErr != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", flushErr)
	}
	if err != nil {
		output.Report(output.New(cliInstance.ResolvedOutput()), err)
		return output.ExitCode(err)
	}
	return output.ExitOK
}
