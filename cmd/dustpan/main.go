package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	app := &cli.App{
		Name:  "dustpan",
		Usage: "Solana dust consolidation and transfer CLI",
		Description: `A command-line tool for sweeping lamports out of throwaway accounts
into a single receiver, and for one-off transfers from the configured wallet.

Configuration comes from environment variables; run any command with missing
configuration to see what is required.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			sweepCommand(),
			transferCommand(),
			balanceCommand(),
			tokensCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
