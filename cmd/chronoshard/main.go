// Package main provides the chronoshard CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chronoshard",
		Short: "chronoshard - sharded temporal property graph engine",
		Long: `chronoshard is the core of a temporal property graph engine: a
sharded in-memory store that ingests timestamped vertex/edge events,
indexes them for time-windowed queries, and runs parallel graph
algorithms over time-respecting views.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chronoshard v%s (%s)\n", version, commit)
		},
	})
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newIngestCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a command error to an exit code: 0 success, 1 I/O
// error, 2 parse error. Any error that isn't a *cliError (ingest's
// classified errors) falls back to 1.
func exitCodeFor(err error) int {
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return 1
}
