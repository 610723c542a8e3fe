package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/chronoshard/chronoshard/pkg/config"
	"github.com/chronoshard/chronoshard/pkg/convert"
	"github.com/chronoshard/chronoshard/pkg/graph"
	"github.com/chronoshard/chronoshard/pkg/prop"
	"github.com/chronoshard/chronoshard/pkg/storage"
)

// cliError carries the CLI exit code alongside the underlying error, so
// main can report 1 for I/O failures and 2 for parse failures without
// the ingest loop reaching for os.Exit directly.
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func ioErr(err error) error    { return &cliError{code: 1, err: err} }
func parseErr(err error) error { return &cliError{code: 2, err: err} }

// recordSrc, recordDst, recordTime and recordAmount are the column
// indexes of the `_,_,_,src,dst,t,_,amount,…` record layout.
const (
	recordSrc    = 3
	recordDst    = 4
	recordTime   = 5
	recordAmount = 7
	minRecordLen = recordAmount + 1
)

func newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <input.csv.gz>",
		Short: "Load a gzip-compressed CSV of timestamped edges into a graph",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngest,
	}
	cmd.Flags().String("save-to", "", "Path to write the resulting binary graph (save_to_file); not saved if omitted")
	cmd.Flags().Bool("persistent", false, "Open the graph as the persistent (deletion-capable) variant")
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg := config.LoadFromEnv()
	if persistent, _ := cmd.Flags().GetBool("persistent"); persistent {
		cfg.Storage.Persistent = persistent
	}

	f, err := os.Open(args[0])
	if err != nil {
		return ioErr(fmt.Errorf("ingest: %w", err))
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return ioErr(fmt.Errorf("ingest: %w", err))
	}
	defer gz.Close()

	g, err := graph.Open(cfg)
	if err != nil {
		return ioErr(fmt.Errorf("ingest: %w", err))
	}
	defer g.Close()

	n, err := ingestRecords(gz, g)
	if err != nil {
		return err
	}

	saveTo, _ := cmd.Flags().GetString("save-to")
	if saveTo != "" {
		if err := g.SaveToFile(saveTo); err != nil {
			return ioErr(fmt.Errorf("ingest: %w", err))
		}
	}
	fmt.Printf("ingested %d edge(s)\n", n)
	return nil
}

// ingestRecords reads CSV records from r and issues one AddEdge per
// record, classifying every failure as either an I/O error (reading the
// stream itself) or a parse error (a malformed field) for exit-code
// reporting.
func ingestRecords(r io.Reader, g *graph.Graph) (int, error) {
	csvReader := csv.NewReader(r)
	csvReader.FieldsPerRecord = -1

	n := 0
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, ioErr(fmt.Errorf("ingest: read record %d: %w", n+1, err))
		}
		if len(record) < minRecordLen {
			return n, parseErr(fmt.Errorf("ingest: record %d: want at least %d fields, got %d", n+1, minRecordLen, len(record)))
		}

		t, err := prop.ParseTimestamp(record[recordTime])
		if err != nil {
			return n, parseErr(fmt.Errorf("ingest: record %d: %w", n+1, err))
		}

		var opts []graph.EdgeOption
		if amount, ok := convert.ToProp(record[recordAmount]); ok {
			opts = append(opts, graph.WithProps(map[string]prop.Prop{"amount": amount}))
		}

		src := storage.StrID(record[recordSrc])
		dst := storage.StrID(record[recordDst])
		if err := g.AddEdge(src, dst, t, opts...); err != nil {
			return n, parseErr(fmt.Errorf("ingest: record %d: %w", n+1, err))
		}
		n++
	}
}
