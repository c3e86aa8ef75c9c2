package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/palletledger/backend/internal/application/ledger"
	"github.com/palletledger/backend/internal/application/sweep"
	"github.com/palletledger/backend/internal/domain/shared"
	"github.com/palletledger/backend/internal/infrastructure/feed"
	csvimport "github.com/palletledger/backend/internal/infrastructure/import"
	"github.com/spf13/cobra"
)

const maxImportErrors = 100

// backend is what the ledger commands need from a bootstrapped process
type backend interface {
	Sweep(ctx context.Context, from, to time.Time, autoSuggest bool) (*sweep.Report, error)
	ImportOutbound(ctx context.Context, inputs []ledger.ImportOutboundInput) *ledger.BatchImportResult
	Ingest(ctx context.Context, name string, r io.Reader) (*feed.IngestResult, error)
	Close(ctx context.Context) error
}

// migrator is the subset of migration.Migrator the migrate command drives
type migrator interface {
	Up() error
	Down() error
	Version() (uint, bool, error)
	Close() error
}

type (
	backendOpener  func(ctx context.Context, configPath string) (backend, error)
	migratorOpener func(ctx context.Context, configPath string) (migrator, error)
)

type cliFlags struct {
	config string
}

func newRootCmd(open backendOpener, openMig migratorOpener) *cobra.Command {
	flags := &cliFlags{}
	root := &cobra.Command{
		Use:           "palletctl",
		Short:         "Operate the pallet deposit ledger",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "Config file (default: ./config.toml)")

	root.AddCommand(
		newSweepCmd(flags, open),
		newImportCmd(flags, open),
		newIngestCmd(flags, open),
		newMigrateCmd(flags, openMig),
	)
	return root
}

func newSweepCmd(flags *cliFlags, open backendOpener) *cobra.Command {
	var from, to string
	var noSuggest bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile inbound documents emitted in a date window",
		Long: `Runs one reconciliation sweep over inbound documents emitted between --from and
--to (inclusive) and prints the run report as JSON. With --no-suggest exact matches
are reported but nothing is linked and no suggestions are written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dateFrom, dateTo, err := parseWindow(from, to)
			if err != nil {
				return err
			}
			b, err := open(cmd.Context(), flags.config)
			if err != nil {
				return err
			}
			defer b.Close(context.Background())

			report, err := b.Sweep(cmd.Context(), dateFrom, dateTo, !noSuggest)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First emission date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Last emission date, YYYY-MM-DD")
	cmd.Flags().BoolVar(&noSuggest, "no-suggest", false, "Report matches without linking or suggesting")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newImportCmd(flags *cliFlags, open backendOpener) *cobra.Command {
	var actor string

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Import ledger records from files",
	}
	outbound := &cobra.Command{
		Use:   "outbound FILE.csv",
		Short: "Import outbound documents from a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			parsed, err := csvimport.ParseOutboundDocuments(f, actor, maxImportErrors)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			b, err := open(cmd.Context(), flags.config)
			if err != nil {
				return err
			}
			defer b.Close(context.Background())

			res := b.ImportOutbound(cmd.Context(), parsed.Inputs())
			return printJSON(cmd.OutOrStdout(), outboundImportReport{
				TotalRows:   parsed.TotalRows,
				ParseErrors: parsed.Errors.Errors(),
				Result:      res,
			})
		},
	}
	outbound.Flags().StringVar(&actor, "actor", defaultActor(), "Actor recorded on imported documents")
	importCmd.AddCommand(outbound)
	return importCmd
}

type outboundImportReport struct {
	TotalRows   int                       `json:"total_rows"`
	ParseErrors []csvimport.RowError      `json:"parse_errors,omitempty"`
	Result      *ledger.BatchImportResult `json:"result"`
}

func newIngestCmd(flags *cliFlags, open backendOpener) *cobra.Command {
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "Store inbound documents for reconciliation",
	}
	candidates := &cobra.Command{
		Use:   "candidates FILE",
		Short: "Ingest inbound candidates from a CSV export, NF-e XML or ZIP of XML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			b, err := open(cmd.Context(), flags.config)
			if err != nil {
				return err
			}
			defer b.Close(context.Background())

			res, err := b.Ingest(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	ingestCmd.AddCommand(candidates)
	return ingestCmd
}

func newMigrateCmd(flags *cliFlags, open migratorOpener) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect the ledger schema",
	}

	run := func(fn func(cmd *cobra.Command, m migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			m, err := open(cmd.Context(), flags.config)
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(cmd, m)
		}
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE:  run(func(_ *cobra.Command, m migrator) error { return m.Up() }),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back all migrations",
			Args:  cobra.NoArgs,
			RunE:  run(func(_ *cobra.Command, m migrator) error { return m.Down() }),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: run(func(cmd *cobra.Command, m migrator) error {
				v, dirty, err := m.Version()
				if err != nil {
					return err
				}
				suffix := ""
				if dirty {
					suffix = " (dirty)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d%s\n", v, suffix)
				return nil
			}),
		},
	)
	return migrateCmd
}

func parseWindow(from, to string) (time.Time, time.Time, error) {
	dateFrom, err := time.Parse(time.DateOnly, from)
	if err != nil {
		return time.Time{}, time.Time{}, shared.Validation("--from %q is not a YYYY-MM-DD date", from)
	}
	dateTo, err := time.Parse(time.DateOnly, to)
	if err != nil {
		return time.Time{}, time.Time{}, shared.Validation("--to %q is not a YYYY-MM-DD date", to)
	}
	if dateTo.Before(dateFrom) {
		return time.Time{}, time.Time{}, shared.Validation("--to %s is before --from %s", to, from)
	}
	return dateFrom, dateTo, nil
}

func defaultActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "palletctl"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
