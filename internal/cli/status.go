package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/migration-ledger/internal/migration"
	"github.com/aqasim81/migration-ledger/internal/runner"
)

// errUnknownFormat is returned for an unsupported --format value.
var errUnknownFormat = errors.New("unknown output format (want text or json)")

var statusCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "status",
	Short: "Show migration status",
	Long: `Display every discovered script in execution order with its ledger state:
completed (with timestamp), failed (with error detail), or pending.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	statusCmd.Flags().String("format", "", "output format (text, json); defaults to config format")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()
	ctx := commandContext(cmd.Context())

	format := cfg.Format
	if cmd.Flags().Changed("format") {
		format, _ = cmd.Flags().GetString("format")
	}

	if format != "text" && format != "json" {
		return fmt.Errorf("%w: %q", errUnknownFormat, format)
	}

	// JSON output stays machine-readable.
	banner := out
	if format == "json" {
		banner = io.Discard
	}

	store, closeFn, err := openLedger(ctx, cfg, banner)
	if err != nil {
		return err
	}
	defer closeFn()

	source := migration.NewSource(cfg.MigrationsDir, appLogger())

	entries, err := runner.New(store, source, runner.WithLogger(appLogger())).Status(ctx)
	if err != nil {
		return err
	}

	if format == "json" {
		return printStatusJSON(out, entries)
	}

	printStatusTable(out, entries)

	return nil
}

func printStatusJSON(out io.Writer, entries []runner.StatusEntry) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")

	if err := enc.Encode(entries); err != nil {
		return fmt.Errorf("encoding status: %w", err)
	}

	return nil
}

func printStatusTable(out io.Writer, entries []runner.StatusEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(out, "No migration files found.")
		return
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tSCRIPT\tCATEGORY\tSTATE\tDETAIL")

	counts := make(map[string]int)

	for _, e := range entries {
		counts[e.State]++

		detail := ""
		switch e.State {
		case runner.StateCompleted:
			if e.ExecutedAt != nil {
				detail = e.ExecutedAt.Local().Format(time.DateTime)
			}
		case runner.StateFailed:
			detail = e.ErrorDetail
		}

		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", e.SequenceNumber, e.DisplayName, e.Category, e.State, detail)
	}

	tw.Flush()

	fmt.Fprintf(out, "\n%d completed, %d failed, %d pending.\n",
		counts[runner.StateCompleted], counts[runner.StateFailed], counts[runner.StatePending])
}
