package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/migration-ledger/internal/executor"
	"github.com/aqasim81/migration-ledger/internal/migration"
	"github.com/aqasim81/migration-ledger/internal/runner"
)

var runCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "run",
	Short: "Verify applied migrations and apply pending ones",
	Long: `Create the ledger if needed, verify that every applied script is unchanged,
then apply pending scripts in order. Each script runs in its own transaction
together with its ledger record. The first failure stops the run.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	runCmd.Flags().Bool("dry-run", false, "show what would be applied without executing")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()
	ctx := commandContext(cmd.Context())
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	store, closeFn, err := openLedger(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer closeFn()

	source := migration.NewSource(cfg.MigrationsDir, appLogger())

	r := runner.New(store, source,
		runner.WithDryRun(dryRun),
		runner.WithLogger(appLogger()),
		runner.WithProgressCallback(progressPrinter(out)),
	)

	if dryRun {
		fmt.Fprintln(out, "\n--- DRY RUN (no changes will be made) ---")
	}

	summary, err := r.Run(ctx)
	if err != nil {
		return err
	}

	switch {
	case summary.Discovered == 0:
		fmt.Fprintln(out, "No migration files found.")
	case dryRun:
		fmt.Fprintf(out, "\nDry run complete: %d migration(s) would be applied, %d already applied.\n",
			summary.Pending, summary.Skipped)
	default:
		fmt.Fprintf(out, "\nRun complete: %d applied, %d skipped.\n", summary.Applied, summary.Skipped)
	}

	return nil
}

func progressPrinter(out io.Writer) func(executor.ProgressEvent) {
	inFlight := false

	return func(event executor.ProgressEvent) {
		switch event.Status {
		case executor.StatusStarting:
			fmt.Fprintf(out, "  Applying %s/%s ... ", event.Migration.Category, event.Migration.DisplayName)

			inFlight = true
		case executor.StatusCompleted:
			fmt.Fprintf(out, "done (%s)\n", event.Duration.Truncate(time.Millisecond))

			inFlight = false
		case executor.StatusSkipped:
			if inFlight {
				fmt.Fprintln(out, "already applied by another runner")

				inFlight = false
			}
		case executor.StatusPending:
			fmt.Fprintf(out, "  Would apply %s/%s\n", event.Migration.Category, event.Migration.DisplayName)
		case executor.StatusFailed:
			fmt.Fprintf(out, "FAILED\n")
			fmt.Fprintf(out, "    Error: %v\n", event.Error)

			inFlight = false
		}
	}
}
