package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aqasim81/migration-ledger/internal/migration"
	"github.com/aqasim81/migration-ledger/internal/runner"
)

var verifyCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "verify",
	Short: "Check applied migrations against their files",
	Long: `Recompute the fingerprint of every script the ledger records as completed
and compare it with the stored one. Nothing is executed. Exits non-zero when a
script is missing or was modified.`,
	Args: cobra.NoArgs,
	RunE: runVerify,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()
	ctx := commandContext(cmd.Context())

	store, closeFn, err := openLedger(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer closeFn()

	source := migration.NewSource(cfg.MigrationsDir, appLogger())

	report, err := runner.New(store, source, runner.WithLogger(appLogger())).Verify(ctx)
	if err != nil {
		return err
	}

	if report.OK() {
		fmt.Fprintf(out, "Verified %d applied migration(s): all intact.\n", report.Checked)
		return nil
	}

	fmt.Fprintf(out, "Verified %d applied migration(s): %d problem(s) found.\n",
		report.Checked, len(report.Violations))

	for _, v := range report.Violations {
		fmt.Fprintf(out, "  %s\n", v.Error())
	}

	return report.Err()
}
