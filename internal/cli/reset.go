package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aqasim81/migration-ledger/internal/reset"
)

var resetCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "reset",
	Short: "Drop every object in the schema (development only)",
	Long: `Drop all tables, views, sequences, extensions, functions, and types in the current
schema, including the migration ledger. Refuses to run when the production flag
is set (MIGRATE_PRODUCTION or production: true) and asks for typed confirmation.
Standard input must be an interactive terminal; piped confirmation is refused.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

// isTerminal reports whether the reader is an interactive terminal.
var isTerminal = stdinIsTerminal //nolint:gochecknoglobals // replaced in tests

func stdinIsTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)

	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // file descriptors fit in int
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig
	out := cmd.OutOrStdout()
	ctx := commandContext(cmd.Context())

	r := reset.New(
		reset.WithProduction(cfg.Production),
		reset.WithTerminalCheck(isTerminal),
		reset.WithLogger(appLogger()),
	)

	if err := r.Confirm(cmd.InOrStdin(), out); err != nil {
		if errors.Is(err, reset.ErrConfirmationDeclined) {
			fmt.Fprintln(out, "\nReset cancelled. Nothing was changed.")
			return nil
		}

		return err
	}

	catalog, closeFn, err := openCatalog(ctx, cfg, out)
	if err != nil {
		return err
	}
	defer closeFn()

	stmts, err := r.Drop(ctx, catalog)
	if err != nil {
		return err
	}

	for _, stmt := range stmts {
		fmt.Fprintf(out, "  %s\n", stmt)
	}

	fmt.Fprintf(out, "Reset complete: %d object(s) dropped.\n", len(stmts))

	return nil
}
