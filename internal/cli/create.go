package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqasim81/migration-ledger/internal/migration"
)

var createCmd = &cobra.Command{ //nolint:gochecknoglobals // standard Cobra pattern
	Use:   "create",
	Short: "Create a new migration script",
	Long: `Write a template script into the directory of the chosen category, numbered
one past the highest existing script there.`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

func init() { //nolint:gochecknoinits // standard Cobra pattern for flag registration
	createCmd.Flags().String("name", "", "short description of the migration (required)")
	createCmd.Flags().String("type", "", "category: "+categoryList())
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, _ []string) error {
	cfg := AppConfig

	name, _ := cmd.Flags().GetString("name")
	if strings.TrimSpace(name) == "" {
		return migration.ErrNameRequired
	}

	typ, _ := cmd.Flags().GetString("type")

	category, err := migration.ParseCategory(typ)
	if err != nil {
		return err
	}

	source := migration.NewSource(cfg.MigrationsDir, appLogger())

	script, err := source.Create(category, name, time.Now())
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s (sequence %d)\n", script.Path, script.SequenceNumber)

	return nil
}

func categoryList() string {
	names := make([]string, 0, len(migration.Categories()))
	for _, c := range migration.Categories() {
		names = append(names, string(c))
	}

	return strings.Join(names, ", ")
}
