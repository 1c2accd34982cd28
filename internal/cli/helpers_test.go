package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/migration-ledger/internal/config"
	"github.com/aqasim81/migration-ledger/internal/ledger/ledgertest"
	"github.com/aqasim81/migration-ledger/internal/reset"
	"github.com/aqasim81/migration-ledger/internal/runner"
)

// withConfig installs cfg as AppConfig for the duration of the test.
func withConfig(t *testing.T, cfg *config.Config) {
	t.Helper()

	old := AppConfig
	AppConfig = cfg
	t.Cleanup(func() { AppConfig = old })
}

// withLedger routes openLedger to an in-memory store.
func withLedger(t *testing.T, store *ledgertest.Store) *int {
	t.Helper()

	opened := 0
	old := openLedger
	openLedger = func(context.Context, *config.Config, io.Writer) (runner.Store, func(), error) {
		opened++
		return store, func() {}, nil
	}
	t.Cleanup(func() { openLedger = old })

	return &opened
}

// withCatalog routes openCatalog to c and counts connections.
func withCatalog(t *testing.T, c reset.Catalog) *int {
	t.Helper()

	opened := 0
	old := openCatalog
	openCatalog = func(context.Context, *config.Config, io.Writer) (reset.Catalog, func(), error) {
		opened++
		return c, func() {}, nil
	}
	t.Cleanup(func() { openCatalog = old })

	return &opened
}

// withTerminal makes the reset terminal check report interactive.
func withTerminal(t *testing.T, interactive bool) {
	t.Helper()

	old := isTerminal
	isTerminal = func(io.Reader) bool { return interactive }
	t.Cleanup(func() { isTerminal = old })
}

func testCmd(setup func(*cobra.Command)) (*cobra.Command, *bytes.Buffer) {
	buf := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetContext(context.Background())

	if setup != nil {
		setup(cmd)
	}

	return cmd, buf
}

func writeScript(t *testing.T, root, category, name, content string) string {
	t.Helper()

	dir := filepath.Join(root, category)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.New()
	cfg.MigrationsDir = t.TempDir()

	return cfg
}
