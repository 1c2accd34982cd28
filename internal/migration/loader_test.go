package migration_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/migration-ledger/internal/migration"
)

func TestDiscover(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup func(t *testing.T, root string)
		check func(t *testing.T, root string, ss []migration.Script, logs string)
	}{
		{
			name: "orders by category then number",
			setup: func(t *testing.T, root string) {
				t.Helper()
				writeScript(t, root, migration.CategoryFunctions, "001-x.sql", "SELECT 1;")
				writeScript(t, root, migration.CategorySchema, "002-y.sql", "SELECT 2;")
				writeScript(t, root, migration.CategorySchema, "001-z.sql", "SELECT 3;")
			},
			check: func(t *testing.T, _ string, ss []migration.Script, _ string) {
				t.Helper()
				require.Len(t, ss, 3)
				assert.Equal(t, []int{1001, 1002, 2001}, sequences(t, ss))
				assert.Equal(t, "001-z.sql", ss[0].DisplayName)
				assert.Equal(t, "002-y.sql", ss[1].DisplayName)
				assert.Equal(t, "001-x.sql", ss[2].DisplayName)
				assert.Equal(t, migration.CategoryFunctions, ss[2].Category)
			},
		},
		{
			name: "seed data comes last",
			setup: func(t *testing.T, root string) {
				t.Helper()
				writeScript(t, root, migration.CategorySeedData, "001-users.sql", "INSERT INTO users VALUES (1);")
				writeScript(t, root, migration.CategoryFunctions, "010-fn.sql", "SELECT 1;")
				writeScript(t, root, migration.CategorySchema, "900-late.sql", "SELECT 1;")
			},
			check: func(t *testing.T, _ string, ss []migration.Script, _ string) {
				t.Helper()
				assert.Equal(t, []int{1900, 2010, 3001}, sequences(t, ss))
			},
		},
		{
			name:  "missing locations are created and yield nothing",
			setup: func(t *testing.T, _ string) { t.Helper() },
			check: func(t *testing.T, root string, ss []migration.Script, _ string) {
				t.Helper()
				assert.Empty(t, ss)

				for _, c := range migration.Categories() {
					info, err := os.Stat(filepath.Join(root, string(c)))
					require.NoError(t, err)
					assert.True(t, info.IsDir())
				}
			},
		},
		{
			name: "malformed names are skipped with a warning",
			setup: func(t *testing.T, root string) {
				t.Helper()
				writeScript(t, root, migration.CategorySchema, "1-short.sql", "SELECT 1;")
				writeScript(t, root, migration.CategorySchema, "create_users.sql", "SELECT 1;")
				writeScript(t, root, migration.CategorySchema, "001-ok.sql", "SELECT 1;")
			},
			check: func(t *testing.T, _ string, ss []migration.Script, logs string) {
				t.Helper()
				require.Len(t, ss, 1)
				assert.Equal(t, "001-ok.sql", ss[0].DisplayName)
				assert.Contains(t, logs, "skipping script with malformed name")
				assert.Contains(t, logs, "1-short.sql")
				assert.Contains(t, logs, "create_users.sql")
			},
		},
		{
			name: "other extensions and directories are ignored silently",
			setup: func(t *testing.T, root string) {
				t.Helper()
				writeScript(t, root, migration.CategorySchema, "README.md", "# readme")
				writeScript(t, root, migration.CategorySchema, "001-notes.txt", "notes")
				require.NoError(t, os.MkdirAll(filepath.Join(root, "schema", "002-dir.sql"), 0o755))
			},
			check: func(t *testing.T, _ string, ss []migration.Script, logs string) {
				t.Helper()
				assert.Empty(t, ss)
				assert.NotContains(t, logs, "malformed")
			},
		},
		{
			name: "fingerprint covers raw bytes",
			setup: func(t *testing.T, root string) {
				t.Helper()
				writeScript(t, root, migration.CategorySchema, "001-a.sql", "  SELECT 1;  \n")
			},
			check: func(t *testing.T, root string, ss []migration.Script, _ string) {
				t.Helper()
				require.Len(t, ss, 1)
				assert.Equal(t, migration.Fingerprint([]byte("  SELECT 1;  \n")), ss[0].Fingerprint)
				assert.Equal(t, 1, ss[0].Number)
				assert.Equal(t, "a", ss[0].Description)
				assert.Equal(t, filepath.Join(root, "schema", "001-a.sql"), ss[0].Path)
			},
		},
		{
			name: "duplicate sequence numbers are kept and warned about",
			setup: func(t *testing.T, root string) {
				t.Helper()
				writeScript(t, root, migration.CategorySchema, "001-a.sql", "SELECT 1;")
				writeScript(t, root, migration.CategorySchema, "001-b.sql", "SELECT 2;")
			},
			check: func(t *testing.T, _ string, ss []migration.Script, logs string) {
				t.Helper()
				require.Len(t, ss, 2)
				assert.Equal(t, "001-a.sql", ss[0].DisplayName)
				assert.Contains(t, logs, "scripts share a sequence number")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()
			tt.setup(t, root)

			logs := new(bytes.Buffer)
			src := migration.NewSource(root, slog.New(slog.NewTextHandler(logs, nil)))

			ss, err := src.Discover()
			require.NoError(t, err)

			tt.check(t, root, ss, logs.String())
		})
	}
}

func TestDiscover_unreadableRoot_returnsError(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(root, []byte("x"), 0o644))

	_, err := migration.NewSource(root, nil).Discover()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating schema location")
}

func TestScan(t *testing.T) {
	t.Parallel()

	t.Run("missing root yields nothing and creates nothing", func(t *testing.T) {
		t.Parallel()

		root := filepath.Join(t.TempDir(), "absent")

		ss, err := migration.NewSource(root, nil).Scan()

		require.NoError(t, err)
		assert.Empty(t, ss)
		assert.NoDirExists(t, root)
	})

	t.Run("reads existing locations only", func(t *testing.T) {
		t.Parallel()

		root := t.TempDir()
		writeScript(t, root, migration.CategoryFunctions, "002-fn.sql", "SELECT 1;")

		ss, err := migration.NewSource(root, nil).Scan()

		require.NoError(t, err)
		require.Len(t, ss, 1)
		assert.Equal(t, 2002, ss[0].SequenceNumber)
		assert.NoDirExists(t, filepath.Join(root, string(migration.CategorySchema)))
		assert.NoDirExists(t, filepath.Join(root, string(migration.CategorySeedData)))
	})
}

func TestLocate(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeScript(t, root, migration.CategorySchema, "001-a.sql", "schema body")
	writeScript(t, root, migration.CategorySeedData, "001-a.sql", "seed body")
	writeScript(t, root, migration.CategorySeedData, "002-b.sql", "seed only")

	src := migration.NewSource(root, nil)

	content, ok, err := src.Locate("001-a.sql")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "schema body", string(content), "first category wins")

	content, ok, err = src.Locate("002-b.sql")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "seed only", string(content))

	_, ok, err = src.Locate("003-gone.sql")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = src.Locate("../schema/001-a.sql")
	require.NoError(t, err)
	assert.False(t, ok, "names with path separators never match")
}

func writeScript(t *testing.T, root string, c migration.Category, name, content string) {
	t.Helper()

	dir := filepath.Join(root, string(c))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
