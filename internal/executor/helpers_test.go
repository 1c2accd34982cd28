package executor_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aqasim81/migration-ledger/internal/migration"
)

// schemaScripts writes one schema script per body, numbered from 001.
func schemaScripts(t *testing.T, bodies ...string) []migration.Script {
	t.Helper()

	dir := t.TempDir()
	scripts := make([]migration.Script, 0, len(bodies))

	for i, body := range bodies {
		name := fmt.Sprintf("%03d-step.sql", i+1)
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		scripts = append(scripts, migration.Script{
			SequenceNumber: migration.SequenceNumber(migration.CategorySchema, i+1),
			Number:         i + 1,
			Description:    "step",
			DisplayName:    name,
			Category:       migration.CategorySchema,
			Fingerprint:    migration.Fingerprint([]byte(body)),
			Path:           path,
		})
	}

	return scripts
}
