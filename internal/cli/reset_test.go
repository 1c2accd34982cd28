package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/migration-ledger/internal/reset"
)

type recordingCatalog struct {
	objects []reset.Object
	dropped []string
}

func (c *recordingCatalog) Objects(context.Context) ([]reset.Object, error) {
	return c.objects, nil
}

func (c *recordingCatalog) Drop(_ context.Context, stmts []string) error {
	c.dropped = append(c.dropped, stmts...)
	return nil
}

func TestRunReset(t *testing.T) { //nolint:paralleltest // writes global AppConfig
	tests := []struct {
		name        string
		production  bool
		piped       bool
		input       string
		wantErr     error
		wantDropped int
		wantOpened  int
		wantOutput  string
	}{
		{
			name:        "confirmed",
			input:       "DROP EVERYTHING\n",
			wantDropped: 2,
			wantOpened:  1,
			wantOutput:  "Reset complete: 2 object(s) dropped.",
		},
		{
			name:       "declined",
			input:      "no\n",
			wantOutput: "Reset cancelled",
		},
		{
			name:       "production",
			production: true,
			input:      "DROP EVERYTHING\n",
			wantErr:    reset.ErrProductionGuard,
		},
		{
			name:    "piped confirmation",
			piped:   true,
			input:   "DROP EVERYTHING\n",
			wantErr: reset.ErrNotInteractive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Production = tt.production
			withConfig(t, cfg)
			withTerminal(t, !tt.piped)

			catalog := &recordingCatalog{objects: []reset.Object{
				{Kind: "TABLE", Name: "migration_ledger"},
				{Kind: "TABLE", Name: "users"},
			}}
			opened := withCatalog(t, catalog)

			cmd, buf := testCmd(nil)
			cmd.SetIn(strings.NewReader(tt.input))

			err := runReset(cmd, nil)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}

			assert.Len(t, catalog.dropped, tt.wantDropped)
			assert.Equal(t, tt.wantOpened, *opened)
			assert.Contains(t, buf.String(), tt.wantOutput)
		})
	}
}

func TestStdinIsTerminal_nonFileReader(t *testing.T) {
	t.Parallel()

	assert.False(t, stdinIsTerminal(strings.NewReader("DROP EVERYTHING\n")))
}
