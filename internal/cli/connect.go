package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aqasim81/migration-ledger/internal/config"
	"github.com/aqasim81/migration-ledger/internal/database"
	"github.com/aqasim81/migration-ledger/internal/ledger"
	"github.com/aqasim81/migration-ledger/internal/reset"
	"github.com/aqasim81/migration-ledger/internal/runner"
)

// errDatabaseURLRequired is returned when no database URL is configured.
var errDatabaseURLRequired = errors.New( //nolint:gochecknoglobals // sentinel error
	"database URL is required (set --database-url, MIGRATE_DATABASE_URL, or database_url in config)",
)

// openLedger and openCatalog are replaced in tests.
var (
	openLedger  = openPgLedger  //nolint:gochecknoglobals // test seam
	openCatalog = openPgCatalog //nolint:gochecknoglobals // test seam
)

func openPgLedger(ctx context.Context, cfg *config.Config, out io.Writer) (runner.Store, func(), error) {
	pool, err := connectDB(ctx, cfg, out)
	if err != nil {
		return nil, nil, err
	}

	return ledger.NewStore(pool), pool.Close, nil
}

func openPgCatalog(ctx context.Context, cfg *config.Config, out io.Writer) (reset.Catalog, func(), error) {
	pool, err := connectDB(ctx, cfg, out)
	if err != nil {
		return nil, nil, err
	}

	return reset.NewCatalog(pool), pool.Close, nil
}

func connectDB(ctx context.Context, cfg *config.Config, out io.Writer) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, errDatabaseURLRequired
	}

	fmt.Fprintf(out, "Connecting to %s\n", config.RedactURL(cfg.DatabaseURL))

	pool, err := database.NewPool(ctx, cfg.DatabaseURL,
		database.WithLockTimeout(cfg.LockTimeout),
		database.WithStatementTimeout(cfg.StatementTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return pool, nil
}

func commandContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}

	return ctx
}
