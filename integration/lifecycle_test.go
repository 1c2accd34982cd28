//go:build integration

package integration

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aqasim81/migration-ledger/internal/executor"
	"github.com/aqasim81/migration-ledger/internal/integrity"
	"github.com/aqasim81/migration-ledger/internal/ledger"
	"github.com/aqasim81/migration-ledger/internal/migration"
	"github.com/aqasim81/migration-ledger/internal/runner"
)

func TestRun_fullLifecycle(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	root := t.TempDir()

	writeScript(t, root, "schema", "001-users.sql",
		"CREATE TABLE users (id SERIAL PRIMARY KEY, name TEXT NOT NULL);")
	writeScript(t, root, "functions", "001-user-count.sql",
		`CREATE FUNCTION user_count() RETURNS bigint LANGUAGE sql AS $$ SELECT count(*) FROM users $$;`)
	writeScript(t, root, "seed-data", "001-admin.sql",
		"INSERT INTO users (name) VALUES ('admin');")
	writeScript(t, root, "schema", "002-posts.sql",
		"CREATE TABLE posts (id SERIAL PRIMARY KEY, user_id INTEGER REFERENCES users(id));")

	store := ledger.NewStore(pool)
	r := runner.New(store, migration.NewSource(root, nil))

	summary, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Applied)

	completed, err := store.ListCompleted(ctx)
	require.NoError(t, err)
	require.Len(t, completed, 4)
	assert.Equal(t, []int{1001, 1002, 2001, 3001}, []int{
		completed[0].SequenceNumber, completed[1].SequenceNumber,
		completed[2].SequenceNumber, completed[3].SequenceNumber,
	})

	var count int64
	require.NoError(t, pool.QueryRow(ctx, "SELECT user_count()").Scan(&count))
	assert.Equal(t, int64(1), count)

	summary, err = r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Applied)
	assert.Equal(t, 4, summary.Skipped)

	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM users").Scan(&count))
	assert.Equal(t, int64(1), count, "seed data must not be inserted twice")
}

func TestRun_failFastAndRetry(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	root := t.TempDir()

	writeScript(t, root, "schema", "001-s1.sql", "CREATE TABLE s1 (id INT);")
	s2 := writeScript(t, root, "schema", "002-s2.sql", "CREATE TABLE s2 (id INT); CREATE TABLEE oops();")
	writeScript(t, root, "schema", "003-s3.sql", "CREATE TABLE s3 (id INT);")

	store := ledger.NewStore(pool)
	r := runner.New(store, migration.NewSource(root, nil))

	_, err := r.Run(ctx)
	require.ErrorIs(t, err, executor.ErrExecutionFailed)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusCompleted, all[1001].Status)
	assert.Equal(t, ledger.StatusFailed, all[1002].Status)
	require.NotNil(t, all[1002].ErrorDetail)
	assert.Contains(t, *all[1002].ErrorDetail, "TABLEE")
	assert.NotContains(t, all, 1003)

	assert.True(t, tableExists(t, pool, "s1"))
	assert.False(t, tableExists(t, pool, "s2"), "the failed script must be rolled back")

	require.NoError(t, os.WriteFile(s2, []byte("CREATE TABLE s2 (id INT);"), 0o644))

	summary, err := r.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Applied)
	assert.Equal(t, 1, summary.Skipped)

	all, err = store.ListAll(ctx)
	require.NoError(t, err)

	for _, seq := range []int{1001, 1002, 1003} {
		assert.Equal(t, ledger.StatusCompleted, all[seq].Status, "sequence %d", seq)
	}

	assert.Nil(t, all[1002].ErrorDetail)
}

func TestRun_tamperDetection(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	root := t.TempDir()

	a := writeScript(t, root, "schema", "001-a.sql", "CREATE TABLE a (id INT);")

	store := ledger.NewStore(pool)
	r := runner.New(store, migration.NewSource(root, nil))

	_, err := r.Run(ctx)
	require.NoError(t, err)

	h1 := migration.Fingerprint([]byte("CREATE TABLE a (id INT);"))
	require.NoError(t, os.WriteFile(a, []byte("CREATE TABLE a (id BIGINT);"), 0o644))
	h2 := migration.Fingerprint([]byte("CREATE TABLE a (id BIGINT);"))
	writeScript(t, root, "schema", "002-b.sql", "CREATE TABLE b (id INT);")

	report, err := r.Verify(ctx)
	require.NoError(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, h1, report.Violations[0].Expected)
	assert.Equal(t, h2, report.Violations[0].Actual)

	_, err = r.Run(ctx)
	require.ErrorIs(t, err, integrity.ErrTamperedScript)
	assert.Contains(t, err.Error(), "001-a.sql")
	assert.Contains(t, err.Error(), h1)
	assert.Contains(t, err.Error(), h2)
	assert.False(t, tableExists(t, pool, "b"))
}

func TestRun_nonTransactionalScriptRejected(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	root := t.TempDir()

	writeScript(t, root, "schema", "001-t.sql", "CREATE TABLE t (c INT);")
	writeScript(t, root, "schema", "002-idx.sql", "CREATE INDEX CONCURRENTLY idx_t_c ON t (c);")

	store := ledger.NewStore(pool)

	_, err := runner.New(store, migration.NewSource(root, nil)).Run(ctx)
	require.ErrorIs(t, err, executor.ErrNonTransactional)

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, all[1002].Status)
}

func TestRun_concurrentRunnersApplyOnce(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	root := t.TempDir()

	writeScript(t, root, "schema", "001-counter.sql", "CREATE TABLE counter (n INT);")
	writeScript(t, root, "seed-data", "001-tick.sql", "INSERT INTO counter VALUES (1);")

	store := ledger.NewStore(pool)
	require.NoError(t, store.EnsureSchema(ctx))

	const runners = 3

	var wg sync.WaitGroup

	errs := make([]error, runners)
	applied := make([]int, runners)

	for i := range runners {
		wg.Add(1)

		go func() {
			defer wg.Done()

			s, err := runner.New(store, migration.NewSource(root, nil)).Run(ctx)
			applied[i], errs[i] = s.Applied, err
		}()
	}

	wg.Wait()

	total := 0

	for i := range runners {
		require.NoError(t, errs[i])
		total += applied[i]
	}

	assert.Equal(t, 2, total)

	var n int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM counter").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestRun_readOnlyFlowsOnFreshDatabase(t *testing.T) {
	t.Parallel()

	pool := SetupPostgres(t)
	ctx := context.Background()
	root := t.TempDir()

	writeScript(t, root, "schema", "001-users.sql", "CREATE TABLE users (id SERIAL PRIMARY KEY);")

	store := ledger.NewStore(pool)

	entries, err := runner.New(store, migration.NewSource(root, nil)).Status(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, runner.StatePending, entries[0].State)

	report, err := runner.New(store, migration.NewSource(root, nil)).Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())

	summary, err := runner.New(store, migration.NewSource(root, nil), runner.WithDryRun(true)).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Pending)

	assert.False(t, tableExists(t, pool, ledger.TableName), "read-only flows must not create the ledger")
	assert.False(t, tableExists(t, pool, "users"))
}
