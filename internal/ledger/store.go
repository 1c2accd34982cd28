package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Tx is a ledger bound to one database transaction. Script execution and the
// ledger writes for the same attempt share it, so they commit or roll back together.
type Tx interface {
	// BeginAttempt inserts a running record, or resets a failed or stale running
	// record to running. It returns ErrDuplicateActiveAttempt when the record is
	// already completed.
	BeginAttempt(ctx context.Context, p AttemptParams) error
	// CompleteAttempt moves a running record to completed.
	CompleteAttempt(ctx context.Context, sequenceNumber int, executionTimeMs int64) error
	// FailAttempt moves a running record to failed with the given detail.
	FailAttempt(ctx context.Context, sequenceNumber int, errorDetail string) error
	// ExecScript runs a script body as part of the transaction.
	ExecScript(ctx context.Context, body []byte) error
}

// Store manages the migration ledger table.
type Store struct {
	db DB
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the ledger table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("%w: creating %s: %w", ErrLedgerUnavailable, TableName, err)
	}

	return nil
}

// ListCompleted returns completed records ordered by sequence number. A
// missing ledger table reads as an empty ledger.
func (s *Store) ListCompleted(ctx context.Context) ([]Record, error) {
	records, err := s.query(ctx, selectColumns+` WHERE status = 'completed' ORDER BY sequence_number`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing completed records: %w", ErrLedgerUnavailable, err)
	}

	return records, nil
}

// ListAll returns every record keyed by sequence number. A missing ledger
// table reads as an empty ledger.
func (s *Store) ListAll(ctx context.Context) (map[int]Record, error) {
	records, err := s.query(ctx, selectColumns+` ORDER BY sequence_number`)
	if err != nil {
		return nil, fmt.Errorf("%w: listing records: %w", ErrLedgerUnavailable, err)
	}

	byNumber := make(map[int]Record, len(records))
	for _, r := range records {
		byNumber[r.SequenceNumber] = r
	}

	return byNumber, nil
}

// InTx runs fn inside a database transaction. On success the transaction is
// committed; on error it is rolled back and the error returned unchanged.
func (s *Store) InTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // rollback on committed tx returns ErrTxClosed

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

const selectColumns = `SELECT sequence_number, display_name, fingerprint, status,
       executed_at, execution_time_ms, error_detail
  FROM ` + TableName

// undefinedTable is the SQLSTATE for a relation that does not exist.
const undefinedTable = "42P01"

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}

// query reads ledger rows without creating anything, so read-only roles can
// inspect a database that has never been migrated.
func (s *Store) query(ctx context.Context, sql string) ([]Record, error) {
	rows, err := s.db.Query(ctx, sql)
	if isUndefinedTable(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer rows.Close()

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		if scanErr := row.Scan(
			&r.SequenceNumber, &r.DisplayName, &r.Fingerprint, &r.Status,
			&r.ExecutedAt, &r.ExecutionTimeMs, &r.ErrorDetail,
		); scanErr != nil {
			return Record{}, fmt.Errorf("scanning ledger row: %w", scanErr)
		}

		return r, nil
	})
	if isUndefinedTable(err) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("scanning ledger: %w", err)
	}

	return records, nil
}

// pgTx implements Tx on a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) BeginAttempt(ctx context.Context, p AttemptParams) error {
	tag, err := t.tx.Exec(ctx,
		`INSERT INTO `+TableName+` (sequence_number, display_name, fingerprint, status)
		 VALUES ($1, $2, $3, 'running')
		 ON CONFLICT (sequence_number) DO UPDATE SET
		     display_name = EXCLUDED.display_name,
		     fingerprint = EXCLUDED.fingerprint,
		     status = 'running',
		     execution_time_ms = NULL,
		     error_detail = NULL
		 WHERE `+TableName+`.status <> 'completed'`,
		p.SequenceNumber, p.DisplayName, p.Fingerprint,
	)
	if err != nil {
		return fmt.Errorf("beginning attempt for %d: %w", p.SequenceNumber, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sequence %d (%s): %w", p.SequenceNumber, p.DisplayName, ErrDuplicateActiveAttempt)
	}

	return nil
}

func (t *pgTx) CompleteAttempt(ctx context.Context, sequenceNumber int, executionTimeMs int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE `+TableName+`
		    SET status = 'completed',
		        executed_at = clock_timestamp(),
		        execution_time_ms = $2,
		        error_detail = NULL
		  WHERE sequence_number = $1 AND status = 'running'`,
		sequenceNumber, executionTimeMs,
	)
	if err != nil {
		return fmt.Errorf("completing attempt for %d: %w", sequenceNumber, err)
	}

	if tag.RowsAffected() == 0 {
		return t.transitionError(ctx, sequenceNumber, StatusCompleted)
	}

	return nil
}

func (t *pgTx) FailAttempt(ctx context.Context, sequenceNumber int, errorDetail string) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE `+TableName+`
		    SET status = 'failed',
		        executed_at = clock_timestamp(),
		        error_detail = $2
		  WHERE sequence_number = $1 AND status = 'running'`,
		sequenceNumber, errorDetail,
	)
	if err != nil {
		return fmt.Errorf("failing attempt for %d: %w", sequenceNumber, err)
	}

	if tag.RowsAffected() == 0 {
		return t.transitionError(ctx, sequenceNumber, StatusFailed)
	}

	return nil
}

// ExecScript sends the body without arguments so pgx uses the simple query
// protocol, which accepts multiple statements.
func (t *pgTx) ExecScript(ctx context.Context, body []byte) error {
	if _, err := t.tx.Exec(ctx, string(body)); err != nil {
		return err //nolint:wrapcheck // the datastore message becomes the ledger error detail
	}

	return nil
}

// transitionError explains why an update guarded by status = 'running' matched no row.
func (t *pgTx) transitionError(ctx context.Context, sequenceNumber int, to Status) error {
	var current Status

	err := t.tx.QueryRow(ctx,
		`SELECT status FROM `+TableName+` WHERE sequence_number = $1`,
		sequenceNumber,
	).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("sequence %d: %w", sequenceNumber, ErrRecordNotFound)
		}

		return fmt.Errorf("reading status for %d: %w", sequenceNumber, err)
	}

	return fmt.Errorf("sequence %d: %w: %s -> %s", sequenceNumber, ErrInvalidTransition, current, to)
}
