package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aqasim81/migration-ledger/internal/integrity"
	"github.com/aqasim81/migration-ledger/internal/ledger"
	"github.com/aqasim81/migration-ledger/internal/migration"
	"github.com/aqasim81/migration-ledger/internal/parser"
)

// Progress status constants reported via ProgressEvent.
const (
	StatusStarting  = "starting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
	StatusPending   = "pending" // dry run only
)

// ProgressEvent is emitted by the executor for each migration processed.
type ProgressEvent struct {
	Migration *migration.Script
	Status    string
	Duration  time.Duration
	Error     error
}

// Summary counts what a call to Apply did.
type Summary struct {
	Applied int // completed during this call
	Skipped int // already completed, here or by a concurrent runner
	Pending int // eligible but not executed (dry run)
}

// LedgerStore is the part of the ledger the executor reads and writes.
type LedgerStore interface {
	ListAll(ctx context.Context) (map[int]ledger.Record, error)
	InTx(ctx context.Context, fn func(ledger.Tx) error) error
}

// inspectFunc lists statements that cannot run inside a transaction block.
type inspectFunc func(sql string) ([]string, error)

// Executor applies pending migrations one at a time, each in its own
// transaction together with its ledger record.
type Executor struct {
	store      LedgerStore
	dryRun     bool
	onProgress func(ProgressEvent)
	logger     *slog.Logger
	inspect    inspectFunc
}

// Option configures an Executor.
type Option func(*Executor)

// WithDryRun enables dry-run mode where no SQL is executed and the ledger is not written.
func WithDryRun(b bool) Option {
	return func(e *Executor) { e.dryRun = b }
}

// WithProgressCallback sets a function called for each migration processed.
func WithProgressCallback(fn func(ProgressEvent)) Option {
	return func(e *Executor) { e.onProgress = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an Executor writing to the given ledger store.
func New(store LedgerStore, opts ...Option) *Executor {
	e := &Executor{store: store}

	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}

	if e.inspect == nil {
		e.inspect = parser.NonTransactional
	}

	return e
}

// Apply executes eligible scripts in ascending sequence order. Completed
// scripts are skipped; absent, failed, and stale running ones are executed.
// The first failure is recorded in the ledger and halts the run with an
// *ExecutionError; scripts after it are not attempted.
func (e *Executor) Apply(ctx context.Context, scripts []migration.Script) (Summary, error) {
	var summary Summary

	records, err := e.store.ListAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("reading ledger: %w", err)
	}

	sorted := migration.Sort(scripts)

	for i := range sorted {
		s := &sorted[i]

		record, exists := records[s.SequenceNumber]
		if exists && record.Completed() {
			if record.DisplayName != s.DisplayName {
				e.logger.Warn("sequence number already completed by another script",
					"sequence", s.SequenceNumber, "script", s.DisplayName, "recorded", record.DisplayName)
			} else if record.Fingerprint != s.Fingerprint {
				return summary, fmt.Errorf("%w: %s: ledger=%s file=%s",
					integrity.ErrTamperedScript, s.DisplayName, record.Fingerprint, s.Fingerprint)
			}

			summary.Skipped++
			e.fireProgress(ProgressEvent{Migration: s, Status: StatusSkipped})

			continue
		}

		if exists && record.Status == ledger.StatusRunning {
			e.logger.Warn("retrying stale attempt", "sequence", s.SequenceNumber, "script", s.DisplayName)
		}

		if e.dryRun {
			summary.Pending++
			e.fireProgress(ProgressEvent{Migration: s, Status: StatusPending})

			continue
		}

		applied, err := e.applyOne(ctx, s)
		if err != nil {
			return summary, err
		}

		if applied {
			summary.Applied++
		} else {
			summary.Skipped++
		}
	}

	return summary, nil
}

// applyOne runs a single script. It returns false without error when a
// concurrent runner completed the script first.
func (e *Executor) applyOne(ctx context.Context, s *migration.Script) (bool, error) {
	e.fireProgress(ProgressEvent{Migration: s, Status: StatusStarting})
	e.logger.Info("applying migration", "sequence", s.SequenceNumber, "script", s.DisplayName)

	start := time.Now()
	err := e.attempt(ctx, s)
	duration := time.Since(start)

	if err == nil {
		e.logger.Info("migration completed", "sequence", s.SequenceNumber, "duration", duration)
		e.fireProgress(ProgressEvent{Migration: s, Status: StatusCompleted, Duration: duration})

		return true, nil
	}

	if errors.Is(err, ledger.ErrDuplicateActiveAttempt) {
		e.logger.Info("migration completed by another runner", "sequence", s.SequenceNumber)
		e.fireProgress(ProgressEvent{Migration: s, Status: StatusSkipped, Duration: duration})

		return false, nil
	}

	execErr := &ExecutionError{Script: s, Err: err}

	// The failure record outlives the rolled-back attempt, even when ctx is done.
	if recErr := e.recordFailure(context.WithoutCancel(ctx), s, err); recErr != nil &&
		!errors.Is(recErr, ledger.ErrDuplicateActiveAttempt) {
		execErr.RecordErr = recErr
	}

	e.logger.Error("migration failed", "sequence", s.SequenceNumber, "script", s.DisplayName, "error", err)
	e.fireProgress(ProgressEvent{Migration: s, Status: StatusFailed, Duration: duration, Error: err})

	return false, execErr
}

// attempt loads the body and runs begin, execute, and complete in one transaction.
func (e *Executor) attempt(ctx context.Context, s *migration.Script) error {
	body, err := s.Load()
	if err != nil {
		return err
	}

	return e.store.InTx(ctx, func(tx ledger.Tx) error {
		if err := tx.BeginAttempt(ctx, attemptParams(s)); err != nil {
			return err
		}

		if err := e.checkTransactional(s, body); err != nil {
			return err
		}

		start := time.Now()

		if err := tx.ExecScript(ctx, body); err != nil {
			return err
		}

		return tx.CompleteAttempt(ctx, s.SequenceNumber, time.Since(start).Milliseconds())
	})
}

// recordFailure marks the script failed in a transaction of its own.
func (e *Executor) recordFailure(ctx context.Context, s *migration.Script, cause error) error {
	return e.store.InTx(ctx, func(tx ledger.Tx) error {
		if err := tx.BeginAttempt(ctx, attemptParams(s)); err != nil {
			return err
		}

		return tx.FailAttempt(ctx, s.SequenceNumber, cause.Error())
	})
}

// checkTransactional rejects scripts that would break the single atomic unit.
// Parse errors are left for the datastore to report.
func (e *Executor) checkTransactional(s *migration.Script, body []byte) error {
	found, err := e.inspect(string(body))
	if err != nil {
		e.logger.Debug("skipping statement inspection", "script", s.DisplayName, "error", err)

		return nil
	}

	if len(found) > 0 {
		return fmt.Errorf("%w: %s", ErrNonTransactional, strings.Join(found, ", "))
	}

	return nil
}

func attemptParams(s *migration.Script) ledger.AttemptParams {
	return ledger.AttemptParams{
		SequenceNumber: s.SequenceNumber,
		DisplayName:    s.DisplayName,
		Fingerprint:    s.Fingerprint,
	}
}

func (e *Executor) fireProgress(event ProgressEvent) {
	if e.onProgress != nil {
		e.onProgress(event)
	}
}
