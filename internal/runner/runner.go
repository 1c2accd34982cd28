// Package runner ties discovery, integrity verification, and execution into
// the run, verify, and status flows exposed by the CLI.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aqasim81/migration-ledger/internal/executor"
	"github.com/aqasim81/migration-ledger/internal/integrity"
	"github.com/aqasim81/migration-ledger/internal/ledger"
	"github.com/aqasim81/migration-ledger/internal/migration"
)

// Store is the ledger as seen by the runner.
type Store interface {
	executor.LedgerStore
	EnsureSchema(ctx context.Context) error
	ListCompleted(ctx context.Context) ([]ledger.Record, error)
}

// Source discovers scripts and locates them by display name. Scan is the
// read-only form of Discover: it never creates script locations.
type Source interface {
	integrity.Locator
	Discover() ([]migration.Script, error)
	Scan() ([]migration.Script, error)
}

// Summary describes a finished run.
type Summary struct {
	executor.Summary
	Discovered int // scripts found on disk
	Verified   int // completed records checked for integrity
}

// Script states reported by Status.
const (
	StateCompleted = "completed"
	StateFailed    = "failed"
	StatePending   = "pending"
)

// StatusEntry is one row of the status report.
type StatusEntry struct {
	SequenceNumber int        `json:"sequence_number"`
	DisplayName    string     `json:"display_name"`
	Category       string     `json:"category"`
	State          string     `json:"state"`
	ExecutedAt     *time.Time `json:"executed_at,omitempty"`
	ErrorDetail    string     `json:"error_detail,omitempty"`
}

// Runner orchestrates migration runs against one ledger and script source.
type Runner struct {
	store      Store
	source     Source
	dryRun     bool
	onProgress func(executor.ProgressEvent)
	logger     *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithDryRun reports pending scripts without executing them.
func WithDryRun(b bool) Option {
	return func(r *Runner) { r.dryRun = b }
}

// WithProgressCallback forwards executor progress events.
func WithProgressCallback(fn func(executor.ProgressEvent)) Option {
	return func(r *Runner) { r.onProgress = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// New creates a Runner.
func New(store Store, source Source, opts ...Option) *Runner {
	r := &Runner{store: store, source: source}

	for _, opt := range opts {
		opt(r)
	}

	if r.logger == nil {
		r.logger = slog.Default()
	}

	return r
}

// Run prepares the ledger, verifies every completed script, and applies the
// pending ones. An integrity violation halts the run before anything executes.
// A dry run neither creates the ledger nor the script locations.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var summary Summary

	discover := r.source.Scan

	if !r.dryRun {
		if err := r.store.EnsureSchema(ctx); err != nil {
			return summary, err
		}

		discover = r.source.Discover
	}

	scripts, err := discover()
	if err != nil {
		return summary, fmt.Errorf("discovering scripts: %w", err)
	}

	summary.Discovered = len(scripts)
	r.logger.Debug("discovered scripts", "count", len(scripts))

	report, err := r.verify(ctx)
	if err != nil {
		return summary, err
	}

	summary.Verified = report.Checked

	if err := report.Err(); err != nil {
		r.logger.Error("integrity check failed", "violations", len(report.Violations))

		return summary, err
	}

	exec := executor.New(r.store,
		executor.WithDryRun(r.dryRun),
		executor.WithProgressCallback(r.onProgress),
		executor.WithLogger(r.logger),
	)

	applied, err := exec.Apply(ctx, scripts)
	summary.Summary = applied

	return summary, err
}

// Verify checks every completed script without writing anything. It returns
// the report even when violations were found; the caller decides how to
// surface them.
func (r *Runner) Verify(ctx context.Context) (*integrity.Report, error) {
	return r.verify(ctx)
}

func (r *Runner) verify(ctx context.Context) (*integrity.Report, error) {
	records, err := r.store.ListCompleted(ctx)
	if err != nil {
		return nil, err
	}

	report, err := integrity.Verify(records, r.source)
	if err != nil {
		return nil, fmt.Errorf("verifying scripts: %w", err)
	}

	for _, v := range report.Violations {
		r.logger.Warn("integrity violation", "sequence", v.SequenceNumber, "script", v.DisplayName, "kind", v.Kind)
	}

	return report, nil
}

// Status reports the state of every discovered script in execution order.
// Running records are shown as pending: a live attempt is invisible outside its
// transaction, so a visible one was abandoned and will be retried.
// Nothing is created: a missing ledger or script location reads as empty.
func (r *Runner) Status(ctx context.Context) ([]StatusEntry, error) {
	scripts, err := r.source.Scan()
	if err != nil {
		return nil, fmt.Errorf("discovering scripts: %w", err)
	}

	records, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]StatusEntry, 0, len(scripts))

	for _, s := range scripts {
		entry := StatusEntry{
			SequenceNumber: s.SequenceNumber,
			DisplayName:    s.DisplayName,
			Category:       string(s.Category),
			State:          StatePending,
		}

		if rec, ok := records[s.SequenceNumber]; ok {
			switch rec.Status {
			case ledger.StatusCompleted:
				entry.State = StateCompleted
				entry.ExecutedAt = rec.ExecutedAt
			case ledger.StatusFailed:
				entry.State = StateFailed
				entry.ExecutedAt = rec.ExecutedAt

				if rec.ErrorDetail != nil {
					entry.ErrorDetail = *rec.ErrorDetail
				}
			case ledger.StatusRunning:
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
