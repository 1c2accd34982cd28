// Package ledgertest provides an in-memory ledger with the same transactional
// behaviour as the PostgreSQL store, for tests that do not need a database.
package ledgertest

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/aqasim81/migration-ledger/internal/ledger"
)

// Store is an in-memory ledger. Writes made inside InTx are buffered and only
// become visible when the callback returns nil. Script bodies passed to
// ExecScript are recorded as committed effects on the same terms.
type Store struct {
	// ExecHook, when set, is called for every ExecScript. A non-nil return fails
	// the script the way a datastore error would.
	ExecHook func(body string) error

	// EnsureErr and ListErr make the corresponding operations fail.
	EnsureErr error
	ListErr   error

	mu       sync.Mutex
	records  map[int]ledger.Record
	executed []string
	ensured  int
	now      func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		records: make(map[int]ledger.Record),
		now:     time.Now,
	}
}

// Put seeds a record, bypassing the transition rules.
func (s *Store) Put(r ledger.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[r.SequenceNumber] = r
}

// Get returns the record for a sequence number.
func (s *Store) Get(sequenceNumber int) (ledger.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[sequenceNumber]

	return r, ok
}

// Executed returns the script bodies whose transactions committed, in order.
func (s *Store) Executed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return slices.Clone(s.executed)
}

// EnsureCalls reports how many times EnsureSchema succeeded.
func (s *Store) EnsureCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ensured
}

// EnsureSchema implements the ledger store contract.
func (s *Store) EnsureSchema(_ context.Context) error {
	if s.EnsureErr != nil {
		return fmt.Errorf("%w: %w", ledger.ErrLedgerUnavailable, s.EnsureErr)
	}

	s.mu.Lock()
	s.ensured++
	s.mu.Unlock()

	return nil
}

// ListCompleted implements the ledger store contract.
func (s *Store) ListCompleted(_ context.Context) ([]ledger.Record, error) {
	if s.ListErr != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrLedgerUnavailable, s.ListErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []ledger.Record

	for _, seq := range slices.Sorted(maps.Keys(s.records)) {
		if r := s.records[seq]; r.Completed() {
			out = append(out, r)
		}
	}

	return out, nil
}

// ListAll implements the ledger store contract.
func (s *Store) ListAll(_ context.Context) (map[int]ledger.Record, error) {
	if s.ListErr != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrLedgerUnavailable, s.ListErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return maps.Clone(s.records), nil
}

// InTx runs fn against a private copy of the ledger and publishes it only when
// fn returns nil. The store lock is held for the whole call, so transactions
// are serialised.
func (s *Store) InTx(_ context.Context, fn func(ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		records: maps.Clone(s.records),
		hook:    s.ExecHook,
		now:     s.now,
	}

	if err := fn(tx); err != nil {
		return err
	}

	s.records = tx.records
	s.executed = append(s.executed, tx.executed...)

	return nil
}

type memTx struct {
	records  map[int]ledger.Record
	executed []string
	hook     func(string) error
	now      func() time.Time
}

func (t *memTx) BeginAttempt(_ context.Context, p ledger.AttemptParams) error {
	r, ok := t.records[p.SequenceNumber]
	if ok && r.Completed() {
		return fmt.Errorf("sequence %d (%s): %w", p.SequenceNumber, p.DisplayName, ledger.ErrDuplicateActiveAttempt)
	}

	r.SequenceNumber = p.SequenceNumber
	r.DisplayName = p.DisplayName
	r.Fingerprint = p.Fingerprint
	r.Status = ledger.StatusRunning
	r.ExecutionTimeMs = nil
	r.ErrorDetail = nil
	t.records[p.SequenceNumber] = r

	return nil
}

func (t *memTx) CompleteAttempt(_ context.Context, sequenceNumber int, executionTimeMs int64) error {
	r, err := t.running(sequenceNumber, ledger.StatusCompleted)
	if err != nil {
		return err
	}

	now := t.now()
	r.Status = ledger.StatusCompleted
	r.ExecutedAt = &now
	r.ExecutionTimeMs = &executionTimeMs
	r.ErrorDetail = nil
	t.records[sequenceNumber] = r

	return nil
}

func (t *memTx) FailAttempt(_ context.Context, sequenceNumber int, errorDetail string) error {
	r, err := t.running(sequenceNumber, ledger.StatusFailed)
	if err != nil {
		return err
	}

	now := t.now()
	r.Status = ledger.StatusFailed
	r.ExecutedAt = &now
	r.ErrorDetail = &errorDetail
	t.records[sequenceNumber] = r

	return nil
}

func (t *memTx) ExecScript(_ context.Context, body []byte) error {
	if t.hook != nil {
		if err := t.hook(string(body)); err != nil {
			return err
		}
	}

	t.executed = append(t.executed, string(body))

	return nil
}

func (t *memTx) running(sequenceNumber int, to ledger.Status) (ledger.Record, error) {
	r, ok := t.records[sequenceNumber]
	if !ok {
		return ledger.Record{}, fmt.Errorf("sequence %d: %w", sequenceNumber, ledger.ErrRecordNotFound)
	}

	if r.Status != ledger.StatusRunning {
		return ledger.Record{}, fmt.Errorf("sequence %d: %w: %s -> %s", sequenceNumber, ledger.ErrInvalidTransition, r.Status, to)
	}

	return r, nil
}
