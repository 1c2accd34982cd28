package executor

import (
	"errors"
	"fmt"

	"github.com/aqasim81/migration-ledger/internal/migration"
)

// ErrExecutionFailed indicates a migration failed to execute.
var ErrExecutionFailed = errors.New("migration execution failed")

// ErrNonTransactional indicates a script contains statements that cannot run
// inside the transaction that also records it in the ledger.
var ErrNonTransactional = errors.New("script cannot run inside a single transaction")

// ExecutionError describes the migration that halted a run. Its effects were
// rolled back and, unless RecordErr is set, it is marked failed in the ledger.
type ExecutionError struct {
	Script    *migration.Script
	Err       error // why the attempt failed
	RecordErr error // why the failure could not be recorded, if it could not
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s: %s (sequence %d): %v",
		ErrExecutionFailed, e.Script.DisplayName, e.Script.SequenceNumber, e.Err)

	if e.RecordErr != nil {
		msg += fmt.Sprintf(" (recording failure: %v)", e.RecordErr)
	}

	return msg
}

func (e *ExecutionError) Unwrap() []error {
	errs := []error{ErrExecutionFailed, e.Err}
	if e.RecordErr != nil {
		errs = append(errs, e.RecordErr)
	}

	return errs
}
