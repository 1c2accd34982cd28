package ledger

import "errors"

// ErrLedgerUnavailable indicates the ledger table could not be created or read.
var ErrLedgerUnavailable = errors.New("migration ledger unavailable")

// ErrDuplicateActiveAttempt indicates a script already has a completed record,
// typically because a concurrent runner applied it first.
var ErrDuplicateActiveAttempt = errors.New("migration already completed")

// ErrRecordNotFound indicates no ledger record exists for the sequence number.
var ErrRecordNotFound = errors.New("ledger record not found")

// ErrInvalidTransition indicates a status change that is only valid from running.
var ErrInvalidTransition = errors.New("invalid ledger status transition")
