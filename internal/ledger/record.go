package ledger

import "time"

// Status is the lifecycle state of a ledger record.
type Status string

// Record statuses. A record moves absent -> running -> completed|failed; failed
// and stale running records may be reset to running for a retry.
const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is one row of the migration ledger.
type Record struct {
	SequenceNumber  int
	DisplayName     string
	Fingerprint     string
	Status          Status
	ExecutedAt      *time.Time // last completion attempt
	ExecutionTimeMs *int64     // set on completion only
	ErrorDetail     *string    // set while failed only
}

// Completed reports whether the record is in its terminal, immutable state.
func (r Record) Completed() bool {
	return r.Status == StatusCompleted
}

// AttemptParams identifies the script an attempt is made for. The display name
// and fingerprint are snapshotted into the record.
type AttemptParams struct {
	SequenceNumber int
	DisplayName    string
	Fingerprint    string
}
