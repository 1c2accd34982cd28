// Package integrity checks that every completed migration still matches the
// script file it was applied from.
package integrity

import (
	"fmt"
	"strings"

	"github.com/aqasim81/migration-ledger/internal/ledger"
	"github.com/aqasim81/migration-ledger/internal/migration"
)

// Locator finds the live content of a script by display name.
type Locator interface {
	Locate(name string) (content []byte, found bool, err error)
}

// Violation is one completed record that no longer matches its script.
type Violation struct {
	Kind           error // ErrMissingScript or ErrTamperedScript
	SequenceNumber int
	DisplayName    string
	Expected       string // fingerprint stored in the ledger
	Actual         string // fingerprint of the live file, empty when missing
}

func (v Violation) Error() string {
	if v.Actual == "" {
		return fmt.Sprintf("%s: %s (sequence %d): expected fingerprint %s",
			v.Kind, v.DisplayName, v.SequenceNumber, v.Expected)
	}

	return fmt.Sprintf("%s: %s (sequence %d): expected fingerprint %s, got %s",
		v.Kind, v.DisplayName, v.SequenceNumber, v.Expected, v.Actual)
}

func (v Violation) Unwrap() error {
	return v.Kind
}

// Report is the outcome of checking every completed record.
type Report struct {
	Checked    int
	Violations []Violation
}

// OK reports whether no violations were found.
func (r *Report) OK() bool {
	return len(r.Violations) == 0
}

// Err returns nil for an intact ledger and an *Error listing every violation otherwise.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}

	return &Error{Violations: r.Violations}
}

// Error is returned when verification finds at least one violation. It unwraps
// to every violation, so errors.Is matches ErrMissingScript and ErrTamperedScript.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	var b strings.Builder

	fmt.Fprintf(&b, "integrity check failed: %d violation(s)", len(e.Violations))

	for _, v := range e.Violations {
		b.WriteString("\n  ")
		b.WriteString(v.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, len(e.Violations))
	for i, v := range e.Violations {
		errs[i] = v
	}

	return errs
}

// Verify compares every completed record against the live file of the same
// name. Non-completed records are ignored. All records are checked before
// returning; the error return is reserved for failures to read the files.
func Verify(records []ledger.Record, loc Locator) (*Report, error) {
	report := &Report{}

	for _, r := range records {
		if !r.Completed() {
			continue
		}

		report.Checked++

		content, found, err := loc.Locate(r.DisplayName)
		if err != nil {
			return nil, fmt.Errorf("verifying %s: %w", r.DisplayName, err)
		}

		if !found {
			report.Violations = append(report.Violations, Violation{
				Kind:           ErrMissingScript,
				SequenceNumber: r.SequenceNumber,
				DisplayName:    r.DisplayName,
				Expected:       r.Fingerprint,
			})

			continue
		}

		if actual := migration.Fingerprint(content); actual != r.Fingerprint {
			report.Violations = append(report.Violations, Violation{
				Kind:           ErrTamperedScript,
				SequenceNumber: r.SequenceNumber,
				DisplayName:    r.DisplayName,
				Expected:       r.Fingerprint,
				Actual:         actual,
			})
		}
	}

	return report, nil
}
