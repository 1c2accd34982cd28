package integrity

import "errors"

// ErrMissingScript indicates a completed ledger record whose script file no longer exists.
var ErrMissingScript = errors.New("missing script")

// ErrTamperedScript indicates a completed ledger record whose script content changed.
var ErrTamperedScript = errors.New("tampered script")
