package migration

import "errors"

// ErrUnknownCategory indicates a category name outside schema, functions, and seed-data.
var ErrUnknownCategory = errors.New("unknown script category")

// ErrScriptChanged indicates a script's content changed between discovery and execution.
var ErrScriptChanged = errors.New("script changed since discovery")

// ErrNameRequired indicates a new script was requested without a usable name.
var ErrNameRequired = errors.New("script name is required")

// ErrCategoryFull indicates a category has no free 3-digit script numbers left.
var ErrCategoryFull = errors.New("no script numbers left in category")
