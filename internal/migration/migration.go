package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
)

// Category groups scripts by purpose. Categories are applied in priority order.
type Category string

// Known script categories.
const (
	CategorySchema    Category = "schema"
	CategoryFunctions Category = "functions"
	CategorySeedData  Category = "seed-data"
)

// sequenceBlock is the width of the sequence number range owned by one category.
const sequenceBlock = 1000

// Categories lists every category in application order.
func Categories() []Category {
	return []Category{CategorySchema, CategoryFunctions, CategorySeedData}
}

// Priority returns the category's position in the application order, starting at 1.
// Unknown categories return 0.
func (c Category) Priority() int {
	switch c {
	case CategorySchema:
		return 1
	case CategoryFunctions:
		return 2 //nolint:mnd // fixed category table
	case CategorySeedData:
		return 3 //nolint:mnd // fixed category table
	default:
		return 0
	}
}

// ParseCategory converts a user-supplied category name into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if c.Priority() == 0 {
		return "", fmt.Errorf("%w: %q (expected schema, functions, or seed-data)", ErrUnknownCategory, s)
	}

	return c, nil
}

// SequenceNumber computes the global ordering key for a script number within a category.
func SequenceNumber(c Category, number int) int {
	return c.Priority()*sequenceBlock + number
}

// Script is a versioned change-script discovered on disk. The body is not kept in
// memory; call Load when it is needed.
type Script struct {
	SequenceNumber int      // priority*1000 + Number
	Number         int      // 3-digit number from the filename
	Description    string   // "create-users" from the filename
	DisplayName    string   // "001-create-users.sql", identity used by the ledger
	Category       Category // location the script was found in
	Fingerprint    string   // SHA-256 hex digest of the raw file bytes
	Path           string   // full path to the file
}

// Load reads the script body and checks that it still matches the fingerprint
// computed at discovery time.
func (s *Script) Load() ([]byte, error) {
	body, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", s.Path, err)
	}

	if got := Fingerprint(body); got != s.Fingerprint {
		return nil, fmt.Errorf("%w: %s: discovered=%s current=%s", ErrScriptChanged, s.DisplayName, s.Fingerprint, got)
	}

	return body, nil
}

// Fingerprint returns the SHA-256 hex digest of the given bytes. The input is
// hashed as-is: no trimming and no line-ending normalisation.
func Fingerprint(content []byte) string {
	h := sha256.Sum256(content)

	return hex.EncodeToString(h[:])
}
