package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// maxScriptNumber is the largest number a 3-digit filename can carry.
const maxScriptNumber = 999

const scriptTemplate = `-- %s
-- Category: %s
-- Created:  %s
--
-- Once applied, this file is fingerprinted in the migration ledger.
-- Do not edit it afterwards; add a new script instead.

`

// Create writes a new script template into the category location, numbered one
// past the highest existing script number in that category.
func (s *Source) Create(c Category, name string, now time.Time) (Script, error) {
	if c.Priority() == 0 {
		return Script{}, fmt.Errorf("%w: %q", ErrUnknownCategory, string(c))
	}

	description := Slugify(name)
	if description == "" {
		return Script{}, ErrNameRequired
	}

	dir := s.Dir(c)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Script{}, fmt.Errorf("creating %s location %s: %w", c, dir, err)
	}

	number, err := nextNumber(dir)
	if err != nil {
		return Script{}, err
	}

	displayName := fmt.Sprintf("%03d-%s%s", number, description, scriptExt)
	path := filepath.Join(dir, displayName)
	content := []byte(fmt.Sprintf(scriptTemplate, strings.TrimSpace(name), c, now.UTC().Format(time.RFC3339)))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Script{}, fmt.Errorf("creating script %s: %w", path, err)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()

		return Script{}, fmt.Errorf("writing script %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return Script{}, fmt.Errorf("closing script %s: %w", path, err)
	}

	return Script{
		SequenceNumber: SequenceNumber(c, number),
		Number:         number,
		Description:    description,
		DisplayName:    displayName,
		Category:       c,
		Fingerprint:    Fingerprint(content),
		Path:           path,
	}, nil
}

// nextNumber returns one more than the highest script number found in dir.
func nextNumber(dir string) (int, error) {
	names, err := scriptNames(dir)
	if err != nil {
		return 0, err
	}

	highest := 0

	for _, name := range names {
		if number, _, ok := parseFilename(name); ok && number > highest {
			highest = number
		}
	}

	if highest >= maxScriptNumber {
		return 0, fmt.Errorf("%w: %s", ErrCategoryFull, dir)
	}

	return highest + 1, nil
}

// Slugify turns free text into a kebab-case description: lowercase ASCII letters
// and digits separated by single hyphens.
func Slugify(name string) string {
	var b strings.Builder

	pendingHyphen := false

	for _, r := range strings.ToLower(name) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}

			b.WriteRune(r)

			pendingHyphen = false
		default:
			pendingHyphen = true
		}
	}

	return b.String()
}
