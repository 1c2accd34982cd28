package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// scriptExt is the only extension discovery considers.
const scriptExt = ".sql"

// filenamePattern matches script files named {NNN}-{description}.sql,
// e.g. 003-set-forget-portfolios.sql.
var filenamePattern = regexp.MustCompile( //nolint:gochecknoglobals // compiled once, used by Discover
	`^(\d{3})-(.+)\.sql$`,
)

// Source is the on-disk layout of scripts: one directory per category under a root.
type Source struct {
	root   string
	logger *slog.Logger
}

// NewSource returns a Source rooted at dir. A nil logger falls back to slog.Default.
func NewSource(dir string, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}

	return &Source{root: dir, logger: logger}
}

// Root returns the directory holding the category locations.
func (s *Source) Root() string {
	return s.root
}

// Dir returns the location of a category.
func (s *Source) Dir(c Category) string {
	return filepath.Join(s.root, string(c))
}

// Discover scans every category location and returns all well-formed scripts
// ordered by SequenceNumber. Missing locations are created and contribute no
// scripts. Files with the script extension that do not follow the naming
// pattern are skipped with a warning.
func (s *Source) Discover() ([]Script, error) {
	return s.discover(true)
}

// Scan is Discover without side effects: a missing location contributes no
// scripts and nothing is created on disk.
func (s *Source) Scan() ([]Script, error) {
	return s.discover(false)
}

func (s *Source) discover(create bool) ([]Script, error) {
	var scripts []Script

	for _, c := range Categories() {
		found, err := s.discoverCategory(c, create)
		if err != nil {
			return nil, err
		}

		scripts = append(scripts, found...)
	}

	sorted := Sort(scripts)
	s.warnDuplicates(sorted)

	return sorted, nil
}

func (s *Source) discoverCategory(c Category, create bool) ([]Script, error) {
	dir := s.Dir(c)

	if create {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s location %s: %w", c, dir, err)
		}
	} else if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	names, err := scriptNames(dir)
	if err != nil {
		return nil, err
	}

	scripts := make([]Script, 0, len(names))

	for _, name := range names {
		number, description, ok := parseFilename(name)
		if !ok {
			s.logger.Warn("skipping script with malformed name",
				"category", string(c),
				"file", name,
				"expected", "NNN-description.sql")

			continue
		}

		path := filepath.Join(dir, name)

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading script %s: %w", path, err)
		}

		scripts = append(scripts, Script{
			SequenceNumber: SequenceNumber(c, number),
			Number:         number,
			Description:    description,
			DisplayName:    name,
			Category:       c,
			Fingerprint:    Fingerprint(content),
			Path:           path,
		})
	}

	return scripts, nil
}

// scriptNames lists the regular files in dir carrying the script extension,
// sorted lexicographically.
func scriptNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading script location %s: %w", dir, err)
	}

	var names []string

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), scriptExt) {
			continue
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	return names, nil
}

// parseFilename extracts the script number and description from a file name.
func parseFilename(name string) (int, string, bool) {
	matches := filenamePattern.FindStringSubmatch(name)
	if matches == nil {
		return 0, "", false
	}

	number, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}

	return number, matches[2], true
}

func (s *Source) warnDuplicates(sorted []Script) {
	for i := 1; i < len(sorted); i++ {
		if sorted[i].SequenceNumber == sorted[i-1].SequenceNumber {
			s.logger.Warn("scripts share a sequence number",
				"sequence", sorted[i].SequenceNumber,
				"first", sorted[i-1].DisplayName,
				"second", sorted[i].DisplayName)
		}
	}
}

// Locate looks a script up by display name across the category locations in
// priority order; the first match wins. It returns the raw file content and
// false when no location holds a file of that name.
func (s *Source) Locate(name string) ([]byte, bool, error) {
	if name == "" || name != filepath.Base(name) {
		return nil, false, nil
	}

	for _, c := range Categories() {
		content, err := os.ReadFile(filepath.Join(s.Dir(c), name))
		if err == nil {
			return content, true, nil
		}

		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("reading script %s: %w", name, err)
		}
	}

	return nil, false, nil
}
