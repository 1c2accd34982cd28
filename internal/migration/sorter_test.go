package migration_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aqasim81/migration-ledger/internal/migration"
)

func makeScripts(t *testing.T, seqs ...int) []migration.Script {
	t.Helper()

	ss := make([]migration.Script, len(seqs))
	for i, seq := range seqs {
		ss[i] = migration.Script{SequenceNumber: seq, DisplayName: "test"}
	}

	return ss
}

func sequences(t *testing.T, ss []migration.Script) []int {
	t.Helper()

	out := make([]int, len(ss))
	for i, s := range ss {
		out[i] = s.SequenceNumber
	}

	return out
}

func TestSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    []int
		expected []int
	}{
		{
			name:     "already sorted stays sorted",
			input:    []int{1001, 1002, 1003},
			expected: []int{1001, 1002, 1003},
		},
		{
			name:     "reverse order is corrected",
			input:    []int{1003, 1002, 1001},
			expected: []int{1001, 1002, 1003},
		},
		{
			name:     "categories interleave by priority",
			input:    []int{3001, 2001, 1002, 1001},
			expected: []int{1001, 1002, 2001, 3001},
		},
		{
			name:     "empty slice returns empty",
			input:    []int{},
			expected: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := migration.Sort(makeScripts(t, tt.input...))

			assert.Equal(t, tt.expected, sequences(t, result))
		})
	}
}

func TestSort_isStable(t *testing.T) {
	t.Parallel()

	input := []migration.Script{
		{SequenceNumber: 1001, DisplayName: "001-b.sql"},
		{SequenceNumber: 1001, DisplayName: "001-a.sql"},
	}

	result := migration.Sort(input)

	assert.Equal(t, "001-b.sql", result[0].DisplayName)
	assert.Equal(t, "001-a.sql", result[1].DisplayName)
}

func TestSort_doesNotMutateOriginal(t *testing.T) {
	t.Parallel()

	input := makeScripts(t, 1003, 1001, 1002)

	migration.Sort(input)

	assert.Equal(t, []int{1003, 1001, 1002}, sequences(t, input), "original slice should not be mutated")
}
