package migration

import "sort"

// Sort returns a new slice of scripts ordered by SequenceNumber.
// The sort is stable so scripts sharing a number keep their discovery order.
func Sort(scripts []Script) []Script {
	sorted := make([]Script, len(scripts))
	copy(sorted, scripts)

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SequenceNumber < sorted[j].SequenceNumber
	})

	return sorted
}
