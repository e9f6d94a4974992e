package hashing

import (
	"backdrop/internal/mediatypes"
	"backdrop/internal/metrics"
)

// State classifies a fresh hash against the cached one.
type State int

const (
	// NotInDatabase means no hash was stored for the record.
	NotInDatabase State = iota
	// Outdated means the stored hash differs from the file's content.
	Outdated
	// UpToDate means the stored hash matches the file's content.
	UpToDate
)

// String returns the metric label for the state.
func (s State) String() string {
	switch s {
	case UpToDate:
		return "up_to_date"
	case Outdated:
		return "outdated"
	default:
		return "not_in_database"
	}
}

// NeedsRefresh reports whether extraction has to run for this state.
func (s State) NeedsRefresh() bool {
	return s != UpToDate
}

// Compare decides whether the cached metadata for a file is still valid.
// A nil stored hash means nothing is cached.
func Compare(stored *mediatypes.Hash, fresh mediatypes.Hash) State {
	state := compare(stored, fresh)
	metrics.HashStates.WithLabelValues(state.String()).Inc()
	return state
}

func compare(stored *mediatypes.Hash, fresh mediatypes.Hash) State {
	switch {
	case stored == nil:
		return NotInDatabase
	case *stored == fresh:
		return UpToDate
	default:
		return Outdated
	}
}
