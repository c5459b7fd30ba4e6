package ingestion

import (
	"errors"
	"sort"

	"round-indexer/internal/domain"
)

// ErrInvalidOrdering is returned when events are not properly ordered.
var ErrInvalidOrdering = errors.New("events are not in deterministic order")

// SortEvents orders events by (block_timestamp ASC, tx_hash ASC, log_index ASC).
// This provides deterministic ordering based on chain order.
func SortEvents(events []domain.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return compareEvents(events[i], events[j]) < 0
	})
}

// ValidateEventOrdering checks if events are properly ordered.
// Returns ErrInvalidOrdering if not.
func ValidateEventOrdering(events []domain.Event) error {
	for i := 1; i < len(events); i++ {
		if compareEvents(events[i-1], events[i]) > 0 {
			return ErrInvalidOrdering
		}
	}
	return nil
}

// compareEvents returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Order: (block_timestamp ASC, tx_hash ASC, log_index ASC)
func compareEvents(a, b domain.Event) int {
	am, bm := a.Meta(), b.Meta()
	if am.BlockTimestamp != bm.BlockTimestamp {
		if am.BlockTimestamp < bm.BlockTimestamp {
			return -1
		}
		return 1
	}
	if am.TxHash != bm.TxHash {
		if am.TxHash < bm.TxHash {
			return -1
		}
		return 1
	}
	if am.LogIndex != bm.LogIndex {
		if am.LogIndex < bm.LogIndex {
			return -1
		}
		return 1
	}
	return 0
}
