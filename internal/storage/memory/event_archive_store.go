package memory

import (
	"context"
	"sort"
	"sync"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// EventArchiveStore is an in-memory implementation of storage.EventArchiveStore.
type EventArchiveStore struct {
	mu   sync.RWMutex
	data []*domain.ArchivedEvent
}

// NewEventArchiveStore creates a new in-memory event archive.
func NewEventArchiveStore() *EventArchiveStore {
	return &EventArchiveStore{}
}

// Append stores a batch of archived events.
func (s *EventArchiveStore) Append(_ context.Context, events []*domain.ArchivedEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		if e == nil {
			return storage.ErrInvalidInput
		}
		s.data = append(s.data, cloneArchivedEvent(e))
	}
	return nil
}

// GetByTimeRange retrieves events within [start, end) ordered by
// (block_timestamp, tx_hash, log_index).
func (s *EventArchiveStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.ArchivedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.ArchivedEvent
	for _, e := range s.data {
		if e.BlockTimestamp >= start && e.BlockTimestamp < end {
			result = append(result, cloneArchivedEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].BlockTimestamp != result[j].BlockTimestamp {
			return result[i].BlockTimestamp < result[j].BlockTimestamp
		}
		if result[i].TxHash != result[j].TxHash {
			return result[i].TxHash < result[j].TxHash
		}
		return result[i].LogIndex < result[j].LogIndex
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.EventArchiveStore = (*EventArchiveStore)(nil)
