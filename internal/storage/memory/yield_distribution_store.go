package memory

import (
	"context"
	"sort"
	"sync"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// YieldDistributionStore is an in-memory implementation of storage.YieldDistributionStore.
type YieldDistributionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.YieldDistribution // keyed by "txHash-logIndex"
}

// NewYieldDistributionStore creates a new in-memory yield distribution store.
func NewYieldDistributionStore() *YieldDistributionStore {
	return &YieldDistributionStore{
		data: make(map[string]*domain.YieldDistribution),
	}
}

// Insert adds a new distribution. Returns ErrDuplicateKey if the id exists.
func (s *YieldDistributionStore) Insert(_ context.Context, d *domain.YieldDistribution) error {
	if d == nil || d.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[d.ID] = cloneYieldDistribution(d)
	return nil
}

// GetByID retrieves a distribution by its id.
func (s *YieldDistributionStore) GetByID(_ context.Context, id string) (*domain.YieldDistribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneYieldDistribution(d), nil
}

// GetByRound retrieves all distributions for a round, ordered by timestamp ASC, id ASC.
func (s *YieldDistributionStore) GetByRound(_ context.Context, roundAddress string) ([]*domain.YieldDistribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.YieldDistribution
	for _, d := range s.data {
		if d.RoundAddress == roundAddress {
			result = append(result, cloneYieldDistribution(d))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.YieldDistributionStore = (*YieldDistributionStore)(nil)
