package memory

import (
	"context"
	"sort"
	"sync"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// YieldClaimStore is an in-memory implementation of storage.YieldClaimStore.
type YieldClaimStore struct {
	mu   sync.RWMutex
	data map[string]*domain.YieldClaim // keyed by "txHash-logIndex"
}

// NewYieldClaimStore creates a new in-memory yield claim store.
func NewYieldClaimStore() *YieldClaimStore {
	return &YieldClaimStore{
		data: make(map[string]*domain.YieldClaim),
	}
}

// Insert adds a new yield claim. Returns ErrDuplicateKey if the id exists.
func (s *YieldClaimStore) Insert(_ context.Context, c *domain.YieldClaim) error {
	if c == nil || c.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[c.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[c.ID] = cloneYieldClaim(c)
	return nil
}

// GetByID retrieves a yield claim by its id.
func (s *YieldClaimStore) GetByID(_ context.Context, id string) (*domain.YieldClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneYieldClaim(c), nil
}

// GetByRound retrieves all yield claims for a round, ordered by timestamp ASC, id ASC.
func (s *YieldClaimStore) GetByRound(_ context.Context, roundAddress string) ([]*domain.YieldClaim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.YieldClaim
	for _, c := range s.data {
		if c.RoundAddress == roundAddress {
			result = append(result, cloneYieldClaim(c))
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
var _ storage.YieldClaimStore = (*YieldClaimStore)(nil)
