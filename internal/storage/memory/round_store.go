package memory

import (
	"context"
	"sort"
	"sync"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// RoundStore is an in-memory implementation of storage.RoundStore.
type RoundStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Round // keyed by contract address
}

// NewRoundStore creates a new in-memory round store.
func NewRoundStore() *RoundStore {
	return &RoundStore{
		data: make(map[string]*domain.Round),
	}
}

// Insert adds a new round. Returns ErrDuplicateKey if the address exists.
func (s *RoundStore) Insert(_ context.Context, r *domain.Round) error {
	if r == nil || r.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.Address]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[r.Address] = cloneRound(r)
	return nil
}

// GetByAddress retrieves a round by its contract address.
func (s *RoundStore) GetByAddress(_ context.Context, address string) (*domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[address]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneRound(r), nil
}

// Update overwrites an existing round. Returns ErrNotFound if absent.
func (s *RoundStore) Update(_ context.Context, r *domain.Round) error {
	if r == nil || r.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.Address]; !exists {
		return storage.ErrNotFound
	}

	s.data[r.Address] = cloneRound(r)
	return nil
}

// List retrieves all rounds ordered by created_at ASC, address ASC.
func (s *RoundStore) List(_ context.Context) ([]*domain.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Round, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, cloneRound(r))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].Address < result[j].Address
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.RoundStore = (*RoundStore)(nil)
