package memory

import (
	"context"
	"sort"
	"sync"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// WithdrawalStore is an in-memory implementation of storage.WithdrawalStore.
type WithdrawalStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Withdrawal // keyed by "txHash-logIndex"
}

// NewWithdrawalStore creates a new in-memory withdrawal store.
func NewWithdrawalStore() *WithdrawalStore {
	return &WithdrawalStore{
		data: make(map[string]*domain.Withdrawal),
	}
}

// Insert adds a new withdrawal. Returns ErrDuplicateKey if the id exists.
func (s *WithdrawalStore) Insert(_ context.Context, w *domain.Withdrawal) error {
	if w == nil || w.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[w.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[w.ID] = cloneWithdrawal(w)
	return nil
}

// GetByID retrieves a withdrawal by its id.
func (s *WithdrawalStore) GetByID(_ context.Context, id string) (*domain.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneWithdrawal(w), nil
}

// GetByRound retrieves all withdrawals for a round, ordered by timestamp ASC, id ASC.
func (s *WithdrawalStore) GetByRound(_ context.Context, roundAddress string) ([]*domain.Withdrawal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Withdrawal
	for _, w := range s.data {
		if w.RoundAddress == roundAddress {
			result = append(result, cloneWithdrawal(w))
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
var _ storage.WithdrawalStore = (*WithdrawalStore)(nil)
