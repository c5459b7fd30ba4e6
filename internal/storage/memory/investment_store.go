package memory

import (
	"context"
	"math/big"
	"sort"
	"sync"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// InvestmentStore is an in-memory implementation of storage.InvestmentStore.
type InvestmentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Investment // keyed by "txHash-logIndex"
}

// NewInvestmentStore creates a new in-memory investment store.
func NewInvestmentStore() *InvestmentStore {
	return &InvestmentStore{
		data: make(map[string]*domain.Investment),
	}
}

// Insert adds a new investment. Returns ErrDuplicateKey if the id exists.
func (s *InvestmentStore) Insert(_ context.Context, inv *domain.Investment) error {
	if inv == nil || inv.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[inv.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[inv.ID] = cloneInvestment(inv)
	return nil
}

// GetByID retrieves an investment by its id.
func (s *InvestmentStore) GetByID(_ context.Context, id string) (*domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return cloneInvestment(inv), nil
}

// GetByRound retrieves all investments for a round, ordered by timestamp ASC, id ASC.
func (s *InvestmentStore) GetByRound(_ context.Context, roundAddress string) ([]*domain.Investment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Investment
	for _, inv := range s.data {
		if inv.RoundAddress == roundAddress {
			result = append(result, cloneInvestment(inv))
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

// SumUSDC returns the sum of usdc_amount over the whole ledger.
func (s *InvestmentStore) SumUSDC(_ context.Context) (*big.Int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := new(big.Int)
	for _, inv := range s.data {
		if inv.USDCAmount != nil {
			total.Add(total, inv.USDCAmount)
		}
	}
	return total, nil
}

// Verify interface compliance at compile time.
var _ storage.InvestmentStore = (*InvestmentStore)(nil)
