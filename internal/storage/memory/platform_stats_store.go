package memory

import (
	"context"
	"math/big"
	"sync"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// PlatformStatsStore is an in-memory implementation of storage.PlatformStatsStore.
// The constructor seeds the singleton, mirroring the migration that seeds
// the Postgres row at bootstrap.
type PlatformStatsStore struct {
	mu    sync.RWMutex
	stats *domain.PlatformStats
}

// NewPlatformStatsStore creates a new in-memory stats store with the
// global row seeded at zero.
func NewPlatformStatsStore() *PlatformStatsStore {
	return &PlatformStatsStore{
		stats: &domain.PlatformStats{
			ID:          domain.PlatformStatsID,
			TotalRaised: new(big.Int),
		},
	}
}

// NewUnseededPlatformStatsStore creates a stats store with no singleton
// row, for exercising the missing-precondition path in tests.
func NewUnseededPlatformStatsStore() *PlatformStatsStore {
	return &PlatformStatsStore{}
}

// Get retrieves the global stats row.
func (s *PlatformStatsStore) Get(_ context.Context) (*domain.PlatformStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.stats == nil {
		return nil, storage.ErrNotFound
	}
	return cloneStats(s.stats), nil
}

// Update overwrites the global stats row. Returns ErrNotFound if absent.
func (s *PlatformStatsStore) Update(_ context.Context, stats *domain.PlatformStats) error {
	if stats == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stats == nil {
		return storage.ErrNotFound
	}

	c := cloneStats(stats)
	c.ID = domain.PlatformStatsID
	s.stats = c
	return nil
}

// Verify interface compliance at compile time.
var _ storage.PlatformStatsStore = (*PlatformStatsStore)(nil)
