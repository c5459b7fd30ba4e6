package postgres

import (
	"context"
	"fmt"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// PlatformStatsStore implements storage.PlatformStatsStore using PostgreSQL.
// The singleton row is seeded by migration; this store only reads and
// updates it.
type PlatformStatsStore struct {
	pool *Pool
}

// NewPlatformStatsStore creates a new PlatformStatsStore.
func NewPlatformStatsStore(pool *Pool) *PlatformStatsStore {
	return &PlatformStatsStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PlatformStatsStore = (*PlatformStatsStore)(nil)

// Get retrieves the global stats row.
func (s *PlatformStatsStore) Get(ctx context.Context) (*domain.PlatformStats, error) {
	query := `SELECT id, total_raised::text, updated_at FROM platform_stats WHERE id = $1`

	var stats domain.PlatformStats
	var totalRaised string

	err := s.pool.QueryRow(ctx, query, domain.PlatformStatsID).Scan(
		&stats.ID,
		&totalRaised,
		&stats.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get platform stats: %w", err)
	}

	if stats.TotalRaised, err = parseNumeric(totalRaised); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Update overwrites the global stats row. Returns ErrNotFound if absent.
func (s *PlatformStatsStore) Update(ctx context.Context, stats *domain.PlatformStats) error {
	query := `UPDATE platform_stats SET total_raised = $2::numeric, updated_at = $3 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		domain.PlatformStatsID,
		numericString(stats.TotalRaised),
		stats.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update platform stats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
