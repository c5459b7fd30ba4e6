package storage

import (
	"context"
	"math/big"

	"round-indexer/internal/domain"
)

// RoundStore provides access to the rounds aggregate table. Rounds are
// mutated exclusively by the reducers; external consumers read only.
type RoundStore interface {
	// Insert adds a new round. Returns ErrDuplicateKey if the address exists.
	Insert(ctx context.Context, r *domain.Round) error

	// GetByAddress retrieves a round by its contract address.
	// Returns ErrNotFound if not exists.
	GetByAddress(ctx context.Context, address string) (*domain.Round, error)

	// Update overwrites an existing round. Returns ErrNotFound if absent.
	Update(ctx context.Context, r *domain.Round) error

	// List retrieves all rounds ordered by created_at ASC, address ASC.
	List(ctx context.Context) ([]*domain.Round, error)
}

// InvestmentStore provides access to the investments ledger.
type InvestmentStore interface {
	// Insert adds a new investment. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, inv *domain.Investment) error

	// GetByID retrieves an investment by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Investment, error)

	// GetByRound retrieves all investments for a round, ordered by
	// timestamp ASC, id ASC.
	GetByRound(ctx context.Context, roundAddress string) ([]*domain.Investment, error)

	// SumUSDC returns the sum of usdc_amount over the whole ledger. The
	// platform-wide raised total is derived from it.
	SumUSDC(ctx context.Context) (*big.Int, error)
}

// WithdrawalStore provides access to the withdrawals ledger.
type WithdrawalStore interface {
	// Insert adds a new withdrawal. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, w *domain.Withdrawal) error

	// GetByID retrieves a withdrawal by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.Withdrawal, error)

	// GetByRound retrieves all withdrawals for a round, ordered by
	// timestamp ASC, id ASC.
	GetByRound(ctx context.Context, roundAddress string) ([]*domain.Withdrawal, error)
}

// YieldClaimStore provides access to the yield_claims ledger.
type YieldClaimStore interface {
	// Insert adds a new yield claim. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, c *domain.YieldClaim) error

	// GetByID retrieves a yield claim by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.YieldClaim, error)

	// GetByRound retrieves all yield claims for a round, ordered by
	// timestamp ASC, id ASC.
	GetByRound(ctx context.Context, roundAddress string) ([]*domain.YieldClaim, error)
}

// YieldDistributionStore provides access to the yield_distributions ledger.
type YieldDistributionStore interface {
	// Insert adds a new distribution. Returns ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, d *domain.YieldDistribution) error

	// GetByID retrieves a distribution by its id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.YieldDistribution, error)

	// GetByRound retrieves all distributions for a round, ordered by
	// timestamp ASC, id ASC.
	GetByRound(ctx context.Context, roundAddress string) ([]*domain.YieldDistribution, error)
}

// PlatformStatsStore provides access to the platform_stats singleton.
// The row is seeded at bootstrap; reducers only ever read and update it.
type PlatformStatsStore interface {
	// Get retrieves the global stats row. Returns ErrNotFound if the
	// singleton was never seeded.
	Get(ctx context.Context) (*domain.PlatformStats, error)

	// Update overwrites the global stats row. Returns ErrNotFound if absent.
	Update(ctx context.Context, s *domain.PlatformStats) error
}

// EventArchiveStore provides access to the append-only event archive used
// for replay and audit.
type EventArchiveStore interface {
	// Append stores a batch of archived events. Re-appending the same log
	// coordinates is tolerated; replay relies on reducer idempotency, not
	// archive uniqueness.
	Append(ctx context.Context, events []*domain.ArchivedEvent) error

	// GetByTimeRange retrieves events within [start, end) ordered by
	// (block_timestamp, tx_hash, log_index).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ArchivedEvent, error)
}
