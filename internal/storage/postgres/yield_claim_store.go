package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// YieldClaimStore implements storage.YieldClaimStore using PostgreSQL.
type YieldClaimStore struct {
	pool *Pool
}

// NewYieldClaimStore creates a new YieldClaimStore.
func NewYieldClaimStore(pool *Pool) *YieldClaimStore {
	return &YieldClaimStore{pool: pool}
}

// Compile-time interface check.
var _ storage.YieldClaimStore = (*YieldClaimStore)(nil)

const yieldClaimColumns = `
	id, round_address, investor, amount::text,
	tx_hash, log_index, timestamp, created_at
`

// Insert adds a new yield claim. Returns ErrDuplicateKey if the id exists.
func (s *YieldClaimStore) Insert(ctx context.Context, c *domain.YieldClaim) error {
	query := `
		INSERT INTO yield_claims (
			id, round_address, investor, amount,
			tx_hash, log_index, timestamp, created_at
		) VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		c.ID,
		c.RoundAddress,
		c.Investor,
		numericString(c.Amount),
		c.TxHash,
		int64(c.LogIndex),
		c.Timestamp,
		c.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert yield claim: %w", err)
	}
	return nil
}

// GetByID retrieves a yield claim by its id.
func (s *YieldClaimStore) GetByID(ctx context.Context, id string) (*domain.YieldClaim, error) {
	query := `SELECT ` + yieldClaimColumns + ` FROM yield_claims WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	c, err := scanYieldClaim(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get yield claim by id: %w", err)
	}
	return c, nil
}

// GetByRound retrieves all yield claims for a round, ordered by timestamp ASC, id ASC.
func (s *YieldClaimStore) GetByRound(ctx context.Context, roundAddress string) ([]*domain.YieldClaim, error) {
	query := `SELECT ` + yieldClaimColumns + ` FROM yield_claims
		WHERE round_address = $1
		ORDER BY timestamp ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, roundAddress)
	if err != nil {
		return nil, fmt.Errorf("get yield claims by round: %w", err)
	}
	defer rows.Close()

	var claims []*domain.YieldClaim
	for rows.Next() {
		c, err := scanYieldClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan yield claim row: %w", err)
		}
		claims = append(claims, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate yield claim rows: %w", err)
	}

	return claims, nil
}

// scanYieldClaim scans a single row into a YieldClaim.
func scanYieldClaim(row pgx.Row) (*domain.YieldClaim, error) {
	var c domain.YieldClaim
	var amount string
	var logIndex int64

	err := row.Scan(
		&c.ID,
		&c.RoundAddress,
		&c.Investor,
		&amount,
		&c.TxHash,
		&logIndex,
		&c.Timestamp,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.LogIndex = uint32(logIndex)
	if c.Amount, err = parseNumeric(amount); err != nil {
		return nil, err
	}
	return &c, nil
}
