package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// YieldDistributionStore implements storage.YieldDistributionStore using PostgreSQL.
type YieldDistributionStore struct {
	pool *Pool
}

// NewYieldDistributionStore creates a new YieldDistributionStore.
func NewYieldDistributionStore(pool *Pool) *YieldDistributionStore {
	return &YieldDistributionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.YieldDistributionStore = (*YieldDistributionStore)(nil)

const yieldDistributionColumns = `
	id, round_address,
	total_yield::text, founder_yield::text, investor_yield::text,
	tx_hash, log_index, timestamp, created_at
`

// Insert adds a new distribution. Returns ErrDuplicateKey if the id exists.
func (s *YieldDistributionStore) Insert(ctx context.Context, d *domain.YieldDistribution) error {
	query := `
		INSERT INTO yield_distributions (
			id, round_address,
			total_yield, founder_yield, investor_yield,
			tx_hash, log_index, timestamp, created_at
		) VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		d.ID,
		d.RoundAddress,
		numericString(d.TotalYield),
		numericString(d.FounderYield),
		numericString(d.InvestorYield),
		d.TxHash,
		int64(d.LogIndex),
		d.Timestamp,
		d.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert yield distribution: %w", err)
	}
	return nil
}

// GetByID retrieves a distribution by its id.
func (s *YieldDistributionStore) GetByID(ctx context.Context, id string) (*domain.YieldDistribution, error) {
	query := `SELECT ` + yieldDistributionColumns + ` FROM yield_distributions WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	d, err := scanYieldDistribution(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get yield distribution by id: %w", err)
	}
	return d, nil
}

// GetByRound retrieves all distributions for a round, ordered by timestamp ASC, id ASC.
func (s *YieldDistributionStore) GetByRound(ctx context.Context, roundAddress string) ([]*domain.YieldDistribution, error) {
	query := `SELECT ` + yieldDistributionColumns + ` FROM yield_distributions
		WHERE round_address = $1
		ORDER BY timestamp ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, roundAddress)
	if err != nil {
		return nil, fmt.Errorf("get yield distributions by round: %w", err)
	}
	defer rows.Close()

	var distributions []*domain.YieldDistribution
	for rows.Next() {
		d, err := scanYieldDistribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan yield distribution row: %w", err)
		}
		distributions = append(distributions, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate yield distribution rows: %w", err)
	}

	return distributions, nil
}

// scanYieldDistribution scans a single row into a YieldDistribution.
func scanYieldDistribution(row pgx.Row) (*domain.YieldDistribution, error) {
	var d domain.YieldDistribution
	var total, founder, investor string
	var logIndex int64

	err := row.Scan(
		&d.ID,
		&d.RoundAddress,
		&total,
		&founder,
		&investor,
		&d.TxHash,
		&logIndex,
		&d.Timestamp,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.LogIndex = uint32(logIndex)
	if d.TotalYield, err = parseNumeric(total); err != nil {
		return nil, err
	}
	if d.FounderYield, err = parseNumeric(founder); err != nil {
		return nil, err
	}
	if d.InvestorYield, err = parseNumeric(investor); err != nil {
		return nil, err
	}
	return &d, nil
}
