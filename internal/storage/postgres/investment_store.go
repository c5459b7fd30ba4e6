package postgres

import (
	"context"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// InvestmentStore implements storage.InvestmentStore using PostgreSQL.
type InvestmentStore struct {
	pool *Pool
}

// NewInvestmentStore creates a new InvestmentStore.
func NewInvestmentStore(pool *Pool) *InvestmentStore {
	return &InvestmentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.InvestmentStore = (*InvestmentStore)(nil)

const investmentColumns = `
	id, round_address, investor,
	usdc_amount::text, tokens_received::text, total_raised::text,
	tx_hash, log_index, timestamp, created_at
`

// Insert adds a new investment. Returns ErrDuplicateKey if the id exists.
func (s *InvestmentStore) Insert(ctx context.Context, inv *domain.Investment) error {
	query := `
		INSERT INTO investments (
			id, round_address, investor,
			usdc_amount, tokens_received, total_raised,
			tx_hash, log_index, timestamp, created_at
		) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		inv.ID,
		inv.RoundAddress,
		inv.Investor,
		numericString(inv.USDCAmount),
		numericString(inv.TokensReceived),
		numericString(inv.TotalRaised),
		inv.TxHash,
		int64(inv.LogIndex),
		inv.Timestamp,
		inv.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert investment: %w", err)
	}
	return nil
}

// GetByID retrieves an investment by its id.
func (s *InvestmentStore) GetByID(ctx context.Context, id string) (*domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	inv, err := scanInvestment(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get investment by id: %w", err)
	}
	return inv, nil
}

// GetByRound retrieves all investments for a round, ordered by timestamp ASC, id ASC.
func (s *InvestmentStore) GetByRound(ctx context.Context, roundAddress string) ([]*domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments
		WHERE round_address = $1
		ORDER BY timestamp ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, roundAddress)
	if err != nil {
		return nil, fmt.Errorf("get investments by round: %w", err)
	}
	defer rows.Close()

	var investments []*domain.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan investment row: %w", err)
		}
		investments = append(investments, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate investment rows: %w", err)
	}

	return investments, nil
}

// SumUSDC returns the sum of usdc_amount over the whole ledger.
func (s *InvestmentStore) SumUSDC(ctx context.Context) (*big.Int, error) {
	query := `SELECT COALESCE(SUM(usdc_amount), 0)::text FROM investments`

	var sum string
	if err := s.pool.QueryRow(ctx, query).Scan(&sum); err != nil {
		return nil, fmt.Errorf("sum investments: %w", err)
	}
	return parseNumeric(sum)
}

// scanInvestment scans a single row into an Investment.
func scanInvestment(row pgx.Row) (*domain.Investment, error) {
	var inv domain.Investment
	var usdcAmount, tokensReceived, totalRaised string
	var logIndex int64

	err := row.Scan(
		&inv.ID,
		&inv.RoundAddress,
		&inv.Investor,
		&usdcAmount,
		&tokensReceived,
		&totalRaised,
		&inv.TxHash,
		&logIndex,
		&inv.Timestamp,
		&inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.LogIndex = uint32(logIndex)
	if inv.USDCAmount, err = parseNumeric(usdcAmount); err != nil {
		return nil, err
	}
	if inv.TokensReceived, err = parseNumeric(tokensReceived); err != nil {
		return nil, err
	}
	if inv.TotalRaised, err = parseNumeric(totalRaised); err != nil {
		return nil, err
	}
	return &inv, nil
}
