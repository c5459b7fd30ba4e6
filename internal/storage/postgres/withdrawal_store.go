package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// WithdrawalStore implements storage.WithdrawalStore using PostgreSQL.
type WithdrawalStore struct {
	pool *Pool
}

// NewWithdrawalStore creates a new WithdrawalStore.
func NewWithdrawalStore(pool *Pool) *WithdrawalStore {
	return &WithdrawalStore{pool: pool}
}

// Compile-time interface check.
var _ storage.WithdrawalStore = (*WithdrawalStore)(nil)

const withdrawalColumns = `
	id, round_address, founder,
	principal_amount::text, yield_amount::text, total_amount::text,
	tx_hash, log_index, timestamp, created_at
`

// Insert adds a new withdrawal. Returns ErrDuplicateKey if the id exists.
func (s *WithdrawalStore) Insert(ctx context.Context, w *domain.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (
			id, round_address, founder,
			principal_amount, yield_amount, total_amount,
			tx_hash, log_index, timestamp, created_at
		) VALUES ($1, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7, $8, $9, $10)
	`

	_, err := s.pool.Exec(ctx, query,
		w.ID,
		w.RoundAddress,
		w.Founder,
		numericString(w.PrincipalAmount),
		numericString(w.YieldAmount),
		numericString(w.TotalAmount),
		w.TxHash,
		int64(w.LogIndex),
		w.Timestamp,
		w.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert withdrawal: %w", err)
	}
	return nil
}

// GetByID retrieves a withdrawal by its id.
func (s *WithdrawalStore) GetByID(ctx context.Context, id string) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`

	row := s.pool.QueryRow(ctx, query, id)
	w, err := scanWithdrawal(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get withdrawal by id: %w", err)
	}
	return w, nil
}

// GetByRound retrieves all withdrawals for a round, ordered by timestamp ASC, id ASC.
func (s *WithdrawalStore) GetByRound(ctx context.Context, roundAddress string) ([]*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals
		WHERE round_address = $1
		ORDER BY timestamp ASC, id ASC`

	rows, err := s.pool.Query(ctx, query, roundAddress)
	if err != nil {
		return nil, fmt.Errorf("get withdrawals by round: %w", err)
	}
	defer rows.Close()

	var withdrawals []*domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal row: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate withdrawal rows: %w", err)
	}

	return withdrawals, nil
}

// scanWithdrawal scans a single row into a Withdrawal.
func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	var principal, yield, total string
	var logIndex int64

	err := row.Scan(
		&w.ID,
		&w.RoundAddress,
		&w.Founder,
		&principal,
		&yield,
		&total,
		&w.TxHash,
		&logIndex,
		&w.Timestamp,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.LogIndex = uint32(logIndex)
	if w.PrincipalAmount, err = parseNumeric(principal); err != nil {
		return nil, err
	}
	if w.YieldAmount, err = parseNumeric(yield); err != nil {
		return nil, err
	}
	if w.TotalAmount, err = parseNumeric(total); err != nil {
		return nil, err
	}
	return &w, nil
}
