package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// RoundStore implements storage.RoundStore using PostgreSQL.
type RoundStore struct {
	pool *Pool
}

// NewRoundStore creates a new RoundStore.
func NewRoundStore(pool *Pool) *RoundStore {
	return &RoundStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RoundStore = (*RoundStore)(nil)

const roundColumns = `
	address, founder, equity_token, company_name,
	target_raise::text, equity_percentage,
	total_raised::text, total_withdrawn::text, tokens_issued::text,
	investor_count, state, completion_time, completion_reason, shell,
	created_at, updated_at
`

// Insert adds a new round. Returns ErrDuplicateKey if the address exists.
func (s *RoundStore) Insert(ctx context.Context, r *domain.Round) error {
	query := `
		INSERT INTO rounds (
			address, founder, equity_token, company_name,
			target_raise, equity_percentage,
			total_raised, total_withdrawn, tokens_issued,
			investor_count, state, completion_time, completion_reason, shell,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5::numeric, $6,
			$7::numeric, $8::numeric, $9::numeric,
			$10, $11, $12, $13, $14,
			$15, $16
		)
	`

	_, err := s.pool.Exec(ctx, query,
		r.Address,
		r.Founder,
		r.EquityToken,
		r.CompanyName,
		numericString(r.TargetRaise),
		r.EquityPercentage,
		numericString(r.TotalRaised),
		numericString(r.TotalWithdrawn),
		numericString(r.TokensIssued),
		r.InvestorCount,
		int16(r.State),
		r.CompletionTime,
		r.CompletionReason,
		r.Shell,
		r.CreatedAt,
		r.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert round: %w", err)
	}
	return nil
}

// GetByAddress retrieves a round by its contract address.
func (s *RoundStore) GetByAddress(ctx context.Context, address string) (*domain.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds WHERE address = $1`

	row := s.pool.QueryRow(ctx, query, address)
	r, err := scanRound(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get round by address: %w", err)
	}
	return r, nil
}

// Update overwrites an existing round. Returns ErrNotFound if absent.
func (s *RoundStore) Update(ctx context.Context, r *domain.Round) error {
	query := `
		UPDATE rounds SET
			founder = $2,
			equity_token = $3,
			company_name = $4,
			target_raise = $5::numeric,
			equity_percentage = $6,
			total_raised = $7::numeric,
			total_withdrawn = $8::numeric,
			tokens_issued = $9::numeric,
			investor_count = $10,
			state = $11,
			completion_time = $12,
			completion_reason = $13,
			shell = $14,
			updated_at = $15
		WHERE address = $1
	`

	tag, err := s.pool.Exec(ctx, query,
		r.Address,
		r.Founder,
		r.EquityToken,
		r.CompanyName,
		numericString(r.TargetRaise),
		r.EquityPercentage,
		numericString(r.TotalRaised),
		numericString(r.TotalWithdrawn),
		numericString(r.TokensIssued),
		r.InvestorCount,
		int16(r.State),
		r.CompletionTime,
		r.CompletionReason,
		r.Shell,
		r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List retrieves all rounds ordered by created_at ASC, address ASC.
func (s *RoundStore) List(ctx context.Context) ([]*domain.Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds ORDER BY created_at ASC, address ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []*domain.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round row: %w", err)
		}
		rounds = append(rounds, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate round rows: %w", err)
	}

	return rounds, nil
}

// scanRound scans a single row into a Round.
func scanRound(row pgx.Row) (*domain.Round, error) {
	var r domain.Round
	var targetRaise, totalRaised, totalWithdrawn, tokensIssued string
	var state int16

	err := row.Scan(
		&r.Address,
		&r.Founder,
		&r.EquityToken,
		&r.CompanyName,
		&targetRaise,
		&r.EquityPercentage,
		&totalRaised,
		&totalWithdrawn,
		&tokensIssued,
		&r.InvestorCount,
		&state,
		&r.CompletionTime,
		&r.CompletionReason,
		&r.Shell,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.State = domain.RoundState(state)
	if r.TargetRaise, err = parseNumeric(targetRaise); err != nil {
		return nil, err
	}
	if r.TotalRaised, err = parseNumeric(totalRaised); err != nil {
		return nil, err
	}
	if r.TotalWithdrawn, err = parseNumeric(totalWithdrawn); err != nil {
		return nil, err
	}
	if r.TokensIssued, err = parseNumeric(tokensIssued); err != nil {
		return nil, err
	}
	return &r, nil
}
