package reducer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"

	"round-indexer/internal/domain"
	"round-indexer/internal/identity"
	"round-indexer/internal/observability"
	"round-indexer/internal/storage"
)

// RoundReducer maintains the single mutable aggregate entity per round
// contract. The caller (the dispatcher) serializes invocations per round
// address; the reducer itself holds no locks.
type RoundReducer struct {
	rounds storage.RoundStore
	logger *log.Logger
}

// NewRoundReducer creates a new round reducer.
func NewRoundReducer(rounds storage.RoundStore, logger *log.Logger) *RoundReducer {
	if logger == nil {
		logger = log.Default()
	}
	return &RoundReducer{rounds: rounds, logger: logger}
}

// ApplyRoundCreated populates a round's creation fields. The creation
// event is not guaranteed to be the first event observed for a round: if
// an earlier event already forced a shell row into existence, only the
// fields carried by this event are written and the accumulated running
// totals are left untouched.
func (r *RoundReducer) ApplyRoundCreated(ctx context.Context, address string, ev *domain.RoundCreated) error {
	founder := identity.Normalize(ev.Founder)
	equityToken := identity.Normalize(ev.EquityToken)

	existing, err := r.rounds.GetByAddress(ctx, address)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		round := &domain.Round{
			Address:          address,
			Founder:          &founder,
			EquityToken:      &equityToken,
			CompanyName:      ev.CompanyName,
			TargetRaise:      bigOrZero(ev.TargetRaise),
			EquityPercentage: ev.EquityPercentage,
			TotalRaised:      new(big.Int),
			TotalWithdrawn:   new(big.Int),
			TokensIssued:     new(big.Int),
			State:            domain.RoundStateFundraising,
			CreatedAt:        ev.BlockTimestamp,
			UpdatedAt:        ev.BlockTimestamp,
		}
		err = r.rounds.Insert(ctx, round)
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Lost a race with a retry of this same event; merge instead.
			existing, err = r.rounds.GetByAddress(ctx, address)
			if err != nil {
				return fmt.Errorf("reload round %s: %w", address, err)
			}
		} else if err != nil {
			return fmt.Errorf("insert round %s: %w", address, err)
		} else {
			return nil
		}
	case err != nil:
		return fmt.Errorf("get round %s: %w", address, err)
	}

	// Shell observed before its creation event: fill in the creation
	// fields, never the running totals already accumulated.
	existing.Founder = &founder
	existing.EquityToken = &equityToken
	existing.CompanyName = ev.CompanyName
	existing.TargetRaise = bigOrZero(ev.TargetRaise)
	existing.EquityPercentage = ev.EquityPercentage
	existing.Shell = false
	existing.UpdatedAt = ev.BlockTimestamp

	if err := r.rounds.Update(ctx, existing); err != nil {
		return fmt.Errorf("update round %s: %w", address, err)
	}
	return nil
}

// ApplyInvestmentMade folds one investment into the round aggregate.
// TotalRaised is set from the authoritative snapshot carried by the event;
// TokensIssued and InvestorCount are local increments and must only be
// applied once per distinct log (the ledger reducer guarantees that).
func (r *RoundReducer) ApplyInvestmentMade(ctx context.Context, address string, ev *domain.InvestmentMade) error {
	round, err := r.getOrCreateShell(ctx, address, ev.BlockTimestamp)
	if err != nil {
		return err
	}

	round.TotalRaised = bigOrZero(ev.TotalRaised)
	round.TokensIssued = new(big.Int).Add(bigOrZero(round.TokensIssued), bigOrZero(ev.TokensReceived))
	round.InvestorCount++
	round.UpdatedAt = ev.BlockTimestamp

	if err := r.rounds.Update(ctx, round); err != nil {
		return fmt.Errorf("update round %s: %w", address, err)
	}
	return nil
}

// ApplyRoundCompleted moves a round into the Completed terminal state and
// records the final raise snapshot. A round already Cancelled keeps its
// terminal state; the completion facts are still recorded.
func (r *RoundReducer) ApplyRoundCompleted(ctx context.Context, address string, ev *domain.RoundCompleted) error {
	round, err := r.getOrCreateShell(ctx, address, ev.BlockTimestamp)
	if err != nil {
		return err
	}

	if round.State != domain.RoundStateCancelled {
		round.State = domain.RoundStateCompleted
	}
	round.TotalRaised = bigOrZero(ev.TotalRaised)
	round.CompletionTime = ev.CompletionTime
	round.CompletionReason = ev.CompletionReason
	round.UpdatedAt = ev.BlockTimestamp

	if err := r.rounds.Update(ctx, round); err != nil {
		return fmt.Errorf("update round %s: %w", address, err)
	}
	return nil
}

// ApplyFounderWithdrawal adds one withdrawal's total to the round's
// withdrawn sum. Like the investment increments, the caller must apply it
// at most once per distinct log.
func (r *RoundReducer) ApplyFounderWithdrawal(ctx context.Context, address string, ev *domain.FounderWithdrawal) error {
	round, err := r.getOrCreateShell(ctx, address, ev.BlockTimestamp)
	if err != nil {
		return err
	}

	round.TotalWithdrawn = new(big.Int).Add(bigOrZero(round.TotalWithdrawn), bigOrZero(ev.TotalAmount))
	round.UpdatedAt = ev.BlockTimestamp

	if err := r.rounds.Update(ctx, round); err != nil {
		return fmt.Errorf("update round %s: %w", address, err)
	}
	return nil
}

// ReconcileInvestments rewrites the round's investment aggregates from
// the full set of ledger rows for that round. A redelivered log may be
// the retry of an apply that inserted its ledger row but failed before
// the increments landed; recomputing from the rows repairs that without
// ever double counting. Rows arrive in (timestamp, id) order, so the
// last row carries the freshest raise snapshot.
func (r *RoundReducer) ReconcileInvestments(ctx context.Context, address string, rows []*domain.Investment, ts int64) error {
	if len(rows) == 0 {
		return nil
	}

	round, err := r.getOrCreateShell(ctx, address, ts)
	if err != nil {
		return err
	}

	tokens := new(big.Int)
	for _, row := range rows {
		tokens.Add(tokens, bigOrZero(row.TokensReceived))
	}

	round.TotalRaised = bigOrZero(rows[len(rows)-1].TotalRaised)
	round.TokensIssued = tokens
	round.InvestorCount = int64(len(rows))
	round.UpdatedAt = ts

	if err := r.rounds.Update(ctx, round); err != nil {
		return fmt.Errorf("update round %s: %w", address, err)
	}
	return nil
}

// ReconcileWithdrawals rewrites the round's withdrawn sum from the full
// set of withdrawal ledger rows, repairing a partially applied
// withdrawal the same way ReconcileInvestments repairs investments.
func (r *RoundReducer) ReconcileWithdrawals(ctx context.Context, address string, rows []*domain.Withdrawal, ts int64) error {
	if len(rows) == 0 {
		return nil
	}

	round, err := r.getOrCreateShell(ctx, address, ts)
	if err != nil {
		return err
	}

	withdrawn := new(big.Int)
	for _, row := range rows {
		withdrawn.Add(withdrawn, bigOrZero(row.TotalAmount))
	}

	round.TotalWithdrawn = withdrawn
	round.UpdatedAt = ts

	if err := r.rounds.Update(ctx, round); err != nil {
		return fmt.Errorf("update round %s: %w", address, err)
	}
	return nil
}

// getOrCreateShell returns the round row, inserting a minimal shell when
// none exists yet. Facts arriving before RoundCreated are held instead of
// dropped; the creation event reconciles the shell later.
func (r *RoundReducer) getOrCreateShell(ctx context.Context, address string, ts int64) (*domain.Round, error) {
	round, err := r.rounds.GetByAddress(ctx, address)
	if err == nil {
		return round, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("get round %s: %w", address, err)
	}

	shell := domain.NewShellRound(address, ts)
	err = r.rounds.Insert(ctx, shell)
	if errors.Is(err, storage.ErrDuplicateKey) {
		round, err = r.rounds.GetByAddress(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("reload round %s: %w", address, err)
		}
		return round, nil
	}
	if err != nil {
		return nil, fmt.Errorf("insert shell round %s: %w", address, err)
	}

	r.logger.Printf("created shell round for %s", address)
	observability.RecordShellRoundCreated()
	return shell, nil
}
