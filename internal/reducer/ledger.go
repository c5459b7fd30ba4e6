package reducer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"round-indexer/internal/domain"
	"round-indexer/internal/identity"
	"round-indexer/internal/observability"
	"round-indexer/internal/storage"
)

// LedgerReducer appends one immutable row per on-chain action, keyed by
// "txHash-logIndex". The idempotent insert doubles as the replay guard:
// the increment-style aggregate updates for a log only run when its
// ledger row is inserted for the first time. A duplicate key means the
// log was seen before, but not that its aggregates landed: the previous
// apply may have failed between the insert and the round update. The
// duplicate path therefore reconciles the aggregates from the ledger
// rows instead of skipping, so retrying the identical event repairs a
// partial apply and re-delivery still can never double-count.
type LedgerReducer struct {
	investments   storage.InvestmentStore
	withdrawals   storage.WithdrawalStore
	claims        storage.YieldClaimStore
	distributions storage.YieldDistributionStore

	rounds *RoundReducer
	stats  *PlatformStatsReducer
	logger *log.Logger
}

// LedgerReducerOptions contains dependencies for creating a LedgerReducer.
type LedgerReducerOptions struct {
	Investments   storage.InvestmentStore
	Withdrawals   storage.WithdrawalStore
	Claims        storage.YieldClaimStore
	Distributions storage.YieldDistributionStore
	Rounds        *RoundReducer
	Stats         *PlatformStatsReducer
	Logger        *log.Logger
}

// NewLedgerReducer creates a new ledger reducer.
func NewLedgerReducer(opts LedgerReducerOptions) *LedgerReducer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &LedgerReducer{
		investments:   opts.Investments,
		withdrawals:   opts.Withdrawals,
		claims:        opts.Claims,
		distributions: opts.Distributions,
		rounds:        opts.Rounds,
		stats:         opts.Stats,
		logger:        logger,
	}
}

// RecordInvestment appends the investment ledger row and folds the
// investment into the round aggregate and the platform stats. A
// redelivered log reconciles the aggregates from the ledger rows
// instead of incrementing again.
func (l *LedgerReducer) RecordInvestment(ctx context.Context, address string, ev *domain.InvestmentMade) error {
	row := &domain.Investment{
		ID:             ev.LedgerID(),
		RoundAddress:   address,
		Investor:       identity.Normalize(ev.Investor),
		USDCAmount:     bigOrZero(ev.USDCAmount),
		TokensReceived: bigOrZero(ev.TokensReceived),
		TotalRaised:    bigOrZero(ev.TotalRaised),
		TxHash:         ev.TxHash,
		LogIndex:       ev.LogIndex,
		Timestamp:      ev.BlockTimestamp,
		CreatedAt:      ev.BlockTimestamp,
	}

	err := l.investments.Insert(ctx, row)
	if errors.Is(err, storage.ErrDuplicateKey) {
		l.logger.Printf("redelivered investment %s, reconciling aggregates from the ledger", row.ID)
		observability.RecordDuplicateEvent(string(domain.KindInvestmentMade))

		rows, err := l.investments.GetByRound(ctx, address)
		if err != nil {
			return fmt.Errorf("load investments for %s: %w", address, err)
		}
		if err := l.rounds.ReconcileInvestments(ctx, address, rows, ev.BlockTimestamp); err != nil {
			return err
		}
		return l.stats.ApplyInvestmentToStats(ctx, ev.BlockTimestamp)
	}
	if err != nil {
		return fmt.Errorf("insert investment %s: %w", row.ID, err)
	}

	if err := l.rounds.ApplyInvestmentMade(ctx, address, ev); err != nil {
		return err
	}
	return l.stats.ApplyInvestmentToStats(ctx, ev.BlockTimestamp)
}

// RecordWithdrawal appends the withdrawal ledger row and adds the
// withdrawn total to the round aggregate. A redelivered log reconciles
// the withdrawn sum from the ledger rows instead of incrementing again.
func (l *LedgerReducer) RecordWithdrawal(ctx context.Context, address string, ev *domain.FounderWithdrawal) error {
	row := &domain.Withdrawal{
		ID:              ev.LedgerID(),
		RoundAddress:    address,
		Founder:         identity.Normalize(ev.Founder),
		PrincipalAmount: bigOrZero(ev.PrincipalAmount),
		YieldAmount:     bigOrZero(ev.YieldAmount),
		TotalAmount:     bigOrZero(ev.TotalAmount),
		TxHash:          ev.TxHash,
		LogIndex:        ev.LogIndex,
		Timestamp:       ev.BlockTimestamp,
		CreatedAt:       ev.BlockTimestamp,
	}

	err := l.withdrawals.Insert(ctx, row)
	if errors.Is(err, storage.ErrDuplicateKey) {
		l.logger.Printf("redelivered withdrawal %s, reconciling aggregates from the ledger", row.ID)
		observability.RecordDuplicateEvent(string(domain.KindFounderWithdrawal))

		rows, err := l.withdrawals.GetByRound(ctx, address)
		if err != nil {
			return fmt.Errorf("load withdrawals for %s: %w", address, err)
		}
		return l.rounds.ReconcileWithdrawals(ctx, address, rows, ev.BlockTimestamp)
	}
	if err != nil {
		return fmt.Errorf("insert withdrawal %s: %w", row.ID, err)
	}

	return l.rounds.ApplyFounderWithdrawal(ctx, address, ev)
}

// RecordYieldClaim appends the yield claim ledger row. No aggregate is
// derived from claims.
func (l *LedgerReducer) RecordYieldClaim(ctx context.Context, address string, ev *domain.InvestorYieldClaimed) error {
	row := &domain.YieldClaim{
		ID:           ev.LedgerID(),
		RoundAddress: address,
		Investor:     identity.Normalize(ev.Investor),
		Amount:       bigOrZero(ev.Amount),
		TxHash:       ev.TxHash,
		LogIndex:     ev.LogIndex,
		Timestamp:    ev.BlockTimestamp,
		CreatedAt:    ev.BlockTimestamp,
	}

	err := l.claims.Insert(ctx, row)
	if errors.Is(err, storage.ErrDuplicateKey) {
		observability.RecordDuplicateEvent(string(domain.KindInvestorYieldClaimed))
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert yield claim %s: %w", row.ID, err)
	}
	return nil
}

// RecordYieldDistribution appends the yield distribution ledger row. No
// aggregate is derived from distributions.
func (l *LedgerReducer) RecordYieldDistribution(ctx context.Context, address string, ev *domain.YieldDistributed) error {
	row := &domain.YieldDistribution{
		ID:            ev.LedgerID(),
		RoundAddress:  address,
		TotalYield:    bigOrZero(ev.TotalYield),
		FounderYield:  bigOrZero(ev.FounderYield),
		InvestorYield: bigOrZero(ev.InvestorYield),
		TxHash:        ev.TxHash,
		LogIndex:      ev.LogIndex,
		Timestamp:     ev.BlockTimestamp,
		CreatedAt:     ev.BlockTimestamp,
	}

	err := l.distributions.Insert(ctx, row)
	if errors.Is(err, storage.ErrDuplicateKey) {
		observability.RecordDuplicateEvent(string(domain.KindYieldDistributed))
		return nil
	}
	if err != nil {
		return fmt.Errorf("insert yield distribution %s: %w", row.ID, err)
	}
	return nil
}
