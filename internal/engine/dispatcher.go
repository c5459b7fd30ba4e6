// Package engine routes decoded contract events to their reducers.
package engine

import (
	"context"
	"log"
	"time"

	"round-indexer/internal/domain"
	"round-indexer/internal/identity"
	"round-indexer/internal/observability"
	"round-indexer/internal/reducer"
)

// Dispatcher applies one decoded event to the materialized view. It
// normalizes the round address, takes the per-round write lock and invokes
// the reducer for the event's concrete type. The type switch covers the
// closed variant set exhaustively; the default arm only fires if a new
// kind is added without wiring it here, and drops the event with a warning
// rather than halting the stream.
type Dispatcher struct {
	rounds  *reducer.RoundReducer
	ledgers *reducer.LedgerReducer
	locks   *roundLocks
	logger  *log.Logger
}

// DispatcherOptions contains dependencies for creating a Dispatcher.
type DispatcherOptions struct {
	Rounds  *reducer.RoundReducer
	Ledgers *reducer.LedgerReducer
	Logger  *log.Logger
}

// NewDispatcher creates a new dispatcher.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		rounds:  opts.Rounds,
		ledgers: opts.Ledgers,
		locks:   newRoundLocks(),
		logger:  logger,
	}
}

// Apply routes one event to its reducer(s). Events for the same round are
// never applied concurrently; events for distinct rounds may be. A
// returned error means the store rejected the write transiently - the
// caller may retry with the identical event, which is safe because every
// reducer operation is idempotent.
func (d *Dispatcher) Apply(ctx context.Context, ev domain.Event) error {
	address := identity.Normalize(ev.RoundAddress())

	unlock := d.locks.acquire(address)
	defer unlock()

	start := time.Now()
	kind := string(ev.Kind())

	var err error
	switch e := ev.(type) {
	case *domain.RoundCreated:
		err = d.rounds.ApplyRoundCreated(ctx, address, e)
	case *domain.InvestmentMade:
		err = d.ledgers.RecordInvestment(ctx, address, e)
	case *domain.RoundCompleted:
		err = d.rounds.ApplyRoundCompleted(ctx, address, e)
	case *domain.FounderWithdrawal:
		err = d.ledgers.RecordWithdrawal(ctx, address, e)
	case *domain.InvestorYieldClaimed:
		err = d.ledgers.RecordYieldClaim(ctx, address, e)
	case *domain.YieldDistributed:
		err = d.ledgers.RecordYieldDistribution(ctx, address, e)
	case *domain.PlatformFeeCollected:
		// Observed only; produces no state mutation.
	default:
		d.logger.Printf("dropping unroutable event %T for round %s", ev, address)
		observability.RecordEventDropped()
		return nil
	}

	if err != nil {
		observability.RecordApplyError(kind)
		return err
	}

	observability.RecordApplyLatency(kind, time.Since(start).Seconds())
	observability.RecordEventApplied(kind, ev.BlockTime())
	return nil
}
