package reducer

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
	"round-indexer/internal/storage/memory"
)

// testHarness bundles the reducer graph over in-memory stores.
type testHarness struct {
	rounds        *memory.RoundStore
	investments   *memory.InvestmentStore
	withdrawals   *memory.WithdrawalStore
	claims        *memory.YieldClaimStore
	distributions *memory.YieldDistributionStore
	stats         *memory.PlatformStatsStore
	ledger        *LedgerReducer
}

func newTestHarness() *testHarness {
	logger := testLogger()
	h := &testHarness{
		rounds:        memory.NewRoundStore(),
		investments:   memory.NewInvestmentStore(),
		withdrawals:   memory.NewWithdrawalStore(),
		claims:        memory.NewYieldClaimStore(),
		distributions: memory.NewYieldDistributionStore(),
		stats:         memory.NewPlatformStatsStore(),
	}
	h.ledger = NewLedgerReducer(LedgerReducerOptions{
		Investments:   h.investments,
		Withdrawals:   h.withdrawals,
		Claims:        h.claims,
		Distributions: h.distributions,
		Rounds:        NewRoundReducer(h.rounds, logger),
		Stats:         NewPlatformStatsReducer(h.stats, h.investments, logger),
		Logger:        logger,
	})
	return h
}

func TestLedgerReducer_RecordInvestment(t *testing.T) {
	h := newTestHarness()
	ctx := context.Background()

	ev := investmentEvent("0xtx-1", 1000, 500, 50, 500)
	require.NoError(t, h.ledger.RecordInvestment(ctx, testRound, ev))

	row, err := h.investments.GetByID(ctx, "0xtx-1-1")
	require.NoError(t, err)
	assert.Equal(t, testRound, row.RoundAddress)
	assert.Equal(t, big.NewInt(500), row.USDCAmount)
	assert.Equal(t, big.NewInt(50), row.TokensReceived)

	round, err := h.rounds.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), round.TotalRaised)
	assert.Equal(t, int64(1), round.InvestorCount)

	stats, err := h.stats.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), stats.TotalRaised)
	assert.Equal(t, int64(1000), stats.UpdatedAt)
}

func TestLedgerReducer_RecordInvestment_ReplayIsNoop(t *testing.T) {
	h := newTestHarness()
	ctx := context.Background()

	ev := investmentEvent("0xtx-1", 1000, 500, 50, 500)
	require.NoError(t, h.ledger.RecordInvestment(ctx, testRound, ev))
	// Same log delivered again: ledger insert hits the duplicate key and
	// no aggregate may move.
	require.NoError(t, h.ledger.RecordInvestment(ctx, testRound, ev))

	round, err := h.rounds.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), round.TotalRaised)
	assert.Equal(t, big.NewInt(50), round.TokensIssued)
	assert.Equal(t, int64(1), round.InvestorCount)

	stats, err := h.stats.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), stats.TotalRaised)

	rows, err := h.investments.GetByRound(ctx, testRound)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestLedgerReducer_RecordInvestment_DistinctLogsSameTx(t *testing.T) {
	h := newTestHarness()
	ctx := context.Background()

	ev1 := investmentEvent("0xtx-1", 1000, 500, 50, 500)
	ev2 := investmentEvent("0xtx-1", 1000, 300, 30, 800)
	ev2.LogIndex = 2

	require.NoError(t, h.ledger.RecordInvestment(ctx, testRound, ev1))
	require.NoError(t, h.ledger.RecordInvestment(ctx, testRound, ev2))

	rows, err := h.investments.GetByRound(ctx, testRound)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	round, err := h.rounds.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	assert.Equal(t, int64(2), round.InvestorCount)
	assert.Equal(t, big.NewInt(800), round.TotalRaised)
}

func TestLedgerReducer_RecordWithdrawal_ReplayIsNoop(t *testing.T) {
	h := newTestHarness()
	ctx := context.Background()

	ev := &domain.FounderWithdrawal{
		EventMeta:       meta("0xtx-w1", 0, 3000),
		Founder:         "0x00000000000000000000000000000000000000F0",
		PrincipalAmount: big.NewInt(150),
		YieldAmount:     big.NewInt(50),
		TotalAmount:     big.NewInt(200),
	}

	require.NoError(t, h.ledger.RecordWithdrawal(ctx, testRound, ev))
	require.NoError(t, h.ledger.RecordWithdrawal(ctx, testRound, ev))

	round, err := h.rounds.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), round.TotalWithdrawn)

	rows, err := h.withdrawals.GetByRound(ctx, testRound)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, "0x00000000000000000000000000000000000000f0", rows[0].Founder)
}

func TestLedgerReducer_RecordYieldClaim_Idempotent(t *testing.T) {
	h := newTestHarness()
	ctx := context.Background()

	ev := &domain.InvestorYieldClaimed{
		EventMeta: meta("0xtx-c1", 3, 4000),
		Investor:  "0x00000000000000000000000000000000000000B0",
		Amount:    big.NewInt(42),
	}

	require.NoError(t, h.ledger.RecordYieldClaim(ctx, testRound, ev))
	require.NoError(t, h.ledger.RecordYieldClaim(ctx, testRound, ev))

	rows, err := h.claims.GetByRound(ctx, testRound)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, big.NewInt(42), rows[0].Amount)
}

func TestLedgerReducer_RecordYieldDistribution_Idempotent(t *testing.T) {
	h := newTestHarness()
	ctx := context.Background()

	ev := &domain.YieldDistributed{
		EventMeta:     meta("0xtx-d1", 4, 5000),
		TotalYield:    big.NewInt(100),
		FounderYield:  big.NewInt(40),
		InvestorYield: big.NewInt(60),
	}

	require.NoError(t, h.ledger.RecordYieldDistribution(ctx, testRound, ev))
	require.NoError(t, h.ledger.RecordYieldDistribution(ctx, testRound, ev))

	rows, err := h.distributions.GetByRound(ctx, testRound)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, big.NewInt(100), rows[0].TotalYield)
	assert.Equal(t, big.NewInt(40), rows[0].FounderYield)
	assert.Equal(t, big.NewInt(60), rows[0].InvestorYield)
}

// flakyRoundStore fails a fixed number of Update calls before delegating
// to the wrapped store.
type flakyRoundStore struct {
	storage.RoundStore
	failures int
}

func (s *flakyRoundStore) Update(ctx context.Context, r *domain.Round) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("round store unavailable")
	}
	return s.RoundStore.Update(ctx, r)
}

// flakyStatsStore fails a fixed number of Update calls before delegating
// to the wrapped store.
type flakyStatsStore struct {
	storage.PlatformStatsStore
	failures int
}

func (s *flakyStatsStore) Update(ctx context.Context, st *domain.PlatformStats) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("stats store unavailable")
	}
	return s.PlatformStatsStore.Update(ctx, st)
}

func TestLedgerReducer_RetryAfterRoundUpdateFailureRepairsAggregates(t *testing.T) {
	logger := testLogger()
	rounds := memory.NewRoundStore()
	investments := memory.NewInvestmentStore()
	stats := memory.NewPlatformStatsStore()
	flaky := &flakyRoundStore{RoundStore: rounds, failures: 1}

	ledger := NewLedgerReducer(LedgerReducerOptions{
		Investments:   investments,
		Withdrawals:   memory.NewWithdrawalStore(),
		Claims:        memory.NewYieldClaimStore(),
		Distributions: memory.NewYieldDistributionStore(),
		Rounds:        NewRoundReducer(flaky, logger),
		Stats:         NewPlatformStatsReducer(stats, investments, logger),
		Logger:        logger,
	})
	ctx := context.Background()

	ev := investmentEvent("0xtx-1", 1000, 500, 50, 500)

	// First apply inserts the ledger row, then the round update fails.
	require.Error(t, ledger.RecordInvestment(ctx, testRound, ev))

	rows, err := investments.GetByRound(ctx, testRound)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	// Retrying the identical event hits the duplicate key; the aggregates
	// must be repaired from the ledger, not skipped.
	require.NoError(t, ledger.RecordInvestment(ctx, testRound, ev))

	round, err := rounds.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), round.TotalRaised)
	assert.Equal(t, big.NewInt(50), round.TokensIssued)
	assert.Equal(t, int64(1), round.InvestorCount)

	s, err := stats.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), s.TotalRaised)
}

func TestLedgerReducer_RetryAfterStatsFailureRepairsPlatformTotal(t *testing.T) {
	logger := testLogger()
	rounds := memory.NewRoundStore()
	investments := memory.NewInvestmentStore()
	stats := memory.NewPlatformStatsStore()
	flaky := &flakyStatsStore{PlatformStatsStore: stats, failures: 1}

	ledger := NewLedgerReducer(LedgerReducerOptions{
		Investments:   investments,
		Withdrawals:   memory.NewWithdrawalStore(),
		Claims:        memory.NewYieldClaimStore(),
		Distributions: memory.NewYieldDistributionStore(),
		Rounds:        NewRoundReducer(rounds, logger),
		Stats:         NewPlatformStatsReducer(flaky, investments, logger),
		Logger:        logger,
	})
	ctx := context.Background()

	ev := investmentEvent("0xtx-1", 1000, 500, 50, 500)

	// Round update lands, the stats write fails.
	require.Error(t, ledger.RecordInvestment(ctx, testRound, ev))

	require.NoError(t, ledger.RecordInvestment(ctx, testRound, ev))

	round, err := rounds.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	assert.Equal(t, int64(1), round.InvestorCount)
	assert.Equal(t, big.NewInt(50), round.TokensIssued)

	s, err := stats.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), s.TotalRaised)
}

func TestLedgerReducer_RecordWithdrawal_RetryAfterPartialFailure(t *testing.T) {
	logger := testLogger()
	rounds := memory.NewRoundStore()
	investments := memory.NewInvestmentStore()
	withdrawals := memory.NewWithdrawalStore()
	flaky := &flakyRoundStore{RoundStore: rounds, failures: 1}

	ledger := NewLedgerReducer(LedgerReducerOptions{
		Investments:   investments,
		Withdrawals:   withdrawals,
		Claims:        memory.NewYieldClaimStore(),
		Distributions: memory.NewYieldDistributionStore(),
		Rounds:        NewRoundReducer(flaky, logger),
		Stats:         NewPlatformStatsReducer(memory.NewPlatformStatsStore(), investments, logger),
		Logger:        logger,
	})
	ctx := context.Background()

	ev := &domain.FounderWithdrawal{
		EventMeta:       meta("0xtx-w1", 0, 3000),
		Founder:         "0x00000000000000000000000000000000000000F0",
		PrincipalAmount: big.NewInt(150),
		YieldAmount:     big.NewInt(50),
		TotalAmount:     big.NewInt(200),
	}

	require.Error(t, ledger.RecordWithdrawal(ctx, testRound, ev))
	require.NoError(t, ledger.RecordWithdrawal(ctx, testRound, ev))

	round, err := rounds.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(200), round.TotalWithdrawn)

	rows, err := withdrawals.GetByRound(ctx, testRound)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPlatformStatsReducer_MissingSingletonSkips(t *testing.T) {
	// An unseeded stats store must not fail the investment path.
	stats := memory.NewUnseededPlatformStatsStore()
	p := NewPlatformStatsReducer(stats, memory.NewInvestmentStore(), testLogger())

	err := p.ApplyInvestmentToStats(context.Background(), 1000)
	assert.NoError(t, err)
}

func TestPlatformStatsReducer_AccumulatesAcrossRounds(t *testing.T) {
	h := newTestHarness()
	ctx := context.Background()

	ev1 := investmentEvent("0xtx-1", 1000, 500, 50, 500)
	ev2 := investmentEvent("0xtx-2", 1100, 300, 30, 300)

	require.NoError(t, h.ledger.RecordInvestment(ctx, testRound, ev1))
	require.NoError(t, h.ledger.RecordInvestment(ctx, "0x00000000000000000000000000000000000000bb", ev2))

	s, err := h.stats.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(800), s.TotalRaised)
	assert.Equal(t, int64(1100), s.UpdatedAt)
}
