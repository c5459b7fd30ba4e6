package reducer

import (
	"context"
	"log"
	"math/big"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage/memory"
)

const testRound = "0x00000000000000000000000000000000000000aa"

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", log.LstdFlags)
}

func meta(tx string, idx uint32, ts int64) domain.EventMeta {
	return domain.EventMeta{
		Address:        testRound,
		BlockTimestamp: ts,
		TxHash:         tx,
		LogIndex:       idx,
	}
}

func createdEvent(ts int64) *domain.RoundCreated {
	return &domain.RoundCreated{
		EventMeta:        meta("0xtx-create", 0, ts),
		Founder:          "0x00000000000000000000000000000000000000F0",
		EquityToken:      "0x00000000000000000000000000000000000000E0",
		CompanyName:      "Acme Robotics",
		TargetRaise:      big.NewInt(1_000_000),
		EquityPercentage: 1500,
	}
}

func investmentEvent(tx string, ts int64, amount, tokens, total int64) *domain.InvestmentMade {
	return &domain.InvestmentMade{
		EventMeta:      meta(tx, 1, ts),
		Investor:       "0x00000000000000000000000000000000000000B0",
		USDCAmount:     big.NewInt(amount),
		TokensReceived: big.NewInt(tokens),
		TotalRaised:    big.NewInt(total),
	}
}

func TestRoundReducer_ApplyRoundCreated_NewRound(t *testing.T) {
	store := memory.NewRoundStore()
	r := NewRoundReducer(store, testLogger())
	ctx := context.Background()

	require.NoError(t, r.ApplyRoundCreated(ctx, testRound, createdEvent(1000)))

	round, err := store.GetByAddress(ctx, testRound)
	require.NoError(t, err)

	require.NotNil(t, round.Founder)
	assert.Equal(t, "0x00000000000000000000000000000000000000f0", *round.Founder)
	assert.Equal(t, "Acme Robotics", round.CompanyName)
	assert.Equal(t, int64(1500), round.EquityPercentage)
	assert.Equal(t, big.NewInt(1_000_000), round.TargetRaise)
	assert.Equal(t, domain.RoundStateFundraising, round.State)
	assert.False(t, round.Shell)
	assert.Zero(t, round.TotalRaised.Sign())
	assert.Zero(t, round.InvestorCount)
}

func TestRoundReducer_ApplyRoundCreated_MergesExistingShell(t *testing.T) {
	store := memory.NewRoundStore()
	r := NewRoundReducer(store, testLogger())
	ctx := context.Background()

	// Investment observed before the creation event forces a shell row.
	require.NoError(t, r.ApplyInvestmentMade(ctx, testRound, investmentEvent("0xtx-1", 900, 500, 50, 500)))

	shell, err := store.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	assert.True(t, shell.Shell)
	assert.Nil(t, shell.Founder)
	assert.Equal(t, int64(1), shell.InvestorCount)

	// The late creation event fills in the identity fields but must not
	// reset the accumulated totals.
	require.NoError(t, r.ApplyRoundCreated(ctx, testRound, createdEvent(1000)))

	round, err := store.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	assert.False(t, round.Shell)
	require.NotNil(t, round.Founder)
	assert.Equal(t, "Acme Robotics", round.CompanyName)
	assert.Equal(t, big.NewInt(500), round.TotalRaised)
	assert.Equal(t, big.NewInt(50), round.TokensIssued)
	assert.Equal(t, int64(1), round.InvestorCount)
}

func TestRoundReducer_ApplyInvestmentMade_SnapshotNotSum(t *testing.T) {
	store := memory.NewRoundStore()
	r := NewRoundReducer(store, testLogger())
	ctx := context.Background()

	require.NoError(t, r.ApplyRoundCreated(ctx, testRound, createdEvent(1000)))
	require.NoError(t, r.ApplyInvestmentMade(ctx, testRound, investmentEvent("0xtx-1", 1100, 500, 50, 500)))
	require.NoError(t, r.ApplyInvestmentMade(ctx, testRound, investmentEvent("0xtx-2", 1200, 300, 30, 800)))

	round, err := store.GetByAddress(ctx, testRound)
	require.NoError(t, err)

	// TotalRaised tracks the contract's snapshot, not a local sum.
	assert.Equal(t, big.NewInt(800), round.TotalRaised)
	assert.Equal(t, big.NewInt(80), round.TokensIssued)
	assert.Equal(t, int64(2), round.InvestorCount)
	assert.Equal(t, int64(1200), round.UpdatedAt)
}

func TestRoundReducer_ApplyRoundCompleted(t *testing.T) {
	store := memory.NewRoundStore()
	r := NewRoundReducer(store, testLogger())
	ctx := context.Background()

	require.NoError(t, r.ApplyRoundCreated(ctx, testRound, createdEvent(1000)))
	require.NoError(t, r.ApplyRoundCompleted(ctx, testRound, &domain.RoundCompleted{
		EventMeta:        meta("0xtx-done", 0, 2000),
		TotalRaised:      big.NewInt(1_000_000),
		CompletionTime:   1999,
		CompletionReason: 1,
	}))

	round, err := store.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStateCompleted, round.State)
	assert.True(t, round.State.Terminal())
	assert.Equal(t, big.NewInt(1_000_000), round.TotalRaised)
	assert.Equal(t, int64(1999), round.CompletionTime)
	assert.Equal(t, int16(1), round.CompletionReason)
}

func TestRoundReducer_ApplyRoundCompleted_CancelledStaysCancelled(t *testing.T) {
	store := memory.NewRoundStore()
	r := NewRoundReducer(store, testLogger())
	ctx := context.Background()

	require.NoError(t, r.ApplyRoundCreated(ctx, testRound, createdEvent(1000)))

	round, err := store.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	round.State = domain.RoundStateCancelled
	require.NoError(t, store.Update(ctx, round))

	require.NoError(t, r.ApplyRoundCompleted(ctx, testRound, &domain.RoundCompleted{
		EventMeta:      meta("0xtx-done", 0, 2000),
		TotalRaised:    big.NewInt(400),
		CompletionTime: 1999,
	}))

	round, err = store.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	assert.Equal(t, domain.RoundStateCancelled, round.State)
	assert.Equal(t, big.NewInt(400), round.TotalRaised)
	assert.Equal(t, int64(1999), round.CompletionTime)
}

func TestRoundReducer_ApplyRoundCompleted_CreatesShell(t *testing.T) {
	store := memory.NewRoundStore()
	r := NewRoundReducer(store, testLogger())
	ctx := context.Background()

	// Completion is the first event observed for this round.
	require.NoError(t, r.ApplyRoundCompleted(ctx, testRound, &domain.RoundCompleted{
		EventMeta:      meta("0xtx-done", 0, 2000),
		TotalRaised:    big.NewInt(700),
		CompletionTime: 1999,
	}))

	round, err := store.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	assert.True(t, round.Shell)
	assert.Equal(t, domain.RoundStateCompleted, round.State)
	assert.Equal(t, big.NewInt(700), round.TotalRaised)
}

func TestRoundReducer_ApplyFounderWithdrawal_Accumulates(t *testing.T) {
	store := memory.NewRoundStore()
	r := NewRoundReducer(store, testLogger())
	ctx := context.Background()

	require.NoError(t, r.ApplyRoundCreated(ctx, testRound, createdEvent(1000)))

	w1 := &domain.FounderWithdrawal{
		EventMeta:       meta("0xtx-w1", 0, 3000),
		Founder:         "0x00000000000000000000000000000000000000F0",
		PrincipalAmount: big.NewInt(150),
		YieldAmount:     big.NewInt(50),
		TotalAmount:     big.NewInt(200),
	}
	w2 := &domain.FounderWithdrawal{
		EventMeta:       meta("0xtx-w2", 0, 3100),
		Founder:         "0x00000000000000000000000000000000000000F0",
		PrincipalAmount: big.NewInt(250),
		YieldAmount:     big.NewInt(50),
		TotalAmount:     big.NewInt(300),
	}

	require.NoError(t, r.ApplyFounderWithdrawal(ctx, testRound, w1))
	require.NoError(t, r.ApplyFounderWithdrawal(ctx, testRound, w2))

	round, err := store.GetByAddress(ctx, testRound)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), round.TotalWithdrawn)
}
