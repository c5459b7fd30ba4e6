package ingestion

import (
	"context"
	"errors"
	"log"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"round-indexer/internal/domain"
	"round-indexer/internal/engine"
	"round-indexer/internal/reducer"
	"round-indexer/internal/storage"
	"round-indexer/internal/storage/memory"
)

// mockEventSource implements a controllable event source for testing.
type mockEventSource struct {
	ch chan domain.Event
}

func newMockEventSource() *mockEventSource {
	return &mockEventSource{
		ch: make(chan domain.Event, 100),
	}
}

func (m *mockEventSource) Subscribe(ctx context.Context) (<-chan domain.Event, error) {
	return m.ch, nil
}

func (m *mockEventSource) Send(ev domain.Event) {
	m.ch <- ev
}

type runnerHarness struct {
	rounds  *memory.RoundStore
	stats   *memory.PlatformStatsStore
	archive *memory.EventArchiveStore
	source  *mockEventSource
	runner  *Runner
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

func newRunnerHarness(flushInterval time.Duration) *runnerHarness {
	return newFlakyRunnerHarness(flushInterval, 0)
}

// newFlakyRunnerHarness wires the reducer graph over a round store whose
// first updateFailures Update calls fail, exercising the redispatch path.
func newFlakyRunnerHarness(flushInterval time.Duration, updateFailures int) *runnerHarness {
	logger := log.New(os.Stderr, "[test] ", log.LstdFlags)

	rounds := memory.NewRoundStore()
	investments := memory.NewInvestmentStore()
	stats := memory.NewPlatformStatsStore()
	archive := memory.NewEventArchiveStore()
	source := newMockEventSource()

	var roundStore storage.RoundStore = rounds
	if updateFailures > 0 {
		roundStore = &flakyRoundStore{RoundStore: rounds, failures: updateFailures}
	}

	roundReducer := reducer.NewRoundReducer(roundStore, logger)
	ledgerReducer := reducer.NewLedgerReducer(reducer.LedgerReducerOptions{
		Investments:   investments,
		Withdrawals:   memory.NewWithdrawalStore(),
		Claims:        memory.NewYieldClaimStore(),
		Distributions: memory.NewYieldDistributionStore(),
		Rounds:        roundReducer,
		Stats:         reducer.NewPlatformStatsReducer(stats, investments, logger),
		Logger:        logger,
	})
	dispatcher := engine.NewDispatcher(engine.DispatcherOptions{
		Rounds:  roundReducer,
		Ledgers: ledgerReducer,
		Logger:  logger,
	})

	return &runnerHarness{
		rounds:  rounds,
		stats:   stats,
		archive: archive,
		source:  source,
		runner: NewRunner(RunnerOptions{
			Source:        source,
			Dispatcher:    dispatcher,
			Archive:       archive,
			FlushInterval: flushInterval,
			Logger:        logger,
		}),
	}
}

func investment(address, tx string, ts int64, amount, total int64) *domain.InvestmentMade {
	return &domain.InvestmentMade{
		EventMeta: domain.EventMeta{
			Address:        address,
			BlockTimestamp: ts,
			TxHash:         tx,
			LogIndex:       0,
		},
		Investor:       "0x00000000000000000000000000000000000000b0",
		USDCAmount:     big.NewInt(amount),
		TokensReceived: big.NewInt(amount / 10),
		TotalRaised:    big.NewInt(total),
	}
}

func TestRunner_FlushesBufferedEventsInOrder(t *testing.T) {
	h := newRunnerHarness(50 * time.Millisecond)
	address := "0x00000000000000000000000000000000000000aa"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.runner.Run(ctx) }()

	// Deliver out of chain order within one flush window; the later
	// snapshot must win because the runner sorts before dispatch.
	h.source.Send(investment(address, "0xt2", 1200, 300, 800))
	h.source.Send(investment(address, "0xt1", 1100, 500, 500))

	require.Eventually(t, func() bool {
		round, err := h.rounds.GetByAddress(context.Background(), address)
		return err == nil && round.InvestorCount == 2
	}, 2*time.Second, 20*time.Millisecond)

	round, err := h.rounds.GetByAddress(context.Background(), address)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(800), round.TotalRaised)

	rows, err := h.archive.GetByTimeRange(context.Background(), 0, 10_000)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunner_FlushesOnShutdown(t *testing.T) {
	// Long flush interval: only the shutdown path can drain the buffer.
	h := newRunnerHarness(time.Hour)
	address := "0x00000000000000000000000000000000000000aa"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.runner.Run(ctx) }()

	h.source.Send(investment(address, "0xt1", 1100, 500, 500))

	// Give the runner time to buffer the event before cancelling.
	require.Eventually(t, func() bool {
		return len(h.source.ch) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	round, err := h.rounds.GetByAddress(context.Background(), address)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), round.TotalRaised)
	assert.Equal(t, int64(1), round.InvestorCount)
}

func TestRunner_RetriesEventsAfterTransientStoreFailure(t *testing.T) {
	// The first round update fails; the runner must carry the event into
	// the next flush instead of dropping it from the live path.
	h := newFlakyRunnerHarness(50*time.Millisecond, 1)
	address := "0x00000000000000000000000000000000000000aa"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.runner.Run(ctx) }()

	h.source.Send(investment(address, "0xt1", 1100, 500, 500))

	require.Eventually(t, func() bool {
		round, err := h.rounds.GetByAddress(context.Background(), address)
		return err == nil && round.InvestorCount == 1 && round.TokensIssued.Sign() > 0
	}, 2*time.Second, 20*time.Millisecond)

	round, err := h.rounds.GetByAddress(context.Background(), address)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), round.TotalRaised)
	assert.Equal(t, big.NewInt(50), round.TokensIssued)

	stats, err := h.stats.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), stats.TotalRaised)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestRunner_RedeliveredEventsDoNotDoubleCount(t *testing.T) {
	h := newRunnerHarness(50 * time.Millisecond)
	address := "0x00000000000000000000000000000000000000aa"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- h.runner.Run(ctx) }()

	ev := investment(address, "0xt1", 1100, 500, 500)
	h.source.Send(ev)
	h.source.Send(ev)

	require.Eventually(t, func() bool {
		stats, err := h.stats.Get(context.Background())
		return err == nil && stats.TotalRaised.Sign() > 0
	}, 2*time.Second, 20*time.Millisecond)

	// Settle one more flush window, then confirm nothing double-counted.
	time.Sleep(100 * time.Millisecond)

	round, err := h.rounds.GetByAddress(context.Background(), address)
	require.NoError(t, err)
	assert.Equal(t, int64(1), round.InvestorCount)

	stats, err := h.stats.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(500), stats.TotalRaised)

	cancel()
	<-done
}
