package ingestion

import (
	"context"
	"errors"
	"log"
	"time"

	"round-indexer/internal/domain"
	"round-indexer/internal/engine"
	"round-indexer/internal/observability"
	"round-indexer/internal/storage"
)

const (
	maxArchiveRetries   = 3
	baseRetryDelay      = 500 * time.Millisecond
	maxDispatchAttempts = 5
)

// Runner orchestrates continuous ingestion: it subscribes to the event
// source, buffers incoming events, and on every flush archives the batch
// and dispatches each event through the engine in deterministic order.
type Runner struct {
	source        EventSource
	dispatcher    *engine.Dispatcher
	archive       storage.EventArchiveStore
	flushInterval time.Duration
	logger        *log.Logger

	// Buffer for deterministic ordering. Events are sorted by
	// (block_timestamp, tx_hash, log_index) before dispatch.
	buffer []domain.Event

	// Events whose dispatch failed transiently, carried into the next
	// flush. Re-applying is safe: the reducers repair a partial apply
	// instead of double counting.
	retry    []domain.Event
	attempts map[string]int
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	Source        EventSource
	Dispatcher    *engine.Dispatcher
	Archive       storage.EventArchiveStore // optional
	FlushInterval time.Duration             // Default: 5s
	Logger        *log.Logger
}

// NewRunner creates a new ingestion runner.
func NewRunner(opts RunnerOptions) *Runner {
	flushInterval := opts.FlushInterval
	if flushInterval == 0 {
		flushInterval = 5 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		source:        opts.Source,
		dispatcher:    opts.Dispatcher,
		archive:       opts.Archive,
		flushInterval: flushInterval,
		logger:        logger,
		attempts:      make(map[string]int),
	}
}

// Run starts continuous ingestion. It blocks until the context is
// cancelled; buffered events are flushed before returning.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Println("Starting ingestion runner...")

	eventsCh, err := r.source.Subscribe(ctx)
	if err != nil {
		return err
	}
	r.logger.Println("Subscribed to event feed")

	flushTicker := time.NewTicker(r.flushInterval)
	defer flushTicker.Stop()

	r.logger.Printf("Runner started, flush interval: %v", r.flushInterval)

	for {
		select {
		case <-ctx.Done():
			// Flush remaining events before shutdown. Use a fresh
			// context so the final writes are not cancelled mid-flight.
			flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			r.flush(flushCtx)
			cancel()
			r.logger.Println("Runner stopping...")
			return ctx.Err()

		case ev, ok := <-eventsCh:
			if !ok {
				r.logger.Println("Event channel closed")
				r.flush(ctx)
				return errors.New("event channel closed")
			}
			r.buffer = append(r.buffer, ev)
			observability.RecordEventBufferSize(len(r.buffer))

		case <-flushTicker.C:
			r.flush(ctx)
		}
	}
}

// flush sorts the buffered events, archives them, and dispatches each
// through the engine. An event whose apply fails is re-queued for the
// next flush so a transient store outage loses nothing; after
// maxDispatchAttempts failed applies the event is dropped and counted,
// leaving the archive as the recovery path.
func (r *Runner) flush(ctx context.Context) {
	if len(r.buffer) == 0 && len(r.retry) == 0 {
		return
	}

	fresh := r.buffer
	r.buffer = nil

	SortEvents(fresh)

	// Only fresh events reach the archive; carried-over events were
	// archived by the flush that first saw them.
	r.archiveBatch(ctx, fresh)

	events := append(r.retry, fresh...)
	r.retry = nil
	SortEvents(events)

	for _, ev := range events {
		if err := r.dispatcher.Apply(ctx, ev); err != nil {
			meta := ev.Meta()
			id := meta.LedgerID()

			r.attempts[id]++
			if r.attempts[id] >= maxDispatchAttempts {
				delete(r.attempts, id)
				r.logger.Printf("Dropping %s event (tx=%s log=%d) after %d failed applies: %v",
					ev.Kind(), meta.TxHash, meta.LogIndex, maxDispatchAttempts, err)
				observability.RecordEventDropped()
				continue
			}

			r.logger.Printf("Error applying %s event (tx=%s log=%d), will retry: %v",
				ev.Kind(), meta.TxHash, meta.LogIndex, err)
			r.retry = append(r.retry, ev)
			continue
		}
		delete(r.attempts, ev.Meta().LedgerID())
	}

	observability.RecordEventBufferSize(len(r.retry))
}

// archiveBatch writes the batch to the event archive with retry. Archive
// failures do not block dispatch; the live path keeps the read models
// current and the batch is logged for manual backfill.
func (r *Runner) archiveBatch(ctx context.Context, events []domain.Event) {
	if r.archive == nil {
		return
	}

	receivedAt := time.Now().Unix()
	rows := make([]*domain.ArchivedEvent, 0, len(events))
	for _, ev := range events {
		row, err := ToArchived(ev, receivedAt)
		if err != nil {
			meta := ev.Meta()
			r.logger.Printf("Error encoding %s event for archive (tx=%s log=%d): %v",
				ev.Kind(), meta.TxHash, meta.LogIndex, err)
			continue
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return
	}

	var lastErr error
	for attempt := 0; attempt < maxArchiveRetries; attempt++ {
		if err := r.archive.Append(ctx, rows); err != nil {
			lastErr = err

			if ctx.Err() != nil {
				break
			}

			// Exponential backoff: 500ms, 1s, 2s
			delay := baseRetryDelay * time.Duration(1<<attempt)
			r.logger.Printf("Retry %d/%d for archive append after %v: %v",
				attempt+1, maxArchiveRetries, delay, err)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}

		observability.RecordEventsArchived(len(rows))
		return
	}

	r.logger.Printf("Error archiving %d events after %d attempts: %v",
		len(rows), maxArchiveRetries, lastErr)
}
