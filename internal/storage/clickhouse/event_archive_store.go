package clickhouse

import (
	"context"
	"fmt"

	"round-indexer/internal/domain"
	"round-indexer/internal/storage"
)

// EventArchiveStore implements storage.EventArchiveStore using ClickHouse.
// MergeTree does not enforce uniqueness, so re-appended log coordinates
// simply produce extra rows; replay through the engine stays correct
// because the reducers are idempotent.
type EventArchiveStore struct {
	conn *Conn
}

// NewEventArchiveStore creates a new EventArchiveStore.
func NewEventArchiveStore(conn *Conn) *EventArchiveStore {
	return &EventArchiveStore{conn: conn}
}

// Compile-time interface check.
var _ storage.EventArchiveStore = (*EventArchiveStore)(nil)

// Append stores a batch of archived events.
func (s *EventArchiveStore) Append(ctx context.Context, events []*domain.ArchivedEvent) error {
	if len(events) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO event_archive (
			kind, address, tx_hash, log_index, block_timestamp, payload, received_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range events {
		err = batch.Append(
			e.Kind, e.Address, e.TxHash, e.LogIndex,
			e.BlockTimestamp, string(e.Payload), e.ReceivedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByTimeRange retrieves events within [start, end) ordered by
// (block_timestamp, tx_hash, log_index).
func (s *EventArchiveStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.ArchivedEvent, error) {
	query := `
		SELECT kind, address, tx_hash, log_index, block_timestamp, payload, received_at
		FROM event_archive
		WHERE block_timestamp >= ? AND block_timestamp < ?
		ORDER BY block_timestamp ASC, tx_hash ASC, log_index ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query archive by time range: %w", err)
	}
	defer rows.Close()

	var events []*domain.ArchivedEvent
	for rows.Next() {
		var e domain.ArchivedEvent
		var payload string

		err := rows.Scan(
			&e.Kind, &e.Address, &e.TxHash, &e.LogIndex,
			&e.BlockTimestamp, &payload, &e.ReceivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan archive row: %w", err)
		}

		e.Payload = []byte(payload)
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate archive rows: %w", err)
	}

	return events, nil
}
