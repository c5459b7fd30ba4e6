package ingestion

import (
	"context"

	"round-indexer/internal/domain"
)

// EventSource provides decoded fundraising events from an external feed.
type EventSource interface {
	// Subscribe returns a channel of events from the live feed.
	// Events may arrive out of order; the Runner buffers and sorts them
	// before dispatch. The channel is closed when the context is
	// cancelled or the source shuts down.
	Subscribe(ctx context.Context) (<-chan domain.Event, error)
}
