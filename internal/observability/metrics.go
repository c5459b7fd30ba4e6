// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the indexing engine.
type Metrics struct {
	// Engine metrics
	EventsApplied      *prometheus.CounterVec
	EventsDropped      prometheus.Counter
	ApplyErrors        *prometheus.CounterVec
	ApplyLatency       *prometheus.HistogramVec
	DuplicateEvents    *prometheus.CounterVec
	ShellRoundsCreated prometheus.Counter

	// Ingestion metrics
	EventsReceived  prometheus.Counter
	EventsArchived  prometheus.Counter
	WSReconnects    prometheus.Counter
	EventBufferSize prometheus.Gauge

	// Replay metrics
	ReplayEventsProcessed prometheus.Counter

	// Health metrics
	LastEventTimestamp prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "round_indexer"
	}

	return &Metrics{
		EventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_applied_total",
			Help:      "Total number of events applied, by kind",
		}, []string{"kind"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_dropped_total",
			Help:      "Total number of unroutable events dropped",
		}),
		ApplyErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "apply_errors_total",
			Help:      "Total number of reducer errors, by kind",
		}, []string{"kind"}),
		ApplyLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "apply_latency_seconds",
			Help:      "Latency of applying one event through its reducers",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		DuplicateEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "duplicate_events_total",
			Help:      "Total number of replayed ledger events skipped, by kind",
		}, []string{"kind"}),
		ShellRoundsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "shell_rounds_created_total",
			Help:      "Total number of shell rounds created for early-arriving facts",
		}),
		EventsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_received_total",
			Help:      "Total number of events received from the upstream feed",
		}),
		EventsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "events_archived_total",
			Help:      "Total number of events written to the event archive",
		}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnect attempts",
		}),
		EventBufferSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "event_buffer_size",
			Help:      "Current number of buffered events awaiting dispatch",
		}),
		ReplayEventsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "replay",
			Name:      "events_processed_total",
			Help:      "Total number of archived events re-driven through the engine",
		}),
		LastEventTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_event_timestamp_seconds",
			Help:      "Block timestamp of the most recently applied event",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordEventApplied increments the applied counter for a kind and tracks
// the block timestamp of the newest applied event.
func RecordEventApplied(kind string, blockTimestamp int64) {
	DefaultMetrics.EventsApplied.WithLabelValues(kind).Inc()
	DefaultMetrics.LastEventTimestamp.Set(float64(blockTimestamp))
}

// RecordEventDropped increments the dropped counter.
func RecordEventDropped() {
	DefaultMetrics.EventsDropped.Inc()
}

// RecordApplyError increments the reducer error counter for a kind.
func RecordApplyError(kind string) {
	DefaultMetrics.ApplyErrors.WithLabelValues(kind).Inc()
}

// RecordApplyLatency observes how long one event took to apply.
func RecordApplyLatency(kind string, seconds float64) {
	DefaultMetrics.ApplyLatency.WithLabelValues(kind).Observe(seconds)
}

// RecordDuplicateEvent increments the replay-skip counter for a kind.
func RecordDuplicateEvent(kind string) {
	DefaultMetrics.DuplicateEvents.WithLabelValues(kind).Inc()
}

// RecordShellRoundCreated increments the shell round counter.
func RecordShellRoundCreated() {
	DefaultMetrics.ShellRoundsCreated.Inc()
}

// RecordEventReceived increments the received counter.
func RecordEventReceived() {
	DefaultMetrics.EventsReceived.Inc()
}

// RecordEventsArchived adds to the archived counter.
func RecordEventsArchived(n int) {
	DefaultMetrics.EventsArchived.Add(float64(n))
}

// RecordWSReconnect increments the reconnect counter.
func RecordWSReconnect() {
	DefaultMetrics.WSReconnects.Inc()
}

// RecordEventBufferSize sets the buffered event gauge.
func RecordEventBufferSize(n int) {
	DefaultMetrics.EventBufferSize.Set(float64(n))
}

// RecordReplayEventProcessed increments the replay counter.
func RecordReplayEventProcessed() {
	DefaultMetrics.ReplayEventsProcessed.Inc()
}
