package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"round-indexer/internal/domain"
	"round-indexer/internal/observability"
)

// WSConfig configures WebSocket source behavior.
type WSConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the event channel buffer size.
	Buffer int
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            1000,
	}
}

// WSEventSource provides real-time fundraising events via WebSocket.
// The upstream feed pushes one JSON envelope per text message. Malformed
// envelopes and unknown kinds are logged and skipped so one bad message
// never stalls the stream.
type WSEventSource struct {
	endpoint string
	config   WSConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSEventSource creates a new WebSocket event source and connects to
// the endpoint.
func NewWSEventSource(ctx context.Context, endpoint string, config *WSConfig, logger *log.Logger) (*WSEventSource, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &WSEventSource{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// connect establishes the WebSocket connection.
func (s *WSEventSource) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.conn = conn
	return nil
}

// Compile-time interface check.
var _ EventSource = (*WSEventSource)(nil)

// Subscribe returns a channel of decoded events from the live feed.
// The channel is closed when the context is cancelled or the source is
// closed.
func (s *WSEventSource) Subscribe(ctx context.Context) (<-chan domain.Event, error) {
	if s.closed.Load() {
		return nil, errors.New("source closed")
	}

	eventsCh := make(chan domain.Event, s.config.Buffer)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(eventsCh)
		s.readLoop(ctx, eventsCh)
	}()

	return eventsCh, nil
}

// readLoop reads envelopes from the connection, reconnecting with
// exponential backoff on read errors.
func (s *WSEventSource) readLoop(ctx context.Context, eventsCh chan<- domain.Event) {
	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		default:
		}

		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			if !s.reconnect(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = nextDelay(reconnectDelay, s.config.MaxReconnectDelay)
			continue
		}

		if err := conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout)); err != nil {
			s.logger.Printf("Error setting read deadline: %v", err)
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() || ctx.Err() != nil {
				return
			}

			s.logger.Printf("Read error, reconnecting: %v", err)

			s.connMu.Lock()
			if s.conn != nil {
				s.conn.Close()
				s.conn = nil
			}
			s.connMu.Unlock()

			if !s.reconnect(ctx, reconnectDelay) {
				return
			}
			reconnectDelay = nextDelay(reconnectDelay, s.config.MaxReconnectDelay)
			continue
		}

		// Reset delay on successful read
		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(ctx, eventsCh, message)
	}
}

// reconnect waits out the backoff delay and dials again. Returns false
// when the source is shutting down.
func (s *WSEventSource) reconnect(ctx context.Context, delay time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-s.done:
		return false
	case <-time.After(delay):
	}

	dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.connect(dialCtx); err != nil {
		s.logger.Printf("Reconnect failed: %v", err)
		return !s.closed.Load() && ctx.Err() == nil
	}

	observability.RecordWSReconnect()
	s.logger.Printf("Reconnected to %s", s.endpoint)
	return true
}

// handleMessage decodes one envelope and forwards the typed event.
func (s *WSEventSource) handleMessage(ctx context.Context, eventsCh chan<- domain.Event, message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		s.logger.Printf("Skipping malformed message: %v", err)
		observability.RecordEventDropped()
		return
	}

	ev, err := env.Decode()
	if err != nil {
		if errors.Is(err, ErrUnknownKind) {
			s.logger.Printf("Skipping unknown event kind %q (tx=%s log=%d)", env.Kind, env.TxHash, env.LogIndex)
		} else {
			s.logger.Printf("Skipping undecodable %s event (tx=%s log=%d): %v", env.Kind, env.TxHash, env.LogIndex, err)
		}
		observability.RecordEventDropped()
		return
	}

	observability.RecordEventReceived()

	// Block until we can send, never drop decoded events
	select {
	case eventsCh <- ev:
	case <-ctx.Done():
	case <-s.done:
	}
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (s *WSEventSource) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader handles reconnect
				}
			}
			s.connMu.Unlock()
		}
	}
}

// Close closes the WebSocket connection and stops background loops.
func (s *WSEventSource) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

// nextDelay doubles the backoff delay up to the configured maximum.
func nextDelay(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}
