package hub

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/roamline/trip-api/internal/data"
	"github.com/roamline/trip-api/internal/observability/metrics"
	"github.com/roamline/trip-api/internal/observability/statsd"
)

const (
	defaultHeartbeatTimeout = 60 * time.Second
	defaultSendBuffer       = 16
)

// IdentityFunc resolves the authenticated user id for an upgrade request.
type IdentityFunc func(r *http.Request) (string, error)

// Options bundles dependencies for NewHub.
type Options struct {
	Logger   *slog.Logger
	Metrics  statsd.Sink
	Identity IdentityFunc
	// HeartbeatTimeout is how long a connection may stay silent before the
	// janitor evicts it. Defaults to 60s.
	HeartbeatTimeout time.Duration
	// SendBuffer is the per-connection outbound queue size. Defaults to 16.
	SendBuffer   int
	TimeProvider data.TimeProvider
}

// Hub fans job events out to WebSocket subscribers, keyed by trip.
//
// Subscriptions live exactly as long as their connection: unregistering a
// connection removes every trip entry it held. Publish is fire-and-forget;
// a full send queue drops the event for that connection only.
type Hub struct {
	logger           *slog.Logger
	metrics          statsd.Sink
	identity         IdentityFunc
	heartbeatTimeout time.Duration
	sendBuffer       int
	timeProvider     data.TimeProvider

	mu     sync.Mutex
	conns  map[*conn]map[string]struct{}
	byTrip map[string]map[*conn]struct{}
}

// NewHub creates a new Hub.
func NewHub(opts Options) (*Hub, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Identity == nil {
		return nil, errors.New("identity resolver is required")
	}

	heartbeat := opts.HeartbeatTimeout
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatTimeout
	}
	sendBuffer := opts.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = defaultSendBuffer
	}
	tp := opts.TimeProvider
	if tp == nil {
		tp = &data.RealTimeProvider{}
	}

	return &Hub{
		logger:           opts.Logger,
		metrics:          opts.Metrics,
		identity:         opts.Identity,
		heartbeatTimeout: heartbeat,
		sendBuffer:       sendBuffer,
		timeProvider:     tp,
		conns:            make(map[*conn]map[string]struct{}),
		byTrip:           make(map[string]map[*conn]struct{}),
	}, nil
}

// MustNewHub creates a new Hub and panics on invalid options.
func MustNewHub(opts Options) *Hub {
	h, err := NewHub(opts)
	if err != nil {
		panic(err)
	}
	return h
}

// Handler returns the HTTP handler that upgrades requests to WebSocket
// connections and serves them until the peer disconnects.
func (h *Hub) Handler() http.Handler {
	return &websocket.Server{
		// Skip the default origin check; identity is enforced by the
		// session resolver instead.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   h.serve,
	}
}

// Run drives the janitor loop until the context is canceled, then closes
// every remaining connection.
func (h *Hub) Run(ctx context.Context) error {
	interval := h.heartbeatTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case <-ticker.C:
			h.evictStale()
		}
	}
}

// Publish delivers an event to every connection subscribed to the trip.
// It never blocks: connections with a full send queue miss this event.
func (h *Hub) Publish(tripID string, event any) {
	msg, err := marshalEvent(event)
	if err != nil {
		h.logger.Error("hub event marshal failed", "trip_id", tripID, "error", err)
		return
	}

	h.mu.Lock()
	targets := make([]*conn, 0, len(h.byTrip[tripID]))
	for c := range h.byTrip[tripID] {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if !c.enqueue(msg) {
			h.logger.Debug("hub event dropped",
				"trip_id", tripID,
				"user_id", c.userID,
			)
		}
	}
}

// ConnectionCount returns the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) serve(ws *websocket.Conn) {
	req := ws.Request()

	userID, err := h.identity(req)
	if err != nil {
		h.logger.Debug("hub connection rejected", "error", err)
		_ = ws.Close()
		return
	}

	c := newConn(ws, userID, h.sendBuffer, h.timeProvider.Now())
	h.register(c)
	defer h.unregister(c)

	go c.writePump(h.logger)

	welcome, marshalErr := marshalEvent(ServerMessage{
		Type:   TypeConnectionEstablished,
		UserID: userID,
	})
	if marshalErr == nil {
		c.enqueue(welcome)
	}

	h.readLoop(req.Context(), c)
}

// readLoop consumes inbound frames until the peer disconnects or sends
// something unreadable. Every inbound frame counts as a heartbeat.
func (h *Hub) readLoop(ctx context.Context, c *conn) {
	for {
		var msg ClientMessage
		if err := websocket.JSON.Receive(c.ws, &msg); err != nil {
			return
		}

		c.touch(h.timeProvider.Now())

		if !msg.Validate() {
			h.logger.DebugContext(ctx, "hub message ignored",
				"user_id", c.userID,
				"type", msg.Type,
			)
			continue
		}

		switch msg.Type {
		case TypePing:
			h.reply(c, ServerMessage{Type: TypePong})
		case TypeSubscribe:
			h.subscribe(c, msg.TripID)
			h.reply(c, ServerMessage{
				Type:   TypeSubscriptionConfirmed,
				TripID: msg.TripID,
			})
		}
	}
}

func (h *Hub) reply(c *conn, msg ServerMessage) {
	payload, err := marshalEvent(msg)
	if err != nil {
		return
	}
	c.enqueue(payload)
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	h.conns[c] = make(map[string]struct{})
	count := len(h.conns)
	h.mu.Unlock()

	metrics.EmitHubConnections(h.metrics, count)
	h.logger.Debug("hub connection opened", "user_id", c.userID, "connections", count)
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	subs, ok := h.conns[c]
	if ok {
		for tripID := range subs {
			delete(h.byTrip[tripID], c)
			if len(h.byTrip[tripID]) == 0 {
				delete(h.byTrip, tripID)
			}
		}
		delete(h.conns, c)
	}
	count := len(h.conns)
	h.mu.Unlock()

	c.close()
	if ok {
		metrics.EmitHubConnections(h.metrics, count)
		h.logger.Debug("hub connection closed", "user_id", c.userID, "connections", count)
	}
}

func (h *Hub) subscribe(c *conn, tripID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.conns[c]
	if !ok {
		return
	}
	subs[tripID] = struct{}{}

	if h.byTrip[tripID] == nil {
		h.byTrip[tripID] = make(map[*conn]struct{})
	}
	h.byTrip[tripID][c] = struct{}{}
}

// evictStale closes every connection whose last inbound frame is older than
// the heartbeat timeout.
func (h *Hub) evictStale() {
	cutoff := h.timeProvider.Now().Add(-h.heartbeatTimeout)

	h.mu.Lock()
	var stale []*conn
	for c := range h.conns {
		if c.seen().Before(cutoff) {
			stale = append(stale, c)
		}
	}
	h.mu.Unlock()

	for _, c := range stale {
		h.logger.Debug("hub evicting stale connection",
			"user_id", c.userID,
			"last_seen", c.seen(),
		)
		h.unregister(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	all := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		all = append(all, c)
	}
	h.mu.Unlock()

	for _, c := range all {
		h.unregister(c)
	}
}
