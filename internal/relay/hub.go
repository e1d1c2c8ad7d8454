// Package relay is the server side of the channel protocol: it accepts
// WebSocket clients, tracks channel subscriptions and fans out PUBLISH
// frames to every subscriber except the sender.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/matchpulse/backend/internal/logger"
	"github.com/matchpulse/backend/internal/metrics"
	"github.com/matchpulse/backend/internal/wspool"
)

// Hub maintains the set of active clients and their channel subscriptions
type Hub struct {
	// All connected clients
	clients map[*Client]struct{}

	// Channel name -> subscribed clients
	channels map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	outbound   chan *routedMessage

	mu sync.RWMutex

	stats *Stats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Stats tracks relay counters
type Stats struct {
	TotalConnections   atomic.Int64
	ActiveConnections  atomic.Int64
	MessagesReceived   atomic.Int64
	MessagesRouted     atomic.Int64
	Errors             atomic.Int64
	ConnectionsDropped atomic.Int64
}

// routedMessage is a PUBLISH frame queued for fan-out
type routedMessage struct {
	msg    *wspool.Message
	sender *Client
}

// NewHub creates a relay hub
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]struct{}),
		channels:   make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 256),
		unregister: make(chan *Client, 256),
		outbound:   make(chan *routedMessage, 256),
		stats:      &Stats{},
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	logger.Log.Info("🔌 Relay hub starting...")

	for {
		select {
		case <-h.ctx.Done():
			logger.Log.Info("🔌 Relay hub shutting down...")
			h.shutdown()
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case routed := <-h.outbound:
			h.route(routed)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	h.stats.TotalConnections.Add(1)
	h.stats.ActiveConnections.Add(1)
	metrics.Get().RelayClientsActive.Inc()

	logger.Log.Info("✅ Relay client connected",
		logger.WithUserID(client.UserID),
		zap.Int64("active", h.stats.ActiveConnections.Load()),
	)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		for channel, subs := range h.channels {
			if _, subscribed := subs[client]; subscribed {
				delete(subs, client)
				if len(subs) == 0 {
					delete(h.channels, channel)
				}
			}
		}
		close(client.send)
	}
	h.mu.Unlock()

	if ok {
		h.stats.ActiveConnections.Add(-1)
		metrics.Get().RelayClientsActive.Dec()
		logger.Log.Info("❌ Relay client disconnected",
			logger.WithUserID(client.UserID),
			zap.Int64("active", h.stats.ActiveConnections.Load()),
		)
	}
}

// subscribe adds the client to a channel's subscriber set
func (h *Hub) subscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
}

// unsubscribe removes the client from a channel's subscriber set
func (h *Hub) unsubscribe(client *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.channels[channel]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Publish queues a frame for fan-out to the channel's subscribers
func (h *Hub) Publish(msg *wspool.Message, sender *Client) {
	select {
	case h.outbound <- &routedMessage{msg: msg, sender: sender}:
	case <-h.ctx.Done():
	}
}

// route fans a PUBLISH frame out to every subscriber except the sender
func (h *Hub) route(routed *routedMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	subs, ok := h.channels[routed.msg.Channel]
	if !ok {
		return
	}

	data, err := routed.msg.Encode()
	if err != nil {
		logger.Log.Error("Failed to encode routed frame", zap.Error(err))
		h.stats.Errors.Add(1)
		return
	}

	for client := range subs {
		if client == routed.sender {
			continue
		}
		select {
		case client.send <- data:
			h.stats.MessagesRouted.Add(1)
			metrics.Get().RelayMessagesRouted.Inc()
		default:
			// Subscriber's buffer is full, drop the connection
			h.stats.ConnectionsDropped.Add(1)
			go func(c *Client) {
				h.Unregister(c)
			}(client)
		}
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

// SubscriberCount returns the number of clients on a channel
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// ActiveChannels lists every channel with at least one subscriber
func (h *Hub) ActiveChannels() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]string, 0, len(h.channels))
	for ch := range h.channels {
		out = append(out, ch)
	}
	return out
}

// StatsSnapshot is a point-in-time view of the relay counters
type StatsSnapshot struct {
	TotalConnections   int64 `json:"total_connections"`
	ActiveConnections  int64 `json:"active_connections"`
	MessagesReceived   int64 `json:"messages_received"`
	MessagesRouted     int64 `json:"messages_routed"`
	Errors             int64 `json:"errors"`
	ConnectionsDropped int64 `json:"connections_dropped"`
}

// GetStats returns current relay counters
func (h *Hub) GetStats() StatsSnapshot {
	return StatsSnapshot{
		TotalConnections:   h.stats.TotalConnections.Load(),
		ActiveConnections:  h.stats.ActiveConnections.Load(),
		MessagesReceived:   h.stats.MessagesReceived.Load(),
		MessagesRouted:     h.stats.MessagesRouted.Load(),
		Errors:             h.stats.Errors.Load(),
		ConnectionsDropped: h.stats.ConnectionsDropped.Load(),
	}
}

// Shutdown gracefully stops the hub
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Log.Info("🔌 Relay hub shutdown complete")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("relay shutdown timeout: %w", ctx.Err())
	}
}

// shutdown closes every client connection
func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	goodbye := wspool.NewMessage(wspool.MessageTypeHeartbeat, "", "server",
		json.RawMessage(`{"event":"server_shutdown"}`))
	data, _ := goodbye.Encode()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
		}
		close(client.send)
	}

	h.clients = make(map[*Client]struct{})
	h.channels = make(map[string]map[*Client]struct{})
	logger.Log.Info("🔌 Closed relay connections during shutdown",
		zap.Int64("active", h.stats.ActiveConnections.Load()),
	)
}
