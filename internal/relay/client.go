package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/matchpulse/backend/internal/logger"
	"github.com/matchpulse/backend/internal/wspool"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Time allowed between inbound frames before the read times out
	readWait = 60 * time.Second

	// Send pings to peer with this period (must be less than readWait)
	pingPeriod = (readWait * 9) / 10

	// Maximum frame size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB

	sendBufferSize = 256
)

// RateLimiter is a token bucket limiting inbound frames per client
type RateLimiter struct {
	tokens    float64
	maxTokens float64
	refill    float64
	lastTime  time.Time
	mu        sync.Mutex
}

// NewRateLimiter creates a limiter allowing maxPerSecond with a burst
func NewRateLimiter(maxPerSecond, burst int) *RateLimiter {
	return &RateLimiter{
		tokens:    float64(burst),
		maxTokens: float64(burst),
		refill:    float64(maxPerSecond),
		lastTime:  time.Now(),
	}
}

// Allow checks if an action is allowed and consumes a token
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastTime).Seconds()
	r.lastTime = now

	r.tokens += elapsed * r.refill
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}

	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// Client is a single relay-side WebSocket connection
type Client struct {
	conn *websocket.Conn
	hub  *Hub

	UserID string

	// Buffered channel of outbound frames
	send chan []byte

	ConnectedAt time.Time
	RemoteAddr  string

	rateLimiter *RateLimiter

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

// NewClient wraps an accepted connection for the hub
func NewClient(hub *Hub, conn *websocket.Conn, userID string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		hub:         hub,
		conn:        conn,
		UserID:      userID,
		send:        make(chan []byte, sendBufferSize),
		ConnectedAt: time.Now(),
		rateLimiter: NewRateLimiter(10, 20),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ReadPump pumps frames from the connection into the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		readCtx, readCancel := context.WithTimeout(c.ctx, readWait)
		_, data, err := c.conn.Read(readCtx)
		readCancel()

		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure ||
				websocket.CloseStatus(err) == websocket.StatusGoingAway {
				logger.Log.Info("Relay client disconnected normally", logger.WithUserID(c.UserID))
			} else if c.ctx.Err() == nil {
				logger.Log.Error("Relay read error", logger.WithUserID(c.UserID), zap.Error(err))
				c.hub.stats.Errors.Add(1)
			}
			return
		}

		if !c.rateLimiter.Allow() {
			c.hub.stats.Errors.Add(1)
			continue
		}

		c.hub.stats.MessagesReceived.Add(1)

		var msg wspool.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Log.Warn("Relay JSON parse error",
				logger.WithUserID(c.UserID),
				zap.Error(err))
			continue
		}

		c.handleMessage(&msg)
	}
}

// handleMessage routes one inbound control frame
func (c *Client) handleMessage(msg *wspool.Message) {
	switch msg.Type {
	case wspool.MessageTypeSubscribe:
		if msg.Channel == "" {
			return
		}
		c.hub.subscribe(c, msg.Channel)
		logger.Log.Debug("Relay subscription added",
			logger.WithUserID(c.UserID),
			logger.WithChannel(msg.Channel),
		)

	case wspool.MessageTypeUnsubscribe:
		if msg.Channel == "" {
			return
		}
		c.hub.unsubscribe(c, msg.Channel)

	case wspool.MessageTypePublish:
		if msg.Channel == "" {
			return
		}
		c.hub.Publish(msg, c)

	case wspool.MessageTypeHeartbeat:
		// Echo so the sender sees traffic and flushes its backlog
		if pong, err := wspool.NewMessage(wspool.MessageTypeHeartbeat, "", c.UserID, nil).Encode(); err == nil {
			c.trySend(pong)
		}

	default:
		logger.Log.Warn("Unknown relay frame type",
			logger.WithUserID(c.UserID),
			zap.String("type", string(msg.Type)),
		)
	}
}

// trySend queues a frame without blocking
func (c *Client) trySend(data []byte) {
	select {
	case c.send <- data:
	case <-c.ctx.Done():
	default:
	}
}

// WritePump pumps frames from the hub to the connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.Close(websocket.StatusGoingAway, "server shutdown")
			return

		case data, ok := <-c.send:
			if !ok {
				c.conn.Close(websocket.StatusNormalClosure, "closing")
				return
			}

			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, data)
			cancel()

			if err != nil {
				logger.Log.Error("Relay write error", logger.WithUserID(c.UserID), zap.Error(err))
				c.hub.stats.Errors.Add(1)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeWait)
			err := c.conn.Ping(ctx)
			cancel()

			if err != nil {
				logger.Log.Warn("Relay ping failed", logger.WithUserID(c.UserID), zap.Error(err))
				return
			}
		}
	}
}

// Close tears down the connection once
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true

	c.cancel()
	c.conn.Close(websocket.StatusNormalClosure, "closing")
}

// IsClosed reports whether the connection has been torn down
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
