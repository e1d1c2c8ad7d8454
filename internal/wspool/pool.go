package wspool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/matchpulse/backend/internal/logger"
	"github.com/matchpulse/backend/internal/metrics"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// Config holds pool tuning parameters
type Config struct {
	MaxConnections       int
	ConnectTimeout       time.Duration
	HeartbeatInterval    time.Duration
	MaxReconnectAttempts int
	// ReconnectDelay is the backoff base; attempt n waits delay * (n+1)
	ReconnectDelay time.Duration
	IdleTimeout    time.Duration
	MaxQueueSize   int
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		MaxConnections:       5,
		ConnectTimeout:       10 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		MaxReconnectAttempts: 5,
		ReconnectDelay:       time.Second,
		IdleTimeout:          5 * time.Minute,
		MaxQueueSize:         100,
	}
}

// MessageCallback fires for every inbound PUBLISH frame on a subscribed channel
type MessageCallback func(msg *Message)

// Stats is a point-in-time snapshot of the pool
type Stats struct {
	TotalConnections  int `json:"total_connections"`
	ActiveConnections int `json:"active_connections"`
	QueuedMessages    int `json:"queued_messages"`
	Channels          int `json:"channels"`
}

// Pool manages a bounded set of outbound WebSocket connections shared
// across users and channels. A channel is owned by exactly one connection;
// the channel map is the single source of truth for that ownership.
type Pool struct {
	cfg    Config
	dialer Dialer

	mu        sync.RWMutex
	conns     map[string]*Connection
	channels  map[string]string // channel -> connection id
	callbacks map[string]MessageCallback

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// New creates a pool using the given dialer. Use WebsocketDialer{} in
// production; tests inject fakes.
func New(cfg Config, dialer Dialer) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		cfg:       cfg,
		dialer:    dialer,
		conns:     make(map[string]*Connection),
		channels:  make(map[string]string),
		callbacks: make(map[string]MessageCallback),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the idle-connection sweeper
func (p *Pool) Start() {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	p.wg.Add(1)
	go p.idleSweepLoop()
}

// Shutdown closes every connection and stops background work
func (p *Pool) Shutdown(ctx context.Context) error {
	p.cancel()

	p.mu.Lock()
	for _, c := range p.conns {
		c.mu.Lock()
		if c.sock != nil {
			_ = c.sock.Close()
		}
		c.open = false
		c.mu.Unlock()
	}
	p.conns = make(map[string]*Connection)
	p.channels = make(map[string]string)
	p.callbacks = make(map[string]MessageCallback)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("pool shutdown timeout: %w", ctx.Err())
	}
}

// GetConnection returns a connection id for userID, reusing the user's own
// open connection, then any free open connection, then dialing a new one
// under the limit, then reclaiming the least-recently-used connection.
func (p *Pool) GetConnection(ctx context.Context, userID, url string) (string, error) {
	p.mu.Lock()

	// 1. A connection already owned by this user
	for id, c := range p.conns {
		c.mu.Lock()
		ownOpen := c.open && c.userID == userID
		c.mu.Unlock()
		if ownOpen {
			p.mu.Unlock()
			c.touch()
			return id, nil
		}
	}

	// 2. An open connection with no subscriptions is free to reassign
	for id, c := range p.conns {
		c.mu.Lock()
		free := c.open && len(c.subscriptions) == 0
		if free {
			c.userID = userID
			c.lastActivity = time.Now()
		}
		c.mu.Unlock()
		if free {
			p.mu.Unlock()
			logger.Log.Debug("Reassigned free pooled connection",
				zap.String("connection_id", id),
				logger.WithUserID(userID),
			)
			return id, nil
		}
	}

	// 3. Room for a new connection
	if len(p.conns) < p.cfg.MaxConnections {
		p.mu.Unlock()
		return p.dialNew(ctx, userID, url)
	}

	// 4. Reclaim the least-recently-used connection. Its previous owner's
	// channels are dropped explicitly so no stale delivery can occur.
	var lru *Connection
	var lruActivity time.Time
	for _, c := range p.conns {
		c.mu.Lock()
		la := c.lastActivity
		c.mu.Unlock()
		if lru == nil || la.Before(lruActivity) {
			lru = c
			lruActivity = la
		}
	}
	if lru == nil {
		p.mu.Unlock()
		return "", fmt.Errorf("connection pool exhausted: no connection available for user %s", userID)
	}

	p.dropChannelsLocked(lru.ID)

	lru.mu.Lock()
	prevOwner := lru.userID
	lru.userID = userID
	lru.subscriptions = make(map[string]struct{})
	lru.queue = nil
	lru.lastActivity = time.Now()
	id := lru.ID
	lru.mu.Unlock()
	p.mu.Unlock()

	logger.Log.Warn("Reclaimed pooled connection; previous owner's subscriptions dropped",
		zap.String("connection_id", id),
		zap.String("previous_owner", prevOwner),
		logger.WithUserID(userID),
	)
	return id, nil
}

func (p *Pool) dialNew(ctx context.Context, userID, url string) (string, error) {
	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	sock, err := p.dialer.Dial(dialCtx, url)
	if err != nil {
		return "", fmt.Errorf("failed to open pooled connection: %w", err)
	}

	c := newConnection(uuid.New().String(), userID, url, sock)

	p.mu.Lock()
	p.conns[c.ID] = c
	p.mu.Unlock()

	m := metrics.Get()
	m.PoolConnectionsTotal.Inc()
	m.PoolConnectionsActive.Inc()

	p.startLoops(c, 0)

	logger.Log.Info("Opened pooled connection",
		zap.String("connection_id", c.ID),
		logger.WithUserID(userID),
	)
	return c.ID, nil
}

func (p *Pool) startLoops(c *Connection, gen int) {
	p.wg.Add(2)
	go p.readLoop(c, gen)
	go p.heartbeatLoop(c, gen)
}

// Subscribe wires callback to a channel, taking over ownership from any
// previous connection, and sends a SUBSCRIBE frame.
func (p *Pool) Subscribe(ctx context.Context, userID, channel string, callback MessageCallback, url string) error {
	connID, err := p.GetConnection(ctx, userID, url)
	if err != nil {
		return err
	}

	p.mu.Lock()
	// Reassignment always clears the previous mapping first
	if prevID, owned := p.channels[channel]; owned && prevID != connID {
		if prev, ok := p.conns[prevID]; ok {
			prev.mu.Lock()
			delete(prev.subscriptions, channel)
			prev.mu.Unlock()
		}
	}
	p.channels[channel] = connID
	p.callbacks[channel] = callback
	c := p.conns[connID]
	p.mu.Unlock()

	if c == nil {
		return fmt.Errorf("connection %s vanished during subscribe", connID)
	}

	c.mu.Lock()
	c.subscriptions[channel] = struct{}{}
	c.mu.Unlock()

	frame, err := NewMessage(MessageTypeSubscribe, channel, userID, nil).Encode()
	if err != nil {
		return err
	}
	p.sendFrame(c, frame)
	return nil
}

// Unsubscribe removes the channel mapping and sends an UNSUBSCRIBE frame.
// A connection left with zero subscriptions becomes free for reassignment.
func (p *Pool) Unsubscribe(channel, userID string) {
	p.mu.Lock()
	connID, owned := p.channels[channel]
	delete(p.channels, channel)
	delete(p.callbacks, channel)
	var c *Connection
	if owned {
		c = p.conns[connID]
	}
	p.mu.Unlock()

	if c == nil {
		return
	}

	c.mu.Lock()
	delete(c.subscriptions, channel)
	c.mu.Unlock()

	if frame, err := NewMessage(MessageTypeUnsubscribe, channel, userID, nil).Encode(); err == nil {
		p.sendFrame(c, frame)
	}
}

// Publish sends a PUBLISH frame on the channel's owning connection.
// Publishing to an unowned channel is a no-op.
func (p *Pool) Publish(channel string, data interface{}, userID string) error {
	p.mu.RLock()
	connID, owned := p.channels[channel]
	var c *Connection
	if owned {
		c = p.conns[connID]
	}
	p.mu.RUnlock()

	if c == nil {
		return nil
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal publish payload: %w", err)
	}

	frame, err := NewMessage(MessageTypePublish, channel, userID, payload).Encode()
	if err != nil {
		return err
	}
	p.sendFrame(c, frame)
	return nil
}

// sendFrame writes immediately when the socket is open, otherwise queues.
// A failed write also queues so nothing is lost across a reconnect.
func (p *Pool) sendFrame(c *Connection, frame []byte) {
	c.mu.Lock()
	if !c.open || c.sock == nil {
		c.enqueue(frame, p.cfg.MaxQueueSize)
		queued := len(c.queue)
		c.mu.Unlock()
		logger.Log.Debug("Queued frame on closed connection",
			zap.String("connection_id", c.ID),
			zap.Int("queue_depth", queued),
		)
		return
	}
	sock := c.sock
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(p.ctx, writeWait)
	err := sock.Write(ctx, frame)
	cancel()

	if err != nil {
		c.mu.Lock()
		c.enqueue(frame, p.cfg.MaxQueueSize)
		c.mu.Unlock()
		logger.Log.Warn("Write failed, frame queued",
			zap.String("connection_id", c.ID),
			zap.Error(err),
		)
		return
	}
	c.touch()
}

// flushQueue drains the connection's queue opportunistically
func (p *Pool) flushQueue(c *Connection) {
	for {
		c.mu.Lock()
		if !c.open || c.sock == nil || len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		frame := c.queue[0]
		c.queue = c.queue[1:]
		sock := c.sock
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(p.ctx, writeWait)
		err := sock.Write(ctx, frame)
		cancel()
		if err != nil {
			// Put it back and stop; the next activity retries
			c.mu.Lock()
			c.queue = append([][]byte{frame}, c.queue...)
			c.mu.Unlock()
			return
		}
		c.touch()
	}
}

func (p *Pool) readLoop(c *Connection, gen int) {
	defer p.wg.Done()

	for {
		c.mu.Lock()
		if c.readGen != gen || !c.open || c.sock == nil {
			c.mu.Unlock()
			return
		}
		sock := c.sock
		c.mu.Unlock()

		data, err := sock.Read(p.ctx)
		if err != nil {
			if p.ctx.Err() == nil {
				p.handleDisconnect(c, gen)
			}
			return
		}

		c.touch()
		// Inbound traffic proves the socket is healthy; drain the backlog
		p.flushQueue(c)

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Log.Warn("Dropping malformed frame",
				zap.String("connection_id", c.ID),
				zap.Error(err),
			)
			continue
		}

		if msg.Type == MessageTypePublish && msg.Channel != "" {
			p.mu.RLock()
			callback := p.callbacks[msg.Channel]
			p.mu.RUnlock()
			if callback != nil {
				callback(&msg)
			}
		}
	}
}

// heartbeatLoop periodically sends HEARTBEAT frames while the socket is open
func (p *Pool) heartbeatLoop(c *Connection, gen int) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			alive := c.open && c.readGen == gen
			userID := c.userID
			c.mu.Unlock()
			if !alive {
				return
			}
			if frame, err := NewMessage(MessageTypeHeartbeat, "", userID, nil).Encode(); err == nil {
				p.sendFrame(c, frame)
			}
		}
	}
}

// handleDisconnect schedules a reconnect with linear backoff, or removes the
// connection once the attempt budget is spent
func (p *Pool) handleDisconnect(c *Connection, gen int) {
	c.mu.Lock()
	if c.readGen != gen {
		c.mu.Unlock()
		return
	}
	wasOpen := c.open
	c.open = false
	attempts := c.reconnectAttempts
	c.mu.Unlock()

	// A connection the sweeper already removed must not redial
	p.mu.RLock()
	_, pooled := p.conns[c.ID]
	p.mu.RUnlock()
	if !pooled {
		return
	}

	if wasOpen {
		metrics.Get().PoolConnectionsActive.Dec()
	}

	if attempts >= p.cfg.MaxReconnectAttempts {
		logger.Log.Warn("Reconnect budget exhausted, abandoning connection",
			zap.String("connection_id", c.ID),
			zap.Int("attempts", attempts),
		)
		p.removeConnection(c.ID)
		return
	}

	delay := p.cfg.ReconnectDelay * time.Duration(attempts+1)
	logger.Log.Info("Connection lost, scheduling reconnect",
		zap.String("connection_id", c.ID),
		zap.Duration("delay", delay),
		zap.Int("attempt", attempts+1),
	)

	timer := time.AfterFunc(delay, func() {
		p.attemptReconnect(c, gen)
	})
	// Cancel the pending retry if the pool shuts down first
	go func() {
		<-p.ctx.Done()
		timer.Stop()
	}()
}

// attemptReconnect swaps a fresh socket into the connection in place,
// preserving its id, then replays every tracked subscription
func (p *Pool) attemptReconnect(c *Connection, gen int) {
	if p.ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	if c.readGen != gen {
		c.mu.Unlock()
		return
	}
	c.reconnectAttempts++
	url := c.url
	c.mu.Unlock()

	metrics.Get().PoolReconnectsTotal.Inc()

	dialCtx, cancel := context.WithTimeout(p.ctx, p.cfg.ConnectTimeout)
	sock, err := p.dialer.Dial(dialCtx, url)
	cancel()

	if err != nil {
		logger.Log.Warn("Reconnect attempt failed",
			zap.String("connection_id", c.ID),
			zap.Error(err),
		)
		p.handleDisconnect(c, gen)
		return
	}

	c.mu.Lock()
	c.sock = sock
	c.open = true
	c.reconnectAttempts = 0
	c.readGen++
	newGen := c.readGen
	c.lastActivity = time.Now()
	userID := c.userID
	subs := make([]string, 0, len(c.subscriptions))
	for ch := range c.subscriptions {
		subs = append(subs, ch)
	}
	c.mu.Unlock()

	metrics.Get().PoolConnectionsActive.Inc()

	p.startLoops(c, newGen)

	for _, channel := range subs {
		if frame, err := NewMessage(MessageTypeSubscribe, channel, userID, nil).Encode(); err == nil {
			p.sendFrame(c, frame)
		}
	}
	p.flushQueue(c)

	logger.Log.Info("Reconnected pooled connection",
		zap.String("connection_id", c.ID),
		zap.Int("resubscribed", len(subs)),
	)
}

// removeConnection drops the connection and every channel it owned
func (p *Pool) removeConnection(id string) {
	p.mu.Lock()
	c, ok := p.conns[id]
	if ok {
		delete(p.conns, id)
		p.dropChannelsLocked(id)
	}
	p.mu.Unlock()

	if !ok {
		return
	}

	c.mu.Lock()
	if c.sock != nil {
		_ = c.sock.Close()
	}
	c.open = false
	c.mu.Unlock()
}

// dropChannelsLocked clears channel and callback mappings owned by a
// connection. Caller holds p.mu.
func (p *Pool) dropChannelsLocked(connID string) {
	for channel, owner := range p.channels {
		if owner == connID {
			delete(p.channels, channel)
			delete(p.callbacks, channel)
		}
	}
}

func (p *Pool) idleSweepLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.sweepIdle()
			metrics.Get().PoolQueuedMessages.Set(float64(p.Stats().QueuedMessages))
		}
	}
}

// sweepIdle removes connections with no subscriptions and no recent activity
func (p *Pool) sweepIdle() {
	type idleConn struct {
		id   string
		open bool
	}

	p.mu.RLock()
	var idle []idleConn
	now := time.Now()
	for id, c := range p.conns {
		c.mu.Lock()
		if len(c.subscriptions) == 0 && now.Sub(c.lastActivity) > p.cfg.IdleTimeout {
			idle = append(idle, idleConn{id: id, open: c.open})
		}
		c.mu.Unlock()
	}
	p.mu.RUnlock()

	for _, ic := range idle {
		logger.Log.Info("Reclaiming idle pooled connection", zap.String("connection_id", ic.id))
		p.removeConnection(ic.id)
		// A closed connection already gave its decrement back on disconnect
		if ic.open {
			metrics.Get().PoolConnectionsActive.Dec()
		}
	}
}

// Stats returns a snapshot of the pool
func (p *Pool) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Stats{
		TotalConnections: len(p.conns),
		Channels:         len(p.channels),
	}
	for _, c := range p.conns {
		c.mu.Lock()
		if c.open {
			s.ActiveConnections++
		}
		s.QueuedMessages += len(c.queue)
		c.mu.Unlock()
	}
	return s
}
