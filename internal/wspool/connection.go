package wspool

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Socket is the minimal surface of a WebSocket connection the pool needs.
// Production uses coder/websocket; tests inject fakes.
type Socket interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Dialer opens sockets. Injected so tests never touch the network.
type Dialer interface {
	Dial(ctx context.Context, url string) (Socket, error)
}

// WebsocketDialer dials real WebSocket endpoints via coder/websocket
type WebsocketDialer struct{}

func (WebsocketDialer) Dial(ctx context.Context, url string) (Socket, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &wsSocket{conn: conn}, nil
}

type wsSocket struct {
	conn *websocket.Conn
}

func (s *wsSocket) Read(ctx context.Context) ([]byte, error) {
	_, data, err := s.conn.Read(ctx)
	return data, err
}

func (s *wsSocket) Write(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *wsSocket) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "closing")
}

// Connection is one pooled WebSocket with subscription bookkeeping,
// a bounded outbound queue and reconnection state
type Connection struct {
	ID string

	mu                sync.Mutex
	sock              Socket
	url               string
	open              bool
	userID            string
	connectedAt       time.Time
	lastActivity      time.Time
	subscriptions     map[string]struct{}
	queue             [][]byte
	reconnectAttempts int

	// readGen invalidates stale read loops after a socket swap
	readGen int
}

func newConnection(id, userID, url string, sock Socket) *Connection {
	now := time.Now()
	return &Connection{
		ID:            id,
		sock:          sock,
		url:           url,
		open:          true,
		userID:        userID,
		connectedAt:   now,
		lastActivity:  now,
		subscriptions: make(map[string]struct{}),
	}
}

// Status is a point-in-time view of one pooled connection
type Status struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	Connected         bool      `json:"connected"`
	ConnectedAt       time.Time `json:"connected_at"`
	LastActivity      time.Time `json:"last_activity"`
	Subscriptions     []string  `json:"subscriptions"`
	QueuedMessages    int       `json:"queued_messages"`
	ReconnectAttempts int       `json:"reconnect_attempts"`
}

// Status returns a snapshot of the connection's state
func (c *Connection) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	subs := make([]string, 0, len(c.subscriptions))
	for ch := range c.subscriptions {
		subs = append(subs, ch)
	}
	return Status{
		ID:                c.ID,
		UserID:            c.userID,
		Connected:         c.open,
		ConnectedAt:       c.connectedAt,
		LastActivity:      c.lastActivity,
		Subscriptions:     subs,
		QueuedMessages:    len(c.queue),
		ReconnectAttempts: c.reconnectAttempts,
	}
}

// enqueue appends a frame to the bounded queue, dropping the oldest on overflow
func (c *Connection) enqueue(frame []byte, maxQueueSize int) {
	if len(c.queue) >= maxQueueSize {
		c.queue = c.queue[1:]
	}
	c.queue = append(c.queue, frame)
}

// touch marks outbound or inbound traffic on the connection
func (c *Connection) touch() {
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
}
