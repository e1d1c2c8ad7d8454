package wspool

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/backend/internal/metrics"
)

// fakeSocket is a scriptable in-memory Socket
type fakeSocket struct {
	mu      sync.Mutex
	writes  [][]byte
	inbound chan []byte
	done    chan struct{}
	closed  bool
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (s *fakeSocket) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-s.inbound:
		return data, nil
	case <-s.done:
		return nil, errors.New("socket closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSocket) Write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("write on closed socket")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.writes = append(s.writes, cp)
	return nil
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}

// frames decodes everything written so far
func (s *fakeSocket) frames(t *testing.T) []Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.writes))
	for _, w := range s.writes {
		var m Message
		require.NoError(t, json.Unmarshal(w, &m))
		out = append(out, m)
	}
	return out
}

func (s *fakeSocket) countByType(t *testing.T, mt MessageType) int {
	n := 0
	for _, m := range s.frames(t) {
		if m.Type == mt {
			n++
		}
	}
	return n
}

// fakeDialer hands out fakeSockets, optionally failing some dials
type fakeDialer struct {
	mu        sync.Mutex
	sockets   []*fakeSocket
	failAfter int // fail every dial once this many have succeeded; -1 never
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{failAfter: -1}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Socket, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failAfter >= 0 && len(d.sockets) >= d.failAfter {
		return nil, errors.New("dial refused")
	}
	s := newFakeSocket()
	d.sockets = append(d.sockets, s)
	return s, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sockets)
}

func (d *fakeDialer) socket(i int) *fakeSocket {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sockets[i]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.HeartbeatInterval = time.Hour // keep heartbeats out of frame counts
	cfg.ConnectTimeout = time.Second
	return cfg
}

const testURL = "ws://relay.test/ws"

func TestConnectionReuseSameUser(t *testing.T) {
	dialer := newFakeDialer()
	p := New(testConfig(), dialer)
	defer p.Shutdown(context.Background())

	id1, err := p.GetConnection(t.Context(), "u1", testURL)
	require.NoError(t, err)
	id2, err := p.GetConnection(t.Context(), "u1", testURL)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "same open connection must be reused for the same user")
	assert.Equal(t, 1, dialer.dialCount())
	assert.Equal(t, 1, p.Stats().TotalConnections)
}

func TestNewConnectionPerUserUnderLimit(t *testing.T) {
	dialer := newFakeDialer()
	p := New(testConfig(), dialer)
	defer p.Shutdown(context.Background())

	id1, err := p.GetConnection(t.Context(), "u1", testURL)
	require.NoError(t, err)
	require.NoError(t, p.Subscribe(t.Context(), "u1", "ch1", func(*Message) {}, testURL))

	id2, err := p.GetConnection(t.Context(), "u2", testURL)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, dialer.dialCount())
}

func TestSubscribeSendsFrameAndDispatchesInbound(t *testing.T) {
	dialer := newFakeDialer()
	p := New(testConfig(), dialer)
	defer p.Shutdown(context.Background())

	received := make(chan *Message, 1)
	err := p.Subscribe(t.Context(), "u1", "event:evt1:feed", func(m *Message) {
		received <- m
	}, testURL)
	require.NoError(t, err)

	sock := dialer.socket(0)
	require.Eventually(t, func() bool {
		return sock.countByType(t, MessageTypeSubscribe) == 1
	}, time.Second, 5*time.Millisecond, "SUBSCRIBE frame should be sent")

	inbound := NewMessage(MessageTypePublish, "event:evt1:feed", "server", json.RawMessage(`{"hello":"world"}`))
	data, err := inbound.Encode()
	require.NoError(t, err)
	sock.inbound <- data

	select {
	case m := <-received:
		assert.Equal(t, "event:evt1:feed", m.Channel)
		assert.JSONEq(t, `{"hello":"world"}`, string(m.Data))
	case <-time.After(time.Second):
		t.Fatal("callback never fired for inbound PUBLISH")
	}
}

func TestPublishCarriesPayloadOnOwningConnection(t *testing.T) {
	dialer := newFakeDialer()
	p := New(testConfig(), dialer)
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Subscribe(t.Context(), "u1", "ch1", func(*Message) {}, testURL))
	require.NoError(t, p.Publish("ch1", map[string]int{"n": 7}, "u1"))

	sock := dialer.socket(0)
	require.Eventually(t, func() bool {
		return sock.countByType(t, MessageTypePublish) == 1
	}, time.Second, 5*time.Millisecond)

	for _, m := range sock.frames(t) {
		if m.Type == MessageTypePublish {
			assert.Equal(t, "ch1", m.Channel)
			assert.JSONEq(t, `{"n":7}`, string(m.Data))
			assert.NotEmpty(t, m.MessageID)
		}
	}
}

func TestPublishUnownedChannelIsNoop(t *testing.T) {
	dialer := newFakeDialer()
	p := New(testConfig(), dialer)
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Publish("nobody:listens", "data", "u1"))
	assert.Equal(t, 0, dialer.dialCount(), "publish must not open connections")
}

func TestUnsubscribeFreesConnectionForReassignment(t *testing.T) {
	dialer := newFakeDialer()
	p := New(testConfig(), dialer)
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Subscribe(t.Context(), "u1", "ch1", func(*Message) {}, testURL))
	id1, err := p.GetConnection(t.Context(), "u1", testURL)
	require.NoError(t, err)

	p.Unsubscribe("ch1", "u1")

	// A different user now picks up the freed connection
	id2, err := p.GetConnection(t.Context(), "u2", testURL)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "zero-subscription connection should be reassigned")
	assert.Equal(t, 1, dialer.dialCount())
}

func TestReconnectResubscribesAndFlushesQueue(t *testing.T) {
	dialer := newFakeDialer()
	p := New(testConfig(), dialer)
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Subscribe(t.Context(), "u1", "ch1", func(*Message) {}, testURL))

	// Drop the socket; the read loop notices and schedules a reconnect
	dialer.socket(0).Close()

	require.Eventually(t, func() bool {
		return dialer.dialCount() == 2
	}, time.Second, 5*time.Millisecond, "pool should redial after disconnect")

	// Publish while/after reconnecting still lands on the replacement socket
	require.NoError(t, p.Publish("ch1", "payload", "u1"))

	replacement := dialer.socket(1)
	require.Eventually(t, func() bool {
		return replacement.countByType(t, MessageTypeSubscribe) == 1 &&
			replacement.countByType(t, MessageTypePublish) == 1
	}, time.Second, 5*time.Millisecond, "replacement socket should carry the resubscribe and the publish")

	stats := p.Stats()
	assert.Equal(t, 1, stats.TotalConnections, "connection id survives reconnection")
	assert.Equal(t, 1, stats.ActiveConnections)
}

func TestReconnectExhaustionRemovesConnection(t *testing.T) {
	dialer := newFakeDialer()
	cfg := testConfig()
	cfg.MaxReconnectAttempts = 2
	p := New(cfg, dialer)
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Subscribe(t.Context(), "u1", "ch1", func(*Message) {}, testURL))

	// Every redial fails from here on
	dialer.mu.Lock()
	dialer.failAfter = len(dialer.sockets)
	dialer.mu.Unlock()

	dialer.socket(0).Close()

	require.Eventually(t, func() bool {
		return p.Stats().TotalConnections == 0
	}, 2*time.Second, 10*time.Millisecond, "connection past its retry budget must leave the pool")

	assert.Equal(t, 0, p.Stats().Channels, "channels of a removed connection must be dropped")
}

func TestReclaimLRUDropsPreviousOwnersChannels(t *testing.T) {
	dialer := newFakeDialer()
	cfg := testConfig()
	cfg.MaxConnections = 1
	p := New(cfg, dialer)
	defer p.Shutdown(context.Background())

	require.NoError(t, p.Subscribe(t.Context(), "u1", "ch1", func(*Message) {}, testURL))
	require.Equal(t, 1, p.Stats().Channels)

	// Pool is full and the only connection is busy; u2 reclaims it
	id, err := p.GetConnection(t.Context(), "u2", testURL)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	stats := p.Stats()
	assert.Equal(t, 1, stats.TotalConnections)
	assert.Equal(t, 0, stats.Channels, "reclaim must clear the previous owner's channel mappings")

	// Publishing on the dropped channel is now a no-op
	before := dialer.socket(0).countByType(t, MessageTypePublish)
	require.NoError(t, p.Publish("ch1", "stale", "u1"))
	assert.Equal(t, before, dialer.socket(0).countByType(t, MessageTypePublish))
}

func TestQueueBoundDropsOldest(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 3
	c := newConnection("c1", "u1", testURL, newFakeSocket())

	for i := 0; i < 5; i++ {
		c.enqueue([]byte{byte(i)}, cfg.MaxQueueSize)
	}

	require.Len(t, c.queue, 3)
	assert.Equal(t, []byte{2}, c.queue[0], "oldest frames are dropped on overflow")
	assert.Equal(t, []byte{4}, c.queue[2])
}

func TestIdleSweepRemovesUnsubscribedConnections(t *testing.T) {
	dialer := newFakeDialer()
	cfg := testConfig()
	cfg.IdleTimeout = 10 * time.Millisecond
	p := New(cfg, dialer)
	defer p.Shutdown(context.Background())

	_, err := p.GetConnection(t.Context(), "u1", testURL)
	require.NoError(t, err)
	require.Equal(t, 1, p.Stats().TotalConnections)

	time.Sleep(30 * time.Millisecond)
	p.sweepIdle()

	assert.Equal(t, 0, p.Stats().TotalConnections, "idle unsubscribed connection should be reclaimed")
}

func TestIdleSweepSkipsGaugeForClosedConnections(t *testing.T) {
	dialer := newFakeDialer()
	cfg := testConfig()
	cfg.IdleTimeout = 10 * time.Millisecond
	p := New(cfg, dialer)
	defer p.Shutdown(context.Background())

	id, err := p.GetConnection(t.Context(), "u1", testURL)
	require.NoError(t, err)

	// Model a connection whose disconnect path already returned the
	// gauge decrement before the sweeper got to it
	p.mu.RLock()
	c := p.conns[id]
	p.mu.RUnlock()
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
	metrics.Get().PoolConnectionsActive.Dec()

	before := testutil.ToFloat64(metrics.Get().PoolConnectionsActive)
	time.Sleep(30 * time.Millisecond)
	p.sweepIdle()

	require.Equal(t, 0, p.Stats().TotalConnections)
	assert.Equal(t, before, testutil.ToFloat64(metrics.Get().PoolConnectionsActive),
		"sweeping a closed connection must not decrement the gauge again")
}

func TestHeartbeatSentWhileOpen(t *testing.T) {
	dialer := newFakeDialer()
	cfg := testConfig()
	cfg.HeartbeatInterval = 10 * time.Millisecond
	p := New(cfg, dialer)
	defer p.Shutdown(context.Background())

	_, err := p.GetConnection(t.Context(), "u1", testURL)
	require.NoError(t, err)

	sock := dialer.socket(0)
	require.Eventually(t, func() bool {
		return sock.countByType(t, MessageTypeHeartbeat) >= 2
	}, time.Second, 5*time.Millisecond, "heartbeats should flow periodically")
}

func TestFlexibleTimeAcceptsBothFormats(t *testing.T) {
	var ft FlexibleTime
	require.NoError(t, json.Unmarshal([]byte(`1700000000000`), &ft))
	assert.Equal(t, int64(1700000000000), ft.UnixMilli())

	require.NoError(t, json.Unmarshal([]byte(`"2026-01-02T03:04:05Z"`), &ft))
	assert.Equal(t, 2026, ft.Year())

	assert.Error(t, json.Unmarshal([]byte(`{"bad":true}`), &ft))
}
