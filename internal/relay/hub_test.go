package relay

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/backend/internal/wspool"
)

func startTestHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	go h.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
	})
	return h
}

func registerTestClient(t *testing.T, h *Hub, userID string) *Client {
	t.Helper()
	before := h.GetStats().TotalConnections
	c := NewClient(h, nil, userID)
	h.Register(c)
	require.Eventually(t, func() bool {
		return h.GetStats().TotalConnections == before+1
	}, time.Second, 5*time.Millisecond)
	return c
}

func recvFrame(t *testing.T, c *Client) *wspool.Message {
	t.Helper()
	select {
	case data := <-c.send:
		var m wspool.Message
		require.NoError(t, json.Unmarshal(data, &m))
		return &m
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return nil
	}
}

func TestPublishFansOutExcludingSender(t *testing.T) {
	h := startTestHub(t)

	sender := registerTestClient(t, h, "u1")
	receiver := registerTestClient(t, h, "u2")

	h.subscribe(sender, "event:evt1:feed")
	h.subscribe(receiver, "event:evt1:feed")
	assert.Equal(t, 2, h.SubscriberCount("event:evt1:feed"))

	msg := wspool.NewMessage(wspool.MessageTypePublish, "event:evt1:feed", "u1",
		json.RawMessage(`{"kind":"goal"}`))
	h.Publish(msg, sender)

	got := recvFrame(t, receiver)
	assert.Equal(t, wspool.MessageTypePublish, got.Type)
	assert.JSONEq(t, `{"kind":"goal"}`, string(got.Data))

	select {
	case <-sender.send:
		t.Fatal("sender must not receive its own publish")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishUnknownChannelRoutesNothing(t *testing.T) {
	h := startTestHub(t)
	c := registerTestClient(t, h, "u1")

	msg := wspool.NewMessage(wspool.MessageTypePublish, "ghost", "u1", nil)
	h.Publish(msg, c)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(0), h.GetStats().MessagesRouted)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := startTestHub(t)

	sender := registerTestClient(t, h, "u1")
	receiver := registerTestClient(t, h, "u2")

	h.subscribe(receiver, "ch1")
	h.unsubscribe(receiver, "ch1")
	assert.Equal(t, 0, h.SubscriberCount("ch1"))
	assert.Empty(t, h.ActiveChannels())

	h.Publish(wspool.NewMessage(wspool.MessageTypePublish, "ch1", "u1", nil), sender)

	select {
	case <-receiver.send:
		t.Fatal("unsubscribed client must not receive frames")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnregisterDropsSubscriptions(t *testing.T) {
	h := startTestHub(t)

	c := registerTestClient(t, h, "u1")
	h.subscribe(c, "ch1")
	h.subscribe(c, "ch2")

	h.Unregister(c)
	require.Eventually(t, func() bool {
		return h.GetStats().ActiveConnections == 0
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, h.ActiveChannels(), "unregister must clear every subscription")
}

func TestStatsCountRoutedMessages(t *testing.T) {
	h := startTestHub(t)

	sender := registerTestClient(t, h, "u1")
	r1 := registerTestClient(t, h, "u2")
	r2 := registerTestClient(t, h, "u3")

	h.subscribe(r1, "ch1")
	h.subscribe(r2, "ch1")

	h.Publish(wspool.NewMessage(wspool.MessageTypePublish, "ch1", "u1", nil), sender)

	recvFrame(t, r1)
	recvFrame(t, r2)
	assert.Equal(t, int64(2), h.GetStats().MessagesRouted)
	assert.Equal(t, int64(3), h.GetStats().TotalConnections)
}
