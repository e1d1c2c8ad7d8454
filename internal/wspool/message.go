// Package wspool multiplexes many logical pub/sub channels over a small,
// bounded set of outbound WebSocket connections, transparently handling
// reconnection, heartbeats and message queueing.
package wspool

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FlexibleTime handles both Unix millisecond timestamps and RFC3339 strings
type FlexibleTime struct {
	time.Time
}

// UnmarshalJSON implements custom unmarshaling for timestamps
func (ft *FlexibleTime) UnmarshalJSON(b []byte) error {
	// Try Unix milliseconds first
	var ms int64
	if err := json.Unmarshal(b, &ms); err == nil {
		ft.Time = time.UnixMilli(ms)
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("timestamp must be Unix milliseconds (integer) or RFC3339 string")
	}

	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return err
	}
	ft.Time = t
	return nil
}

// MarshalJSON always outputs RFC3339
func (ft FlexibleTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Time)
}

// MessageType identifies a control frame on the wire
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "SUBSCRIBE"
	MessageTypeUnsubscribe MessageType = "UNSUBSCRIBE"
	MessageTypePublish     MessageType = "PUBLISH"
	MessageTypeHeartbeat   MessageType = "HEARTBEAT"
)

// Message is the envelope every frame on a pooled connection carries
type Message struct {
	Type      MessageType     `json:"type"`
	Channel   string          `json:"channel,omitempty"`
	UserID    string          `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp FlexibleTime    `json:"timestamp"`
	MessageID string          `json:"message_id"`
}

// NewMessage creates a control frame with a fresh id and timestamp
func NewMessage(msgType MessageType, channel, userID string, data json.RawMessage) *Message {
	return &Message{
		Type:      msgType,
		Channel:   channel,
		UserID:    userID,
		Data:      data,
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
		MessageID: uuid.New().String(),
	}
}

// Encode marshals the message for the wire
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// FeedChannel returns the per-event feed channel name
func FeedChannel(eventID string) string {
	return fmt.Sprintf("event:%s:feed", eventID)
}

// ParticipantsChannel returns the per-event participants channel name
func ParticipantsChannel(eventID string) string {
	return fmt.Sprintf("event:%s:participants", eventID)
}

// GlobalChannel is the catch-all channel every activity is mirrored to
const GlobalChannel = "activities:all"
