package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DiscussionThread is a live discussion topic attached to an event
type DiscussionThread struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	EventID   string `gorm:"not null;index" json:"event_id"`
	CreatorID string `gorm:"not null;index" json:"creator_id"`
	Creator   User   `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Title     string `gorm:"not null" json:"title"`
	IsPinned  bool   `gorm:"default:false" json:"is_pinned"`

	Messages []DiscussionMessage `gorm:"foreignKey:ThreadID" json:"messages,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (DiscussionThread) TableName() string {
	return "discussion_threads"
}

func (t *DiscussionThread) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// DiscussionMessage is one message in a discussion thread
type DiscussionMessage struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	ThreadID string `gorm:"not null;index" json:"thread_id"`
	UserID   string `gorm:"not null;index" json:"user_id"`
	User     User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Body     string `gorm:"type:text;not null" json:"body"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DiscussionMessage) TableName() string {
	return "discussion_messages"
}

func (m *DiscussionMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
