package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Poll is a live audience poll attached to an event
type Poll struct {
	ID        string `gorm:"primaryKey;type:uuid" json:"id"`
	EventID   string `gorm:"not null;index" json:"event_id"`
	CreatorID string `gorm:"not null;index" json:"creator_id"`
	Creator   User   `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Question  string `gorm:"not null" json:"question"`

	// ClosesAt is the poll TTL; votes after this are rejected
	ClosesAt time.Time `json:"closes_at"`

	Options []PollOption `gorm:"foreignKey:PollID" json:"options,omitempty"`
	Votes   []PollVote   `gorm:"foreignKey:PollID" json:"-"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Poll) TableName() string {
	return "polls"
}

func (p *Poll) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// IsClosed reports whether the poll has passed its TTL
func (p *Poll) IsClosed(now time.Time) bool {
	return !p.ClosesAt.IsZero() && now.After(p.ClosesAt)
}

// PollOption is one selectable answer of a poll
type PollOption struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	PollID   string `gorm:"not null;index" json:"poll_id"`
	Label    string `gorm:"not null" json:"label"`
	Position int    `json:"position"`

	CreatedAt time.Time `json:"created_at"`
}

func (PollOption) TableName() string {
	return "poll_options"
}

func (o *PollOption) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

// PollVote records one user's current choice; re-voting switches the option
type PollVote struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	PollID   string `gorm:"not null;index:idx_poll_votes_poll_user,unique" json:"poll_id"`
	UserID   string `gorm:"not null;index:idx_poll_votes_poll_user,unique" json:"user_id"`
	OptionID string `gorm:"not null;index" json:"option_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PollVote) TableName() string {
	return "poll_votes"
}

func (v *PollVote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	return nil
}
