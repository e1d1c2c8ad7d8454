package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reaction is an emoji reaction on any feed target (message, question, poll...)
type Reaction struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	EventID    string `gorm:"not null;index" json:"event_id"`
	UserID     string `gorm:"not null;index:idx_reactions_target_user,unique" json:"user_id"`
	TargetType string `gorm:"not null;index:idx_reactions_target_user,unique" json:"target_type"`
	TargetID   string `gorm:"not null;index:idx_reactions_target_user,unique" json:"target_id"`
	Emoji      string `gorm:"not null" json:"emoji"`

	CreatedAt time.Time `json:"created_at"`
}

func (Reaction) TableName() string {
	return "reactions"
}

func (r *Reaction) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// Achievement is an earnable badge definition
type Achievement struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Slug        string `gorm:"uniqueIndex;not null" json:"slug"`
	Name        string `gorm:"not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Points      int    `gorm:"default:0" json:"points"`

	CreatedAt time.Time `json:"created_at"`
}

func (Achievement) TableName() string {
	return "achievements"
}

func (a *Achievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}

// UserAchievement records an awarded achievement
type UserAchievement struct {
	ID            string      `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string      `gorm:"not null;index:idx_user_achievements,unique" json:"user_id"`
	AchievementID string      `gorm:"not null;index:idx_user_achievements,unique" json:"achievement_id"`
	Achievement   Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
	EventID       string      `gorm:"index" json:"event_id,omitempty"`

	EarnedAt time.Time `json:"earned_at"`
}

func (UserAchievement) TableName() string {
	return "user_achievements"
}

func (ua *UserAchievement) BeforeCreate(tx *gorm.DB) error {
	if ua.ID == "" {
		ua.ID = uuid.New().String()
	}
	if ua.EarnedAt.IsZero() {
		ua.EarnedAt = time.Now().UTC()
	}
	return nil
}

// LeaderboardEntry is one user's score within an event
type LeaderboardEntry struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	EventID string `gorm:"not null;index:idx_leaderboard_event_user,unique" json:"event_id"`
	UserID  string `gorm:"not null;index:idx_leaderboard_event_user,unique" json:"user_id"`
	User    User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Score   int    `gorm:"default:0;index" json:"score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (LeaderboardEntry) TableName() string {
	return "leaderboard_entries"
}

func (e *LeaderboardEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
