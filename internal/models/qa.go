package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Question is an audience question in an event Q&A session
type Question struct {
	ID      string `gorm:"primaryKey;type:uuid" json:"id"`
	EventID string `gorm:"not null;index" json:"event_id"`
	UserID  string `gorm:"not null;index" json:"user_id"`
	User    User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Body    string `gorm:"type:text;not null" json:"body"`
	Upvotes int    `gorm:"default:0" json:"upvotes"`

	Answers []Answer `gorm:"foreignKey:QuestionID" json:"answers,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Question) TableName() string {
	return "questions"
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return nil
}

// Answer is a reply to a Q&A question
type Answer struct {
	ID         string `gorm:"primaryKey;type:uuid" json:"id"`
	QuestionID string `gorm:"not null;index" json:"question_id"`
	UserID     string `gorm:"not null;index" json:"user_id"`
	User       User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Body       string `gorm:"type:text;not null" json:"body"`
	IsOfficial bool   `gorm:"default:false" json:"is_official"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Answer) TableName() string {
	return "answers"
}

func (a *Answer) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	return nil
}
