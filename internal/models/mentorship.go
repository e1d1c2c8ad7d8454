package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Skills is a comma-joined list stored as text so it works on both
// postgres and sqlite
type Skills []string

// Scan implements the sql.Scanner interface
func (s *Skills) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	str, ok := value.(string)
	if !ok {
		if b, ok := value.([]byte); ok {
			str = string(b)
		} else {
			*s = nil
			return nil
		}
	}
	if str == "" {
		*s = Skills{}
		return nil
	}
	*s = strings.Split(str, ",")
	return nil
}

// Value implements the driver.Valuer interface
func (s Skills) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return strings.Join(s, ","), nil
}

// MentorProfile advertises a user as mentor and/or mentee
type MentorProfile struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string `gorm:"uniqueIndex;not null" json:"user_id"`
	User         User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Bio          string `gorm:"type:text" json:"bio"`
	Skills       Skills `gorm:"type:text" json:"skills"`
	SeekingMatch bool   `gorm:"default:true" json:"seeking_match"`
	IsMentor     bool   `gorm:"default:false" json:"is_mentor"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MentorProfile) TableName() string {
	return "mentor_profiles"
}

func (p *MentorProfile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

// MentorMatch pairs a mentor with a mentee
type MentorMatch struct {
	ID       string  `gorm:"primaryKey;type:uuid" json:"id"`
	MentorID string  `gorm:"not null;index" json:"mentor_id"`
	MenteeID string  `gorm:"not null;index" json:"mentee_id"`
	Score    float64 `json:"score"` // skill-overlap score at match time
	Status   string  `gorm:"default:proposed" json:"status"` // "proposed", "accepted", "declined"

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (MentorMatch) TableName() string {
	return "mentor_matches"
}

func (m *MentorMatch) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}
