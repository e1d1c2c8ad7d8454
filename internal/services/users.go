package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/matchpulse/backend/internal/cache"
	apierrors "github.com/matchpulse/backend/internal/errors"
	"github.com/matchpulse/backend/internal/feed"
	"github.com/matchpulse/backend/internal/models"
)

// UserService manages profiles and event presence
type UserService struct {
	db    *gorm.DB
	cache *cache.Service
	feeds *feed.Manager
}

// NewUserService creates a user service
func NewUserService(db *gorm.DB, cacheService *cache.Service, feeds *feed.Manager) *UserService {
	return &UserService{db: db, cache: cacheService, feeds: feeds}
}

// GetUser loads a user by id
func (s *UserService) GetUser(userID string) (*models.User, error) {
	var user models.User
	err := s.db.Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierrors.NotFound("user")
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &user, nil
}

// UpdateProfileRequest is the editable profile surface
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name" binding:"omitempty,min=1,max=50"`
	AvatarURL   string `json:"avatar_url" binding:"omitempty,url"`
}

// UpdateProfile updates the caller's display fields
func (s *UserService) UpdateProfile(userID string, req UpdateProfileRequest) (*models.User, error) {
	user, err := s.GetUser(userID)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != "" {
		user.DisplayName = req.DisplayName
	}
	if req.AvatarURL != "" {
		user.AvatarURL = req.AvatarURL
	}
	if err := s.db.Save(user).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	s.cache.Delete("userStats", userStatsKey(userID))
	return user, nil
}

// JoinEvent marks the user active in an event and announces the arrival
func (s *UserService) JoinEvent(ctx context.Context, eventID, userID string) error {
	user, err := s.GetUser(userID)
	if err != nil {
		return err
	}

	s.feeds.InitializeFeed(eventID)
	s.feeds.AddActiveUser(eventID, userID)

	name := user.DisplayName
	if name == "" {
		name = user.Username
	}
	return s.feeds.PublishActivity(ctx, feed.CreateUserJoinedActivity(eventID, userID, name))
}

// LeaveEvent clears the user's active flag
func (s *UserService) LeaveEvent(eventID, userID string) {
	s.feeds.RemoveActiveUser(eventID, userID)
}
