package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apierrors "github.com/matchpulse/backend/internal/errors"
	"github.com/matchpulse/backend/internal/feed"
	"github.com/matchpulse/backend/internal/models"
)

// DiscussionService manages live discussion threads
type DiscussionService struct {
	db    *gorm.DB
	feeds *feed.Manager
}

// NewDiscussionService creates a discussion service
func NewDiscussionService(db *gorm.DB, feeds *feed.Manager) *DiscussionService {
	return &DiscussionService{db: db, feeds: feeds}
}

// CreateThread opens a discussion topic on an event
func (s *DiscussionService) CreateThread(ctx context.Context, eventID, userID, title string) (*models.DiscussionThread, error) {
	if title == "" {
		return nil, apierrors.ValidationError("title", "thread title is required")
	}

	t := models.DiscussionThread{EventID: eventID, CreatorID: userID, Title: title}
	if err := s.db.Create(&t).Error; err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	return &t, nil
}

// PostMessage appends a message to a thread and announces it on the feed
func (s *DiscussionService) PostMessage(ctx context.Context, threadID, userID, body string) (*models.DiscussionMessage, error) {
	if body == "" {
		return nil, apierrors.ValidationError("body", "message body is required")
	}

	var thread models.DiscussionThread
	err := s.db.Where("id = ?", threadID).First(&thread).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierrors.NotFound("thread")
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	m := models.DiscussionMessage{ThreadID: threadID, UserID: userID, Body: body}
	if err := s.db.Create(&m).Error; err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	activity := feed.CreateCommentPostedActivity(thread.EventID, userID, displayName(s.db, userID), body)
	if err := s.feeds.PublishActivity(ctx, activity); err != nil {
		return &m, err
	}
	return &m, nil
}

// ListThreads returns an event's threads, pinned first then newest
func (s *DiscussionService) ListThreads(eventID string) ([]models.DiscussionThread, error) {
	var threads []models.DiscussionThread
	err := s.db.Where("event_id = ?", eventID).
		Order("is_pinned DESC, created_at DESC").
		Find(&threads).Error
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return threads, nil
}

// ListMessages returns a thread's messages in post order
func (s *DiscussionService) ListMessages(threadID string, limit int) ([]models.DiscussionMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	var messages []models.DiscussionMessage
	err := s.db.Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return messages, nil
}

// PinThread marks a thread as pinned
func (s *DiscussionService) PinThread(threadID string, pinned bool) error {
	result := s.db.Model(&models.DiscussionThread{}).
		Where("id = ?", threadID).
		UpdateColumn("is_pinned", pinned)
	if result.Error != nil {
		return fmt.Errorf("database error: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apierrors.NotFound("thread")
	}
	return nil
}
