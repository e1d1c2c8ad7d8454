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

// ReactionService manages emoji reactions on feed targets
type ReactionService struct {
	db    *gorm.DB
	feeds *feed.Manager
}

// NewReactionService creates a reaction service
func NewReactionService(db *gorm.DB, feeds *feed.Manager) *ReactionService {
	return &ReactionService{db: db, feeds: feeds}
}

var validTargetTypes = map[string]struct{}{
	"poll":     {},
	"question": {},
	"answer":   {},
	"message":  {},
	"activity": {},
}

// React records a reaction, replacing the user's previous one on the same
// target, and announces it on the feed
func (s *ReactionService) React(ctx context.Context, eventID, userID, targetType, targetID, emoji string) (*models.Reaction, error) {
	if _, ok := validTargetTypes[targetType]; !ok {
		return nil, apierrors.ValidationError("target_type", "unknown reaction target type")
	}
	if emoji == "" {
		return nil, apierrors.ValidationError("emoji", "emoji is required")
	}

	var reaction models.Reaction
	err := s.db.Where("user_id = ? AND target_type = ? AND target_id = ?",
		userID, targetType, targetID).First(&reaction).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		reaction = models.Reaction{
			EventID:    eventID,
			UserID:     userID,
			TargetType: targetType,
			TargetID:   targetID,
			Emoji:      emoji,
		}
		if err := s.db.Create(&reaction).Error; err != nil {
			return nil, fmt.Errorf("failed to create reaction: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("database error: %w", err)
	default:
		reaction.Emoji = emoji
		if err := s.db.Save(&reaction).Error; err != nil {
			return nil, fmt.Errorf("failed to update reaction: %w", err)
		}
	}

	activity := feed.CreateUserReactedActivity(
		eventID, userID, displayName(s.db, userID), targetType, targetID, emoji)
	if err := s.feeds.PublishActivity(ctx, activity); err != nil {
		return &reaction, err
	}
	return &reaction, nil
}

// Unreact removes the user's reaction from a target
func (s *ReactionService) Unreact(userID, targetType, targetID string) error {
	result := s.db.Where("user_id = ? AND target_type = ? AND target_id = ?",
		userID, targetType, targetID).Delete(&models.Reaction{})
	if result.Error != nil {
		return fmt.Errorf("database error: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apierrors.NotFound("reaction")
	}
	return nil
}

// CountReactions tallies reactions per emoji on a target
func (s *ReactionService) CountReactions(targetType, targetID string) (map[string]int64, error) {
	var rows []struct {
		Emoji string
		N     int64
	}
	err := s.db.Model(&models.Reaction{}).
		Select("emoji, COUNT(*) as n").
		Where("target_type = ? AND target_id = ?", targetType, targetID).
		Group("emoji").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Emoji] = r.N
	}
	return counts, nil
}
