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

// AchievementService awards badges and keeps the catalog cached
type AchievementService struct {
	db          *gorm.DB
	cache       *cache.Service
	feeds       *feed.Manager
	leaderboard *LeaderboardService
}

// NewAchievementService creates an achievement service. Awards also add the
// achievement's points to the event leaderboard.
func NewAchievementService(db *gorm.DB, cacheService *cache.Service, feeds *feed.Manager, leaderboard *LeaderboardService) *AchievementService {
	return &AchievementService{db: db, cache: cacheService, feeds: feeds, leaderboard: leaderboard}
}

// Catalog returns every achievement definition through the persistent cache
func (s *AchievementService) Catalog() ([]models.Achievement, error) {
	var achievements []models.Achievement
	if s.cache.GetJSON("achievements", "catalog", &achievements) {
		return achievements, nil
	}

	if err := s.db.Order("points ASC").Find(&achievements).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	_ = s.cache.SetJSON("achievements", "catalog", achievements)
	return achievements, nil
}

// Award grants an achievement once per user. Repeat awards are a no-op.
func (s *AchievementService) Award(ctx context.Context, eventID, userID, slug string) (*models.UserAchievement, error) {
	var achievement models.Achievement
	err := s.db.Where("slug = ?", slug).First(&achievement).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierrors.NotFound("achievement")
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	var existing models.UserAchievement
	err = s.db.Where("user_id = ? AND achievement_id = ?", userID, achievement.ID).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	awarded := models.UserAchievement{
		UserID:        userID,
		AchievementID: achievement.ID,
		EventID:       eventID,
	}
	if err := s.db.Create(&awarded).Error; err != nil {
		return nil, fmt.Errorf("failed to award achievement: %w", err)
	}

	s.cache.Delete("userStats", userStatsKey(userID))

	activity := feed.CreateAchievementEarnedActivity(
		eventID, userID, displayName(s.db, userID), achievement.Name, achievement.Points)
	if err := s.feeds.PublishActivity(ctx, activity); err != nil {
		return &awarded, err
	}

	if s.leaderboard != nil && achievement.Points > 0 {
		if err := s.leaderboard.AddPoints(ctx, eventID, userID, achievement.Points); err != nil {
			return &awarded, err
		}
	}
	return &awarded, nil
}

// UserAchievements lists a user's earned achievements through the stats cache
func (s *AchievementService) UserAchievements(userID string) ([]models.UserAchievement, error) {
	var earned []models.UserAchievement
	if s.cache.GetJSON("userStats", userStatsKey(userID), &earned) {
		return earned, nil
	}

	err := s.db.Preload("Achievement").
		Where("user_id = ?", userID).
		Order("earned_at DESC").
		Find(&earned).Error
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	_ = s.cache.SetJSON("userStats", userStatsKey(userID), earned)
	return earned, nil
}

func userStatsKey(userID string) string {
	return "achievements:" + userID
}
