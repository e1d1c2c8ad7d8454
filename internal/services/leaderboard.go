package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/matchpulse/backend/internal/cache"
	"github.com/matchpulse/backend/internal/feed"
	"github.com/matchpulse/backend/internal/models"
)

// LeaderboardService maintains per-event scores and ranks
type LeaderboardService struct {
	db    *gorm.DB
	cache *cache.Service
	feeds *feed.Manager
}

// NewLeaderboardService creates a leaderboard service
func NewLeaderboardService(db *gorm.DB, cacheService *cache.Service, feeds *feed.Manager) *LeaderboardService {
	return &LeaderboardService{db: db, cache: cacheService, feeds: feeds}
}

// RankedEntry is one leaderboard row with its computed rank
type RankedEntry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Score  int    `json:"score"`
}

// AddPoints adds to a user's event score, announces the new rank and
// invalidates the cached standings
func (s *LeaderboardService) AddPoints(ctx context.Context, eventID, userID string, points int) error {
	var entry models.LeaderboardEntry
	err := s.db.Where("event_id = ? AND user_id = ?", eventID, userID).First(&entry).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		entry = models.LeaderboardEntry{EventID: eventID, UserID: userID, Score: points}
		if err := s.db.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to create leaderboard entry: %w", err)
		}
	case err != nil:
		return fmt.Errorf("database error: %w", err)
	default:
		entry.Score += points
		if err := s.db.Save(&entry).Error; err != nil {
			return fmt.Errorf("failed to update leaderboard entry: %w", err)
		}
	}

	s.cache.Delete("leaderboards", leaderboardKey(eventID))

	rank, err := s.rankOf(eventID, entry.Score)
	if err != nil {
		return err
	}

	activity := feed.CreateLeaderboardUpdatedActivity(eventID, userID, displayName(s.db, userID), rank)
	return s.feeds.PublishActivity(ctx, activity)
}

// SubmitScore records a challenge result: the points land on the event
// leaderboard and the completion itself is announced
func (s *LeaderboardService) SubmitScore(ctx context.Context, eventID, userID, challengeName string, points int) error {
	if err := s.AddPoints(ctx, eventID, userID, points); err != nil {
		return err
	}

	var entry models.LeaderboardEntry
	if err := s.db.Where("event_id = ? AND user_id = ?", eventID, userID).First(&entry).Error; err != nil {
		return fmt.Errorf("database error: %w", err)
	}
	rank, err := s.rankOf(eventID, entry.Score)
	if err != nil {
		return err
	}

	activity := feed.CreateChallengeCompletedActivity(eventID, userID, displayName(s.db, userID), challengeName, entry.Score, rank)
	return s.feeds.PublishActivity(ctx, activity)
}

// rankOf computes a 1-based rank for a score within an event
func (s *LeaderboardService) rankOf(eventID string, score int) (int, error) {
	var above int64
	err := s.db.Model(&models.LeaderboardEntry{}).
		Where("event_id = ? AND score > ?", eventID, score).
		Count(&above).Error
	if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}
	return int(above) + 1, nil
}

// Top returns the event's best n entries through the short-lived cache
func (s *LeaderboardService) Top(eventID string, n int) ([]RankedEntry, error) {
	if n <= 0 {
		n = 10
	}

	var ranked []RankedEntry
	if s.cache.GetJSON("leaderboards", leaderboardKey(eventID), &ranked) {
		if len(ranked) > n {
			ranked = ranked[:n]
		}
		return ranked, nil
	}

	var entries []models.LeaderboardEntry
	err := s.db.Where("event_id = ?", eventID).
		Order("score DESC, updated_at ASC").
		Limit(100).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	ranked = make([]RankedEntry, 0, len(entries))
	for i, e := range entries {
		ranked = append(ranked, RankedEntry{Rank: i + 1, UserID: e.UserID, Score: e.Score})
	}

	_ = s.cache.SetJSON("leaderboards", leaderboardKey(eventID), ranked)

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

// UserRank returns one user's current standing in an event
func (s *LeaderboardService) UserRank(eventID, userID string) (*RankedEntry, error) {
	var entry models.LeaderboardEntry
	err := s.db.Where("event_id = ? AND user_id = ?", eventID, userID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	rank, err := s.rankOf(eventID, entry.Score)
	if err != nil {
		return nil, err
	}
	return &RankedEntry{Rank: rank, UserID: userID, Score: entry.Score}, nil
}

func leaderboardKey(eventID string) string {
	return "top:" + eventID
}
