// Package services implements the domain operations behind the HTTP API:
// polls, Q&A, discussions, mentorship, reactions, achievements and
// leaderboards. Every user-visible mutation is announced on the live feed.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/matchpulse/backend/internal/cache"
	apierrors "github.com/matchpulse/backend/internal/errors"
	"github.com/matchpulse/backend/internal/feed"
	"github.com/matchpulse/backend/internal/models"
)

// PollService manages live polls and voting
type PollService struct {
	db    *gorm.DB
	cache *cache.Service
	feeds *feed.Manager
}

// NewPollService creates a poll service
func NewPollService(db *gorm.DB, cacheService *cache.Service, feeds *feed.Manager) *PollService {
	return &PollService{db: db, cache: cacheService, feeds: feeds}
}

// CreatePollRequest is the payload for opening a poll
type CreatePollRequest struct {
	Question string        `json:"question" binding:"required,min=1"`
	Options  []string      `json:"options" binding:"required,min=2,max=10"`
	Duration time.Duration `json:"-"`
}

// CreatePoll opens a poll on an event and announces it on the feed
func (s *PollService) CreatePoll(ctx context.Context, eventID, userID string, req CreatePollRequest) (*models.Poll, error) {
	poll := models.Poll{
		EventID:   eventID,
		CreatorID: userID,
		Question:  req.Question,
	}
	if req.Duration > 0 {
		poll.ClosesAt = time.Now().UTC().Add(req.Duration)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&poll).Error; err != nil {
			return err
		}
		for i, label := range req.Options {
			opt := models.PollOption{PollID: poll.ID, Label: label, Position: i}
			if err := tx.Create(&opt).Error; err != nil {
				return err
			}
			poll.Options = append(poll.Options, opt)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create poll: %w", err)
	}

	s.cache.Delete("apiResponses", pollListKey(eventID))

	activity := feed.CreatePollCreatedActivity(eventID, userID, displayName(s.db, userID), poll.Question)
	if err := s.feeds.PublishActivity(ctx, activity); err != nil {
		return &poll, err
	}
	return &poll, nil
}

// GetPoll loads a poll with its options
func (s *PollService) GetPoll(pollID string) (*models.Poll, error) {
	var poll models.Poll
	err := s.db.Preload("Options").Where("id = ?", pollID).First(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierrors.NotFound("poll")
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &poll, nil
}

// ListPolls returns an event's polls, newest first, through the short-lived
// response cache
func (s *PollService) ListPolls(eventID string) ([]models.Poll, error) {
	var polls []models.Poll
	if s.cache.GetJSON("apiResponses", pollListKey(eventID), &polls) {
		return polls, nil
	}

	err := s.db.Preload("Options").
		Where("event_id = ?", eventID).
		Order("created_at DESC").
		Find(&polls).Error
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	_ = s.cache.SetJSON("apiResponses", pollListKey(eventID), polls)
	return polls, nil
}

// Vote records or switches a user's vote. Votes on closed polls are rejected.
func (s *PollService) Vote(ctx context.Context, pollID, optionID, userID string) error {
	poll, err := s.GetPoll(pollID)
	if err != nil {
		return err
	}
	if poll.IsClosed(time.Now().UTC()) {
		return apierrors.BadRequest("poll is closed")
	}

	valid := false
	for _, opt := range poll.Options {
		if opt.ID == optionID {
			valid = true
			break
		}
	}
	if !valid {
		return apierrors.ValidationError("option_id", "option does not belong to this poll")
	}

	var vote models.PollVote
	err = s.db.Where("poll_id = ? AND user_id = ?", pollID, userID).First(&vote).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		vote = models.PollVote{PollID: pollID, UserID: userID, OptionID: optionID}
		if err := s.db.Create(&vote).Error; err != nil {
			return fmt.Errorf("failed to record vote: %w", err)
		}
	case err != nil:
		return fmt.Errorf("database error: %w", err)
	default:
		// Re-voting switches the option
		vote.OptionID = optionID
		if err := s.db.Save(&vote).Error; err != nil {
			return fmt.Errorf("failed to update vote: %w", err)
		}
	}

	s.cache.Delete("apiResponses", pollResultsKey(pollID))
	return nil
}

// PollResults is the per-option vote tally
type PollResults struct {
	PollID     string         `json:"poll_id"`
	Question   string         `json:"question"`
	TotalVotes int64          `json:"total_votes"`
	Counts     map[string]int `json:"counts"` // option id -> votes
	Closed     bool           `json:"closed"`
}

// Results tallies votes per option
func (s *PollService) Results(pollID string) (*PollResults, error) {
	var cached PollResults
	if s.cache.GetJSON("apiResponses", pollResultsKey(pollID), &cached) {
		return &cached, nil
	}

	poll, err := s.GetPoll(pollID)
	if err != nil {
		return nil, err
	}

	var votes []models.PollVote
	if err := s.db.Where("poll_id = ?", pollID).Find(&votes).Error; err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	results := &PollResults{
		PollID:   poll.ID,
		Question: poll.Question,
		Counts:   make(map[string]int),
		Closed:   poll.IsClosed(time.Now().UTC()),
	}
	for _, opt := range poll.Options {
		results.Counts[opt.ID] = 0
	}
	for _, v := range votes {
		results.Counts[v.OptionID]++
		results.TotalVotes++
	}

	_ = s.cache.SetJSON("apiResponses", pollResultsKey(pollID), results)
	return results, nil
}

func pollListKey(eventID string) string {
	return "polls:" + eventID
}

func pollResultsKey(pollID string) string {
	return "poll-results:" + pollID
}

// displayName resolves a user's visible name, falling back to the id
func displayName(db *gorm.DB, userID string) string {
	var user models.User
	if err := db.Select("display_name", "username").Where("id = ?", userID).First(&user).Error; err != nil {
		return userID
	}
	if user.DisplayName != "" {
		return user.DisplayName
	}
	return user.Username
}
