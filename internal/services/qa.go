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

// QAService manages audience questions and answers
type QAService struct {
	db    *gorm.DB
	cache *cache.Service
	feeds *feed.Manager
}

// NewQAService creates a Q&A service
func NewQAService(db *gorm.DB, cacheService *cache.Service, feeds *feed.Manager) *QAService {
	return &QAService{db: db, cache: cacheService, feeds: feeds}
}

// AskQuestion records a new audience question
func (s *QAService) AskQuestion(ctx context.Context, eventID, userID, body string) (*models.Question, error) {
	if body == "" {
		return nil, apierrors.ValidationError("body", "question body is required")
	}

	q := models.Question{EventID: eventID, UserID: userID, Body: body}
	if err := s.db.Create(&q).Error; err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.cache.Delete("apiResponses", questionListKey(eventID))
	return &q, nil
}

// AnswerQuestion replies to a question and announces the answer on the feed
func (s *QAService) AnswerQuestion(ctx context.Context, questionID, userID, body string, official bool) (*models.Answer, error) {
	if body == "" {
		return nil, apierrors.ValidationError("body", "answer body is required")
	}

	var q models.Question
	err := s.db.Where("id = ?", questionID).First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierrors.NotFound("question")
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	a := models.Answer{
		QuestionID: questionID,
		UserID:     userID,
		Body:       body,
		IsOfficial: official,
	}
	if err := s.db.Create(&a).Error; err != nil {
		return nil, fmt.Errorf("failed to create answer: %w", err)
	}

	s.cache.Delete("apiResponses", questionListKey(q.EventID))

	activity := feed.CreateQuestionAnsweredActivity(q.EventID, userID, displayName(s.db, userID), q.Body)
	if err := s.feeds.PublishActivity(ctx, activity); err != nil {
		return &a, err
	}
	return &a, nil
}

// UpvoteQuestion bumps a question's vote count
func (s *QAService) UpvoteQuestion(questionID string) error {
	result := s.db.Model(&models.Question{}).
		Where("id = ?", questionID).
		UpdateColumn("upvotes", gorm.Expr("upvotes + 1"))
	if result.Error != nil {
		return fmt.Errorf("database error: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apierrors.NotFound("question")
	}
	return nil
}

// ListQuestions returns an event's questions, most upvoted first
func (s *QAService) ListQuestions(eventID string) ([]models.Question, error) {
	var questions []models.Question
	if s.cache.GetJSON("apiResponses", questionListKey(eventID), &questions) {
		return questions, nil
	}

	err := s.db.Preload("Answers").
		Where("event_id = ?", eventID).
		Order("upvotes DESC, created_at ASC").
		Find(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	_ = s.cache.SetJSON("apiResponses", questionListKey(eventID), questions)
	return questions, nil
}

func questionListKey(eventID string) string {
	return "questions:" + eventID
}
