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

// MentorshipService pairs mentees with mentors by skill overlap
type MentorshipService struct {
	db    *gorm.DB
	feeds *feed.Manager
}

// NewMentorshipService creates a mentorship service
func NewMentorshipService(db *gorm.DB, feeds *feed.Manager) *MentorshipService {
	return &MentorshipService{db: db, feeds: feeds}
}

// UpsertProfileRequest is the payload for creating or updating a profile
type UpsertProfileRequest struct {
	Bio      string   `json:"bio"`
	Skills   []string `json:"skills" binding:"required,min=1"`
	IsMentor bool     `json:"is_mentor"`
}

// UpsertProfile creates or updates a user's mentorship profile
func (s *MentorshipService) UpsertProfile(userID string, req UpsertProfileRequest) (*models.MentorProfile, error) {
	var profile models.MentorProfile
	err := s.db.Where("user_id = ?", userID).First(&profile).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		profile = models.MentorProfile{
			UserID:       userID,
			Bio:          req.Bio,
			Skills:       models.Skills(req.Skills),
			IsMentor:     req.IsMentor,
			SeekingMatch: true,
		}
		if err := s.db.Create(&profile).Error; err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("database error: %w", err)
	default:
		profile.Bio = req.Bio
		profile.Skills = models.Skills(req.Skills)
		profile.IsMentor = req.IsMentor
		if err := s.db.Save(&profile).Error; err != nil {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
	}
	return &profile, nil
}

// GetProfile loads a user's mentorship profile
func (s *MentorshipService) GetProfile(userID string) (*models.MentorProfile, error) {
	var profile models.MentorProfile
	err := s.db.Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierrors.NotFound("mentor profile")
	} else if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &profile, nil
}

// Match finds the mentor with the highest skill overlap for a mentee,
// records the pairing and announces it on the event feed
func (s *MentorshipService) Match(ctx context.Context, eventID, menteeID string) (*models.MentorMatch, error) {
	mentee, err := s.GetProfile(menteeID)
	if err != nil {
		return nil, err
	}
	if !mentee.SeekingMatch {
		return nil, apierrors.BadRequest("mentee is not seeking a match")
	}

	var mentors []models.MentorProfile
	err = s.db.Where("is_mentor = ? AND seeking_match = ? AND user_id <> ?", true, true, menteeID).
		Find(&mentors).Error
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	var best *models.MentorProfile
	bestScore := 0.0
	for i := range mentors {
		score := skillOverlap(mentee.Skills, mentors[i].Skills)
		if score > bestScore {
			best = &mentors[i]
			bestScore = score
		}
	}
	if best == nil {
		return nil, apierrors.NotFound("matching mentor")
	}

	match := models.MentorMatch{
		MentorID: best.UserID,
		MenteeID: menteeID,
		Score:    bestScore,
	}
	if err := s.db.Create(&match).Error; err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	activity := feed.CreateMentorshipMatchedActivity(
		eventID, menteeID, displayName(s.db, menteeID), displayName(s.db, best.UserID))
	if err := s.feeds.PublishActivity(ctx, activity); err != nil {
		return &match, err
	}
	return &match, nil
}

// RespondToMatch accepts or declines a proposed pairing
func (s *MentorshipService) RespondToMatch(matchID string, accept bool) error {
	status := "declined"
	if accept {
		status = "accepted"
	}
	result := s.db.Model(&models.MentorMatch{}).
		Where("id = ? AND status = ?", matchID, "proposed").
		UpdateColumn("status", status)
	if result.Error != nil {
		return fmt.Errorf("database error: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apierrors.NotFound("proposed match")
	}
	return nil
}

// skillOverlap scores how many of the mentee's skills a mentor covers,
// normalized to 0..1
func skillOverlap(mentee, mentor models.Skills) float64 {
	if len(mentee) == 0 {
		return 0
	}
	covered := 0
	set := make(map[string]struct{}, len(mentor))
	for _, s := range mentor {
		set[s] = struct{}{}
	}
	for _, s := range mentee {
		if _, ok := set[s]; ok {
			covered++
		}
	}
	return float64(covered) / float64(len(mentee))
}
