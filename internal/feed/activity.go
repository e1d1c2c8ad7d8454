// Package feed maintains the authoritative per-event activity log and
// republishes every accepted activity to live subscribers.
package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Priority orders activities by importance
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

var priorityRank = map[Priority]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

// ActivityType enumerates the kinds of feed activity
type ActivityType string

const (
	ActivityUserJoined         ActivityType = "user_joined"
	ActivityUserReacted        ActivityType = "user_reacted"
	ActivityChallengeCompleted ActivityType = "challenge_completed"
	ActivityAchievementEarned  ActivityType = "achievement_earned"
	ActivityCommentPosted      ActivityType = "comment_posted"
	ActivityPollCreated        ActivityType = "poll_created"
	ActivityQuestionAnswered   ActivityType = "question_answered"
	ActivityLeaderboardUpdated ActivityType = "leaderboard_updated"
	ActivityMentorshipMatched  ActivityType = "mentorship_matched"
)

// priorityFor derives the default priority for an activity kind
func priorityFor(t ActivityType) Priority {
	switch t {
	case ActivityAchievementEarned, ActivityChallengeCompleted, ActivityMentorshipMatched:
		return PriorityHigh
	case ActivityUserJoined, ActivityCommentPosted, ActivityPollCreated, ActivityQuestionAnswered:
		return PriorityMedium
	case ActivityUserReacted, ActivityLeaderboardUpdated:
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Activity is one immutable record in an event feed
type Activity struct {
	ID        string                 `json:"id"`
	EventID   string                 `json:"event_id"`
	UserID    string                 `json:"user_id"`
	UserName  string                 `json:"user_name"`
	Type      ActivityType           `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Priority  Priority               `json:"priority"`
}

// Error reports an activity that failed validation
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func missingFieldsError(fields []string) *Error {
	return &Error{Message: fmt.Sprintf("missing required fields: %s", strings.Join(fields, ", "))}
}

func invalidEnumError(what, value string) *Error {
	return &Error{Message: fmt.Sprintf("invalid %s value: %s", what, value)}
}

// Validate checks required fields and enum membership. Missing fields and
// out-of-enum values are distinguished in the error message.
func (a *Activity) Validate() error {
	var missing []string
	if a.ID == "" {
		missing = append(missing, "id")
	}
	if a.EventID == "" {
		missing = append(missing, "event_id")
	}
	if a.UserID == "" {
		missing = append(missing, "user_id")
	}
	if len(missing) > 0 {
		return missingFieldsError(missing)
	}

	switch a.Type {
	case ActivityUserJoined, ActivityUserReacted, ActivityChallengeCompleted,
		ActivityAchievementEarned, ActivityCommentPosted, ActivityPollCreated,
		ActivityQuestionAnswered, ActivityLeaderboardUpdated, ActivityMentorshipMatched:
	default:
		return invalidEnumError("activity type", string(a.Type))
	}

	if _, ok := priorityRank[a.Priority]; !ok {
		return invalidEnumError("priority", string(a.Priority))
	}
	return nil
}

const maxTextLength = 100

// truncateText caps text-bearing payloads at 100 characters plus an
// ellipsis. Counted in runes so multibyte content is never split mid-rune.
func truncateText(s string) string {
	runes := []rune(s)
	if len(runes) <= maxTextLength {
		return s
	}
	return string(runes[:maxTextLength]) + "..."
}

func newActivity(eventID, userID, userName string, t ActivityType, data map[string]interface{}) *Activity {
	return &Activity{
		ID:        uuid.New().String(),
		EventID:   eventID,
		UserID:    userID,
		UserName:  userName,
		Type:      t,
		Data:      data,
		Timestamp: time.Now().UTC(),
		Priority:  priorityFor(t),
	}
}

// CreateUserJoinedActivity records a user entering an event
func CreateUserJoinedActivity(eventID, userID, userName string) *Activity {
	return newActivity(eventID, userID, userName, ActivityUserJoined, nil)
}

// CreateUserReactedActivity records a reaction on some target
func CreateUserReactedActivity(eventID, userID, userName, targetType, targetID, emoji string) *Activity {
	return newActivity(eventID, userID, userName, ActivityUserReacted, map[string]interface{}{
		"target_type": targetType,
		"target_id":   targetID,
		"emoji":       emoji,
	})
}

// CreateChallengeCompletedActivity records a finished challenge with its score
func CreateChallengeCompletedActivity(eventID, userID, userName, challengeName string, score, rank int) *Activity {
	return newActivity(eventID, userID, userName, ActivityChallengeCompleted, map[string]interface{}{
		"challenge_name": challengeName,
		"score":          score,
		"rank":           rank,
	})
}

// CreateAchievementEarnedActivity records an unlocked achievement
func CreateAchievementEarnedActivity(eventID, userID, userName, achievementName string, points int) *Activity {
	return newActivity(eventID, userID, userName, ActivityAchievementEarned, map[string]interface{}{
		"achievement_name": achievementName,
		"points":           points,
	})
}

// CreateCommentPostedActivity records a discussion comment, truncating
// long content
func CreateCommentPostedActivity(eventID, userID, userName, content string) *Activity {
	return newActivity(eventID, userID, userName, ActivityCommentPosted, map[string]interface{}{
		"content": truncateText(content),
	})
}

// CreatePollCreatedActivity records a newly opened poll
func CreatePollCreatedActivity(eventID, userID, userName, question string) *Activity {
	return newActivity(eventID, userID, userName, ActivityPollCreated, map[string]interface{}{
		"question": truncateText(question),
	})
}

// CreateQuestionAnsweredActivity records an answer landing on a question
func CreateQuestionAnsweredActivity(eventID, userID, userName, questionTitle string) *Activity {
	return newActivity(eventID, userID, userName, ActivityQuestionAnswered, map[string]interface{}{
		"question_title": truncateText(questionTitle),
	})
}

// CreateLeaderboardUpdatedActivity records a rank change
func CreateLeaderboardUpdatedActivity(eventID, userID, userName string, newRank int) *Activity {
	return newActivity(eventID, userID, userName, ActivityLeaderboardUpdated, map[string]interface{}{
		"newRank": newRank,
	})
}

// CreateMentorshipMatchedActivity records a mentor/mentee pairing
func CreateMentorshipMatchedActivity(eventID, userID, userName, mentorName string) *Activity {
	return newActivity(eventID, userID, userName, ActivityMentorshipMatched, map[string]interface{}{
		"mentor_name": mentorName,
	})
}
