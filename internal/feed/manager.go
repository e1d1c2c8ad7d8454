package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matchpulse/backend/internal/logger"
	"github.com/matchpulse/backend/internal/metrics"
	"github.com/matchpulse/backend/internal/wspool"
)

const maxFeedActivities = 100

// Broadcaster is the slice of the connection pool the feed manager uses.
// *wspool.Pool satisfies it; tests inject recorders.
type Broadcaster interface {
	Publish(channel string, data interface{}, userID string) error
	Subscribe(ctx context.Context, userID, channel string, callback wspool.MessageCallback, url string) error
	Unsubscribe(channel, userID string)
}

// LiveFeed is the per-event aggregate: bounded activity log plus
// participant bookkeeping
type LiveFeed struct {
	EventID          string
	activities       []*Activity
	participantCount int
	activeUsers      map[string]struct{}
	createdAt        time.Time
}

// Stats is a point-in-time summary of one feed
type Stats struct {
	ActivityCount    int `json:"activity_count"`
	ParticipantCount int `json:"participant_count"`
	ActiveUserCount  int `json:"active_user_count"`
}

// Filter narrows a getRecentActivities read. Zero values mean "no constraint".
type Filter struct {
	ActivityTypes []ActivityType
	UserID        string
	MinPriority   Priority
	Priority      Priority
	Since         time.Time
	Until         time.Time
}

func (f *Filter) matches(a *Activity) bool {
	if f == nil {
		return true
	}
	if len(f.ActivityTypes) > 0 {
		found := false
		for _, t := range f.ActivityTypes {
			if a.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.UserID != "" && a.UserID != f.UserID {
		return false
	}
	if f.Priority != "" && a.Priority != f.Priority {
		return false
	}
	if f.MinPriority != "" && priorityRank[a.Priority] < priorityRank[f.MinPriority] {
		return false
	}
	if !f.Since.IsZero() && a.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && a.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Manager owns every live feed. The activity slices are mutated only
// through its methods.
type Manager struct {
	mu          sync.RWMutex
	feeds       map[string]*LiveFeed
	broadcaster Broadcaster
	relayURL    string
}

// NewManager creates a feed manager broadcasting through b
func NewManager(b Broadcaster, relayURL string) *Manager {
	return &Manager{
		feeds:       make(map[string]*LiveFeed),
		broadcaster: b,
		relayURL:    relayURL,
	}
}

// InitializeFeed creates the feed for an event, returning the existing
// one when already initialized
func (m *Manager) InitializeFeed(eventID string) *LiveFeed {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.feeds[eventID]; ok {
		return f
	}
	f := &LiveFeed{
		EventID:     eventID,
		activeUsers: make(map[string]struct{}),
		createdAt:   time.Now(),
	}
	m.feeds[eventID] = f

	logger.Log.Info("✅ Live feed initialized", logger.WithEventID(eventID))
	return f
}

// PublishActivity validates, appends and broadcasts one activity.
// Validation failures leave the feed untouched.
func (m *Manager) PublishActivity(ctx context.Context, a *Activity) error {
	if err := a.Validate(); err != nil {
		metrics.Get().FeedValidationFailures.Inc()
		logger.Log.Warn("Rejected invalid activity",
			logger.WithEventID(a.EventID),
			zap.Error(err),
		)
		return err
	}

	m.mu.Lock()
	f, ok := m.feeds[a.EventID]
	if !ok {
		f = &LiveFeed{
			EventID:     a.EventID,
			activeUsers: make(map[string]struct{}),
			createdAt:   time.Now(),
		}
		m.feeds[a.EventID] = f
	}
	f.activities = append(f.activities, a)
	if len(f.activities) > maxFeedActivities {
		f.activities = f.activities[len(f.activities)-maxFeedActivities:]
	}
	m.mu.Unlock()

	metrics.Get().FeedActivitiesPublished.WithLabelValues(string(a.Type)).Inc()

	// The accepted activity goes out unchanged on the event channel and
	// the global firehose
	if err := m.broadcaster.Publish(wspool.FeedChannel(a.EventID), a, a.UserID); err != nil {
		return err
	}
	return m.broadcaster.Publish(wspool.GlobalChannel, a, a.UserID)
}

// GetRecentActivities returns up to limit most-recent activities, newest
// first. The filter is applied before the limit.
func (m *Manager) GetRecentActivities(eventID string, limit int, filter *Filter) []*Activity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.feeds[eventID]
	if !ok || limit <= 0 {
		return nil
	}

	matched := make([]*Activity, 0, len(f.activities))
	for _, a := range f.activities {
		if filter.matches(a) {
			matched = append(matched, a)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// UpdateParticipantCount sets the count and announces it as a synthetic
// leaderboard activity
func (m *Manager) UpdateParticipantCount(ctx context.Context, eventID string, count int) error {
	m.mu.Lock()
	f, ok := m.feeds[eventID]
	if ok {
		f.participantCount = count
	}
	m.mu.Unlock()
	if !ok {
		return &Error{Message: "feed not initialized: " + eventID}
	}

	// Raw count snapshot for presence widgets, then the synthetic
	// activity for the feed itself
	if err := m.broadcaster.Publish(wspool.ParticipantsChannel(eventID), map[string]int{"participant_count": count}, "system"); err != nil {
		logger.Log.Warn("Participant count broadcast failed", logger.WithEventID(eventID), zap.Error(err))
	}

	a := CreateLeaderboardUpdatedActivity(eventID, "system", "system", count)
	return m.PublishActivity(ctx, a)
}

// AddActiveUser marks a user as currently active in the event
func (m *Manager) AddActiveUser(eventID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.feeds[eventID]; ok {
		f.activeUsers[userID] = struct{}{}
	}
}

// RemoveActiveUser clears a user's active flag
func (m *Manager) RemoveActiveUser(eventID, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.feeds[eventID]; ok {
		delete(f.activeUsers, userID)
	}
}

// GetFeedStats returns feed counters, or nil for an uninitialized feed
func (m *Manager) GetFeedStats(eventID string) *Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.feeds[eventID]
	if !ok {
		return nil
	}
	return &Stats{
		ActivityCount:    len(f.activities),
		ParticipantCount: f.participantCount,
		ActiveUserCount:  len(f.activeUsers),
	}
}

// SubscribeToFeed attaches a callback to the event's feed channel through
// the connection pool
func (m *Manager) SubscribeToFeed(ctx context.Context, eventID, userID string, callback wspool.MessageCallback) error {
	return m.broadcaster.Subscribe(ctx, userID, wspool.FeedChannel(eventID), callback, m.relayURL)
}

// UnsubscribeFromFeed detaches the event's feed channel
func (m *Manager) UnsubscribeFromFeed(eventID, userID string) {
	m.broadcaster.Unsubscribe(wspool.FeedChannel(eventID), userID)
}

// ClearFeed destroys a feed and all of its history
func (m *Manager) ClearFeed(eventID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.feeds, eventID)
}

// ActiveFeeds lists every initialized event id
func (m *Manager) ActiveFeeds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.feeds))
	for id := range m.feeds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
