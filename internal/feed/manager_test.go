package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/backend/internal/wspool"
)

// recordingBroadcaster captures every publish instead of hitting the pool
type recordingBroadcaster struct {
	mu         sync.Mutex
	published  []publishedCall
	subscribed []string
}

type publishedCall struct {
	channel string
	data    interface{}
	userID  string
}

func (r *recordingBroadcaster) Publish(channel string, data interface{}, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, publishedCall{channel, data, userID})
	return nil
}

func (r *recordingBroadcaster) Subscribe(ctx context.Context, userID, channel string, callback wspool.MessageCallback, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribed = append(r.subscribed, channel)
	return nil
}

func (r *recordingBroadcaster) Unsubscribe(channel, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, ch := range r.subscribed {
		if ch == channel {
			r.subscribed = append(r.subscribed[:i], r.subscribed[i+1:]...)
			return
		}
	}
}

func (r *recordingBroadcaster) calls() []publishedCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]publishedCall, len(r.published))
	copy(out, r.published)
	return out
}

func newTestManager() (*Manager, *recordingBroadcaster) {
	b := &recordingBroadcaster{}
	return NewManager(b, "ws://relay.test/ws"), b
}

func TestInitializeFeedIdempotent(t *testing.T) {
	m, _ := newTestManager()

	f1 := m.InitializeFeed("evt1")
	f2 := m.InitializeFeed("evt1")

	assert.Same(t, f1, f2, "re-initializing must return the existing feed")
	assert.Equal(t, []string{"evt1"}, m.ActiveFeeds())
}

func TestPublishAppendsAndBroadcastsBothChannels(t *testing.T) {
	m, b := newTestManager()
	m.InitializeFeed("evt1")

	a := CreateAchievementEarnedActivity("evt1", "u1", "Alice", "First Goal", 50)
	require.NoError(t, m.PublishActivity(t.Context(), a))

	calls := b.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "event:evt1:feed", calls[0].channel)
	assert.Equal(t, "activities:all", calls[1].channel)
	assert.Same(t, calls[0].data, calls[1].data, "both channels carry the identical payload")
	assert.Equal(t, "u1", calls[0].userID)
}

func TestFeedStatsScenario(t *testing.T) {
	m, _ := newTestManager()
	m.InitializeFeed("evt1")

	require.NoError(t, m.PublishActivity(t.Context(), CreateUserJoinedActivity("evt1", "u1", "Alice")))

	stats := m.GetFeedStats("evt1")
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.ActivityCount)
	assert.Equal(t, 0, stats.ParticipantCount)
	assert.Equal(t, 0, stats.ActiveUserCount)

	assert.Nil(t, m.GetFeedStats("unknown"), "uninitialized feed has no stats")
}

func TestValidationFailFast(t *testing.T) {
	m, b := newTestManager()
	m.InitializeFeed("evt1")

	cases := []struct {
		name     string
		mutate   func(*Activity)
		fragment string
	}{
		{"empty id", func(a *Activity) { a.ID = "" }, "missing required fields"},
		{"empty event id", func(a *Activity) { a.EventID = "" }, "missing required fields"},
		{"empty user id", func(a *Activity) { a.UserID = "" }, "missing required fields"},
		{"bad type", func(a *Activity) { a.Type = "user_teleported" }, "invalid activity type"},
		{"bad priority", func(a *Activity) { a.Priority = "EXTREME" }, "invalid priority"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := CreateUserJoinedActivity("evt1", "u1", "Alice")
			tc.mutate(a)

			err := m.PublishActivity(t.Context(), a)
			require.Error(t, err)

			var feedErr *Error
			require.ErrorAs(t, err, &feedErr)
			assert.Contains(t, feedErr.Message, tc.fragment)
		})
	}

	assert.Empty(t, m.GetRecentActivities("evt1", 1000, nil), "invalid activities must not mutate the feed")
	assert.Empty(t, b.calls(), "invalid activities must not be broadcast")
}

func TestBoundedHistory(t *testing.T) {
	m, _ := newTestManager()
	m.InitializeFeed("evt1")

	for i := 0; i < 150; i++ {
		a := CreateUserJoinedActivity("evt1", fmt.Sprintf("u%d", i), "user")
		a.Timestamp = time.Now().Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, m.PublishActivity(t.Context(), a))
	}

	got := m.GetRecentActivities("evt1", 1000, nil)
	require.Len(t, got, 100, "history is capped at 100")
	assert.Equal(t, "u149", got[0].UserID, "newest first")
	assert.Equal(t, "u50", got[99].UserID, "the oldest 50 were dropped")
}

func TestGetRecentActivitiesFilters(t *testing.T) {
	m, _ := newTestManager()
	m.InitializeFeed("evt1")

	base := time.Now()
	seed := []*Activity{
		CreateUserJoinedActivity("evt1", "u1", "Alice"),
		CreateUserReactedActivity("evt1", "u2", "Bob", "poll", "p1", "🔥"),
		CreateAchievementEarnedActivity("evt1", "u1", "Alice", "Hat Trick", 100),
		CreateCommentPostedActivity("evt1", "u3", "Cara", "great match"),
	}
	for i, a := range seed {
		a.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, m.PublishActivity(t.Context(), a))
	}

	byUser := m.GetRecentActivities("evt1", 10, &Filter{UserID: "u1"})
	require.Len(t, byUser, 2)
	for _, a := range byUser {
		assert.Equal(t, "u1", a.UserID)
	}

	byType := m.GetRecentActivities("evt1", 10, &Filter{
		ActivityTypes: []ActivityType{ActivityAchievementEarned},
	})
	require.Len(t, byType, 1)
	assert.Equal(t, ActivityAchievementEarned, byType[0].Type)

	highUp := m.GetRecentActivities("evt1", 10, &Filter{MinPriority: PriorityHigh})
	require.Len(t, highUp, 1)
	assert.Equal(t, PriorityHigh, highUp[0].Priority)

	exact := m.GetRecentActivities("evt1", 10, &Filter{Priority: PriorityLow})
	require.Len(t, exact, 1)
	assert.Equal(t, ActivityUserReacted, exact[0].Type)

	// Inclusive time range picks the middle two
	window := m.GetRecentActivities("evt1", 10, &Filter{
		Since: base.Add(time.Second),
		Until: base.Add(2 * time.Second),
	})
	require.Len(t, window, 2)
	assert.True(t, window[0].Timestamp.After(window[1].Timestamp) || window[0].Timestamp.Equal(window[1].Timestamp),
		"recency order is preserved")

	limited := m.GetRecentActivities("evt1", 2, nil)
	assert.Len(t, limited, 2, "limit applies after filtering")
}

func TestCommentTruncationLaw(t *testing.T) {
	long := strings.Repeat("x", 250)
	a := CreateCommentPostedActivity("evt1", "u1", "Alice", long)

	content := a.Data["content"].(string)
	assert.Len(t, content, 103)
	assert.True(t, strings.HasSuffix(content, "..."))

	short := CreateCommentPostedActivity("evt1", "u1", "Alice", "nice goal")
	assert.Equal(t, "nice goal", short.Data["content"])

	exact := CreateCommentPostedActivity("evt1", "u1", "Alice", strings.Repeat("y", 100))
	assert.Len(t, exact.Data["content"].(string), 100, "content at the cap is untouched")
}

func TestCommentTruncationCountsRunes(t *testing.T) {
	// 60 runes but 180 bytes: under the cap, must pass through unchanged
	short := strings.Repeat("é漢", 30)
	a := CreateCommentPostedActivity("evt1", "u1", "Alice", short)
	assert.Equal(t, short, a.Data["content"])

	long := strings.Repeat("漢", 150)
	b := CreateCommentPostedActivity("evt1", "u1", "Alice", long)
	content := b.Data["content"].(string)
	assert.Equal(t, 103, utf8.RuneCountInString(content))
	assert.True(t, utf8.ValidString(content), "truncation must not split a rune")
	assert.Equal(t, strings.Repeat("漢", 100)+"...", content)
}

func TestPriorityByKind(t *testing.T) {
	assert.Equal(t, PriorityHigh, CreateAchievementEarnedActivity("e", "u", "n", "a", 1).Priority)
	assert.Equal(t, PriorityHigh, CreateChallengeCompletedActivity("e", "u", "n", "c", 1, 1).Priority)
	assert.Equal(t, PriorityMedium, CreateUserJoinedActivity("e", "u", "n").Priority)
	assert.Equal(t, PriorityLow, CreateUserReactedActivity("e", "u", "n", "t", "i", "👍").Priority)
}

func TestUpdateParticipantCountBroadcastsNewRank(t *testing.T) {
	m, b := newTestManager()
	m.InitializeFeed("evt1")

	require.NoError(t, m.UpdateParticipantCount(t.Context(), "evt1", 42))

	stats := m.GetFeedStats("evt1")
	require.NotNil(t, stats)
	assert.Equal(t, 42, stats.ParticipantCount)

	calls := b.calls()
	require.Len(t, calls, 3)

	// Raw snapshot on the participants channel first
	assert.Equal(t, "event:evt1:participants", calls[0].channel)
	snapshot, ok := calls[0].data.(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 42, snapshot["participant_count"])

	a, ok := calls[1].data.(*Activity)
	require.True(t, ok)
	assert.Equal(t, ActivityLeaderboardUpdated, a.Type)
	assert.Equal(t, 42, a.Data["newRank"])

	err := m.UpdateParticipantCount(t.Context(), "unknown", 1)
	assert.Error(t, err, "updating an uninitialized feed fails")
}

func TestActiveUserTracking(t *testing.T) {
	m, _ := newTestManager()
	m.InitializeFeed("evt1")

	m.AddActiveUser("evt1", "u1")
	m.AddActiveUser("evt1", "u2")
	m.AddActiveUser("evt1", "u1") // idempotent

	assert.Equal(t, 2, m.GetFeedStats("evt1").ActiveUserCount)

	m.RemoveActiveUser("evt1", "u1")
	assert.Equal(t, 1, m.GetFeedStats("evt1").ActiveUserCount)
}

func TestClearFeedDestroysHistory(t *testing.T) {
	m, _ := newTestManager()
	m.InitializeFeed("evt1")
	require.NoError(t, m.PublishActivity(t.Context(), CreateUserJoinedActivity("evt1", "u1", "Alice")))

	m.ClearFeed("evt1")

	assert.Nil(t, m.GetFeedStats("evt1"))
	assert.Empty(t, m.ActiveFeeds())
}

func TestSubscribeUnsubscribeFeedChannels(t *testing.T) {
	m, b := newTestManager()

	require.NoError(t, m.SubscribeToFeed(t.Context(), "evt1", "u1", func(*wspool.Message) {}))
	assert.Equal(t, []string{"event:evt1:feed"}, b.subscribed)

	m.UnsubscribeFromFeed("evt1", "u1")
	assert.Empty(t, b.subscribed)
}
