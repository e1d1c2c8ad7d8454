package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchpulse/backend/internal/feed"
	"github.com/matchpulse/backend/internal/models"
)

func TestReactAndUnreact(t *testing.T) {
	env := newTestEnv(t)
	s := NewReactionService(env.db, env.feeds)
	alice := env.createUser(t, "alice")

	_, err := s.React(t.Context(), "evt1", alice.ID, "question", "q1", "🔥")
	require.NoError(t, err)

	// Reacting again switches the emoji instead of duplicating
	_, err = s.React(t.Context(), "evt1", alice.ID, "question", "q1", "👏")
	require.NoError(t, err)

	counts, err := s.CountReactions("question", "q1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts["👏"])
	assert.NotContains(t, counts, "🔥")

	require.NoError(t, s.Unreact(alice.ID, "question", "q1"))
	assert.Error(t, s.Unreact(alice.ID, "question", "q1"), "double unreact fails")
}

func TestReactValidation(t *testing.T) {
	env := newTestEnv(t)
	s := NewReactionService(env.db, env.feeds)

	_, err := s.React(t.Context(), "evt1", "u1", "galaxy", "g1", "🔥")
	assert.Error(t, err, "unknown target type is rejected")

	_, err = s.React(t.Context(), "evt1", "u1", "question", "q1", "")
	assert.Error(t, err, "empty emoji is rejected")
}

func seedAchievement(t *testing.T, env *testEnv, slug string, points int) *models.Achievement {
	t.Helper()
	a := &models.Achievement{Slug: slug, Name: slug, Points: points}
	require.NoError(t, env.db.Create(a).Error)
	return a
}

func TestAwardAchievementOnce(t *testing.T) {
	env := newTestEnv(t)
	leaderboard := NewLeaderboardService(env.db, env.cache, env.feeds)
	s := NewAchievementService(env.db, env.cache, env.feeds, leaderboard)
	alice := env.createUser(t, "alice")
	seedAchievement(t, env, "first-goal", 50)

	first, err := s.Award(t.Context(), "evt1", alice.ID, "first-goal")
	require.NoError(t, err)

	second, err := s.Award(t.Context(), "evt1", alice.ID, "first-goal")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "repeat award is a no-op")

	earned, err := s.UserAchievements(alice.ID)
	require.NoError(t, err)
	require.Len(t, earned, 1)

	// Points landed on the event leaderboard exactly once
	rank, err := leaderboard.UserRank("evt1", alice.ID)
	require.NoError(t, err)
	require.NotNil(t, rank)
	assert.Equal(t, 50, rank.Score)
	assert.Equal(t, 1, rank.Rank)
}

func TestAwardUnknownAchievement(t *testing.T) {
	env := newTestEnv(t)
	s := NewAchievementService(env.db, env.cache, env.feeds, nil)

	_, err := s.Award(t.Context(), "evt1", "u1", "no-such-badge")
	assert.Error(t, err)
}

func TestLeaderboardRanksAndTop(t *testing.T) {
	env := newTestEnv(t)
	s := NewLeaderboardService(env.db, env.cache, env.feeds)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	cara := env.createUser(t, "cara")

	require.NoError(t, s.AddPoints(t.Context(), "evt1", alice.ID, 30))
	require.NoError(t, s.AddPoints(t.Context(), "evt1", bob.ID, 50))
	require.NoError(t, s.AddPoints(t.Context(), "evt1", cara.ID, 10))
	require.NoError(t, s.AddPoints(t.Context(), "evt1", alice.ID, 40)) // alice: 70

	top, err := s.Top("evt1", 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, alice.ID, top[0].UserID)
	assert.Equal(t, 70, top[0].Score)
	assert.Equal(t, bob.ID, top[1].UserID)

	rank, err := s.UserRank("evt1", cara.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, rank.Rank)

	missing, err := s.UserRank("evt1", "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSubmitScoreAnnouncesChallenge(t *testing.T) {
	env := newTestEnv(t)
	s := NewLeaderboardService(env.db, env.cache, env.feeds)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	require.NoError(t, s.AddPoints(t.Context(), "evt1", bob.ID, 100))
	require.NoError(t, s.SubmitScore(t.Context(), "evt1", alice.ID, "halftime-trivia", 40))

	got := env.feeds.GetRecentActivities("evt1", 10, &feed.Filter{
		ActivityTypes: []feed.ActivityType{feed.ActivityChallengeCompleted},
	})
	require.Len(t, got, 1)
	assert.Equal(t, alice.ID, got[0].UserID)
	assert.Equal(t, "halftime-trivia", got[0].Data["challenge_name"])
	assert.Equal(t, 40, got[0].Data["score"])
	assert.Equal(t, 2, got[0].Data["rank"])
}

func TestLeaderboardScopedPerEvent(t *testing.T) {
	env := newTestEnv(t)
	s := NewLeaderboardService(env.db, env.cache, env.feeds)
	alice := env.createUser(t, "alice")

	require.NoError(t, s.AddPoints(t.Context(), "evt1", alice.ID, 10))
	require.NoError(t, s.AddPoints(t.Context(), "evt2", alice.ID, 99))

	rank, err := s.UserRank("evt1", alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, rank.Score, "scores must not leak across events")
}
