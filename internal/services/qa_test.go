package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAskAnswerAndList(t *testing.T) {
	env := newTestEnv(t)
	s := NewQAService(env.db, env.cache, env.feeds)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	q1, err := s.AskQuestion(t.Context(), "evt1", alice.ID, "When does the second half start?")
	require.NoError(t, err)
	q2, err := s.AskQuestion(t.Context(), "evt1", alice.ID, "Any injury updates?")
	require.NoError(t, err)

	require.NoError(t, s.UpvoteQuestion(q2.ID))
	require.NoError(t, s.UpvoteQuestion(q2.ID))
	require.NoError(t, s.UpvoteQuestion(q1.ID))

	_, err = s.AnswerQuestion(t.Context(), q2.ID, bob.ID, "Striker is back for the second half", true)
	require.NoError(t, err)

	questions, err := s.ListQuestions("evt1")
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, q2.ID, questions[0].ID, "most upvoted first")
	require.Len(t, questions[0].Answers, 1)
	assert.True(t, questions[0].Answers[0].IsOfficial)

	// The answer was announced on the feed
	assert.Contains(t, env.broadcaster.publishedChannels(), "event:evt1:feed")
}

func TestQAValidation(t *testing.T) {
	env := newTestEnv(t)
	s := NewQAService(env.db, env.cache, env.feeds)

	_, err := s.AskQuestion(t.Context(), "evt1", "u1", "")
	assert.Error(t, err, "empty question is rejected")

	_, err = s.AnswerQuestion(t.Context(), "no-such-question", "u1", "hello", false)
	assert.Error(t, err)

	assert.Error(t, s.UpvoteQuestion("no-such-question"))
}

func TestDiscussionFlow(t *testing.T) {
	env := newTestEnv(t)
	s := NewDiscussionService(env.db, env.feeds)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	thread, err := s.CreateThread(t.Context(), "evt1", alice.ID, "Half-time reactions")
	require.NoError(t, err)

	_, err = s.PostMessage(t.Context(), thread.ID, bob.ID, "What a save!")
	require.NoError(t, err)
	_, err = s.PostMessage(t.Context(), thread.ID, alice.ID, "Keeper is on fire")
	require.NoError(t, err)

	messages, err := s.ListMessages(thread.ID, 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "What a save!", messages[0].Body, "post order preserved")

	require.NoError(t, s.PinThread(thread.ID, true))
	threads, err := s.ListThreads("evt1")
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.True(t, threads[0].IsPinned)
}

func TestMentorshipMatching(t *testing.T) {
	env := newTestEnv(t)
	s := NewMentorshipService(env.db, env.feeds)
	mentee := env.createUser(t, "mentee")
	strong := env.createUser(t, "strong")
	weak := env.createUser(t, "weak")

	_, err := s.UpsertProfile(mentee.ID, UpsertProfileRequest{
		Skills: []string{"tactics", "fitness", "nutrition"},
	})
	require.NoError(t, err)
	_, err = s.UpsertProfile(strong.ID, UpsertProfileRequest{
		Skills: []string{"tactics", "fitness"}, IsMentor: true,
	})
	require.NoError(t, err)
	_, err = s.UpsertProfile(weak.ID, UpsertProfileRequest{
		Skills: []string{"tactics"}, IsMentor: true,
	})
	require.NoError(t, err)

	match, err := s.Match(t.Context(), "evt1", mentee.ID)
	require.NoError(t, err)
	assert.Equal(t, strong.ID, match.MentorID, "highest overlap wins")
	assert.InDelta(t, 2.0/3.0, match.Score, 0.001)
	assert.Equal(t, "proposed", match.Status)

	require.NoError(t, s.RespondToMatch(match.ID, true))
	assert.Error(t, s.RespondToMatch(match.ID, true), "already-resolved match cannot be re-resolved")
}

func TestMatchWithoutMentors(t *testing.T) {
	env := newTestEnv(t)
	s := NewMentorshipService(env.db, env.feeds)
	mentee := env.createUser(t, "mentee")

	_, err := s.UpsertProfile(mentee.ID, UpsertProfileRequest{Skills: []string{"tactics"}})
	require.NoError(t, err)

	_, err = s.Match(t.Context(), "evt1", mentee.ID)
	assert.Error(t, err)
}

func TestJoinEventAnnouncesAndTracks(t *testing.T) {
	env := newTestEnv(t)
	s := NewUserService(env.db, env.cache, env.feeds)
	alice := env.createUser(t, "alice")

	require.NoError(t, s.JoinEvent(t.Context(), "evt1", alice.ID))

	stats := env.feeds.GetFeedStats("evt1")
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.ActiveUserCount)
	assert.Equal(t, 1, stats.ActivityCount)

	s.LeaveEvent("evt1", alice.ID)
	assert.Equal(t, 0, env.feeds.GetFeedStats("evt1").ActiveUserCount)
}
