package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "github.com/matchpulse/backend/internal/errors"
)

func TestCreatePollAndVote(t *testing.T) {
	env := newTestEnv(t)
	s := NewPollService(env.db, env.cache, env.feeds)
	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")

	poll, err := s.CreatePoll(t.Context(), "evt1", alice.ID, CreatePollRequest{
		Question: "Who wins tonight?",
		Options:  []string{"Home", "Away", "Draw"},
	})
	require.NoError(t, err)
	require.Len(t, poll.Options, 3)

	require.NoError(t, s.Vote(t.Context(), poll.ID, poll.Options[0].ID, alice.ID))
	require.NoError(t, s.Vote(t.Context(), poll.ID, poll.Options[0].ID, bob.ID))

	results, err := s.Results(poll.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), results.TotalVotes)
	assert.Equal(t, 2, results.Counts[poll.Options[0].ID])
	assert.Equal(t, 0, results.Counts[poll.Options[1].ID])

	// Creation was announced on both feed channels
	channels := env.broadcaster.publishedChannels()
	assert.Contains(t, channels, "event:evt1:feed")
	assert.Contains(t, channels, "activities:all")
}

func TestRevoteSwitchesOption(t *testing.T) {
	env := newTestEnv(t)
	s := NewPollService(env.db, env.cache, env.feeds)
	alice := env.createUser(t, "alice")

	poll, err := s.CreatePoll(t.Context(), "evt1", alice.ID, CreatePollRequest{
		Question: "Best player?",
		Options:  []string{"Nine", "Ten"},
	})
	require.NoError(t, err)

	require.NoError(t, s.Vote(t.Context(), poll.ID, poll.Options[0].ID, alice.ID))
	require.NoError(t, s.Vote(t.Context(), poll.ID, poll.Options[1].ID, alice.ID))

	results, err := s.Results(poll.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), results.TotalVotes, "re-voting must not double count")
	assert.Equal(t, 1, results.Counts[poll.Options[1].ID])
}

func TestVoteOnClosedPollRejected(t *testing.T) {
	env := newTestEnv(t)
	s := NewPollService(env.db, env.cache, env.feeds)
	alice := env.createUser(t, "alice")

	poll, err := s.CreatePoll(t.Context(), "evt1", alice.ID, CreatePollRequest{
		Question: "Too late?",
		Options:  []string{"Yes", "No"},
		Duration: time.Millisecond,
	})
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	err = s.Vote(t.Context(), poll.ID, poll.Options[0].ID, alice.ID)
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierrors.ErrBadRequest, apiErr.Code)
}

func TestVoteForeignOptionRejected(t *testing.T) {
	env := newTestEnv(t)
	s := NewPollService(env.db, env.cache, env.feeds)
	alice := env.createUser(t, "alice")

	p1, err := s.CreatePoll(t.Context(), "evt1", alice.ID, CreatePollRequest{
		Question: "One?", Options: []string{"a", "b"},
	})
	require.NoError(t, err)
	p2, err := s.CreatePoll(t.Context(), "evt1", alice.ID, CreatePollRequest{
		Question: "Two?", Options: []string{"c", "d"},
	})
	require.NoError(t, err)

	err = s.Vote(t.Context(), p1.ID, p2.Options[0].ID, alice.ID)
	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, apierrors.ErrValidation, apiErr.Code)
}

func TestListPollsCached(t *testing.T) {
	env := newTestEnv(t)
	s := NewPollService(env.db, env.cache, env.feeds)
	alice := env.createUser(t, "alice")

	_, err := s.CreatePoll(t.Context(), "evt1", alice.ID, CreatePollRequest{
		Question: "Cached?", Options: []string{"yes", "no"},
	})
	require.NoError(t, err)

	first, err := s.ListPolls("evt1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Second read must come from the response cache
	stats, ok := env.cache.Stats("apiResponses")
	require.True(t, ok)
	before := stats.Hits

	second, err := s.ListPolls("evt1")
	require.NoError(t, err)
	assert.Len(t, second, 1)

	stats, _ = env.cache.Stats("apiResponses")
	assert.Greater(t, stats.Hits, before)
}
