// Package handlers contains the HTTP API surface.
package handlers

import (
	"github.com/matchpulse/backend/internal/auth"
	"github.com/matchpulse/backend/internal/cache"
	"github.com/matchpulse/backend/internal/feed"
	"github.com/matchpulse/backend/internal/relay"
	"github.com/matchpulse/backend/internal/services"
	"github.com/matchpulse/backend/internal/wspool"
)

// Handlers bundles every HTTP handler with its dependencies
type Handlers struct {
	auth        *auth.Service
	cache       *cache.Service
	feeds       *feed.Manager
	pool        *wspool.Pool
	relayHub    *relay.Hub
	users       *services.UserService
	polls       *services.PollService
	qa          *services.QAService
	discussions *services.DiscussionService
	mentorship  *services.MentorshipService
	reactions   *services.ReactionService
	achievement *services.AchievementService
	leaderboard *services.LeaderboardService
}

// Deps are the constructed dependencies the handlers need
type Deps struct {
	Auth        *auth.Service
	Cache       *cache.Service
	Feeds       *feed.Manager
	Pool        *wspool.Pool
	RelayHub    *relay.Hub
	Users       *services.UserService
	Polls       *services.PollService
	QA          *services.QAService
	Discussions *services.DiscussionService
	Mentorship  *services.MentorshipService
	Reactions   *services.ReactionService
	Achievement *services.AchievementService
	Leaderboard *services.LeaderboardService
}

// New creates the handler set
func New(deps Deps) *Handlers {
	return &Handlers{
		auth:        deps.Auth,
		cache:       deps.Cache,
		feeds:       deps.Feeds,
		pool:        deps.Pool,
		relayHub:    deps.RelayHub,
		users:       deps.Users,
		polls:       deps.Polls,
		qa:          deps.QA,
		discussions: deps.Discussions,
		mentorship:  deps.Mentorship,
		reactions:   deps.Reactions,
		achievement: deps.Achievement,
		leaderboard: deps.Leaderboard,
	}
}
