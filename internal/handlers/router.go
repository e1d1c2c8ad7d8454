package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matchpulse/backend/internal/config"
	"github.com/matchpulse/backend/internal/middleware"
	"github.com/matchpulse/backend/internal/relay"
)

// NewRouter builds the gin engine with the full middleware stack and routes
func NewRouter(cfg *config.Config, h *Handlers, relayHandler *relay.Handler) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowHeaders = append(corsConfig.AllowHeaders, "Authorization", "X-Request-ID")
	r.Use(cors.New(corsConfig))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", relayHandler.HandleWebSocket)

	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
		}

		authed := v1.Group("")
		authed.Use(middleware.Auth(h.auth))
		{
			authed.GET("/me", h.Me)
			authed.PATCH("/me", h.UpdateProfile)
			authed.GET("/me/achievements", h.MyAchievements)

			events := authed.Group("/events/:eventId")
			{
				events.POST("/join", h.JoinEvent)
				events.POST("/leave", h.LeaveEvent)

				events.GET("/feed", h.GetFeed)
				events.GET("/feed/stats", h.FeedStats)

				events.GET("/polls", h.ListPolls)
				events.POST("/polls", h.CreatePoll)

				events.GET("/questions", h.ListQuestions)
				events.POST("/questions", h.AskQuestion)

				events.GET("/threads", h.ListThreads)
				events.POST("/threads", h.CreateThread)

				events.POST("/reactions", h.React)
				events.DELETE("/reactions", h.Unreact)
				events.GET("/reactions", h.ReactionCounts)

				events.GET("/leaderboard", h.Leaderboard)
				events.GET("/leaderboard/me", h.MyRank)
				events.POST("/scores", h.SubmitScore)

				events.POST("/mentorship/match", h.RequestMentorMatch)

				organizer := events.Group("")
				organizer.Use(middleware.RequireOrganizer())
				{
					organizer.PUT("/participants", h.UpdateParticipants)
					organizer.DELETE("/feed", h.ClearFeed)
					organizer.POST("/achievements/award", h.AwardAchievement)
				}
			}

			authed.GET("/polls/:pollId", h.GetPoll)
			authed.POST("/polls/:pollId/votes", h.Vote)
			authed.GET("/polls/:pollId/results", h.PollResults)

			authed.POST("/questions/:questionId/answers", h.AnswerQuestion)
			authed.POST("/questions/:questionId/upvote", h.UpvoteQuestion)

			authed.POST("/threads/:threadId/messages", h.PostMessage)
			authed.GET("/threads/:threadId/messages", h.ListMessages)

			authed.PUT("/mentorship/profile", h.UpsertMentorProfile)
			authed.POST("/mentorship/matches/:matchId/respond", h.RespondToMatch)

			authed.GET("/achievements", h.AchievementCatalog)

			system := authed.Group("/system")
			system.Use(middleware.RequireOrganizer())
			{
				system.GET("/caches", h.CacheStats)
				system.GET("/pool", h.PoolStats)
				system.GET("/relay", h.RelayStats)
				system.GET("/feeds", h.ActiveFeeds)
			}
		}

		organizerThreads := v1.Group("/threads/:threadId")
		organizerThreads.Use(middleware.Auth(h.auth), middleware.RequireOrganizer())
		{
			organizerThreads.PUT("/pin", h.PinThread)
		}
	}

	return r
}
