package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matchpulse/backend/internal/middleware"
	"github.com/matchpulse/backend/internal/services"
)

// React adds or switches an emoji reaction
func (h *Handlers) React(c *gin.Context) {
	var req struct {
		TargetType string `json:"target_type" binding:"required"`
		TargetID   string `json:"target_id" binding:"required"`
		Emoji      string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reaction, err := h.reactions.React(c.Request.Context(), c.Param("eventId"), middleware.CurrentUserID(c),
		req.TargetType, req.TargetID, req.Emoji)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reaction)
}

// Unreact removes the caller's reaction from a target
func (h *Handlers) Unreact(c *gin.Context) {
	err := h.reactions.Unreact(middleware.CurrentUserID(c), c.Query("target_type"), c.Query("target_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

// ReactionCounts tallies reactions per emoji on a target
func (h *Handlers) ReactionCounts(c *gin.Context) {
	counts, err := h.reactions.CountReactions(c.Query("target_type"), c.Query("target_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}

// AchievementCatalog lists every earnable badge
func (h *Handlers) AchievementCatalog(c *gin.Context) {
	catalog, err := h.achievement.Catalog()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": catalog})
}

// AwardAchievement grants a badge (organizer only)
func (h *Handlers) AwardAchievement(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Slug   string `json:"slug" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	awarded, err := h.achievement.Award(c.Request.Context(), c.Param("eventId"), req.UserID, req.Slug)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, awarded)
}

// MyAchievements lists the caller's earned badges
func (h *Handlers) MyAchievements(c *gin.Context) {
	earned, err := h.achievement.UserAchievements(middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"achievements": earned})
}

// Leaderboard returns the event's top entries
func (h *Handlers) Leaderboard(c *gin.Context) {
	top, err := h.leaderboard.Top(c.Param("eventId"), parseInt(c.Query("limit"), 10))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": top})
}

// SubmitScore records a challenge result and the points it earned
func (h *Handlers) SubmitScore(c *gin.Context) {
	var req struct {
		ChallengeName string `json:"challenge_name" binding:"required"`
		Points        int    `json:"points" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.leaderboard.SubmitScore(c.Request.Context(), c.Param("eventId"), middleware.CurrentUserID(c),
		req.ChallengeName, req.Points)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "recorded"})
}

// MyRank returns the caller's standing in the event
func (h *Handlers) MyRank(c *gin.Context) {
	rank, err := h.leaderboard.UserRank(c.Param("eventId"), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if rank == nil {
		c.JSON(http.StatusOK, gin.H{"rank": nil})
		return
	}
	c.JSON(http.StatusOK, rank)
}

// UpsertMentorProfile creates or updates the caller's mentorship profile
func (h *Handlers) UpsertMentorProfile(c *gin.Context) {
	var req services.UpsertProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	profile, err := h.mentorship.UpsertProfile(middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// RequestMentorMatch pairs the caller with the best available mentor
func (h *Handlers) RequestMentorMatch(c *gin.Context) {
	match, err := h.mentorship.Match(c.Request.Context(), c.Param("eventId"), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, match)
}

// RespondToMatch accepts or declines a proposed pairing
func (h *Handlers) RespondToMatch(c *gin.Context) {
	var req struct {
		Accept bool `json:"accept"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.mentorship.RespondToMatch(c.Param("matchId"), req.Accept); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}
