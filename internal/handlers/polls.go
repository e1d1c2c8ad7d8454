package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/matchpulse/backend/internal/middleware"
	"github.com/matchpulse/backend/internal/services"
)

// CreatePoll opens a poll on an event
func (h *Handlers) CreatePoll(c *gin.Context) {
	var req struct {
		Question        string   `json:"question" binding:"required,min=1"`
		Options         []string `json:"options" binding:"required,min=2,max=10"`
		DurationSeconds int      `json:"duration_seconds" binding:"omitempty,min=10"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	poll, err := h.polls.CreatePoll(c.Request.Context(), c.Param("eventId"), middleware.CurrentUserID(c),
		services.CreatePollRequest{
			Question: req.Question,
			Options:  req.Options,
			Duration: time.Duration(req.DurationSeconds) * time.Second,
		})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, poll)
}

// ListPolls returns an event's polls
func (h *Handlers) ListPolls(c *gin.Context) {
	polls, err := h.polls.ListPolls(c.Param("eventId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"polls": polls})
}

// GetPoll returns one poll with options
func (h *Handlers) GetPoll(c *gin.Context) {
	poll, err := h.polls.GetPoll(c.Param("pollId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, poll)
}

// Vote records the caller's choice
func (h *Handlers) Vote(c *gin.Context) {
	var req struct {
		OptionID string `json:"option_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.polls.Vote(c.Request.Context(), c.Param("pollId"), req.OptionID, middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "voted"})
}

// PollResults returns the tally for a poll
func (h *Handlers) PollResults(c *gin.Context) {
	results, err := h.polls.Results(c.Param("pollId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
