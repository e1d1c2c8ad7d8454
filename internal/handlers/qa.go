package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matchpulse/backend/internal/middleware"
)

// AskQuestion records an audience question
func (h *Handlers) AskQuestion(c *gin.Context) {
	var req struct {
		Body string `json:"body" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q, err := h.qa.AskQuestion(c.Request.Context(), c.Param("eventId"), middleware.CurrentUserID(c), req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

// ListQuestions returns an event's questions, most upvoted first
func (h *Handlers) ListQuestions(c *gin.Context) {
	questions, err := h.qa.ListQuestions(c.Param("eventId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// AnswerQuestion replies to a question
func (h *Handlers) AnswerQuestion(c *gin.Context) {
	var req struct {
		Body     string `json:"body" binding:"required,min=1"`
		Official bool   `json:"official"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	a, err := h.qa.AnswerQuestion(c.Request.Context(), c.Param("questionId"), middleware.CurrentUserID(c), req.Body, req.Official)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// UpvoteQuestion bumps a question
func (h *Handlers) UpvoteQuestion(c *gin.Context) {
	if err := h.qa.UpvoteQuestion(c.Param("questionId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "upvoted"})
}
