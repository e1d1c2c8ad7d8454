package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matchpulse/backend/internal/middleware"
)

// CreateThread opens a discussion topic
func (h *Handlers) CreateThread(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required,min=1,max=200"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := h.discussions.CreateThread(c.Request.Context(), c.Param("eventId"), middleware.CurrentUserID(c), req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

// ListThreads returns an event's discussion topics
func (h *Handlers) ListThreads(c *gin.Context) {
	threads, err := h.discussions.ListThreads(c.Param("eventId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"threads": threads})
}

// PostMessage appends a message to a thread
func (h *Handlers) PostMessage(c *gin.Context) {
	var req struct {
		Body string `json:"body" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m, err := h.discussions.PostMessage(c.Request.Context(), c.Param("threadId"), middleware.CurrentUserID(c), req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// ListMessages returns a thread's messages in post order
func (h *Handlers) ListMessages(c *gin.Context) {
	messages, err := h.discussions.ListMessages(c.Param("threadId"), parseInt(c.Query("limit"), 50))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// PinThread pins or unpins a thread (organizer only)
func (h *Handlers) PinThread(c *gin.Context) {
	var req struct {
		Pinned bool `json:"pinned"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.discussions.PinThread(c.Param("threadId"), req.Pinned); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}
