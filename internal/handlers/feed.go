package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/matchpulse/backend/internal/feed"
	"github.com/matchpulse/backend/internal/middleware"
)

// GetFeed returns an event's recent activities, filtered by query params:
// types (comma-separated), user_id, min_priority, priority, since, until
// (RFC3339)
func (h *Handlers) GetFeed(c *gin.Context) {
	filter := &feed.Filter{
		UserID:      c.Query("user_id"),
		MinPriority: feed.Priority(c.Query("min_priority")),
		Priority:    feed.Priority(c.Query("priority")),
	}

	if types := c.Query("types"); types != "" {
		for _, t := range strings.Split(types, ",") {
			filter.ActivityTypes = append(filter.ActivityTypes, feed.ActivityType(t))
		}
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "since must be RFC3339"})
			return
		}
		filter.Since = t
	}
	if until := c.Query("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "until must be RFC3339"})
			return
		}
		filter.Until = t
	}

	activities := h.feeds.GetRecentActivities(c.Param("eventId"), parseInt(c.Query("limit"), 50), filter)
	c.JSON(http.StatusOK, gin.H{"activities": activities})
}

// FeedStats returns feed counters for an event
func (h *Handlers) FeedStats(c *gin.Context) {
	stats := h.feeds.GetFeedStats(c.Param("eventId"))
	if stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "feed not initialized"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// JoinEvent marks the caller active in the event and announces the arrival
func (h *Handlers) JoinEvent(c *gin.Context) {
	if err := h.users.JoinEvent(c.Request.Context(), c.Param("eventId"), middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "joined"})
}

// LeaveEvent clears the caller's active flag
func (h *Handlers) LeaveEvent(c *gin.Context) {
	h.users.LeaveEvent(c.Param("eventId"), middleware.CurrentUserID(c))
	c.JSON(http.StatusOK, gin.H{"status": "left"})
}

// UpdateParticipants sets the participant count (organizer only)
func (h *Handlers) UpdateParticipants(c *gin.Context) {
	var req struct {
		Count int `json:"count" binding:"min=0"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.feeds.UpdateParticipantCount(c.Request.Context(), c.Param("eventId"), req.Count); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// ClearFeed destroys an event's feed (organizer only)
func (h *Handlers) ClearFeed(c *gin.Context) {
	h.feeds.ClearFeed(c.Param("eventId"))
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

// ActiveFeeds lists initialized event feeds
func (h *Handlers) ActiveFeeds(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": h.feeds.ActiveFeeds()})
}
