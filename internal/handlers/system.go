package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health reports service liveness
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// CacheStats returns per-cache hit/miss/eviction counters
func (h *Handlers) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"caches": h.cache.AllStats()})
}

// PoolStats returns the connection pool snapshot
func (h *Handlers) PoolStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.pool.Stats())
}

// RelayStats returns relay hub counters
func (h *Handlers) RelayStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.relayHub.GetStats())
}
