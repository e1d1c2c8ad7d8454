package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apierrors "github.com/matchpulse/backend/internal/errors"
	"github.com/matchpulse/backend/internal/feed"
)

// respondError maps domain errors to HTTP responses
func respondError(c *gin.Context, err error) {
	var apiErr *apierrors.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, gin.H{"error": apiErr})
		return
	}

	var feedErr *feed.Error
	if errors.As(err, &feedErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": gin.H{
			"code":    "INVALID_ACTIVITY",
			"message": feedErr.Message,
		}})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{
		"code":    apierrors.ErrInternalError,
		"message": "internal server error",
	}})
}

func parseInt(s string, defaultValue int) int {
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultValue
}
