package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/matchpulse/backend/internal/auth"
	"github.com/matchpulse/backend/internal/models"
)

// Auth validates the Bearer token and stores the user on the context
func Auth(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or malformed authorization header"})
			c.Abort()
			return
		}

		user, err := authService.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Next()
	}
}

// RequireOrganizer ensures the authenticated user is an organizer or admin
func RequireOrganizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		if user.Role != "organizer" && user.Role != "admin" {
			c.JSON(http.StatusForbidden, gin.H{"error": "organizer access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user from the context, or nil
func CurrentUser(c *gin.Context) *models.User {
	if v, exists := c.Get("user"); exists {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// CurrentUserID returns the authenticated user id from the context
func CurrentUserID(c *gin.Context) string {
	return c.GetString("user_id")
}
