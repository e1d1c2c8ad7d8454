package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matchpulse/backend/internal/auth"
	"github.com/matchpulse/backend/internal/middleware"
	"github.com/matchpulse/backend/internal/services"
)

// Register creates a new account
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.auth.Register(req)
	switch {
	case errors.Is(err, auth.ErrUserExists), errors.Is(err, auth.ErrUsernameExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case err != nil:
		respondError(c, err)
	default:
		c.JSON(http.StatusCreated, resp)
	}
}

// Login authenticates an account
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := h.auth.Login(req)
	switch {
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	case err != nil:
		respondError(c, err)
	default:
		c.JSON(http.StatusOK, resp)
	}
}

// Me returns the authenticated user
func (h *Handlers) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile updates the caller's display fields
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.UpdateProfile(middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
