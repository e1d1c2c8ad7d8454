package relay

import (
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/matchpulse/backend/internal/auth"
	"github.com/matchpulse/backend/internal/logger"
)

// Handler upgrades HTTP requests into relay clients
type Handler struct {
	hub         *Hub
	authService *auth.Service
}

// NewHandler creates a relay upgrade handler
func NewHandler(hub *Hub, authService *auth.Service) *Handler {
	return &Handler{hub: hub, authService: authService}
}

// HandleWebSocket upgrades the request and starts the client pumps.
// Authentication is a JWT in the ?token query param or a Bearer header.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, err := h.authenticate(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "authentication_failed",
			"message": err.Error(),
		})
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
		CompressionMode:    websocket.CompressionContextTakeover,
	})
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(h.hub, conn, userID)
	client.RemoteAddr = c.ClientIP()

	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func (h *Handler) authenticate(c *gin.Context) (string, error) {
	token := c.Query("token")
	if token == "" {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			token = strings.TrimPrefix(header, "Bearer ")
		}
	}
	if token == "" {
		return "", errors.New("missing token")
	}

	user, err := h.authService.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}
