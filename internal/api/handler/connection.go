package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/vinialveslopesanjos/sentimenta/internal/domain"
	"github.com/vinialveslopesanjos/sentimenta/internal/repository"
)

// ConnectionHandler handles social connection endpoints.
type ConnectionHandler struct {
	connections *repository.ConnectionRepository
}

// NewConnectionHandler creates a new connection handler.
// Parameters:
//   - connections: connection repository.
//
// Returns:
//   - *ConnectionHandler: initialized handler.
func NewConnectionHandler(connections *repository.ConnectionRepository) *ConnectionHandler {
	return &ConnectionHandler{connections: connections}
}

type createConnectionRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	Platform    string `json:"platform" binding:"required"`
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name"`
	ProfileURL  string `json:"profile_url"`
}

// Create handles POST /api/v1/connections.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *ConnectionHandler) Create(c *gin.Context) {
	var req createConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request: " + err.Error(),
		})
		return
	}

	conn := &domain.Connection{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		Platform:    req.Platform,
		Username:    req.Username,
		DisplayName: req.DisplayName,
		ProfileURL:  req.ProfileURL,
		Status:      domain.ConnectionStatusActive,
		ConnectedAt: time.Now().UTC(),
	}
	if err := h.connections.Create(c.Request.Context(), conn); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create connection: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusCreated, conn)
}

// List handles GET /api/v1/connections with a required user_id query parameter.
// Parameters:
//   - c: Gin request context.
//
// Returns: none (writes JSON response).
func (h *ConnectionHandler) List(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'user_id' is required",
		})
		return
	}

	conns, err := h.connections.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list connections: " + err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"connections": conns,
		"count":       len(conns),
	})
}
