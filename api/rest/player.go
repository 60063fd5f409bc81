package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nanakusa/questward/game/health"
	mw "github.com/nanakusa/questward/middleware"
)

// PlayerHandler exposes the player's HP state.
type PlayerHandler struct {
	health *health.Service
}

// NewPlayerHandler creates a PlayerHandler.
func NewPlayerHandler(h *health.Service) *PlayerHandler {
	return &PlayerHandler{health: h}
}

// Get handles GET /api/player.
func (h *PlayerHandler) Get(c *gin.Context) {
	p, err := h.health.Get(c.Request.Context(), mw.GetAccountID(c))
	if errors.Is(err, health.ErrNoPlayer) {
		c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, p)
}
