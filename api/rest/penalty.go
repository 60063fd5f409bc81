package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nanakusa/questward/game/penalty"
	mw "github.com/nanakusa/questward/middleware"
	"go.uber.org/zap"
)

// PenaltyHandler exposes the penalty engine: the user-initiated
// recalculate trigger and the tracker/history read endpoints.
type PenaltyHandler struct {
	runner *penalty.Runner
	store  penalty.Store
	logger *zap.Logger
}

// NewPenaltyHandler creates a PenaltyHandler.
func NewPenaltyHandler(runner *penalty.Runner, store penalty.Store, logger *zap.Logger) *PenaltyHandler {
	return &PenaltyHandler{runner: runner, store: store, logger: logger}
}

// Run handles POST /api/penalty/run — the explicit "recalculate" action.
// A run already in flight maps to 409 so clients can retry.
func (h *PenaltyHandler) Run(c *gin.Context) {
	res, err := h.runner.RunNow(c.Request.Context(), time.Now())
	if errors.Is(err, penalty.ErrRunInFlight) {
		c.JSON(http.StatusConflict, gin.H{"error": "a penalty run is already in progress"})
		return
	}
	if err != nil {
		h.logger.Error("manual penalty run failed",
			zap.Error(err), zap.String("trace_id", mw.GetTraceID(c)))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "penalty run failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// LastRun handles GET /api/penalty/last.
func (h *PenaltyHandler) LastRun(c *gin.Context) {
	payload := h.runner.LastRun(c.Request.Context())
	if payload == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run recorded"})
		return
	}
	c.Data(http.StatusOK, "application/json", []byte(payload))
}

// ListTrackers handles GET /api/penalty/trackers.
func (h *PenaltyHandler) ListTrackers(c *gin.Context) {
	trackers, err := h.store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trackers": trackers, "count": len(trackers)})
}

// History handles GET /api/penalty/trackers/:quest_id — the itemized
// damage trail for one quest.
func (h *PenaltyHandler) History(c *gin.Context) {
	questID, err := strconv.ParseInt(c.Param("quest_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quest_id"})
		return
	}
	tracker, err := h.store.Load(c.Request.Context(), questID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	if tracker == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tracker not found"})
		return
	}
	events, err := h.store.History(c.Request.Context(), questID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracker": tracker, "events": events})
}
