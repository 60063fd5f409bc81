package rest

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nanakusa/questward/game/quest"
	mw "github.com/nanakusa/questward/middleware"
	"go.uber.org/zap"
)

// QuestHandler handles quest CRUD and completion endpoints.
type QuestHandler struct {
	quests *quest.Service
	logger *zap.Logger
}

// NewQuestHandler creates a QuestHandler.
func NewQuestHandler(quests *quest.Service, logger *zap.Logger) *QuestHandler {
	return &QuestHandler{quests: quests, logger: logger}
}

type createQuestRequest struct {
	Title         string `json:"title" binding:"required,min=1,max=128"`
	RepeatType    string `json:"repeat_type" binding:"required"`
	DueDate       string `json:"due_date" binding:"required"` // RFC 3339
	ScheduledDays []int  `json:"scheduled_days"`
}

// Create handles POST /api/quests.
func (h *QuestHandler) Create(c *gin.Context) {
	var req createQuestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	due, err := time.Parse(time.RFC3339, req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be RFC 3339"})
		return
	}

	q, err := h.quests.Create(c.Request.Context(), mw.GetAccountID(c), quest.CreateInput{
		Title:         req.Title,
		RepeatType:    req.RepeatType,
		DueDate:       due,
		ScheduledDays: req.ScheduledDays,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, q)
}

// List handles GET /api/quests.
func (h *QuestHandler) List(c *gin.Context) {
	quests, err := h.quests.ListByAccount(c.Request.Context(), mw.GetAccountID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quests": quests, "count": len(quests)})
}

// CompleteDay handles POST /api/quests/:id/complete.
// An optional "day" body field (YYYY-MM-DD) backfills an earlier day;
// the default is today.
func (h *QuestHandler) CompleteDay(c *gin.Context) {
	questID, ok := h.ownedQuestID(c)
	if !ok {
		return
	}
	var req struct {
		Day string `json:"day"`
	}
	_ = c.ShouldBindJSON(&req)

	day := time.Now()
	if req.Day != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.Day, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "day must be YYYY-MM-DD"})
			return
		}
		day = parsed
	}

	if err := h.quests.CompleteDay(c.Request.Context(), questID, day); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Complete handles POST /api/quests/:id/finish.
func (h *QuestHandler) Complete(c *gin.Context) {
	questID, ok := h.ownedQuestID(c)
	if !ok {
		return
	}
	if err := h.quests.Complete(c.Request.Context(), questID); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Abandon handles POST /api/quests/:id/abandon.
func (h *QuestHandler) Abandon(c *gin.Context) {
	questID, ok := h.ownedQuestID(c)
	if !ok {
		return
	}
	if err := h.quests.Abandon(c.Request.Context(), questID); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Reactivate handles POST /api/quests/:id/reactivate.
func (h *QuestHandler) Reactivate(c *gin.Context) {
	questID, ok := h.ownedQuestID(c)
	if !ok {
		return
	}
	if err := h.quests.Reactivate(c.Request.Context(), questID, time.Now()); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete handles DELETE /api/quests/:id.
func (h *QuestHandler) Delete(c *gin.Context) {
	questID, ok := h.ownedQuestID(c)
	if !ok {
		return
	}
	if err := h.quests.Delete(c.Request.Context(), questID); err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ownedQuestID parses the :id param and verifies the quest belongs to the
// authenticated account.
func (h *QuestHandler) ownedQuestID(c *gin.Context) (int64, bool) {
	questID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	q, err := h.quests.Get(c.Request.Context(), questID)
	if err != nil {
		h.writeServiceError(c, err)
		return 0, false
	}
	if q.AccountID != mw.GetAccountID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your quest"})
		return 0, false
	}
	return questID, true
}

func (h *QuestHandler) writeServiceError(c *gin.Context, err error) {
	if errors.Is(err, quest.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "quest not found"})
		return
	}
	h.logger.Error("quest endpoint failed", zap.Error(err),
		zap.String("path", c.Request.URL.Path))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
