package rest

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nanakusa/questward/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createQuest(t *testing.T, s *testServer, token string, body gin.H) model.Quest {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/quests", token, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var q model.Quest
	decodeBody(t, w, &q)
	return q
}

func questPath(id int64, action string) string {
	if action == "" {
		return fmt.Sprintf("/api/quests/%d", id)
	}
	return fmt.Sprintf("/api/quests/%d/%s", id, action)
}

func TestQuestCreate(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "aria", "hunter22")

	q := createQuest(t, s, token, gin.H{
		"title":       "Morning run",
		"repeat_type": "daily",
		"due_date":    time.Now().Format(time.RFC3339),
	})
	assert.Equal(t, "Morning run", q.Title)
	assert.Equal(t, model.RepeatDaily, q.RepeatType)
	assert.True(t, q.IsActive)
}

func TestQuestCreate_BadInput(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "aria", "hunter22")

	// Missing due date.
	w := s.do(t, http.MethodPost, "/api/quests", token, gin.H{
		"title":       "Morning run",
		"repeat_type": "daily",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Non-RFC3339 due date.
	w = s.do(t, http.MethodPost, "/api/quests", token, gin.H{
		"title":       "Morning run",
		"repeat_type": "daily",
		"due_date":    "tomorrow",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown repeat type.
	w = s.do(t, http.MethodPost, "/api/quests", token, gin.H{
		"title":       "Morning run",
		"repeat_type": "hourly",
		"due_date":    time.Now().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuestList_ScopedToAccount(t *testing.T) {
	s := newTestServer(t)
	aria := s.login(t, "aria", "hunter22")
	finn := s.login(t, "finn", "hunter22")

	createQuest(t, s, aria, gin.H{
		"title":       "Morning run",
		"repeat_type": "daily",
		"due_date":    time.Now().Format(time.RFC3339),
	})
	createQuest(t, s, finn, gin.H{
		"title":       "Weekly review",
		"repeat_type": "weekly",
		"due_date":    time.Now().Format(time.RFC3339),
	})

	w := s.do(t, http.MethodGet, "/api/quests", aria, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Quests []model.Quest `json:"quests"`
		Count  int           `json:"count"`
	}
	decodeBody(t, w, &resp)
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "Morning run", resp.Quests[0].Title)
}

func TestQuestLifecycleEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "aria", "hunter22")
	q := createQuest(t, s, token, gin.H{
		"title":       "Morning run",
		"repeat_type": "daily",
		"due_date":    time.Now().Format(time.RFC3339),
	})

	// Record today as done, then backfill an explicit day.
	w := s.do(t, http.MethodPost, questPath(q.ID, "complete"), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, questPath(q.ID, "complete"), token, gin.H{"day": "2026-03-01"})
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, questPath(q.ID, "complete"), token, gin.H{"day": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, questPath(q.ID, "abandon"), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var got model.Quest
	require.NoError(t, s.db.First(&got, q.ID).Error)
	assert.False(t, got.IsActive)

	w = s.do(t, http.MethodPost, questPath(q.ID, "reactivate"), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, s.db.First(&got, q.ID).Error)
	assert.True(t, got.IsActive)

	w = s.do(t, http.MethodPost, questPath(q.ID, "finish"), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, s.db.First(&got, q.ID).Error)
	assert.True(t, got.IsCompleted)

	w = s.do(t, http.MethodDelete, questPath(q.ID, ""), token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodDelete, questPath(q.ID, ""), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuestEndpoints_OwnershipEnforced(t *testing.T) {
	s := newTestServer(t)
	aria := s.login(t, "aria", "hunter22")
	finn := s.login(t, "finn", "hunter22")
	q := createQuest(t, s, aria, gin.H{
		"title":       "Morning run",
		"repeat_type": "daily",
		"due_date":    time.Now().Format(time.RFC3339),
	})

	w := s.do(t, http.MethodPost, questPath(q.ID, "complete"), finn, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodDelete, questPath(q.ID, ""), finn, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestQuestEndpoints_UnknownID(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "aria", "hunter22")

	w := s.do(t, http.MethodPost, questPath(999, "complete"), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = s.do(t, http.MethodPost, "/api/quests/abc/complete", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
