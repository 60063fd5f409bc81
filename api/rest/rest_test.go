package rest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nanakusa/questward/cache"
	"github.com/nanakusa/questward/config"
	"github.com/nanakusa/questward/game/health"
	"github.com/nanakusa/questward/game/penalty"
	"github.com/nanakusa/questward/game/quest"
	mw "github.com/nanakusa/questward/middleware"
	"github.com/nanakusa/questward/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// testServer wires the full API the way main.go does, against an
// in-memory DB and the local cache.
type testServer struct {
	router  *gin.Engine
	db      *gorm.DB
	cache   cache.Cache
	quests  *quest.Service
	health  *health.Service
	runner  *penalty.Runner
	store   *penalty.GormStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		JWTSecret: "test-secret",
		JWTTTLH:   time.Hour,
	}

	store := penalty.NewStore(db)
	healthSvc := health.NewService(db, logger)
	questSvc := quest.NewService(db, store, logger)
	engine := penalty.NewEngine(store, penalty.DefaultCosts(), nil, 0, logger)
	runner := penalty.NewRunner(engine, questSvc, healthSvc, nil, c, ps, logger)

	authH := NewAuthHandler(db, c, sec, healthSvc)
	questH := NewQuestHandler(questSvc, logger)
	penaltyH := NewPenaltyHandler(runner, store, logger)
	playerH := NewPlayerHandler(healthSvc)

	r := gin.New()
	api := r.Group("/api")
	api.POST("/auth/login", authH.Login)

	authed := api.Group("", mw.Auth(sec, c))
	authed.POST("/auth/logout", authH.Logout)
	authed.POST("/auth/refresh", authH.Refresh)
	authed.GET("/player", playerH.Get)
	authed.POST("/quests", questH.Create)
	authed.GET("/quests", questH.List)
	authed.POST("/quests/:id/complete", questH.CompleteDay)
	authed.POST("/quests/:id/finish", questH.Complete)
	authed.POST("/quests/:id/abandon", questH.Abandon)
	authed.POST("/quests/:id/reactivate", questH.Reactivate)
	authed.DELETE("/quests/:id", questH.Delete)
	authed.POST("/penalty/run", penaltyH.Run)
	authed.GET("/penalty/last", penaltyH.LastRun)
	authed.GET("/penalty/trackers", penaltyH.ListTrackers)
	authed.GET("/penalty/trackers/:quest_id", penaltyH.History)

	return &testServer{
		router: r,
		db:     db,
		cache:  c,
		quests: questSvc,
		health: healthSvc,
		runner: runner,
		store:  store,
	}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// login authenticates (auto-registering on first use) and returns the token.
func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"username": username,
		"password": password,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}
