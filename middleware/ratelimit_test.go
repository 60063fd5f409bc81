package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func rateLimitedRouter(r rate.Limit, burst int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	eng := gin.New()
	eng.Use(RateLimit(r, burst))
	eng.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return eng
}

func hitFrom(r *gin.Engine, ip string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", ip)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_WithinBudget(t *testing.T) {
	r := rateLimitedRouter(100, 5)
	assert.Equal(t, http.StatusOK, hitFrom(r, "10.0.0.1"))
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	// Near-zero refill so the burst is the whole budget.
	r := rateLimitedRouter(0.001, 3)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hitFrom(r, "10.0.1.1"), "request %d", i+1)
	}
	assert.Equal(t, http.StatusTooManyRequests, hitFrom(r, "10.0.1.1"))
}

func TestRateLimit_BudgetsArePerIP(t *testing.T) {
	r := rateLimitedRouter(0.001, 1)

	assert.Equal(t, http.StatusOK, hitFrom(r, "10.1.1.1"))
	assert.Equal(t, http.StatusOK, hitFrom(r, "10.1.1.2"), "a fresh IP has its own budget")
	assert.Equal(t, http.StatusTooManyRequests, hitFrom(r, "10.1.1.1"))
}

func TestVisitorRegistry_SweepDropsIdle(t *testing.T) {
	vr := &visitorRegistry{
		visitors: make(map[string]*visitor),
		limit:    1,
		burst:    1,
	}
	vr.allow("10.2.0.1")
	backdate(vr, "10.2.0.1")

	vr.sweep()

	vr.mu.Lock()
	defer vr.mu.Unlock()
	assert.Empty(t, vr.visitors)
}

func TestVisitorRegistry_SweepLoopStopsOnClose(t *testing.T) {
	vr := &visitorRegistry{
		visitors: make(map[string]*visitor),
		limit:    1,
		burst:    1,
		done:     make(chan struct{}),
	}
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		vr.sweepLoop(10 * time.Millisecond)
	}()

	vr.allow("10.3.0.1")
	backdate(vr, "10.3.0.1")
	assert.Eventually(t, func() bool {
		vr.mu.Lock()
		defer vr.mu.Unlock()
		return len(vr.visitors) == 0
	}, time.Second, 5*time.Millisecond, "sweeper drops the idle bucket")

	vr.close()
	select {
	case <-loopDone:
	case <-time.After(time.Second):
		t.Fatal("sweeper goroutine did not exit after close")
	}

	// A bucket left idle after close stays put.
	vr.allow("10.3.0.2")
	backdate(vr, "10.3.0.2")
	time.Sleep(50 * time.Millisecond)
	vr.mu.Lock()
	defer vr.mu.Unlock()
	assert.Len(t, vr.visitors, 1)
}

// backdate pushes an IP's lastSeen past the idle TTL.
func backdate(vr *visitorRegistry, ip string) {
	vr.mu.Lock()
	vr.visitors[ip].lastSeen = vr.visitors[ip].lastSeen.Add(-2 * limiterIdleTTL)
	vr.mu.Unlock()
}
