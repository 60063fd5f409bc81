package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterIdleTTL    = 10 * time.Minute
	limiterSweepEvery = 5 * time.Minute
)

type visitor struct {
	bucket   *rate.Limiter
	lastSeen time.Time
}

// visitorRegistry holds one token bucket per client IP.
type visitorRegistry struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	done     chan struct{}
}

func newVisitorRegistry(r rate.Limit, b int) *visitorRegistry {
	vr := &visitorRegistry{
		visitors: make(map[string]*visitor),
		limit:    r,
		burst:    b,
		done:     make(chan struct{}),
	}
	go vr.sweepLoop(limiterSweepEvery)
	return vr
}

// close stops the idle-bucket sweeper.
func (vr *visitorRegistry) close() {
	close(vr.done)
}

func (vr *visitorRegistry) allow(ip string) bool {
	now := time.Now()
	vr.mu.Lock()
	v, ok := vr.visitors[ip]
	if !ok {
		v = &visitor{bucket: rate.NewLimiter(vr.limit, vr.burst)}
		vr.visitors[ip] = v
	}
	v.lastSeen = now
	vr.mu.Unlock()
	return v.bucket.Allow()
}

func (vr *visitorRegistry) sweep() {
	cutoff := time.Now().Add(-limiterIdleTTL)
	vr.mu.Lock()
	for ip, v := range vr.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(vr.visitors, ip)
		}
	}
	vr.mu.Unlock()
}

func (vr *visitorRegistry) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			vr.sweep()
		case <-vr.done:
			return
		}
	}
}

// RateLimit applies a per-IP token bucket: r requests per second with
// bursts up to b. Idle buckets are swept periodically.
func RateLimit(r rate.Limit, b int) gin.HandlerFunc {
	vr := newVisitorRegistry(r, b)
	return func(c *gin.Context) {
		if !vr.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
