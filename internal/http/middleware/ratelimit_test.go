package middleware

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiter_PerUserBuckets(t *testing.T) {
	rl := NewRateLimiter(0.5, 1, KeyByUserOrIP())
	r := gin.New()
	r.Use(Identity(IdentityOptions{}), rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	u1 := map[string]string{HeaderUserID: "1"}
	if w := do(r, http.MethodGet, "/x", u1); w.Code != 200 {
		t.Fatalf("first request = %d", w.Code)
	}
	w := do(r, http.MethodGet, "/x", u1)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d; want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("Retry-After = %q; want 2", got)
	}
	// Another caller has its own bucket.
	if w := do(r, http.MethodGet, "/x", map[string]string{HeaderUserID: "2"}); w.Code != 200 {
		t.Fatalf("other user = %d", w.Code)
	}
}

func TestRateLimiter_ReplayBypass(t *testing.T) {
	rl := NewRateLimiter(0.001, 0, KeyByUserOrIP())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Replay") != "" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}, rl.Handler())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, http.MethodGet, "/x", nil)
	if w := do(r, http.MethodGet, "/x", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected exhausted bucket, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/x", map[string]string{"X-Replay": "1"}); w.Code != 200 {
		t.Fatalf("replay should bypass, got %d", w.Code)
	}
}

func TestRateLimiter_EvictsIdleVisitors(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	rl.ttl = time.Nanosecond
	rl.getVisitor("stale")
	time.Sleep(time.Millisecond)
	rl.cleanupN = 4999
	rl.getVisitor("fresh")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["stale"]; ok {
		t.Fatalf("idle visitor should have been evicted")
	}
	if _, ok := rl.visitors["fresh"]; !ok || rl.cleanupN != 0 {
		t.Fatalf("fresh visitor missing or counter not reset: %d", rl.cleanupN)
	}
}
