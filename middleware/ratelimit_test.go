package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterBurst(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	for i := 0; i < 3; i++ {
		if !rl.allow("1.2.3.4") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("1.2.3.4") {
		t.Fatal("fourth request should be rate limited")
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(1, 50*time.Millisecond)
	rl.allow("1.2.3.4")
	if rl.allow("1.2.3.4") {
		t.Fatal("should be rate limited immediately")
	}
	time.Sleep(70 * time.Millisecond)
	if !rl.allow("1.2.3.4") {
		t.Fatal("token should have refilled")
	}
}

func TestRateLimiterPerClient(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.allow("1.1.1.1")
	if !rl.allow("2.2.2.2") {
		t.Fatal("different IP should have its own bucket")
	}
}

func TestRateLimiterCleanupDropsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.allow("1.1.1.1")
	rl.allow("2.2.2.2")
	rl.clients["1.1.1.1"].lastSeen = time.Now().Add(-time.Hour)

	rl.cleanup(time.Now())

	if _, ok := rl.clients["1.1.1.1"]; ok {
		t.Error("idle client should be removed")
	}
	if _, ok := rl.clients["2.2.2.2"]; !ok {
		t.Error("active client should be kept")
	}
}

func TestRateLimiterMiddleware429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewRateLimiter(1, time.Minute)

	r := gin.New()
	r.Use(rl.Middleware())
	r.POST("/process", func(c *gin.Context) {
		c.JSON(http.StatusAccepted, gin.H{"success": true})
	})

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest("POST", "/process", nil))
	if w1.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w1.Code)
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest("POST", "/process", nil))
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w2.Code)
	}
}
