package memory

import (
	"context"
	"testing"
	"time"
)

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiterWithClock(2, 10*time.Minute, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := limiter.Allow(ctx, "u1"); !ok {
			t.Fatalf("request %d should be allowed", i)
		}
	}
	if ok, _ := limiter.Allow(ctx, "u1"); ok {
		t.Fatalf("third request should be limited")
	}
	if ok, _ := limiter.Allow(ctx, "u2"); !ok {
		t.Fatalf("other keys have their own window")
	}

	now = now.Add(10 * time.Minute)
	if ok, _ := limiter.Allow(ctx, "u1"); !ok {
		t.Fatalf("new window should allow again")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		if ok, _ := limiter.Allow(context.Background(), "k"); !ok {
			t.Fatalf("zero limit must disable limiting")
		}
	}
}
