package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/frogody/floatr-app-sub000/internal/repo/redis"
)

func TestLimiterBlocksOnMinuteWindow(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(redrepo.NewRateRepo(client), 2, 100)

	ctx := context.Background()
	userID := int64(42)

	for i := 0; i < 2; i++ {
		retryAfter, allowed, err := limiter.AllowLike(ctx, userID)
		if err != nil {
			t.Fatalf("allow like #%d: %v", i+1, err)
		}
		if !allowed || retryAfter != 0 {
			t.Fatalf("unexpected result on allow #%d: allowed=%v retry_after=%s", i+1, allowed, retryAfter)
		}
	}

	retryAfter, allowed, err := limiter.AllowLike(ctx, userID)
	if err != nil {
		t.Fatalf("allow like #3: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter block on third like in the minute window")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Fatalf("expected retry_after within a minute, got %s", retryAfter)
	}

	current, err := limiter.RetryAfterLike(ctx, userID)
	if err != nil {
		t.Fatalf("retry_after state: %v", err)
	}
	if current <= 0 {
		t.Fatalf("expected positive retry_after state, got %s", current)
	}

	mr.FastForward(61 * time.Second)

	retryAfter, allowed, err = limiter.AllowLike(ctx, userID)
	if err != nil {
		t.Fatalf("allow like after window: %v", err)
	}
	if !allowed || retryAfter != 0 {
		t.Fatalf("expected like to pass after window reset")
	}
}

func TestLimiterWindowsAreIndependentPerUser(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(redrepo.NewRateRepo(client), 1, 0)
	ctx := context.Background()

	if _, allowed, err := limiter.AllowLike(ctx, 1); err != nil || !allowed {
		t.Fatalf("first user first like: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.AllowLike(ctx, 2); err != nil || !allowed {
		t.Fatalf("second user first like: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, _ := limiter.AllowLike(ctx, 1); allowed {
		t.Fatalf("expected first user to be limited")
	}
}

func TestLimiterRejectsInvalidUser(t *testing.T) {
	limiter := NewLimiter(nil, 1, 1)
	if _, _, err := limiter.AllowLike(context.Background(), 0); err == nil {
		t.Fatalf("expected error for invalid user")
	}
}

func TestCeilSecond(t *testing.T) {
	if got := ceilSecond(1500 * time.Millisecond); got != 2*time.Second {
		t.Fatalf("expected 2s, got %s", got)
	}
	if got := ceilSecond(3 * time.Second); got != 3*time.Second {
		t.Fatalf("expected 3s, got %s", got)
	}
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return mr, client
}
