package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	minuteWindow = time.Minute
	hourWindow   = time.Hour
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	WindowState(ctx context.Context, key string) (int64, time.Duration, error)
}

// Limiter applies fixed-window caps to LIKE actions per captain. A zero cap
// disables that window.
type Limiter struct {
	store     WindowStore
	perMinute int
	perHour   int
}

func NewLimiter(store WindowStore, perMinute, perHour int) *Limiter {
	if perMinute < 0 {
		perMinute = 0
	}
	if perHour < 0 {
		perHour = 0
	}

	return &Limiter{
		store:     store,
		perMinute: perMinute,
		perHour:   perHour,
	}
}

// AllowLike counts one LIKE and reports whether it is within every window.
// When blocked, the returned duration is the longest remaining window TTL.
func (l *Limiter) AllowLike(ctx context.Context, userID int64) (time.Duration, bool, error) {
	if userID <= 0 {
		return 0, false, fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	var retryAfter time.Duration
	for _, w := range l.windows(userID) {
		count, ttl, err := l.store.IncrementWindow(ctx, w.key, w.size)
		if err != nil {
			return 0, false, err
		}
		if count > int64(w.limit) && ttl > retryAfter {
			retryAfter = ceilSecond(ttl)
		}
	}

	if retryAfter > 0 {
		return retryAfter, false, nil
	}
	return 0, true, nil
}

// RetryAfterLike reports the wait before the next LIKE would be admitted,
// without consuming a slot.
func (l *Limiter) RetryAfterLike(ctx context.Context, userID int64) (time.Duration, error) {
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}
	if l.store == nil {
		return 0, fmt.Errorf("rate limiter store is nil")
	}

	var retryAfter time.Duration
	for _, w := range l.windows(userID) {
		count, ttl, err := l.store.WindowState(ctx, w.key)
		if err != nil {
			return 0, err
		}
		if count >= int64(w.limit) && ttl > retryAfter {
			retryAfter = ceilSecond(ttl)
		}
	}
	return retryAfter, nil
}

type window struct {
	key   string
	size  time.Duration
	limit int
}

func (l *Limiter) windows(userID int64) []window {
	out := make([]window, 0, 2)
	if l.perMinute > 0 {
		out = append(out, window{key: minuteKey(userID), size: minuteWindow, limit: l.perMinute})
	}
	if l.perHour > 0 {
		out = append(out, window{key: hourKey(userID), size: hourWindow, limit: l.perHour})
	}
	return out
}

func minuteKey(userID int64) string {
	return "floatr:rate:likes:min:" + strconv.FormatInt(userID, 10)
}

func hourKey(userID int64) string {
	return "floatr:rate:likes:hour:" + strconv.FormatInt(userID, 10)
}

func ceilSecond(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if rem := d % time.Second; rem != 0 {
		d += time.Second - rem
	}
	return d
}
