package swipes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/infra/metrics"
	"github.com/frogody/floatr-app-sub000/internal/repo/memory"
	"github.com/frogody/floatr-app-sub000/internal/services/notify"
)

var now = time.Date(2026, 7, 4, 14, 0, 0, 0, time.UTC)

type notifierStub struct {
	mu     sync.Mutex
	events []notify.EventType
}

func (n *notifierStub) Enqueue(eventType notify.EventType, _ map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
}

type limiterStub struct {
	allowed    bool
	retryAfter time.Duration
	err        error
	calls      int
}

func (l *limiterStub) AllowLike(context.Context, int64) (time.Duration, bool, error) {
	l.calls++
	return l.retryAfter, l.allowed, l.err
}

// Vessel 1 belongs to captain 100, vessel 2 to captain 200.
func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	store.PutVessel(vessel(1, 100))
	store.PutVessel(vessel(2, 200))
	svc := NewService(Dependencies{Vessels: store, Blocks: store, Pairs: store}, Config{})
	svc.now = func() time.Time { return now }
	return svc, store
}

func vessel(id, captain int64) model.Vessel {
	return model.Vessel{
		ID:            id,
		CaptainUserID: captain,
		Active:        true,
		Captain:       model.Captain{UserID: captain, Active: true},
	}
}

func TestMutualLikeCreatesSymmetricMatch(t *testing.T) {
	svc, store := newTestService(t)
	notifier := &notifierStub{}
	svc.AttachNotifier(notifier)
	m := metrics.New()
	svc.AttachMetrics(m)
	ctx := context.Background()

	first, err := svc.RecordSwipe(ctx, 100, 1, 2, "like")
	if err != nil {
		t.Fatalf("first like: %v", err)
	}
	if first.IsMatch || first.Match == nil || first.Match.Status != enums.MatchStatusPending {
		t.Fatalf("expected pending after first like, got %+v", first)
	}
	if first.Match.ExpiresAt == nil || !first.Match.ExpiresAt.Equal(now.Add(7*24*time.Hour)) {
		t.Fatalf("expected pending to expire in 7 days, got %v", first.Match.ExpiresAt)
	}

	second, err := svc.RecordSwipe(ctx, 200, 2, 1, "LIKE")
	if err != nil {
		t.Fatalf("second like: %v", err)
	}
	if !second.IsMatch || !second.Created {
		t.Fatalf("expected a new match, got %+v", second)
	}

	ab, err := store.GetMatch(ctx, first.Match.ID)
	if err != nil {
		t.Fatalf("load a->b: %v", err)
	}
	ba, err := store.GetMatch(ctx, second.Match.ID)
	if err != nil {
		t.Fatalf("load b->a: %v", err)
	}
	if ab.Status != enums.MatchStatusMatched || ba.Status != enums.MatchStatusMatched {
		t.Fatalf("both rows must be MATCHED: %s %s", ab.Status, ba.Status)
	}
	if ab.MatchedAt == nil || ba.MatchedAt == nil || !ab.MatchedAt.Equal(*ba.MatchedAt) {
		t.Fatalf("both rows must share matched_at")
	}
	if ba.LikerVesselID != 2 || ba.LikedVesselID != 1 {
		t.Fatalf("unexpected reverse row: %+v", ba)
	}

	if len(notifier.events) != 1 || notifier.events[0] != notify.EventMatchCreated {
		t.Fatalf("expected one match.created event, got %v", notifier.events)
	}
}

func TestPassNeverMatches(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RecordSwipe(ctx, 100, 1, 2, "LIKE"); err != nil {
		t.Fatalf("like: %v", err)
	}
	res, err := svc.RecordSwipe(ctx, 200, 2, 1, "PASS")
	if err != nil {
		t.Fatalf("pass: %v", err)
	}
	if res.IsMatch || res.Match != nil {
		t.Fatalf("pass must not match, got %+v", res)
	}
}

func TestDuplicateSwipeIsConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RecordSwipe(ctx, 100, 1, 2, "PASS"); err != nil {
		t.Fatalf("first swipe: %v", err)
	}
	_, err := svc.RecordSwipe(ctx, 100, 1, 2, "LIKE")
	if !errors.Is(err, ErrDuplicateSwipe) {
		t.Fatalf("expected duplicate conflict, got %v", err)
	}
	if errs.KindOf(err) != errs.KindConflict {
		t.Fatalf("expected conflict kind, got %q", errs.KindOf(err))
	}
}

func TestExpiredReciprocalDoesNotMatch(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RecordSwipe(ctx, 100, 1, 2, "LIKE"); err != nil {
		t.Fatalf("like: %v", err)
	}
	if _, err := store.ExpireStalePending(ctx, now.Add(8*24*time.Hour)); err != nil {
		t.Fatalf("expire: %v", err)
	}

	res, err := svc.RecordSwipe(ctx, 200, 2, 1, "LIKE")
	if err != nil {
		t.Fatalf("late like: %v", err)
	}
	if res.IsMatch {
		t.Fatalf("expired reciprocal like must not produce a match")
	}
	if res.Match == nil || res.Match.Status != enums.MatchStatusPending {
		t.Fatalf("expected a fresh pending row, got %+v", res.Match)
	}
}

func TestLapsedPendingDoesNotMatchBeforeCleanup(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.RecordSwipe(ctx, 100, 1, 2, "LIKE")
	if err != nil {
		t.Fatalf("like: %v", err)
	}

	svc.now = func() time.Time { return now.Add(8 * 24 * time.Hour) }
	res, err := svc.RecordSwipe(ctx, 200, 2, 1, "LIKE")
	if err != nil {
		t.Fatalf("late like: %v", err)
	}
	if res.IsMatch {
		t.Fatalf("a pending like past expires_at must not produce a match")
	}
	if res.Match == nil || res.Match.Status != enums.MatchStatusPending {
		t.Fatalf("expected a fresh pending row, got %+v", res.Match)
	}

	ab, err := store.GetMatch(ctx, first.Match.ID)
	if err != nil {
		t.Fatalf("load a->b: %v", err)
	}
	if ab.Status == enums.MatchStatusMatched {
		t.Fatalf("lapsed row must not be promoted, got %s", ab.Status)
	}
}

func TestPendingMatchesUntilExpiry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.RecordSwipe(ctx, 100, 1, 2, "LIKE"); err != nil {
		t.Fatalf("like: %v", err)
	}
	svc.now = func() time.Time { return now.Add(7*24*time.Hour - time.Minute) }
	res, err := svc.RecordSwipe(ctx, 200, 2, 1, "LIKE")
	if err != nil {
		t.Fatalf("like back: %v", err)
	}
	if !res.IsMatch {
		t.Fatalf("expected a match just before expiry")
	}
}

func TestConcurrentMutualLikesProduceOneMatch(t *testing.T) {
	for round := 0; round < 50; round++ {
		svc, store := newTestService(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		results := make([]Result, 2)
		errsOut := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			results[0], errsOut[0] = svc.RecordSwipe(ctx, 100, 1, 2, "LIKE")
		}()
		go func() {
			defer wg.Done()
			results[1], errsOut[1] = svc.RecordSwipe(ctx, 200, 2, 1, "LIKE")
		}()
		wg.Wait()

		for i, err := range errsOut {
			if err != nil {
				t.Fatalf("round %d swipe %d: %v", round, i, err)
			}
		}
		created := 0
		matched := 0
		for _, r := range results {
			if r.Created {
				created++
			}
			if r.IsMatch {
				matched++
			}
		}
		if created != 1 || matched != 1 {
			t.Fatalf("round %d: expected exactly one creating match, got created=%d matched=%d", round, created, matched)
		}

		rows1, _ := store.ListMatchesByLiker(ctx, 1)
		rows2, _ := store.ListMatchesByLiker(ctx, 2)
		if len(rows1) != 1 || len(rows2) != 1 {
			t.Fatalf("round %d: expected one row per direction, got %d and %d", round, len(rows1), len(rows2))
		}
		if rows1[0].Status != enums.MatchStatusMatched || rows2[0].Status != enums.MatchStatusMatched {
			t.Fatalf("round %d: both rows must be MATCHED", round)
		}
	}
}

func TestPreconditionErrors(t *testing.T) {
	svc, store := newTestService(t)
	inactive := vessel(3, 300)
	inactive.Active = false
	store.PutVessel(inactive)
	retired := vessel(4, 400)
	retired.Captain.Active = false
	store.PutVessel(retired)
	store.PutVessel(vessel(5, 500))
	docked := vessel(6, 100)
	docked.Active = false
	store.PutVessel(docked)
	ctx := context.Background()
	if err := store.BlockAndExpire(ctx, 500, 100, now); err != nil {
		t.Fatalf("block: %v", err)
	}

	tests := []struct {
		name   string
		actor  int64
		acting int64
		target int64
		action string
		want   error
		kind   errs.Kind
	}{
		{name: "self swipe", actor: 100, acting: 1, target: 1, action: "LIKE", want: ErrSelfSwipe, kind: errs.KindValidation},
		{name: "unknown action", actor: 100, acting: 1, target: 2, action: "SUPERLIKE", want: ErrUnknownAction, kind: errs.KindValidation},
		{name: "unknown acting vessel", actor: 100, acting: 99, target: 2, action: "LIKE", want: ErrActingVesselNotFound, kind: errs.KindNotFound},
		{name: "not owner", actor: 200, acting: 1, target: 2, action: "LIKE", want: ErrNotVesselOwner, kind: errs.KindAuthorization},
		{name: "inactive acting vessel", actor: 100, acting: 6, target: 2, action: "LIKE", want: ErrActingVesselInactive, kind: errs.KindNotFound},
		{name: "unknown target", actor: 100, acting: 1, target: 98, action: "LIKE", want: ErrTargetNotFound, kind: errs.KindNotFound},
		{name: "inactive target", actor: 100, acting: 1, target: 3, action: "LIKE", want: ErrTargetNotFound, kind: errs.KindNotFound},
		{name: "inactive captain", actor: 100, acting: 1, target: 4, action: "PASS", want: ErrTargetNotFound, kind: errs.KindNotFound},
		{name: "blocked", actor: 100, acting: 1, target: 5, action: "LIKE", want: ErrBlocked, kind: errs.KindAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.RecordSwipe(ctx, tt.actor, tt.acting, tt.target, tt.action)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if errs.KindOf(err) != tt.kind {
				t.Fatalf("expected kind %q, got %q", tt.kind, errs.KindOf(err))
			}
		})
	}
}

func TestLikeRateLimit(t *testing.T) {
	svc, _ := newTestService(t)
	limiter := &limiterStub{allowed: false, retryAfter: 42 * time.Second}
	svc.AttachRateLimiter(limiter)
	ctx := context.Background()

	_, err := svc.RecordSwipe(ctx, 100, 1, 2, "LIKE")
	if !errors.Is(err, ErrLikeRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	if errs.RetryAfterOf(err) != 42*time.Second {
		t.Fatalf("unexpected retry after %s", errs.RetryAfterOf(err))
	}

	if _, err := svc.RecordSwipe(ctx, 100, 1, 2, "PASS"); err != nil {
		t.Fatalf("pass must bypass the like limiter: %v", err)
	}
	if limiter.calls != 1 {
		t.Fatalf("limiter should only see likes, got %d calls", limiter.calls)
	}
}

func TestLikeRateLimiterFailureFailsOpen(t *testing.T) {
	svc, _ := newTestService(t)
	svc.AttachRateLimiter(&limiterStub{err: errors.New("redis down")})

	if _, err := svc.RecordSwipe(context.Background(), 100, 1, 2, "LIKE"); err != nil {
		t.Fatalf("limiter failure must not block likes: %v", err)
	}
}
