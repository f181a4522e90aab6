package swipes

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/infra/metrics"
	"github.com/frogody/floatr-app-sub000/internal/repo"
	"github.com/frogody/floatr-app-sub000/internal/services/notify"
)

const defaultPendingTTL = 7 * 24 * time.Hour

var (
	ErrSelfSwipe            = errs.Validation("target_vessel_id", "a vessel cannot swipe on itself")
	ErrUnknownAction        = errs.Validation("action", "action must be LIKE or PASS")
	ErrActingVesselNotFound = errs.NotFound("acting vessel not found")
	ErrActingVesselInactive = errs.NotFound("acting vessel is not active")
	ErrNotVesselOwner       = errs.Authorization("acting vessel belongs to another captain")
	ErrTargetNotFound       = errs.NotFound("target vessel not found")
	ErrBlocked              = errs.Authorization("one of the captains has blocked the other")
	ErrDuplicateSwipe       = errs.Conflict("swipe already recorded for this pair")
	ErrLikeRateLimited      = errs.RateLimited("like rate limit reached")
)

type VesselStore interface {
	GetVessel(ctx context.Context, id int64) (model.Vessel, error)
}

type BlockStore interface {
	IsBlockedEither(ctx context.Context, a, b int64) (bool, error)
}

type PairStore interface {
	RunPairTx(ctx context.Context, a, b int64, fn repo.PairTxFunc) error
}

type RateLimiter interface {
	AllowLike(ctx context.Context, userID int64) (time.Duration, bool, error)
}

type Notifier interface {
	Enqueue(eventType notify.EventType, payload map[string]any)
}

type Config struct {
	PendingTTL time.Duration
}

type Dependencies struct {
	Vessels VesselStore
	Blocks  BlockStore
	Pairs   PairStore
	Logger  *zap.Logger
}

type Service struct {
	vessels VesselStore
	blocks  BlockStore
	pairs   PairStore
	limiter RateLimiter
	notify  Notifier
	metrics *metrics.Metrics
	log     *zap.Logger
	cfg     Config
	now     func() time.Time
}

type Result struct {
	IsMatch bool
	// Match is the actor's directional row: PENDING after an unreciprocated
	// LIKE, MATCHED on a mutual like, nil after a PASS.
	Match *model.Match
	// Created is true only for the swipe that completed the match.
	Created bool
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = defaultPendingTTL
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		vessels: deps.Vessels,
		blocks:  deps.Blocks,
		pairs:   deps.Pairs,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *Service) AttachRateLimiter(limiter RateLimiter) {
	s.limiter = limiter
}

func (s *Service) AttachNotifier(n Notifier) {
	s.notify = n
}

func (s *Service) AttachMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// RecordSwipe stores one swipe and, for a LIKE answering a live LIKE from the
// other side, creates both MATCHED rows in the same transaction.
func (s *Service) RecordSwipe(ctx context.Context, actorUserID, actingVesselID, targetVesselID int64, rawAction string) (Result, error) {
	if actingVesselID == targetVesselID {
		return Result{}, ErrSelfSwipe
	}
	action, ok := enums.ParseSwipeAction(rawAction)
	if !ok {
		return Result{}, ErrUnknownAction
	}

	acting, err := s.vessels.GetVessel(ctx, actingVesselID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Result{}, ErrActingVesselNotFound
		}
		return Result{}, errs.Transient("load acting vessel", err)
	}
	if acting.CaptainUserID != actorUserID {
		return Result{}, ErrNotVesselOwner
	}
	if !acting.Discoverable() {
		return Result{}, ErrActingVesselInactive
	}

	target, err := s.vessels.GetVessel(ctx, targetVesselID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Result{}, ErrTargetNotFound
		}
		return Result{}, errs.Transient("load target vessel", err)
	}
	if !target.Discoverable() {
		return Result{}, ErrTargetNotFound
	}

	blocked, err := s.blocks.IsBlockedEither(ctx, actorUserID, target.CaptainUserID)
	if err != nil {
		return Result{}, errs.Transient("check blocks", err)
	}
	if blocked {
		return Result{}, ErrBlocked
	}

	if action == enums.SwipeActionLike {
		if err := s.checkLikeRate(ctx, actorUserID); err != nil {
			return Result{}, err
		}
	}

	now := s.now().UTC()
	var result Result
	err = s.pairs.RunPairTx(ctx, actingVesselID, targetVesselID, func(ctx context.Context, tx repo.PairTx) error {
		var err error
		result, err = s.apply(ctx, tx, actingVesselID, targetVesselID, action, now)
		return err
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return Result{}, ErrDuplicateSwipe
		}
		if errs.KindOf(err) != errs.KindUnknown {
			return Result{}, err
		}
		return Result{}, errs.Transient("record swipe", err)
	}

	s.afterCommit(actingVesselID, targetVesselID, action, result)
	return result, nil
}

func (s *Service) apply(ctx context.Context, tx repo.PairTx, acting, target int64, action enums.SwipeAction, now time.Time) (Result, error) {
	if _, err := tx.InsertSwipe(ctx, model.Swipe{
		ActingVesselID: acting,
		TargetVesselID: target,
		Action:         action,
		CreatedAt:      now,
	}); err != nil {
		return Result{}, err
	}
	if action == enums.SwipeActionPass {
		return Result{}, nil
	}

	live, alreadyMatched, err := reciprocalLike(ctx, tx, acting, target, now)
	if err != nil {
		return Result{}, err
	}
	if live {
		mine, _, err := tx.UpsertMatched(ctx, acting, target, now)
		if err != nil {
			return Result{}, err
		}
		return Result{IsMatch: true, Match: &mine, Created: !alreadyMatched}, nil
	}

	pending, err := tx.InsertPending(ctx, acting, target, now, now.Add(s.cfg.PendingTTL))
	if err != nil {
		return Result{}, err
	}
	return Result{Match: &pending}, nil
}

// reciprocalLike reports whether target has a LIKE on acting whose match row
// has not expired. A PENDING row past expires_at counts as expired even before
// the cleanup job flips its status.
func reciprocalLike(ctx context.Context, tx repo.PairTx, acting, target int64, now time.Time) (live, matched bool, err error) {
	swipe, err := tx.FindSwipe(ctx, target, acting)
	if errors.Is(err, repo.ErrNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	if swipe.Action != enums.SwipeActionLike {
		return false, false, nil
	}

	row, err := tx.FindMatch(ctx, target, acting)
	if errors.Is(err, repo.ErrNotFound) {
		return true, false, nil
	}
	if err != nil {
		return false, false, err
	}
	switch row.Status {
	case enums.MatchStatusExpired:
		return false, false, nil
	case enums.MatchStatusMatched:
		return true, true, nil
	case enums.MatchStatusPending:
		if row.ExpiresAt != nil && !row.ExpiresAt.After(now) {
			return false, false, nil
		}
		return true, false, nil
	default:
		return true, false, nil
	}
}

func (s *Service) checkLikeRate(ctx context.Context, userID int64) error {
	if s.limiter == nil {
		return nil
	}
	retryAfter, allowed, err := s.limiter.AllowLike(ctx, userID)
	if err != nil {
		s.log.Warn("like rate limiter unavailable", zap.Int64("user_id", userID), zap.Error(err))
		return nil
	}
	if !allowed {
		return ErrLikeRateLimited.WithRetryAfter(retryAfter)
	}
	return nil
}

func (s *Service) afterCommit(acting, target int64, action enums.SwipeAction, result Result) {
	if s.metrics != nil {
		s.metrics.SwipesTotal.WithLabelValues(string(action)).Inc()
		if result.Created {
			s.metrics.MatchesCreated.Inc()
		}
	}
	if result.Created && s.notify != nil && result.Match != nil {
		s.notify.Enqueue(notify.EventMatchCreated, map[string]any{
			"match_id":         result.Match.ID,
			"vessel_ids":       []int64{acting, target},
			"matched_at_epoch": result.Match.MatchedAt.Unix(),
		})
	}
}
