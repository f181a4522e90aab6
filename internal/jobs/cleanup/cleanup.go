package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type pendingExpirer interface {
	ExpireStalePending(ctx context.Context) (int64, error)
}

type zoneRefresher interface {
	Refresh(ctx context.Context) error
}

// Job expires PENDING likes past their TTL and reloads the zone catalog.
type Job struct {
	matches  pendingExpirer
	zones    zoneRefresher
	interval time.Duration
	logger   *zap.Logger
}

func New(matches pendingExpirer, zones zoneRefresher, interval time.Duration, logger *zap.Logger) *Job {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		matches:  matches,
		zones:    zones,
		interval: interval,
		logger:   logger,
	}
}

// Run performs one pass. Both steps run even if the first fails.
func (j *Job) Run(ctx context.Context) error {
	var runErr error

	if j.matches != nil {
		expired, err := j.matches.ExpireStalePending(ctx)
		if err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("expire stale pending matches: %w", err))
		} else if expired > 0 {
			j.logger.Info("cleanup expired stale pending matches", zap.Int64("expired", expired))
		}
	}

	if j.zones != nil {
		if err := j.zones.Refresh(ctx); err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("refresh zone catalog: %w", err))
		}
	}

	return runErr
}

// Loop runs immediately and then on every tick until ctx is cancelled. A
// failed pass is logged and retried on the next tick.
func (j *Job) Loop(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Warn("cleanup pass failed", zap.Error(err))
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("cleanup pass failed", zap.Error(err))
			}
		}
	}
}
