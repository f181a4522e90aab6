package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the table repositories behind the same method set as the
// in-memory store.
type Store struct {
	*VesselRepo
	*BlockRepo
	*PreferencesRepo
	*PositionRepo
	*ZoneRepo
	*EventRepo
	*SwipeRepo
	*MatchRepo
	*ChatRepo

	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool, retry RetryPolicy) *Store {
	return &Store{
		VesselRepo:      NewVesselRepo(pool, retry),
		BlockRepo:       NewBlockRepo(pool, retry),
		PreferencesRepo: NewPreferencesRepo(pool, retry),
		PositionRepo:    NewPositionRepo(pool, retry),
		ZoneRepo:        NewZoneRepo(pool, retry),
		EventRepo:       NewEventRepo(pool),
		SwipeRepo:       NewSwipeRepo(pool),
		MatchRepo:       NewMatchRepo(pool, retry),
		ChatRepo:        NewChatRepo(pool, retry),
		pool:            pool,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
