package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/repo"
)

// SwipeRepo runs swipe transactions serialised per unordered vessel pair.
type SwipeRepo struct {
	pool *pgxpool.Pool
}

func NewSwipeRepo(pool *pgxpool.Pool) *SwipeRepo {
	return &SwipeRepo{pool: pool}
}

// RunPairTx takes a transaction-scoped advisory lock on the pair before
// calling fn, so two captains liking each other at once commit one after the
// other.
func (r *SwipeRepo) RunPairTx(ctx context.Context, a, b int64, fn repo.PairTxFunc) error {
	return WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := lockPair(ctx, tx, a, b); err != nil {
			return err
		}
		return fn(ctx, &pairTx{tx: tx})
	})
}

func lockPair(ctx context.Context, tx pgx.Tx, a, b int64) error {
	lo, hi := model.OrderedPair(a, b)
	key := fmt.Sprintf("floatr:pair:%d:%d", lo, hi)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return fmt.Errorf("lock vessel pair: %w", err)
	}
	return nil
}

type pairTx struct {
	tx pgx.Tx
}

func (p *pairTx) InsertSwipe(ctx context.Context, swipe model.Swipe) (model.Swipe, error) {
	var (
		out    model.Swipe
		action string
	)
	err := p.tx.QueryRow(ctx, `
INSERT INTO swipes (
	acting_vessel_id,
	target_vessel_id,
	action,
	created_at
) VALUES ($1, $2, $3, $4)
RETURNING id, acting_vessel_id, target_vessel_id, action, created_at
`, swipe.ActingVesselID, swipe.TargetVesselID, string(swipe.Action), swipe.CreatedAt.UTC()).Scan(
		&out.ID,
		&out.ActingVesselID,
		&out.TargetVesselID,
		&action,
		&out.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Swipe{}, repo.ErrDuplicate
		}
		return model.Swipe{}, fmt.Errorf("insert swipe: %w", err)
	}
	out.Action = enums.SwipeAction(action)
	return out, nil
}

func (p *pairTx) FindSwipe(ctx context.Context, actingVesselID, targetVesselID int64) (model.Swipe, error) {
	var (
		out    model.Swipe
		action string
	)
	err := p.tx.QueryRow(ctx, `
SELECT id, acting_vessel_id, target_vessel_id, action, created_at
FROM swipes
WHERE acting_vessel_id = $1 AND target_vessel_id = $2
`, actingVesselID, targetVesselID).Scan(
		&out.ID,
		&out.ActingVesselID,
		&out.TargetVesselID,
		&action,
		&out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Swipe{}, repo.ErrNotFound
		}
		return model.Swipe{}, fmt.Errorf("find swipe: %w", err)
	}
	out.Action = enums.SwipeAction(action)
	return out, nil
}

func (p *pairTx) FindMatch(ctx context.Context, likerVesselID, likedVesselID int64) (model.Match, error) {
	m, err := scanMatch(p.tx.QueryRow(ctx, matchSelect+`WHERE liker_vessel_id = $1 AND liked_vessel_id = $2`, likerVesselID, likedVesselID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, repo.ErrNotFound
		}
		return model.Match{}, fmt.Errorf("find match: %w", err)
	}
	return m, nil
}

func (p *pairTx) UpsertMatched(ctx context.Context, a, b int64, matchedAt time.Time) (model.Match, model.Match, error) {
	rows, err := p.tx.Query(ctx, `
INSERT INTO matches (
	liker_vessel_id,
	liked_vessel_id,
	status,
	matched_at,
	expires_at,
	created_at
) VALUES
	($1, $2, 'MATCHED', $3, NULL, $3),
	($2, $1, 'MATCHED', $3, NULL, $3)
ON CONFLICT ON CONSTRAINT matches_pair_key DO UPDATE SET
	status = 'MATCHED',
	matched_at = CASE WHEN matches.status = 'MATCHED' THEN matches.matched_at ELSE EXCLUDED.matched_at END,
	expires_at = CASE WHEN matches.status = 'MATCHED' THEN matches.expires_at ELSE NULL END
RETURNING id, liker_vessel_id, liked_vessel_id, status, matched_at, expires_at, created_at
`, a, b, matchedAt.UTC())
	if err != nil {
		return model.Match{}, model.Match{}, fmt.Errorf("upsert matched pair: %w", err)
	}
	defer rows.Close()

	var ab, ba model.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return model.Match{}, model.Match{}, fmt.Errorf("scan matched row: %w", err)
		}
		if m.LikerVesselID == a {
			ab = m
		} else {
			ba = m
		}
	}
	if err := rows.Err(); err != nil {
		return model.Match{}, model.Match{}, fmt.Errorf("upsert matched pair: %w", err)
	}
	if ab.ID == 0 || ba.ID == 0 {
		return model.Match{}, model.Match{}, fmt.Errorf("upsert matched pair: missing row")
	}
	return ab, ba, nil
}

func (p *pairTx) InsertPending(ctx context.Context, likerVesselID, likedVesselID int64, createdAt, expiresAt time.Time) (model.Match, error) {
	m, err := scanMatch(p.tx.QueryRow(ctx, `
INSERT INTO matches (
	liker_vessel_id,
	liked_vessel_id,
	status,
	matched_at,
	expires_at,
	created_at
) VALUES ($1, $2, 'PENDING', NULL, $4, $3)
ON CONFLICT ON CONSTRAINT matches_pair_key DO UPDATE SET
	status = matches.status
RETURNING id, liker_vessel_id, liked_vessel_id, status, matched_at, expires_at, created_at
`, likerVesselID, likedVesselID, createdAt.UTC(), expiresAt.UTC()))
	if err != nil {
		return model.Match{}, fmt.Errorf("insert pending match: %w", err)
	}
	return m, nil
}
