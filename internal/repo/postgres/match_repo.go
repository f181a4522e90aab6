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

const matchSelect = `
SELECT id, liker_vessel_id, liked_vessel_id, status, matched_at, expires_at, created_at
FROM matches
`

type MatchRepo struct {
	pool  *pgxpool.Pool
	retry RetryPolicy
}

func NewMatchRepo(pool *pgxpool.Pool, retry RetryPolicy) *MatchRepo {
	return &MatchRepo{pool: pool, retry: retry}
}

func (r *MatchRepo) GetMatch(ctx context.Context, id int64) (model.Match, error) {
	var m model.Match
	err := readRetry(ctx, r.retry, func(ctx context.Context) error {
		var err error
		m, err = scanMatch(r.pool.QueryRow(ctx, matchSelect+`WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, repo.ErrNotFound
		}
		return model.Match{}, fmt.Errorf("get match: %w", err)
	}
	return m, nil
}

func (r *MatchRepo) ListMatchesByLiker(ctx context.Context, vesselID int64) ([]model.Match, error) {
	var out []model.Match
	err := readRetry(ctx, r.retry, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.pool.Query(ctx, matchSelect+`
WHERE liker_vessel_id = $1
ORDER BY created_at DESC, id DESC
`, vesselID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMatch(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list matches by liker: %w", err)
	}
	return out, nil
}

// ExpirePair expires both directions of a pair and closes its room. It
// reports whether any row changed.
func (r *MatchRepo) ExpirePair(ctx context.Context, a, b int64, now time.Time) (bool, error) {
	var changed bool
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if err := lockPair(ctx, tx, a, b); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
UPDATE matches
SET status = 'EXPIRED', expires_at = $3
WHERE ((liker_vessel_id = $1 AND liked_vessel_id = $2)
    OR (liker_vessel_id = $2 AND liked_vessel_id = $1))
  AND status <> 'EXPIRED'
`, a, b, now.UTC())
		if err != nil {
			return fmt.Errorf("expire match pair: %w", err)
		}
		changed = tag.RowsAffected() > 0

		lo, hi := model.OrderedPair(a, b)
		if _, err := tx.Exec(ctx, `
UPDATE chat_rooms
SET is_active = FALSE
WHERE vessel_low_id = $1 AND vessel_high_id = $2
`, lo, hi); err != nil {
			return fmt.Errorf("deactivate chat room: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// BlockAndExpire records the block and expires every pair between the two
// captains' vessels in one transaction.
func (r *MatchRepo) BlockAndExpire(ctx context.Context, blockerUserID, blockedUserID int64, now time.Time) error {
	return WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
INSERT INTO blocks (blocker_user_id, blocked_user_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (blocker_user_id, blocked_user_id) DO NOTHING
`, blockerUserID, blockedUserID, now.UTC()); err != nil {
			return fmt.Errorf("insert block: %w", err)
		}

		if _, err := tx.Exec(ctx, `
UPDATE matches m
SET status = 'EXPIRED', expires_at = $3
FROM vessels va, vessels vb
WHERE va.captain_user_id = $1
  AND vb.captain_user_id = $2
  AND ((m.liker_vessel_id = va.id AND m.liked_vessel_id = vb.id)
    OR (m.liker_vessel_id = vb.id AND m.liked_vessel_id = va.id))
  AND m.status <> 'EXPIRED'
`, blockerUserID, blockedUserID, now.UTC()); err != nil {
			return fmt.Errorf("expire blocked matches: %w", err)
		}

		if _, err := tx.Exec(ctx, `
UPDATE chat_rooms r
SET is_active = FALSE
FROM vessels va, vessels vb
WHERE va.captain_user_id = $1
  AND vb.captain_user_id = $2
  AND r.vessel_low_id = LEAST(va.id, vb.id)
  AND r.vessel_high_id = GREATEST(va.id, vb.id)
`, blockerUserID, blockedUserID); err != nil {
			return fmt.Errorf("deactivate blocked rooms: %w", err)
		}
		return nil
	})
}

func (r *MatchRepo) ExpireStalePending(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
UPDATE matches
SET status = 'EXPIRED'
WHERE status = 'PENDING'
  AND expires_at <= $1
`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("expire stale pending matches: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanMatch(row pgx.Row) (model.Match, error) {
	var (
		m      model.Match
		status string
	)
	if err := row.Scan(
		&m.ID,
		&m.LikerVesselID,
		&m.LikedVesselID,
		&status,
		&m.MatchedAt,
		&m.ExpiresAt,
		&m.CreatedAt,
	); err != nil {
		return model.Match{}, err
	}
	m.Status = enums.MatchStatus(status)
	return m, nil
}
