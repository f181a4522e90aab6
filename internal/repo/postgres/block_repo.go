package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type BlockRepo struct {
	pool  *pgxpool.Pool
	retry RetryPolicy
}

func NewBlockRepo(pool *pgxpool.Pool, retry RetryPolicy) *BlockRepo {
	return &BlockRepo{pool: pool, retry: retry}
}

// BlockedUserIDs returns users blocked by userID or blocking userID.
func (r *BlockRepo) BlockedUserIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := readRetry(ctx, r.retry, func(ctx context.Context) error {
		ids = ids[:0]
		rows, err := r.pool.Query(ctx, `
SELECT blocked_user_id FROM blocks WHERE blocker_user_id = $1
UNION
SELECT blocker_user_id FROM blocks WHERE blocked_user_id = $1
`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list blocked users: %w", err)
	}
	return ids, nil
}

func (r *BlockRepo) IsBlockedEither(ctx context.Context, a, b int64) (bool, error) {
	var blocked bool
	err := readRetry(ctx, r.retry, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM blocks
	WHERE (blocker_user_id = $1 AND blocked_user_id = $2)
	   OR (blocker_user_id = $2 AND blocked_user_id = $1)
)
`, a, b).Scan(&blocked)
	})
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return blocked, nil
}
