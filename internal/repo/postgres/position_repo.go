package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frogody/floatr-app-sub000/internal/domain/model"
)

type PositionRepo struct {
	pool  *pgxpool.Pool
	retry RetryPolicy
}

func NewPositionRepo(pool *pgxpool.Pool, retry RetryPolicy) *PositionRepo {
	return &PositionRepo{pool: pool, retry: retry}
}

// AppendPosition inserts p and prunes rows strictly older than the oldest of
// the newest retain rows, so a vessel is never left without history.
func (r *PositionRepo) AppendPosition(ctx context.Context, p model.Position, retain int) (model.Position, error) {
	if retain < 1 {
		retain = 1
	}

	var out model.Position
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
INSERT INTO vessel_positions (
	vessel_id,
	lat,
	lng,
	accuracy_m,
	heading_deg,
	speed_kn,
	recorded_at,
	is_visible
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, vessel_id, lat, lng, accuracy_m, heading_deg, speed_kn, recorded_at, is_visible
`, p.VesselID, p.Lat, p.Lng, p.AccuracyM, p.HeadingDeg, p.SpeedKn, p.RecordedAt.UTC(), p.Visible).Scan(
			&out.ID,
			&out.VesselID,
			&out.Lat,
			&out.Lng,
			&out.AccuracyM,
			&out.HeadingDeg,
			&out.SpeedKn,
			&out.RecordedAt,
			&out.Visible,
		)
		if err != nil {
			return fmt.Errorf("insert position: %w", err)
		}

		if _, err := tx.Exec(ctx, `
DELETE FROM vessel_positions
WHERE vessel_id = $1
  AND recorded_at < (
	SELECT recorded_at
	FROM vessel_positions
	WHERE vessel_id = $1
	ORDER BY recorded_at DESC, id DESC
	OFFSET $2 - 1
	LIMIT 1
  )
`, p.VesselID, retain); err != nil {
			return fmt.Errorf("prune positions: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.Position{}, err
	}
	return out, nil
}

// LatestPositions returns each vessel's newest position when that row is
// recent, visible and inside bbox. Older rows never stand in for it.
func (r *PositionRepo) LatestPositions(ctx context.Context, bbox model.BBox, since time.Time) ([]model.Position, error) {
	var out []model.Position
	err := readRetry(ctx, r.retry, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.pool.Query(ctx, `
WITH latest AS (
	SELECT DISTINCT ON (vessel_id)
		id, vessel_id, lat, lng, accuracy_m, heading_deg, speed_kn, recorded_at, is_visible
	FROM vessel_positions
	WHERE recorded_at >= $1
	ORDER BY vessel_id, recorded_at DESC, id DESC
)
SELECT id, vessel_id, lat, lng, accuracy_m, heading_deg, speed_kn, recorded_at, is_visible
FROM latest
WHERE is_visible
  AND lat BETWEEN $2 AND $3
  AND lng BETWEEN $4 AND $5
`, since.UTC(), bbox.South, bbox.North, bbox.West, bbox.East)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var p model.Position
			if err := rows.Scan(
				&p.ID,
				&p.VesselID,
				&p.Lat,
				&p.Lng,
				&p.AccuracyM,
				&p.HeadingDeg,
				&p.SpeedKn,
				&p.RecordedAt,
				&p.Visible,
			); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list latest positions: %w", err)
	}
	return out, nil
}
