package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/repo"
)

type VesselRepo struct {
	pool  *pgxpool.Pool
	retry RetryPolicy
}

func NewVesselRepo(pool *pgxpool.Pool, retry RetryPolicy) *VesselRepo {
	return &VesselRepo{pool: pool, retry: retry}
}

const vesselSelect = `
SELECT
	v.id,
	v.captain_user_id,
	v.name,
	v.type,
	v.capacity,
	v.vibe,
	v.is_active,
	v.amenities,
	u.display_name,
	u.avatar_key,
	u.is_active,
	COALESCE((
		SELECT json_agg(json_build_object('name', c.name, 'avatar_key', c.avatar_key) ORDER BY c.sort_order, c.id)
		FROM crew_members c
		WHERE c.vessel_id = v.id
	), '[]'::json)
FROM vessels v
JOIN users u ON u.id = v.captain_user_id
`

func (r *VesselRepo) GetVessel(ctx context.Context, id int64) (model.Vessel, error) {
	var v model.Vessel
	err := readRetry(ctx, r.retry, func(ctx context.Context) error {
		var err error
		v, err = scanVessel(r.pool.QueryRow(ctx, vesselSelect+`WHERE v.id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Vessel{}, repo.ErrNotFound
		}
		return model.Vessel{}, fmt.Errorf("get vessel: %w", err)
	}
	return v, nil
}

func (r *VesselRepo) VesselsByIDs(ctx context.Context, ids []int64) (map[int64]model.Vessel, error) {
	out := make(map[int64]model.Vessel, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	err := readRetry(ctx, r.retry, func(ctx context.Context) error {
		clear(out)
		rows, err := r.pool.Query(ctx, vesselSelect+`WHERE v.id = ANY($1)`, ids)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			v, err := scanVessel(rows)
			if err != nil {
				return err
			}
			out[v.ID] = v
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list vessels by ids: %w", err)
	}
	return out, nil
}

func (r *VesselRepo) VesselsByCaptain(ctx context.Context, userID int64) ([]model.Vessel, error) {
	var out []model.Vessel
	err := readRetry(ctx, r.retry, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.pool.Query(ctx, vesselSelect+`WHERE v.captain_user_id = $1 ORDER BY v.id`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			v, err := scanVessel(rows)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list vessels by captain: %w", err)
	}
	return out, nil
}

func scanVessel(row pgx.Row) (model.Vessel, error) {
	var (
		v    model.Vessel
		crew []byte
	)
	if err := row.Scan(
		&v.ID,
		&v.CaptainUserID,
		&v.Name,
		&v.Type,
		&v.Capacity,
		&v.Vibe,
		&v.Active,
		&v.Amenities,
		&v.Captain.DisplayName,
		&v.Captain.AvatarKey,
		&v.Captain.Active,
		&crew,
	); err != nil {
		return model.Vessel{}, err
	}
	v.Captain.UserID = v.CaptainUserID
	if err := json.Unmarshal(crew, &v.Crew); err != nil {
		return model.Vessel{}, fmt.Errorf("decode crew: %w", err)
	}
	return v, nil
}
