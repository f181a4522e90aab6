package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
)

type ZoneRepo struct {
	pool  *pgxpool.Pool
	retry RetryPolicy
}

func NewZoneRepo(pool *pgxpool.Pool, retry RetryPolicy) *ZoneRepo {
	return &ZoneRepo{pool: pool, retry: retry}
}

func (r *ZoneRepo) ListActiveZones(ctx context.Context) ([]model.Zone, error) {
	var out []model.Zone
	err := readRetry(ctx, r.retry, func(ctx context.Context) error {
		out = out[:0]
		rows, err := r.pool.Query(ctx, `
SELECT id, name, severity, zone_type, regulations, is_active, geometry
FROM no_go_zones
WHERE is_active
ORDER BY id
`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var (
				z        model.Zone
				severity string
				geometry []byte
			)
			if err := rows.Scan(&z.ID, &z.Name, &severity, &z.ZoneType, &z.Regulations, &z.Active, &geometry); err != nil {
				return err
			}
			z.Severity = enums.ZoneSeverity(severity)
			z.Geometry = geometry
			out = append(out, z)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list active zones: %w", err)
	}
	return out, nil
}
