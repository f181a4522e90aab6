package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frogody/floatr-app-sub000/internal/domain/model"
)

type PreferencesRepo struct {
	pool  *pgxpool.Pool
	retry RetryPolicy
}

func NewPreferencesRepo(pool *pgxpool.Pool, retry RetryPolicy) *PreferencesRepo {
	return &PreferencesRepo{pool: pool, retry: retry}
}

// GetPreferences returns empty preferences for users who never saved any.
func (r *PreferencesRepo) GetPreferences(ctx context.Context, userID int64) (model.DiscoveryPreferences, error) {
	prefs := model.DiscoveryPreferences{UserID: userID}
	err := readRetry(ctx, r.retry, func(ctx context.Context) error {
		return r.pool.QueryRow(ctx, `
SELECT vibes, types
FROM discovery_preferences
WHERE user_id = $1
`, userID).Scan(&prefs.Vibes, &prefs.Types)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.DiscoveryPreferences{UserID: userID}, nil
		}
		return model.DiscoveryPreferences{}, fmt.Errorf("get discovery preferences: %w", err)
	}
	return prefs, nil
}
