// Package repo holds the storage contract shared by the postgres and memory
// backends.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/frogody/floatr-app-sub000/internal/domain/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	ErrInactive  = errors.New("record is inactive")
)

// PairTx is the view of storage available while a vessel pair is locked.
// Every call runs in the same transaction.
type PairTx interface {
	InsertSwipe(ctx context.Context, swipe model.Swipe) (model.Swipe, error)
	FindSwipe(ctx context.Context, actingVesselID, targetVesselID int64) (model.Swipe, error)
	FindMatch(ctx context.Context, likerVesselID, likedVesselID int64) (model.Match, error)
	// UpsertMatched writes both directional rows as MATCHED with matchedAt.
	// Rows already MATCHED keep their original matched_at. The row (a, b) is
	// returned first.
	UpsertMatched(ctx context.Context, a, b int64, matchedAt time.Time) (model.Match, model.Match, error)
	InsertPending(ctx context.Context, likerVesselID, likedVesselID int64, createdAt, expiresAt time.Time) (model.Match, error)
}

type PairTxFunc func(ctx context.Context, tx PairTx) error
