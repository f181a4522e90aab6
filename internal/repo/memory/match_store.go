package memory

import (
	"context"
	"sort"
	"time"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/repo"
)

// RunPairTx runs fn with the store locked. Writes made by fn are undone when
// it returns an error.
func (s *Store) RunPairTx(ctx context.Context, a, b int64, fn repo.PairTxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &pairTx{store: s}
	if err := fn(ctx, tx); err != nil {
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		return err
	}
	return nil
}

type pairTx struct {
	store *Store
	undo  []func()
}

func (tx *pairTx) InsertSwipe(_ context.Context, swipe model.Swipe) (model.Swipe, error) {
	s := tx.store
	key := pair{swipe.ActingVesselID, swipe.TargetVesselID}
	if _, exists := s.swipes[key]; exists {
		return model.Swipe{}, repo.ErrDuplicate
	}
	swipe.ID = s.id()
	s.swipes[key] = swipe
	tx.undo = append(tx.undo, func() { delete(s.swipes, key) })
	return swipe, nil
}

func (tx *pairTx) FindSwipe(_ context.Context, actingVesselID, targetVesselID int64) (model.Swipe, error) {
	swipe, ok := tx.store.swipes[pair{actingVesselID, targetVesselID}]
	if !ok {
		return model.Swipe{}, repo.ErrNotFound
	}
	return swipe, nil
}

func (tx *pairTx) FindMatch(_ context.Context, likerVesselID, likedVesselID int64) (model.Match, error) {
	m, ok := tx.store.matchByDirection(likerVesselID, likedVesselID)
	if !ok {
		return model.Match{}, repo.ErrNotFound
	}
	return cloneMatch(m), nil
}

func (tx *pairTx) UpsertMatched(_ context.Context, a, b int64, matchedAt time.Time) (model.Match, model.Match, error) {
	ab := tx.upsertMatchedRow(a, b, matchedAt)
	ba := tx.upsertMatchedRow(b, a, matchedAt)
	return cloneMatch(ab), cloneMatch(ba), nil
}

func (tx *pairTx) upsertMatchedRow(liker, liked int64, matchedAt time.Time) model.Match {
	s := tx.store
	key := pair{liker, liked}
	if id, ok := s.matchByPair[key]; ok {
		prev := s.matches[id]
		if prev.Status == enums.MatchStatusMatched {
			return prev
		}
		next := prev
		at := matchedAt
		next.Status = enums.MatchStatusMatched
		next.MatchedAt = &at
		next.ExpiresAt = nil
		s.matches[id] = next
		tx.undo = append(tx.undo, func() { s.matches[id] = prev })
		return next
	}

	at := matchedAt
	m := model.Match{
		ID:            s.id(),
		LikerVesselID: liker,
		LikedVesselID: liked,
		Status:        enums.MatchStatusMatched,
		MatchedAt:     &at,
		CreatedAt:     matchedAt,
	}
	s.matches[m.ID] = m
	s.matchByPair[key] = m.ID
	tx.undo = append(tx.undo, func() {
		delete(s.matches, m.ID)
		delete(s.matchByPair, key)
	})
	return m
}

func (tx *pairTx) InsertPending(_ context.Context, likerVesselID, likedVesselID int64, createdAt, expiresAt time.Time) (model.Match, error) {
	s := tx.store
	key := pair{likerVesselID, likedVesselID}
	if id, ok := s.matchByPair[key]; ok {
		return cloneMatch(s.matches[id]), nil
	}
	exp := expiresAt
	m := model.Match{
		ID:            s.id(),
		LikerVesselID: likerVesselID,
		LikedVesselID: likedVesselID,
		Status:        enums.MatchStatusPending,
		ExpiresAt:     &exp,
		CreatedAt:     createdAt,
	}
	s.matches[m.ID] = m
	s.matchByPair[key] = m.ID
	tx.undo = append(tx.undo, func() {
		delete(s.matches, m.ID)
		delete(s.matchByPair, key)
	})
	return cloneMatch(m), nil
}

func (s *Store) matchByDirection(liker, liked int64) (model.Match, bool) {
	id, ok := s.matchByPair[pair{liker, liked}]
	if !ok {
		return model.Match{}, false
	}
	return s.matches[id], true
}

func (s *Store) GetMatch(_ context.Context, id int64) (model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.matches[id]
	if !ok {
		return model.Match{}, repo.ErrNotFound
	}
	return cloneMatch(m), nil
}

func (s *Store) ListMatchesByLiker(_ context.Context, vesselID int64) ([]model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Match, 0)
	for _, m := range s.matches {
		if m.LikerVesselID == vesselID {
			out = append(out, cloneMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ExpirePair(_ context.Context, a, b int64, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expirePairLocked(a, b, now), nil
}

func (s *Store) expirePairLocked(a, b int64, now time.Time) bool {
	changed := false
	for _, key := range []pair{{a, b}, {b, a}} {
		id, ok := s.matchByPair[key]
		if !ok {
			continue
		}
		m := s.matches[id]
		if !isLive(m.Status) {
			continue
		}
		exp := now
		m.Status = enums.MatchStatusExpired
		m.ExpiresAt = &exp
		s.matches[id] = m
		changed = true
	}
	if roomID, ok := s.roomByPair[orderedPair(a, b)]; ok {
		room := s.rooms[roomID]
		room.Active = false
		s.rooms[roomID] = room
	}
	return changed
}

func (s *Store) BlockAndExpire(_ context.Context, blockerUserID, blockedUserID int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blocks[pair{blockerUserID, blockedUserID}] = struct{}{}
	for _, va := range s.vesselsByCaptainLocked(blockerUserID) {
		for _, vb := range s.vesselsByCaptainLocked(blockedUserID) {
			s.expirePairLocked(va.ID, vb.ID, now)
		}
	}
	return nil
}

func (s *Store) ExpireStalePending(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, m := range s.matches {
		if m.Status != enums.MatchStatusPending || m.ExpiresAt == nil || m.ExpiresAt.After(now) {
			continue
		}
		m.Status = enums.MatchStatusExpired
		s.matches[id] = m
		n++
	}
	return n, nil
}
