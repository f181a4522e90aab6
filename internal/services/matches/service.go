package matches

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/repo"
	"github.com/frogody/floatr-app-sub000/internal/services/analytics"
)

var (
	ErrVesselNotFound  = errs.NotFound("vessel not found")
	ErrNotVesselOwner  = errs.Authorization("vessel belongs to another captain")
	ErrMatchNotFound   = errs.NotFound("match not found")
	ErrNotParticipant  = errs.Authorization("caller is not part of this match")
	ErrSelfBlock       = errs.Validation("user_id", "cannot block yourself")
	ErrInvalidTargetID = errs.Validation("user_id", "user_id must be positive")
)

type VesselStore interface {
	GetVessel(ctx context.Context, id int64) (model.Vessel, error)
	VesselsByIDs(ctx context.Context, ids []int64) (map[int64]model.Vessel, error)
	VesselsByCaptain(ctx context.Context, userID int64) ([]model.Vessel, error)
}

type BlockStore interface {
	BlockedUserIDs(ctx context.Context, userID int64) ([]int64, error)
}

type MatchStore interface {
	GetMatch(ctx context.Context, id int64) (model.Match, error)
	ListMatchesByLiker(ctx context.Context, vesselID int64) ([]model.Match, error)
	ExpirePair(ctx context.Context, a, b int64, now time.Time) (bool, error)
	BlockAndExpire(ctx context.Context, blockerUserID, blockedUserID int64, now time.Time) error
	ExpireStalePending(ctx context.Context, now time.Time) (int64, error)
}

type Auditor interface {
	Record(ctx context.Context, userID int64, name string, props map[string]any) error
}

// RoomCloser drops live subscribers of the room shared by two vessels.
type RoomCloser interface {
	CloseRoom(vesselA, vesselB int64)
}

type Dependencies struct {
	Vessels VesselStore
	Blocks  BlockStore
	Matches MatchStore
	Logger  *zap.Logger
}

type Service struct {
	vessels VesselStore
	blocks  BlockStore
	matches MatchStore
	audit   Auditor
	rooms   RoomCloser
	log     *zap.Logger
	now     func() time.Time
}

type Counterpart struct {
	VesselID      int64
	Name          string
	Type          string
	Vibe          string
	CaptainUserID int64
	CaptainName   string
}

type HistoryItem struct {
	Match       model.Match
	Counterpart Counterpart
}

func NewService(deps Dependencies) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		vessels: deps.Vessels,
		blocks:  deps.Blocks,
		matches: deps.Matches,
		log:     log,
		now:     time.Now,
	}
}

func (s *Service) AttachAuditor(a Auditor) {
	s.audit = a
}

func (s *Service) AttachRoomCloser(c RoomCloser) {
	s.rooms = c
}

// History lists every match row the vessel liked, newest first, skipping
// counterparts whose captain is blocked in either direction.
func (s *Service) History(ctx context.Context, userID, vesselID int64) ([]HistoryItem, error) {
	vessel, err := s.vessels.GetVessel(ctx, vesselID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrVesselNotFound
		}
		return nil, errs.Transient("load vessel", err)
	}
	if vessel.CaptainUserID != userID {
		return nil, ErrNotVesselOwner
	}

	rows, err := s.matches.ListMatchesByLiker(ctx, vesselID)
	if err != nil {
		return nil, errs.Transient("list matches", err)
	}
	if len(rows) == 0 {
		return []HistoryItem{}, nil
	}

	blockedIDs, err := s.blocks.BlockedUserIDs(ctx, userID)
	if err != nil {
		return nil, errs.Transient("load blocks", err)
	}
	blocked := make(map[int64]struct{}, len(blockedIDs))
	for _, id := range blockedIDs {
		blocked[id] = struct{}{}
	}

	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.LikedVesselID)
	}
	counterparts, err := s.vessels.VesselsByIDs(ctx, ids)
	if err != nil {
		return nil, errs.Transient("load counterparts", err)
	}

	items := make([]HistoryItem, 0, len(rows))
	for _, row := range rows {
		other, ok := counterparts[row.LikedVesselID]
		if !ok {
			continue
		}
		if _, isBlocked := blocked[other.CaptainUserID]; isBlocked {
			continue
		}
		items = append(items, HistoryItem{
			Match: row,
			Counterpart: Counterpart{
				VesselID:      other.ID,
				Name:          other.Name,
				Type:          other.Type,
				Vibe:          other.Vibe,
				CaptainUserID: other.CaptainUserID,
				CaptainName:   other.Captain.DisplayName,
			},
		})
	}
	return items, nil
}

// Unmatch expires both directional rows of the match and closes its room.
// It reports whether anything changed.
func (s *Service) Unmatch(ctx context.Context, userID, matchID int64) (bool, error) {
	m, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, ErrMatchNotFound
		}
		return false, errs.Transient("load match", err)
	}
	if err := s.requireParticipant(ctx, userID, m); err != nil {
		return false, err
	}

	changed, err := s.matches.ExpirePair(ctx, m.LikerVesselID, m.LikedVesselID, s.now().UTC())
	if err != nil {
		return false, errs.Transient("expire match", err)
	}
	if s.rooms != nil {
		s.rooms.CloseRoom(m.LikerVesselID, m.LikedVesselID)
	}
	if changed {
		s.record(ctx, userID, analytics.EventUnmatch, map[string]any{"match_id": m.ID})
	}
	return changed, nil
}

// Block records the block and expires every live pair between the two
// captains' vessels.
func (s *Service) Block(ctx context.Context, userID, targetUserID int64) error {
	if targetUserID <= 0 {
		return ErrInvalidTargetID
	}
	if targetUserID == userID {
		return ErrSelfBlock
	}
	if err := s.matches.BlockAndExpire(ctx, userID, targetUserID, s.now().UTC()); err != nil {
		return errs.Transient("block user", err)
	}
	s.closeRoomsBetween(ctx, userID, targetUserID)
	s.record(ctx, userID, analytics.EventBlock, map[string]any{"target_user_id": targetUserID})
	return nil
}

// ExpireStalePending moves PENDING rows past their expiry to EXPIRED.
func (s *Service) ExpireStalePending(ctx context.Context) (int64, error) {
	n, err := s.matches.ExpireStalePending(ctx, s.now().UTC())
	if err != nil {
		return 0, errs.Transient("expire pending matches", err)
	}
	return n, nil
}

// closeRoomsBetween is best effort. Storage already holds the rooms closed, so
// posts and receipts are refused either way; a failed lookup only leaves
// typing frames flowing until the members disconnect.
func (s *Service) closeRoomsBetween(ctx context.Context, userA, userB int64) {
	if s.rooms == nil {
		return
	}
	mine, err := s.vessels.VesselsByCaptain(ctx, userA)
	if err != nil {
		s.log.Warn("load vessels for room eviction", zap.Int64("user_id", userA), zap.Error(err))
		return
	}
	theirs, err := s.vessels.VesselsByCaptain(ctx, userB)
	if err != nil {
		s.log.Warn("load vessels for room eviction", zap.Int64("user_id", userB), zap.Error(err))
		return
	}
	for _, a := range mine {
		for _, b := range theirs {
			s.rooms.CloseRoom(a.ID, b.ID)
		}
	}
}

func (s *Service) requireParticipant(ctx context.Context, userID int64, m model.Match) error {
	vessels, err := s.vessels.VesselsByIDs(ctx, []int64{m.LikerVesselID, m.LikedVesselID})
	if err != nil {
		return errs.Transient("load match vessels", err)
	}
	for _, v := range vessels {
		if v.CaptainUserID == userID {
			return nil
		}
	}
	return ErrNotParticipant
}

func (s *Service) record(ctx context.Context, userID int64, name string, props map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, userID, name, props); err != nil {
		s.log.Warn("audit event failed", zap.String("event", name), zap.Error(err))
	}
}
