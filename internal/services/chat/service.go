package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/infra/metrics"
	"github.com/frogody/floatr-app-sub000/internal/repo"
	"github.com/frogody/floatr-app-sub000/internal/services/notify"
)

const (
	defaultMaxMessageLength  = 2000
	defaultHistoryPageSize   = 50
	maxHistoryPageSize       = 200
	defaultToxicityThreshold = 0.9
)

var (
	ErrMatchNotFound   = errs.NotFound("match not found")
	ErrNotParticipant  = errs.Authorization("caller is not part of this match")
	ErrMatchNotActive  = errs.Conflict("match not active")
	ErrRoomNotFound    = errs.NotFound("chat room not found")
	ErrRoomInactive    = errs.Conflict("chat room is no longer active")
	ErrMessageNotFound = errs.NotFound("message not found")
	ErrEmptyContent    = errs.Validation("content", "content must not be empty")
	ErrContentTooLong  = errs.Validation("content", "content is too long")
	ErrUnknownType     = errs.Validation("type", "unknown message type")
	ErrContentRejected = errs.Validation("content", "content rejected")
)

type MatchStore interface {
	GetMatch(ctx context.Context, id int64) (model.Match, error)
}

type VesselStore interface {
	VesselsByIDs(ctx context.Context, ids []int64) (map[int64]model.Vessel, error)
	VesselsByCaptain(ctx context.Context, userID int64) ([]model.Vessel, error)
}

type BlockStore interface {
	BlockedUserIDs(ctx context.Context, userID int64) ([]int64, error)
}

type RoomStore interface {
	EnsureRoom(ctx context.Context, room model.ChatRoom) (model.ChatRoom, error)
	GetRoomByPair(ctx context.Context, a, b int64) (model.ChatRoom, error)
	AppendMessage(ctx context.Context, msg model.Message) (model.Message, error)
	MarkMessageRead(ctx context.Context, roomID, messageID, vesselID int64) (model.Message, error)
	ListMessages(ctx context.Context, roomID, afterID int64, limit int) ([]model.Message, error)
	ListConversations(ctx context.Context, vesselIDs []int64) ([]model.Conversation, error)
}

// ToxicityScorer returns a score in [0,1]; higher is more toxic.
type ToxicityScorer interface {
	Score(ctx context.Context, content string) (float64, error)
}

type AvatarSigner interface {
	AvatarURL(ctx context.Context, key string) (string, error)
}

type Notifier interface {
	Enqueue(eventType notify.EventType, payload map[string]any)
}

type Config struct {
	MaxMessageLength  int
	HistoryPageSize   int
	ToxicityThreshold float64
}

type Dependencies struct {
	Matches MatchStore
	Vessels VesselStore
	Blocks  BlockStore
	Rooms   RoomStore
	Logger  *zap.Logger
}

type Service struct {
	matches MatchStore
	vessels VesselStore
	blocks  BlockStore
	rooms   RoomStore
	scorer  ToxicityScorer
	signer  AvatarSigner
	notify  Notifier
	metrics *metrics.Metrics
	log     *zap.Logger
	cfg     Config
	now     func() time.Time
}

// Membership is a caller's view of a room: the room plus the vessel the
// caller takes part with.
type Membership struct {
	Room     model.ChatRoom
	Match    model.Match
	VesselID int64
}

type Counterpart struct {
	VesselID      int64
	Name          string
	Type          string
	CaptainUserID int64
	CaptainName   string
	AvatarURL     string
}

type ConversationView struct {
	model.Conversation
	VesselID    int64
	Counterpart Counterpart
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = defaultMaxMessageLength
	}
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = defaultHistoryPageSize
	}
	if cfg.ToxicityThreshold <= 0 {
		cfg.ToxicityThreshold = defaultToxicityThreshold
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		matches: deps.Matches,
		vessels: deps.Vessels,
		blocks:  deps.Blocks,
		rooms:   deps.Rooms,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (s *Service) AttachToxicityScorer(scorer ToxicityScorer) {
	s.scorer = scorer
}

func (s *Service) AttachAvatarSigner(signer AvatarSigner) {
	s.signer = signer
}

func (s *Service) AttachNotifier(n Notifier) {
	s.notify = n
}

func (s *Service) AttachMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// GetOrCreateRoom returns the room of a MATCHED match, creating it on first
// use. Concurrent callers receive the same room.
func (s *Service) GetOrCreateRoom(ctx context.Context, userID, matchID int64) (Membership, error) {
	m, vesselID, err := s.resolveParticipant(ctx, userID, matchID)
	if err != nil {
		return Membership{}, err
	}

	room, err := s.rooms.GetRoomByPair(ctx, m.LikerVesselID, m.LikedVesselID)
	switch {
	case err == nil:
		if !room.Active || !m.IsMatched() {
			return Membership{}, ErrMatchNotActive
		}
		return Membership{Room: room, Match: m, VesselID: vesselID}, nil
	case !errors.Is(err, repo.ErrNotFound):
		return Membership{}, errs.Transient("load room", err)
	}

	if !m.IsMatched() {
		return Membership{}, ErrMatchNotActive
	}
	room, err = s.rooms.EnsureRoom(ctx, model.ChatRoom{
		MatchID:      m.ID,
		Participants: []int64{m.LikerVesselID, m.LikedVesselID},
		Active:       true,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return Membership{}, errs.Transient("create room", err)
	}
	return Membership{Room: room, Match: m, VesselID: vesselID}, nil
}

// PostMessage validates and stores a message from the caller's vessel. The
// sender is marked as having read it.
func (s *Service) PostMessage(ctx context.Context, userID, matchID int64, content, rawType string) (model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Message{}, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > s.cfg.MaxMessageLength {
		return model.Message{}, ErrContentTooLong
	}
	msgType, ok := enums.ParseMessageType(rawType)
	if !ok {
		return model.Message{}, ErrUnknownType
	}

	member, err := s.ResolveRoom(ctx, userID, matchID)
	if err != nil {
		return model.Message{}, err
	}
	if !member.Room.Active {
		return model.Message{}, ErrRoomInactive
	}
	if err := s.screen(ctx, content); err != nil {
		return model.Message{}, err
	}

	msg, err := s.rooms.AppendMessage(ctx, model.Message{
		RoomID:         member.Room.ID,
		SenderUserID:   userID,
		SenderVesselID: member.VesselID,
		Content:        content,
		Type:           msgType,
		CreatedAt:      s.now().UTC(),
		ReadBy:         []int64{member.VesselID},
	})
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrInactive):
			return model.Message{}, ErrRoomInactive
		case errors.Is(err, repo.ErrNotFound):
			return model.Message{}, ErrRoomNotFound
		}
		return model.Message{}, errs.Transient("append message", err)
	}

	if s.metrics != nil {
		s.metrics.MessagesPosted.WithLabelValues(string(msg.Type)).Inc()
	}
	if s.notify != nil {
		s.notify.Enqueue(notify.EventMessagePosted, map[string]any{
			"room_id":          msg.RoomID,
			"match_id":         matchID,
			"message_id":       msg.ID,
			"sender_vessel_id": msg.SenderVesselID,
			"recipient_vessel": member.Match.Counterpart(member.VesselID),
		})
	}
	return msg, nil
}

// MarkRead adds the caller's vessel to the message's read set and returns
// that vessel id with the updated message. Closed rooms reject receipts.
func (s *Service) MarkRead(ctx context.Context, userID, matchID, messageID int64) (int64, model.Message, error) {
	m, vesselID, err := s.resolveParticipant(ctx, userID, matchID)
	if err != nil {
		return 0, model.Message{}, err
	}
	room, err := s.rooms.GetRoomByPair(ctx, m.LikerVesselID, m.LikedVesselID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, model.Message{}, ErrRoomNotFound
		}
		return 0, model.Message{}, errs.Transient("load room", err)
	}
	if !room.Active {
		return 0, model.Message{}, ErrRoomInactive
	}

	msg, err := s.rooms.MarkMessageRead(ctx, room.ID, messageID, vesselID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return 0, model.Message{}, ErrMessageNotFound
		}
		return 0, model.Message{}, errs.Transient("mark read", err)
	}
	return vesselID, msg, nil
}

// ListMessages returns room history in (created_at, id) order, starting after
// afterID when it is set. Unknown rooms have no history.
func (s *Service) ListMessages(ctx context.Context, userID, matchID, afterID int64, limit int) ([]model.Message, error) {
	m, _, err := s.resolveParticipant(ctx, userID, matchID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.cfg.HistoryPageSize
	}
	if limit > maxHistoryPageSize {
		limit = maxHistoryPageSize
	}

	room, err := s.rooms.GetRoomByPair(ctx, m.LikerVesselID, m.LikedVesselID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return []model.Message{}, nil
		}
		return nil, errs.Transient("load room", err)
	}
	msgs, err := s.rooms.ListMessages(ctx, room.ID, afterID, limit)
	if err != nil {
		return nil, errs.Transient("list messages", err)
	}
	return msgs, nil
}

// ListConversations returns one entry per MATCHED row liked by any of the
// caller's vessels, most recent activity first.
func (s *Service) ListConversations(ctx context.Context, userID int64) ([]ConversationView, error) {
	own, err := s.vessels.VesselsByCaptain(ctx, userID)
	if err != nil {
		return nil, errs.Transient("load vessels", err)
	}
	if len(own) == 0 {
		return []ConversationView{}, nil
	}
	ids := make([]int64, 0, len(own))
	for _, v := range own {
		ids = append(ids, v.ID)
	}

	convs, err := s.rooms.ListConversations(ctx, ids)
	if err != nil {
		return nil, errs.Transient("list conversations", err)
	}
	if len(convs) == 0 {
		return []ConversationView{}, nil
	}

	blockedIDs, err := s.blocks.BlockedUserIDs(ctx, userID)
	if err != nil {
		return nil, errs.Transient("load blocks", err)
	}
	blocked := make(map[int64]struct{}, len(blockedIDs))
	for _, id := range blockedIDs {
		blocked[id] = struct{}{}
	}

	otherIDs := make([]int64, 0, len(convs))
	for _, c := range convs {
		otherIDs = append(otherIDs, c.Match.LikedVesselID)
	}
	others, err := s.vessels.VesselsByIDs(ctx, otherIDs)
	if err != nil {
		return nil, errs.Transient("load counterparts", err)
	}

	out := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		other, ok := others[c.Match.LikedVesselID]
		if !ok {
			continue
		}
		if _, isBlocked := blocked[other.CaptainUserID]; isBlocked {
			continue
		}
		out = append(out, ConversationView{
			Conversation: c,
			VesselID:     c.Match.LikerVesselID,
			Counterpart: Counterpart{
				VesselID:      other.ID,
				Name:          other.Name,
				Type:          other.Type,
				CaptainUserID: other.CaptainUserID,
				CaptainName:   other.Captain.DisplayName,
				AvatarURL:     s.avatarURL(ctx, other.Captain.AvatarKey),
			},
		})
	}
	return out, nil
}

// ResolveRoom returns the caller's membership of the match's room, creating the
// room when the match is live. An existing room is returned even when closed
// so callers can report it as inactive rather than as an inactive match.
func (s *Service) ResolveRoom(ctx context.Context, userID, matchID int64) (Membership, error) {
	m, vesselID, err := s.resolveParticipant(ctx, userID, matchID)
	if err != nil {
		return Membership{}, err
	}
	room, err := s.rooms.GetRoomByPair(ctx, m.LikerVesselID, m.LikedVesselID)
	if err == nil {
		return Membership{Room: room, Match: m, VesselID: vesselID}, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return Membership{}, errs.Transient("load room", err)
	}
	return s.GetOrCreateRoom(ctx, userID, matchID)
}

// resolveParticipant loads the match and picks the vessel the caller
// captains, preferring the liker side.
func (s *Service) resolveParticipant(ctx context.Context, userID, matchID int64) (model.Match, int64, error) {
	m, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.Match{}, 0, ErrMatchNotFound
		}
		return model.Match{}, 0, errs.Transient("load match", err)
	}
	vessels, err := s.vessels.VesselsByIDs(ctx, []int64{m.LikerVesselID, m.LikedVesselID})
	if err != nil {
		return model.Match{}, 0, errs.Transient("load match vessels", err)
	}
	for _, id := range []int64{m.LikerVesselID, m.LikedVesselID} {
		if v, ok := vessels[id]; ok && v.CaptainUserID == userID {
			return m, id, nil
		}
	}
	return model.Match{}, 0, ErrNotParticipant
}

func (s *Service) screen(ctx context.Context, content string) error {
	if s.scorer == nil {
		return nil
	}
	score, err := s.scorer.Score(ctx, content)
	if err != nil {
		s.log.Warn("toxicity scorer failed", zap.Error(err))
		return nil
	}
	if score > s.cfg.ToxicityThreshold {
		return ErrContentRejected
	}
	return nil
}

func (s *Service) avatarURL(ctx context.Context, key string) string {
	if s.signer == nil || key == "" {
		return ""
	}
	url, err := s.signer.AvatarURL(ctx, key)
	if err != nil {
		s.log.Warn("sign avatar url failed", zap.Error(err))
		return ""
	}
	return url
}
