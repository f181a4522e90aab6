package memory

import (
	"context"
	"sort"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/repo"
)

func (s *Store) EnsureRoom(_ context.Context, room model.ChatRoom) (model.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(room.Participants) != 2 {
		return model.ChatRoom{}, repo.ErrNotFound
	}
	key := orderedPair(room.Participants[0], room.Participants[1])
	if id, ok := s.roomByPair[key]; ok {
		return cloneRoom(s.rooms[id]), nil
	}
	room.ID = s.id()
	room.Participants = []int64{key[0], key[1]}
	room.Active = true
	s.rooms[room.ID] = room
	s.roomByPair[key] = room.ID
	return cloneRoom(room), nil
}

func (s *Store) GetRoomByPair(_ context.Context, a, b int64) (model.ChatRoom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.roomByPair[orderedPair(a, b)]
	if !ok {
		return model.ChatRoom{}, repo.ErrNotFound
	}
	return cloneRoom(s.rooms[id]), nil
}

func (s *Store) AppendMessage(_ context.Context, msg model.Message) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[msg.RoomID]
	if !ok {
		return model.Message{}, repo.ErrNotFound
	}
	if !room.Active {
		return model.Message{}, repo.ErrInactive
	}
	msg.ID = s.id()
	msg.ReadBy = append([]int64(nil), msg.ReadBy...)
	s.messages[msg.RoomID] = append(s.messages[msg.RoomID], msg)

	at := msg.CreatedAt
	room.LastMessageAt = &at
	s.rooms[room.ID] = room
	return cloneMessage(msg), nil
}

func (s *Store) MarkMessageRead(_ context.Context, roomID, messageID, vesselID int64) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[roomID]
	for i := range msgs {
		if msgs[i].ID != messageID {
			continue
		}
		if !msgs[i].IsReadBy(vesselID) {
			msgs[i].ReadBy = append(msgs[i].ReadBy, vesselID)
		}
		return cloneMessage(msgs[i]), nil
	}
	return model.Message{}, repo.ErrNotFound
}

func (s *Store) ListMessages(_ context.Context, roomID, afterID int64, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append([]model.Message(nil), s.messages[roomID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return messageLess(msgs[i], msgs[j]) })

	start := 0
	if afterID > 0 {
		start = len(msgs)
		for i, m := range msgs {
			if m.ID == afterID {
				start = i + 1
				break
			}
		}
	}

	out := make([]model.Message, 0)
	for _, m := range msgs[start:] {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, cloneMessage(m))
	}
	return out, nil
}

func (s *Store) ListConversations(_ context.Context, vesselIDs []int64) ([]model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mine := make(map[int64]struct{}, len(vesselIDs))
	for _, id := range vesselIDs {
		mine[id] = struct{}{}
	}

	out := make([]model.Conversation, 0)
	for _, m := range s.matches {
		if m.Status != enums.MatchStatusMatched {
			continue
		}
		if _, ok := mine[m.LikerVesselID]; !ok {
			continue
		}
		conv := model.Conversation{Match: cloneMatch(m)}
		if roomID, ok := s.roomByPair[orderedPair(m.LikerVesselID, m.LikedVesselID)]; ok {
			room := cloneRoom(s.rooms[roomID])
			conv.Room = &room
			msgs := s.messages[roomID]
			var last *model.Message
			for i := range msgs {
				if last == nil || messageLess(*last, msgs[i]) {
					last = &msgs[i]
				}
				if msgs[i].SenderVesselID != m.LikerVesselID && !msgs[i].IsReadBy(m.LikerVesselID) {
					conv.UnreadCount++
				}
			}
			if last != nil {
				lm := cloneMessage(*last)
				conv.LastMessage = &lm
			}
		}
		out = append(out, conv)
	}

	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].SortTime(), out[j].SortTime()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].Match.ID > out[j].Match.ID
	})
	return out, nil
}

func messageLess(a, b model.Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}
