package model

import (
	"time"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
)

type ChatRoom struct {
	ID            int64      `json:"id"`
	MatchID       int64      `json:"match_id"`
	Participants  []int64    `json:"participants"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (r ChatRoom) HasParticipant(vesselID int64) bool {
	for _, id := range r.Participants {
		if id == vesselID {
			return true
		}
	}
	return false
}

type Message struct {
	ID             int64             `json:"id"`
	RoomID         int64             `json:"room_id"`
	SenderUserID   int64             `json:"sender_user_id"`
	SenderVesselID int64             `json:"sender_vessel_id"`
	Content        string            `json:"content"`
	Type           enums.MessageType `json:"type"`
	CreatedAt      time.Time         `json:"created_at"`
	ReadBy         []int64           `json:"read_by"`
}

func (m Message) IsReadBy(vesselID int64) bool {
	for _, id := range m.ReadBy {
		if id == vesselID {
			return true
		}
	}
	return false
}

// Conversation is one matched counterpart as seen by one of the caller's
// vessels.
type Conversation struct {
	Match       Match     `json:"match"`
	Room        *ChatRoom `json:"room,omitempty"`
	LastMessage *Message  `json:"last_message,omitempty"`
	UnreadCount int       `json:"unread_count"`
}

// SortTime is the recency key used for ordering conversations.
func (c Conversation) SortTime() time.Time {
	if c.Room != nil && c.Room.LastMessageAt != nil {
		return *c.Room.LastMessageAt
	}
	if c.Match.MatchedAt != nil {
		return *c.Match.MatchedAt
	}
	return c.Match.CreatedAt
}
