package realtime

import "github.com/frogody/floatr-app-sub000/internal/domain/model"

// Client frames.
const (
	TypeJoin     = "join"
	TypeLeave    = "leave"
	TypeSend     = "send"
	TypeMarkRead = "markRead"
	TypeTyping   = "typing"
)

// Server frames.
const (
	TypeJoined  = "joined"
	TypeMessage = "message"
	TypeSent    = "sent"
	TypeRead    = "read"
	TypeError   = "error"
)

// Envelope is the single frame shape used in both directions. Unused fields
// are omitted.
type Envelope struct {
	Type           string         `json:"type"`
	MatchID        int64          `json:"match_id,omitempty"`
	RoomID         int64          `json:"room_id,omitempty"`
	VesselID       int64          `json:"vessel_id,omitempty"`
	Content        string         `json:"content,omitempty"`
	MessageType    string         `json:"message_type,omitempty"`
	MessageID      int64          `json:"message_id,omitempty"`
	ReaderVesselID int64          `json:"reader_vessel_id,omitempty"`
	UserID         int64          `json:"user_id,omitempty"`
	IsTyping       *bool          `json:"is_typing,omitempty"`
	Message        *model.Message `json:"message,omitempty"`
	Code           string         `json:"code,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Field          string         `json:"field,omitempty"`
}
