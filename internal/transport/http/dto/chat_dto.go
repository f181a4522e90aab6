package dto

import "github.com/frogody/floatr-app-sub000/internal/domain/model"

type ConversationCounterpartResponse struct {
	VesselID      int64  `json:"vessel_id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	CaptainUserID int64  `json:"captain_user_id"`
	CaptainName   string `json:"captain_name"`
	AvatarURL     string `json:"avatar_url,omitempty"`
}

type ConversationResponse struct {
	Match       model.Match                     `json:"match"`
	Room        *model.ChatRoom                 `json:"room,omitempty"`
	LastMessage *model.Message                  `json:"last_message,omitempty"`
	UnreadCount int                             `json:"unread_count"`
	VesselID    int64                           `json:"vessel_id"`
	Counterpart ConversationCounterpartResponse `json:"counterpart"`
}

type ConversationsResponse struct {
	Items []ConversationResponse `json:"items"`
}

type PostMessageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

type MessagesResponse struct {
	Items []model.Message `json:"items"`
}

type ReadResponse struct {
	ReaderVesselID int64         `json:"reader_vessel_id"`
	Message        model.Message `json:"message"`
}
