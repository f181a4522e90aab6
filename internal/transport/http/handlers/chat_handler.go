package handlers

import (
	"context"
	"net/http"

	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	chatsvc "github.com/frogody/floatr-app-sub000/internal/services/chat"
	"github.com/frogody/floatr-app-sub000/internal/transport/http/dto"
	httperrors "github.com/frogody/floatr-app-sub000/internal/transport/http/errors"
)

// ChatRelay performs chat writes that live room members must see.
type ChatRelay interface {
	PostMessage(ctx context.Context, userID, matchID int64, content, rawType string) (model.Message, error)
	MarkRead(ctx context.Context, userID, matchID, messageID int64) (int64, model.Message, error)
}

type ChatHandler struct {
	service *chatsvc.Service
	relay   ChatRelay
}

// NewChatHandler writes through relay when one is given, otherwise straight to
// the service.
func NewChatHandler(service *chatsvc.Service, relay ChatRelay) *ChatHandler {
	h := &ChatHandler{service: service, relay: relay}
	if h.relay == nil {
		h.relay = service
	}
	return h
}

func (h *ChatHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	views, err := h.service.ListConversations(r.Context(), identity.UserID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	items := make([]dto.ConversationResponse, 0, len(views))
	for _, v := range views {
		items = append(items, dto.ConversationResponse{
			Match:       v.Match,
			Room:        v.Room,
			LastMessage: v.LastMessage,
			UnreadCount: v.UnreadCount,
			VesselID:    v.VesselID,
			Counterpart: dto.ConversationCounterpartResponse{
				VesselID:      v.Counterpart.VesselID,
				Name:          v.Counterpart.Name,
				Type:          v.Counterpart.Type,
				CaptainUserID: v.Counterpart.CaptainUserID,
				CaptainName:   v.Counterpart.CaptainName,
				AvatarURL:     v.Counterpart.AvatarURL,
			},
		})
	}

	httperrors.Write(w, http.StatusOK, dto.ConversationsResponse{Items: items})
}

func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	matchID, err := pathID(r, "matchId")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	after, err := optionalInt64(r, "after")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	limit, err := optionalInt64(r, "limit")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	messages, err := h.service.ListMessages(r.Context(), identity.UserID, matchID, after, int(limit))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}

	httperrors.Write(w, http.StatusOK, dto.MessagesResponse{Items: messages})
}

func (h *ChatHandler) Post(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	matchID, err := pathID(r, "matchId")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	var req dto.PostMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	msg, err := h.relay.PostMessage(r.Context(), identity.UserID, matchID, req.Content, req.Type)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, msg)
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "CHAT_SERVICE_UNAVAILABLE", "chat service is unavailable")
		return
	}

	matchID, err := pathID(r, "matchId")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	messageID, err := pathID(r, "messageId")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	reader, msg, err := h.relay.MarkRead(r.Context(), identity.UserID, matchID, messageID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.ReadResponse{ReaderVesselID: reader, Message: msg})
}
