package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	authsvc "github.com/frogody/floatr-app-sub000/internal/services/auth"
	realtimesvc "github.com/frogody/floatr-app-sub000/internal/services/realtime"
)

type RealtimeHandler struct {
	gateway *realtimesvc.Gateway
	tokens  *authsvc.JWTManager
	log     *zap.Logger
}

func NewRealtimeHandler(gateway *realtimesvc.Gateway, tokens *authsvc.JWTManager, log *zap.Logger) *RealtimeHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RealtimeHandler{gateway: gateway, tokens: tokens, log: log}
}

// Handle authenticates before the upgrade. Browsers cannot set headers on a
// websocket handshake, so the token may also arrive as a query parameter.
func (h *RealtimeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.gateway == nil || h.tokens == nil {
		writeInternal(w, "REALTIME_UNAVAILABLE", "realtime gateway is unavailable")
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("token"))
	if raw == "" {
		raw = strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	if raw == "" {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
			raw = strings.TrimSpace(header[7:])
		}
	}
	claims, err := h.tokens.ParseAccessToken(raw)
	if err != nil {
		writeUnauthorized(w, "UNAUTHORIZED", "invalid access token")
		return
	}

	if err := h.gateway.Serve(w, r, claims.UserID); err != nil {
		h.log.Debug("realtime connection refused", zap.Int64("user_id", claims.UserID), zap.Error(err))
	}
}
