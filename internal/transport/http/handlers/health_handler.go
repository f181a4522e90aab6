package handlers

import (
	"context"
	"net/http"
	"time"

	httperrors "github.com/frogody/floatr-app-sub000/internal/transport/http/errors"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Healthz is liveness only; Readyz also checks storage.
func (h *HealthHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	httperrors.Write(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			httperrors.Write(w, http.StatusServiceUnavailable, httperrors.APIError{
				Code:    "STORAGE_UNAVAILABLE",
				Message: "storage is not reachable",
			})
			return
		}
	}
	httperrors.Write(w, http.StatusOK, map[string]bool{"ok": true})
}
