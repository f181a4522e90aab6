package handlers

import (
	"net/http"
	"strings"

	swipesvc "github.com/frogody/floatr-app-sub000/internal/services/swipes"
	"github.com/frogody/floatr-app-sub000/internal/transport/http/dto"
	httperrors "github.com/frogody/floatr-app-sub000/internal/transport/http/errors"
)

type SwipeHandler struct {
	service *swipesvc.Service
}

func NewSwipeHandler(service *swipesvc.Service) *SwipeHandler {
	return &SwipeHandler{service: service}
}

func (h *SwipeHandler) Handle(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "SWIPE_SERVICE_UNAVAILABLE", "swipe service is unavailable")
		return
	}

	var req dto.SwipeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.ActingVesselID <= 0 || req.TargetVesselID <= 0 || strings.TrimSpace(req.Action) == "" {
		writeBadRequest(w, "VALIDATION_ERROR", "acting_vessel_id, target_vessel_id and action are required")
		return
	}

	result, err := h.service.RecordSwipe(r.Context(), identity.UserID, req.ActingVesselID, req.TargetVesselID, req.Action)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	httperrors.Write(w, status, dto.SwipeResponse{IsMatch: result.IsMatch, Match: result.Match})
}
