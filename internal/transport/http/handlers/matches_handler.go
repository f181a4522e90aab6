package handlers

import (
	"net/http"

	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	matchessvc "github.com/frogody/floatr-app-sub000/internal/services/matches"
	"github.com/frogody/floatr-app-sub000/internal/transport/http/dto"
	httperrors "github.com/frogody/floatr-app-sub000/internal/transport/http/errors"
)

type MatchesHandler struct {
	service *matchessvc.Service
}

func NewMatchesHandler(service *matchessvc.Service) *MatchesHandler {
	return &MatchesHandler{service: service}
}

func (h *MatchesHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	vesselID, err := optionalInt64(r, "vessel_id")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if vesselID == 0 {
		httperrors.WriteError(w, errs.Validation("vessel_id", "vessel_id is required"))
		return
	}

	items, err := h.service.History(r.Context(), identity.UserID, vesselID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	responseItems := make([]dto.MatchItemResponse, 0, len(items))
	for _, item := range items {
		responseItems = append(responseItems, dto.MatchItemResponse{
			Match: item.Match,
			Counterpart: dto.MatchCounterpartResponse{
				VesselID:      item.Counterpart.VesselID,
				Name:          item.Counterpart.Name,
				Type:          item.Counterpart.Type,
				Vibe:          item.Counterpart.Vibe,
				CaptainUserID: item.Counterpart.CaptainUserID,
				CaptainName:   item.Counterpart.CaptainName,
			},
		})
	}

	httperrors.Write(w, http.StatusOK, dto.MatchesResponse{Items: responseItems})
}

func (h *MatchesHandler) Unmatch(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	matchID, err := pathID(r, "matchId")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	changed, err := h.service.Unmatch(r.Context(), identity.UserID, matchID)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.UnmatchResponse{OK: true, Changed: changed})
}

func (h *MatchesHandler) Block(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "MATCHES_SERVICE_UNAVAILABLE", "matches service is unavailable")
		return
	}

	var req dto.BlockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	if err := h.service.Block(r.Context(), identity.UserID, req.UserID); err != nil {
		httperrors.WriteError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, dto.OKResponse{OK: true})
}
