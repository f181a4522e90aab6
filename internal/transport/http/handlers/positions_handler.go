package handlers

import (
	"net/http"

	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	spatialsvc "github.com/frogody/floatr-app-sub000/internal/services/spatial"
	"github.com/frogody/floatr-app-sub000/internal/transport/http/dto"
	httperrors "github.com/frogody/floatr-app-sub000/internal/transport/http/errors"
)

type PositionsHandler struct {
	service *spatialsvc.Service
}

func NewPositionsHandler(service *spatialsvc.Service) *PositionsHandler {
	return &PositionsHandler{service: service}
}

func (h *PositionsHandler) Record(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "POSITIONS_SERVICE_UNAVAILABLE", "positions service is unavailable")
		return
	}

	var req dto.PositionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.VesselID <= 0 {
		httperrors.WriteError(w, errs.Validation("vessel_id", "vessel_id is required"))
		return
	}
	if req.Lat == nil || req.Lng == nil {
		httperrors.WriteError(w, errs.Validation("lat", "lat and lng are required"))
		return
	}

	visible := true
	if req.Visible != nil {
		visible = *req.Visible
	}

	result, err := h.service.Record(r.Context(), identity.UserID, spatialsvc.RecordInput{
		VesselID:   req.VesselID,
		Lat:        *req.Lat,
		Lng:        *req.Lng,
		AccuracyM:  req.Accuracy,
		HeadingDeg: req.Heading,
		SpeedKn:    req.Speed,
		Visible:    visible,
	})
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	warnings := result.Zones
	if warnings == nil {
		warnings = []model.Zone{}
	}
	httperrors.Write(w, http.StatusCreated, dto.PositionResponse{Position: result.Position, Warnings: warnings})
}
