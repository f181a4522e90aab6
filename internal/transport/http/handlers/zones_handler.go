package handlers

import (
	"net/http"
	"strings"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	zonessvc "github.com/frogody/floatr-app-sub000/internal/services/zones"
	"github.com/frogody/floatr-app-sub000/internal/transport/http/dto"
	httperrors "github.com/frogody/floatr-app-sub000/internal/transport/http/errors"
)

type ZonesHandler struct {
	guard *zonessvc.Guard
}

func NewZonesHandler(guard *zonessvc.Guard) *ZonesHandler {
	return &ZonesHandler{guard: guard}
}

func (h *ZonesHandler) InBoundingBox(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}
	if h.guard == nil {
		writeInternal(w, "ZONES_SERVICE_UNAVAILABLE", "zones service is unavailable")
		return
	}

	var bbox model.BBox
	for _, side := range []struct {
		name   string
		target *float64
	}{
		{"north", &bbox.North},
		{"south", &bbox.South},
		{"east", &bbox.East},
		{"west", &bbox.West},
	} {
		value, err := requiredFloat(r, side.name)
		if err != nil {
			httperrors.WriteError(w, err)
			return
		}
		*side.target = value
	}

	filter := zonessvc.Filter{ZoneType: strings.TrimSpace(r.URL.Query().Get("zone_type"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("severity")); raw != "" {
		severity, ok := enums.ParseZoneSeverity(raw)
		if !ok {
			httperrors.WriteError(w, errs.Validation("severity", "severity must be info, warning or danger"))
			return
		}
		filter.Severity = severity
	}

	zones, err := h.guard.ZonesInBoundingBox(r.Context(), bbox, filter)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if zones == nil {
		zones = []model.Zone{}
	}

	httperrors.Write(w, http.StatusOK, dto.ZonesResponse{Items: zones})
}

func (h *ZonesHandler) PointCheck(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}
	if h.guard == nil {
		writeInternal(w, "ZONES_SERVICE_UNAVAILABLE", "zones service is unavailable")
		return
	}

	var req dto.PointCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}
	if req.Lat == nil {
		httperrors.WriteError(w, errs.Validation("lat", "lat is required"))
		return
	}
	if req.Lng == nil {
		httperrors.WriteError(w, errs.Validation("lng", "lng is required"))
		return
	}

	zones, err := h.guard.ContainingZones(r.Context(), model.Point{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if zones == nil {
		zones = []model.Zone{}
	}

	httperrors.Write(w, http.StatusOK, dto.PointCheckResponse{InZone: len(zones) > 0, Zones: zones})
}
