package handlers

import (
	"net/http"

	discoverysvc "github.com/frogody/floatr-app-sub000/internal/services/discovery"
	"github.com/frogody/floatr-app-sub000/internal/transport/http/dto"
	httperrors "github.com/frogody/floatr-app-sub000/internal/transport/http/errors"
)

type DiscoveryHandler struct {
	service *discoverysvc.Service
}

func NewDiscoveryHandler(service *discoverysvc.Service) *DiscoveryHandler {
	return &DiscoveryHandler{service: service}
}

func (h *DiscoveryHandler) Nearby(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if h.service == nil {
		writeInternal(w, "DISCOVERY_SERVICE_UNAVAILABLE", "discovery service is unavailable")
		return
	}

	lat, err := optionalFloat(r, "lat")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	lng, err := optionalFloat(r, "lng")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	radius, err := optionalFloat(r, "radius")
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	query := discoverysvc.Query{
		Lat:   lat,
		Lng:   lng,
		Vibes: listParam(r, "vibe"),
		Types: listParam(r, "type"),
	}
	if radius != nil {
		query.RadiusKM = *radius
	}

	result, err := h.service.FindNearby(r.Context(), identity.UserID, query)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}

	items := make([]dto.NearbyVesselResponse, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		crew := make([]dto.CrewPreviewResponse, 0, len(c.Crew))
		for _, member := range c.Crew {
			crew = append(crew, dto.CrewPreviewResponse{Name: member.Name, AvatarURL: member.AvatarURL})
		}
		items = append(items, dto.NearbyVesselResponse{
			VesselID:   c.VesselID,
			Name:       c.Name,
			Type:       c.Type,
			Capacity:   c.Capacity,
			Vibe:       c.Vibe,
			DistanceKM: c.DistanceKM,
			LastSeenAt: c.LastSeenAt,
			HeadingDeg: c.HeadingDeg,
			SpeedKn:    c.SpeedKn,
			Captain: dto.CaptainResponse{
				UserID:      c.Captain.UserID,
				DisplayName: c.Captain.DisplayName,
				AvatarURL:   c.Captain.AvatarURL,
			},
			Crew:         crew,
			CrewCount:    c.CrewCount,
			Amenities:    nonNilStrings(c.Amenities),
			AmenityCount: c.AmenityCount,
		})
	}

	httperrors.Write(w, http.StatusOK, dto.NearbyResponse{
		Items: items,
		Filters: dto.AppliedFiltersResponse{
			Vibes: nonNilStrings(result.Applied.Vibes),
			Types: nonNilStrings(result.Applied.Types),
		},
		RadiusKM: result.RadiusKM,
	})
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
