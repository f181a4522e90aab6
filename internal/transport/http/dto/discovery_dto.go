package dto

import "time"

type CaptainResponse struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type CrewPreviewResponse struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

type NearbyVesselResponse struct {
	VesselID     int64                 `json:"vessel_id"`
	Name         string                `json:"name"`
	Type         string                `json:"type"`
	Capacity     int                   `json:"capacity"`
	Vibe         string                `json:"vibe"`
	DistanceKM   float64               `json:"distance_km"`
	LastSeenAt   time.Time             `json:"last_seen_at"`
	HeadingDeg   float64               `json:"heading_deg"`
	SpeedKn      float64               `json:"speed_kn"`
	Captain      CaptainResponse       `json:"captain"`
	Crew         []CrewPreviewResponse `json:"crew"`
	CrewCount    int                   `json:"crew_count"`
	Amenities    []string              `json:"amenities"`
	AmenityCount int                   `json:"amenity_count"`
}

type AppliedFiltersResponse struct {
	Vibes []string `json:"vibes"`
	Types []string `json:"types"`
}

type NearbyResponse struct {
	Items    []NearbyVesselResponse `json:"items"`
	Filters  AppliedFiltersResponse `json:"filters"`
	RadiusKM float64                `json:"radius_km"`
}
