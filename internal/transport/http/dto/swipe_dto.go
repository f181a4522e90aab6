package dto

import "github.com/frogody/floatr-app-sub000/internal/domain/model"

type SwipeRequest struct {
	ActingVesselID int64  `json:"acting_vessel_id"`
	TargetVesselID int64  `json:"target_vessel_id"`
	Action         string `json:"action"`
}

type SwipeResponse struct {
	IsMatch bool         `json:"is_match"`
	Match   *model.Match `json:"match,omitempty"`
}
