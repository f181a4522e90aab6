package dto

import "github.com/frogody/floatr-app-sub000/internal/domain/model"

type PositionRequest struct {
	VesselID int64    `json:"vessel_id"`
	Lat      *float64 `json:"lat"`
	Lng      *float64 `json:"lng"`
	Accuracy float64  `json:"accuracy"`
	Heading  float64  `json:"heading"`
	Speed    float64  `json:"speed"`
	Visible  *bool    `json:"visible"`
}

type PositionResponse struct {
	Position model.Position `json:"position"`
	Warnings []model.Zone   `json:"warnings"`
}
