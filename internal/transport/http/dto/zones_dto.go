package dto

import "github.com/frogody/floatr-app-sub000/internal/domain/model"

type ZonesResponse struct {
	Items []model.Zone `json:"items"`
}

type PointCheckRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type PointCheckResponse struct {
	InZone bool         `json:"in_zone"`
	Zones  []model.Zone `json:"zones"`
}
