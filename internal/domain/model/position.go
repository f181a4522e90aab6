package model

import "time"

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type BBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

func (b BBox) Contains(p Point) bool {
	return p.Lat >= b.South && p.Lat <= b.North && p.Lng >= b.West && p.Lng <= b.East
}

type Position struct {
	ID         int64     `json:"id"`
	VesselID   int64     `json:"vessel_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AccuracyM  float64   `json:"accuracy_m"`
	HeadingDeg float64   `json:"heading_deg"`
	SpeedKn    float64   `json:"speed_kn"`
	RecordedAt time.Time `json:"recorded_at"`
	Visible    bool      `json:"visible"`
}

func (p Position) Point() Point {
	return Point{Lat: p.Lat, Lng: p.Lng}
}
