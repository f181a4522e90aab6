package model

import (
	"encoding/json"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
)

// Zone is a maritime no-go area. Geometry is a GeoJSON Polygon or MultiPolygon
// in WGS84 with [lng, lat] coordinate order.
type Zone struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Severity    enums.ZoneSeverity `json:"severity"`
	ZoneType    string             `json:"zone_type"`
	Regulations []string           `json:"regulations"`
	Active      bool               `json:"active"`
	Geometry    json.RawMessage    `json:"geometry"`
}
