package spatial

import (
	"math"

	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
)

const (
	earthRadiusKM = 6371.0
	kmPerDegree   = 111.32
)

var (
	ErrInvalidCoordinates = errs.Validation("coordinates", "coordinates must be finite with |lat| <= 90 and |lng| <= 180")
	ErrInvalidBBox        = errs.Validation("bbox", "bounding box requires north > south and east > west")
)

func ValidatePoint(p model.Point) error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return ErrInvalidCoordinates
	}
	if p.Lat < -90 || p.Lat > 90 {
		return ErrInvalidCoordinates.WithField("lat")
	}
	if p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidCoordinates.WithField("lng")
	}
	return nil
}

func ValidateBBox(b model.BBox) error {
	for _, v := range []float64{b.North, b.South, b.East, b.West} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidBBox
		}
	}
	if b.North <= b.South || b.East <= b.West {
		return ErrInvalidBBox
	}
	if b.North > 90 || b.South < -90 || b.East > 180 || b.West < -180 {
		return ErrInvalidCoordinates
	}
	return nil
}

// HaversineKM is the great-circle distance on a sphere of radius 6371 km.
func HaversineKM(a, b model.Point) float64 {
	toRad := func(v float64) float64 { return v * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKM * c
}

// BBoxAround returns a box that contains every point within radiusKM of p.
// Near the poles or across the antimeridian it widens to the full longitude
// range rather than wrapping.
func BBoxAround(p model.Point, radiusKM float64) model.BBox {
	dLat := radiusKM / kmPerDegree
	box := model.BBox{
		North: math.Min(90, p.Lat+dLat),
		South: math.Max(-90, p.Lat-dLat),
		East:  180,
		West:  -180,
	}

	cos := math.Cos(p.Lat * math.Pi / 180)
	if cos < 1e-6 || box.North == 90 || box.South == -90 {
		return box
	}
	dLng := radiusKM / (kmPerDegree * cos)
	if p.Lng-dLng < -180 || p.Lng+dLng > 180 {
		return box
	}
	box.East = p.Lng + dLng
	box.West = p.Lng - dLng
	return box
}

func RoundKM(d float64) float64 {
	return math.Round(d*100) / 100
}

// RoundCoord reduces precision to roughly 1 km for audit records.
func RoundCoord(v float64) float64 {
	return math.Round(v*100) / 100
}
