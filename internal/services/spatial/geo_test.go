package spatial

import (
	"errors"
	"math"
	"testing"

	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
)

var (
	amsterdam = model.Point{Lat: 52.3676, Lng: 4.9041}
	paris     = model.Point{Lat: 48.8566, Lng: 2.3522}
)

func TestHaversineAmsterdamParis(t *testing.T) {
	d := HaversineKM(amsterdam, paris)
	if math.Abs(d-430) > 4.3 {
		t.Fatalf("expected ~430 km, got %.2f", d)
	}
}

func TestHaversineIdentityAndSymmetry(t *testing.T) {
	if d := HaversineKM(amsterdam, amsterdam); d != 0 {
		t.Fatalf("expected zero distance to self, got %v", d)
	}
	if HaversineKM(amsterdam, paris) != HaversineKM(paris, amsterdam) {
		t.Fatalf("distance must be symmetric")
	}
}

func TestValidatePoint(t *testing.T) {
	tests := []struct {
		name  string
		point model.Point
		field string
	}{
		{name: "lat too high", point: model.Point{Lat: 90.0001, Lng: 0}, field: "lat"},
		{name: "lat too low", point: model.Point{Lat: -91, Lng: 0}, field: "lat"},
		{name: "lng too high", point: model.Point{Lat: 0, Lng: 180.5}, field: "lng"},
		{name: "nan", point: model.Point{Lat: math.NaN(), Lng: 0}, field: "coordinates"},
		{name: "inf", point: model.Point{Lat: 0, Lng: math.Inf(1)}, field: "coordinates"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePoint(tt.point)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Fatalf("expected invalid coordinates, got %v", err)
			}
			if errs.KindOf(err) != errs.KindValidation {
				t.Fatalf("expected validation kind, got %q", errs.KindOf(err))
			}
			if errs.FieldOf(err) != tt.field {
				t.Fatalf("expected field %q, got %q", tt.field, errs.FieldOf(err))
			}
		})
	}

	if err := ValidatePoint(model.Point{Lat: 90, Lng: -180}); err != nil {
		t.Fatalf("boundary values must be accepted: %v", err)
	}
}

func TestValidateBBox(t *testing.T) {
	if err := ValidateBBox(model.BBox{North: 52, South: 52, East: 5, West: 4}); !errors.Is(err, ErrInvalidBBox) {
		t.Fatalf("expected invalid bbox for north == south, got %v", err)
	}
	if err := ValidateBBox(model.BBox{North: 53, South: 52, East: 4, West: 5}); !errors.Is(err, ErrInvalidBBox) {
		t.Fatalf("expected invalid bbox for east < west, got %v", err)
	}
	if err := ValidateBBox(model.BBox{North: 53, South: 52, East: 5, West: 4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBBoxAroundContainsRadius(t *testing.T) {
	box := BBoxAround(amsterdam, 25)
	for _, bearing := range []model.Point{
		{Lat: amsterdam.Lat + 24.9/kmPerDegree, Lng: amsterdam.Lng},
		{Lat: amsterdam.Lat - 24.9/kmPerDegree, Lng: amsterdam.Lng},
		{Lat: amsterdam.Lat, Lng: amsterdam.Lng + 24.9/(kmPerDegree*math.Cos(amsterdam.Lat*math.Pi/180))},
	} {
		if !box.Contains(bearing) {
			t.Fatalf("box %+v should contain %+v", box, bearing)
		}
	}
	if box.Contains(paris) {
		t.Fatalf("box should not contain paris")
	}
}

func TestBBoxAroundAntimeridianWidens(t *testing.T) {
	box := BBoxAround(model.Point{Lat: 0, Lng: 179.9}, 50)
	if box.East != 180 || box.West != -180 {
		t.Fatalf("expected full longitude range, got %+v", box)
	}
}

func TestRoundKM(t *testing.T) {
	if RoundKM(1.23456) != 1.23 || RoundKM(1.235001) != 1.24 {
		t.Fatalf("unexpected rounding")
	}
}
