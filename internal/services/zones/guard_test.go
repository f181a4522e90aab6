package zones

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/repo/memory"
	"github.com/frogody/floatr-app-sub000/internal/services/spatial"
)

const (
	harbourSquare = `{"type":"Polygon","coordinates":[[[4.0,52.0],[5.0,52.0],[5.0,53.0],[4.0,53.0],[4.0,52.0]]]}`
	innerSquare   = `{"type":"Polygon","coordinates":[[[4.4,52.4],[4.6,52.4],[4.6,52.6],[4.4,52.6],[4.4,52.4]]]}`
	// L shape: a 1-wide arm along the bottom and one up the left side.
	breakwater = `{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,1],[1,1],[1,10],[0,10],[0,0]]]}`
	// Square lagoon with an open-water hole in the middle.
	atoll      = `{"type":"Polygon","coordinates":[[[20,0],[30,0],[30,10],[20,10],[20,0]],[[22,2],[28,2],[28,8],[22,8],[22,2]]]}`
	twoIslands = `{"type":"MultiPolygon","coordinates":[[[[10,10],[11,10],[11,11],[10,11],[10,10]]],[[[20,20],[21,20],[21,21],[20,21],[20,20]]]]}`
)

func newGuard(t *testing.T, zones ...model.Zone) *Guard {
	t.Helper()
	store := memory.New()
	for _, z := range zones {
		store.PutZone(z)
	}
	return NewGuard(store, nil, Config{})
}

func TestContainingZonesExactAndSorted(t *testing.T) {
	g := newGuard(t,
		model.Zone{Name: "Outer anchorage", Severity: enums.ZoneSeverityInfo, ZoneType: "anchorage", Active: true, Geometry: []byte(harbourSquare)},
		model.Zone{Name: "Shipping lane", Severity: enums.ZoneSeverityDanger, ZoneType: "traffic", Active: true, Geometry: []byte(innerSquare)},
		model.Zone{Name: "Bird reserve", Severity: enums.ZoneSeverityInfo, ZoneType: "nature", Active: true, Geometry: []byte(innerSquare)},
		model.Zone{Name: "Retired", Severity: enums.ZoneSeverityDanger, Active: false, Geometry: []byte(innerSquare)},
	)
	ctx := context.Background()

	got, err := g.ContainingZones(ctx, model.Point{Lat: 52.5, Lng: 4.5})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Shipping lane", got[0].Name)
	assert.Equal(t, "Bird reserve", got[1].Name)
	assert.Equal(t, "Outer anchorage", got[2].Name)

	got, err = g.ContainingZones(ctx, model.Point{Lat: 52.1, Lng: 4.1})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = g.ContainingZones(ctx, model.Point{Lat: 53.0001, Lng: 4.5})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestContainingZonesMultiPolygon(t *testing.T) {
	g := newGuard(t, model.Zone{Name: "Islands", Severity: enums.ZoneSeverityWarning, Active: true, Geometry: []byte(twoIslands)})
	ctx := context.Background()

	got, err := g.ContainingZones(ctx, model.Point{Lat: 20.5, Lng: 20.5})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = g.ContainingZones(ctx, model.Point{Lat: 15, Lng: 15})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestContainingZonesRejectsInvalidPoint(t *testing.T) {
	g := newGuard(t)
	_, err := g.ContainingZones(context.Background(), model.Point{Lat: 95, Lng: 0})
	assert.True(t, errors.Is(err, spatial.ErrInvalidCoordinates))
}

func TestInvalidGeometryIsSkipped(t *testing.T) {
	g := newGuard(t,
		model.Zone{Name: "Broken", Active: true, Geometry: []byte(`{"type":"Point","coordinates":[4.5,52.5]}`)},
		model.Zone{Name: "Good", Severity: enums.ZoneSeverityInfo, Active: true, Geometry: []byte(harbourSquare)},
	)
	got, err := g.ContainingZones(context.Background(), model.Point{Lat: 52.5, Lng: 4.5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Good", got[0].Name)
}

func TestZonesInBoundingBoxFiltersAndValidates(t *testing.T) {
	g := newGuard(t,
		model.Zone{Name: "Outer anchorage", Severity: enums.ZoneSeverityInfo, ZoneType: "anchorage", Active: true, Geometry: []byte(harbourSquare)},
		model.Zone{Name: "Shipping lane", Severity: enums.ZoneSeverityDanger, ZoneType: "traffic", Active: true, Geometry: []byte(innerSquare)},
		model.Zone{Name: "Islands", Severity: enums.ZoneSeverityWarning, ZoneType: "nature", Active: true, Geometry: []byte(twoIslands)},
	)
	ctx := context.Background()
	view := model.BBox{North: 52.55, South: 52.45, East: 4.55, West: 4.45}

	got, err := g.ZonesInBoundingBox(ctx, view, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Shipping lane", got[0].Name)

	got, err = g.ZonesInBoundingBox(ctx, view, Filter{ZoneType: "anchorage"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = g.ZonesInBoundingBox(ctx, view, Filter{Severity: enums.ZoneSeverityDanger})
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = g.ZonesInBoundingBox(ctx, model.BBox{North: 52, South: 53, East: 5, West: 4}, Filter{})
	assert.True(t, errors.Is(err, spatial.ErrInvalidBBox))

	_, err = g.ZonesInBoundingBox(ctx, view, Filter{Severity: "severe"})
	assert.True(t, errors.Is(err, ErrInvalidSeverity))
}

func TestZonesInBoundingBoxUsesGeometryNotBound(t *testing.T) {
	g := newGuard(t,
		model.Zone{Name: "Breakwater", Severity: enums.ZoneSeverityWarning, Active: true, Geometry: []byte(breakwater)},
		model.Zone{Name: "Atoll", Severity: enums.ZoneSeverityInfo, Active: true, Geometry: []byte(atoll)},
		model.Zone{Name: "Islands", Severity: enums.ZoneSeverityWarning, Active: true, Geometry: []byte(twoIslands)},
	)
	ctx := context.Background()

	tests := []struct {
		name string
		view model.BBox
		want []string
	}{
		{name: "inside the elbow of the L", view: model.BBox{South: 5, North: 8, West: 5, East: 8}, want: nil},
		{name: "on the vertical arm", view: model.BBox{South: 5, North: 6, West: 0.2, East: 0.8}, want: []string{"Breakwater"}},
		{name: "across the arm tip", view: model.BBox{South: 0.5, North: 3, West: 9, East: 12}, want: []string{"Breakwater"}},
		{name: "inside the atoll hole", view: model.BBox{South: 4, North: 6, West: 24, East: 26}, want: nil},
		{name: "over the atoll rim", view: model.BBox{South: 1, North: 3, West: 21, East: 23}, want: []string{"Atoll"}},
		{name: "between the islands", view: model.BBox{South: 14, North: 16, West: 14, East: 16}, want: nil},
		{name: "covering a whole island", view: model.BBox{South: 9, North: 12, West: 9, East: 12}, want: []string{"Islands"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.ZonesInBoundingBox(ctx, tt.view, Filter{})
			require.NoError(t, err)
			names := make([]string, 0, len(got))
			for _, z := range got {
				names = append(names, z.Name)
			}
			if tt.want == nil {
				assert.Empty(t, names)
				return
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestZonesInBoundingBoxCap(t *testing.T) {
	store := memory.New()
	for i := 0; i < 5; i++ {
		store.PutZone(model.Zone{Name: "z", Severity: enums.ZoneSeverityInfo, Active: true, Geometry: []byte(harbourSquare)})
	}
	g := NewGuard(store, nil, Config{MaxBBoxResults: 3})

	got, err := g.ZonesInBoundingBox(context.Background(), model.BBox{North: 60, South: 50, East: 10, West: 0}, Filter{})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestRefreshPicksUpNewZones(t *testing.T) {
	store := memory.New()
	g := NewGuard(store, nil, Config{})
	ctx := context.Background()
	p := model.Point{Lat: 52.5, Lng: 4.5}

	got, err := g.ContainingZones(ctx, p)
	require.NoError(t, err)
	require.Empty(t, got)

	store.PutZone(model.Zone{Name: "New", Severity: enums.ZoneSeverityWarning, Active: true, Geometry: []byte(harbourSquare)})
	got, _ = g.ContainingZones(ctx, p)
	require.Empty(t, got, "catalog is cached until refresh")

	require.NoError(t, g.Refresh(ctx))
	got, err = g.ContainingZones(ctx, p)
	require.NoError(t, err)
	require.Len(t, got, 1)
}
