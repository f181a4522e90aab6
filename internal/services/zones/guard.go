package zones

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"go.uber.org/zap"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/services/spatial"
)

const defaultMaxBBoxResults = 1000

var ErrInvalidSeverity = errs.Validation("severity", "severity must be one of info, warning, danger")

type Store interface {
	ListActiveZones(ctx context.Context) ([]model.Zone, error)
}

type Config struct {
	MaxBBoxResults int
}

type Filter struct {
	ZoneType string
	Severity enums.ZoneSeverity
}

type indexedZone struct {
	zone  model.Zone
	geom  orb.Geometry
	bound orb.Bound
}

// Guard keeps the active zone catalog in memory and answers containment and
// viewport queries against it.
type Guard struct {
	store Store
	log   *zap.Logger
	cfg   Config
	now   func() time.Time

	mu       sync.RWMutex
	zones    []indexedZone
	loaded   bool
	loadedAt time.Time
}

func NewGuard(store Store, log *zap.Logger, cfg Config) *Guard {
	if cfg.MaxBBoxResults <= 0 {
		cfg.MaxBBoxResults = defaultMaxBBoxResults
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{store: store, log: log, cfg: cfg, now: time.Now}
}

// Refresh reloads the catalog. Zones with unusable geometry are skipped and
// logged so one bad row does not hide the rest.
func (g *Guard) Refresh(ctx context.Context) error {
	rows, err := g.store.ListActiveZones(ctx)
	if err != nil {
		return errs.Transient("load zones", err)
	}

	indexed := make([]indexedZone, 0, len(rows))
	for _, z := range rows {
		geom, err := parseGeometry(z.Geometry)
		if err != nil {
			g.log.Warn("skip zone with invalid geometry", zap.Int64("zone_id", z.ID), zap.Error(err))
			continue
		}
		indexed = append(indexed, indexedZone{zone: z, geom: geom, bound: geom.Bound()})
	}

	g.mu.Lock()
	g.zones = indexed
	g.loaded = true
	g.loadedAt = g.now()
	g.mu.Unlock()
	return nil
}

func (g *Guard) LoadedAt() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loadedAt
}

func (g *Guard) snapshot(ctx context.Context) ([]indexedZone, error) {
	g.mu.RLock()
	loaded, zones := g.loaded, g.zones
	g.mu.RUnlock()
	if loaded {
		return zones, nil
	}
	if err := g.Refresh(ctx); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.zones, nil
}

// ContainingZones returns active zones whose polygon contains p, most severe
// first. Points on a boundary count as inside.
func (g *Guard) ContainingZones(ctx context.Context, p model.Point) ([]model.Zone, error) {
	if err := spatial.ValidatePoint(p); err != nil {
		return nil, err
	}
	zones, err := g.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	pt := orb.Point{p.Lng, p.Lat}
	out := make([]model.Zone, 0)
	for _, iz := range zones {
		if !iz.bound.Contains(pt) {
			continue
		}
		if contains(iz.geom, pt) {
			out = append(out, iz.zone)
		}
	}
	sortBySeverity(out)
	return out, nil
}

// ZonesInBoundingBox returns zones whose geometry overlaps the viewport.
func (g *Guard) ZonesInBoundingBox(ctx context.Context, bbox model.BBox, filter Filter) ([]model.Zone, error) {
	if err := spatial.ValidateBBox(bbox); err != nil {
		return nil, err
	}
	if filter.Severity != "" && filter.Severity.Rank() == 0 {
		return nil, ErrInvalidSeverity
	}
	zones, err := g.snapshot(ctx)
	if err != nil {
		return nil, err
	}

	view := orb.Bound{Min: orb.Point{bbox.West, bbox.South}, Max: orb.Point{bbox.East, bbox.North}}
	out := make([]model.Zone, 0)
	for _, iz := range zones {
		if filter.ZoneType != "" && iz.zone.ZoneType != filter.ZoneType {
			continue
		}
		if filter.Severity != "" && iz.zone.Severity != filter.Severity {
			continue
		}
		if !overlaps(iz, view) {
			continue
		}
		out = append(out, iz.zone)
	}
	sortBySeverity(out)
	if len(out) > g.cfg.MaxBBoxResults {
		out = out[:g.cfg.MaxBBoxResults]
	}
	return out, nil
}

func parseGeometry(raw []byte) (orb.Geometry, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty geometry")
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("decode geojson: %w", err)
	}
	switch geom := g.Geometry().(type) {
	case orb.Polygon:
		if len(geom) == 0 || len(geom[0]) < 4 {
			return nil, fmt.Errorf("polygon needs a closed outer ring")
		}
		return geom, nil
	case orb.MultiPolygon:
		if len(geom) == 0 {
			return nil, fmt.Errorf("empty multipolygon")
		}
		return geom, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %s", g.Type)
	}
}

func contains(geom orb.Geometry, pt orb.Point) bool {
	switch g := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	default:
		return false
	}
}

// overlaps reports whether the zone covers part of the viewport. Concave
// shapes and shapes with holes can have a bound that meets the viewport while
// the polygon itself does not, so the geometry is clipped to the viewport and
// kept only when some area remains.
func overlaps(iz indexedZone, view orb.Bound) bool {
	if !iz.bound.Intersects(view) {
		return false
	}
	if view.Contains(iz.bound.Min) && view.Contains(iz.bound.Max) {
		return true
	}

	// clip uses its input as scratch space.
	switch g := iz.geom.(type) {
	case orb.Polygon:
		clipped := clip.Polygon(view, g.Clone())
		return clipped != nil && planar.Area(clipped) > 0
	case orb.MultiPolygon:
		clipped := clip.MultiPolygon(view, g.Clone())
		return len(clipped) > 0 && planar.Area(clipped) > 0
	default:
		return false
	}
}

func sortBySeverity(zones []model.Zone) {
	sort.SliceStable(zones, func(i, j int) bool {
		ri, rj := zones[i].Severity.Rank(), zones[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		if zones[i].Name != zones[j].Name {
			return zones[i].Name < zones[j].Name
		}
		return zones[i].ID < zones[j].ID
	})
}
