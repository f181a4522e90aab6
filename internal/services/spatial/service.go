package spatial

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/repo"
)

const (
	defaultRetainPerVessel = 20
	defaultRecencyWindow   = 2 * time.Hour
)

var (
	ErrInvalidRadius   = errs.Validation("radius", "radius must be a positive number of kilometres")
	ErrInvalidPosition = errs.Validation("position", "accuracy and speed must be non-negative and heading within [0, 360)")
	ErrVesselNotFound  = errs.NotFound("vessel not found")
	ErrNotVesselOwner  = errs.Authorization("vessel belongs to another captain")
)

type PositionStore interface {
	AppendPosition(ctx context.Context, p model.Position, retain int) (model.Position, error)
	LatestPositions(ctx context.Context, bbox model.BBox, since time.Time) ([]model.Position, error)
}

type VesselReader interface {
	GetVessel(ctx context.Context, id int64) (model.Vessel, error)
}

type ZoneChecker interface {
	ContainingZones(ctx context.Context, p model.Point) ([]model.Zone, error)
}

type Config struct {
	RetainPerVessel int
	RecencyWindow   time.Duration
}

type Dependencies struct {
	Positions PositionStore
	Vessels   VesselReader
	Zones     ZoneChecker
	Logger    *zap.Logger
}

type Service struct {
	positions PositionStore
	vessels   VesselReader
	zones     ZoneChecker
	log       *zap.Logger
	cfg       Config
	now       func() time.Time
}

type PositionHit struct {
	Position   model.Position
	DistanceKM float64
}

type RecordInput struct {
	VesselID   int64
	Lat        float64
	Lng        float64
	AccuracyM  float64
	HeadingDeg float64
	SpeedKn    float64
	Visible    bool
	RecordedAt time.Time
}

type RecordResult struct {
	Position model.Position
	Zones    []model.Zone
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.RetainPerVessel <= 0 {
		cfg.RetainPerVessel = defaultRetainPerVessel
	}
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = defaultRecencyWindow
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		positions: deps.Positions,
		vessels:   deps.Vessels,
		zones:     deps.Zones,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *Service) RecencyWindow() time.Duration {
	return s.cfg.RecencyWindow
}

// Nearby returns one hit per vessel whose newest position since the cutoff is
// visible and within radiusKM, ordered by distance then vessel id.
func (s *Service) Nearby(ctx context.Context, point model.Point, radiusKM float64, since time.Time) ([]PositionHit, error) {
	if err := ValidatePoint(point); err != nil {
		return nil, err
	}
	if math.IsNaN(radiusKM) || math.IsInf(radiusKM, 0) || radiusKM <= 0 {
		return nil, ErrInvalidRadius
	}

	rows, err := s.positions.LatestPositions(ctx, BBoxAround(point, radiusKM), since)
	if err != nil {
		return nil, errs.Transient("load nearby positions", err)
	}

	hits := make([]PositionHit, 0, len(rows))
	for _, row := range rows {
		d := HaversineKM(point, row.Point())
		if d > radiusKM {
			continue
		}
		hits = append(hits, PositionHit{Position: row, DistanceKM: RoundKM(d)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceKM != hits[j].DistanceKM {
			return hits[i].DistanceKM < hits[j].DistanceKM
		}
		return hits[i].Position.VesselID < hits[j].Position.VesselID
	})
	return hits, nil
}

// Record appends a position for a vessel the caller captains and reports any
// no-go zones containing it.
func (s *Service) Record(ctx context.Context, userID int64, in RecordInput) (RecordResult, error) {
	point := model.Point{Lat: in.Lat, Lng: in.Lng}
	if err := ValidatePoint(point); err != nil {
		return RecordResult{}, err
	}
	if in.AccuracyM < 0 || in.SpeedKn < 0 || in.HeadingDeg < 0 || in.HeadingDeg >= 360 ||
		math.IsNaN(in.AccuracyM) || math.IsNaN(in.SpeedKn) || math.IsNaN(in.HeadingDeg) {
		return RecordResult{}, ErrInvalidPosition
	}

	vessel, err := s.vessels.GetVessel(ctx, in.VesselID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return RecordResult{}, ErrVesselNotFound
		}
		return RecordResult{}, errs.Transient("load vessel", err)
	}
	if vessel.CaptainUserID != userID {
		return RecordResult{}, ErrNotVesselOwner
	}

	recordedAt := in.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = s.now()
	}
	saved, err := s.positions.AppendPosition(ctx, model.Position{
		VesselID:   in.VesselID,
		Lat:        in.Lat,
		Lng:        in.Lng,
		AccuracyM:  in.AccuracyM,
		HeadingDeg: in.HeadingDeg,
		SpeedKn:    in.SpeedKn,
		RecordedAt: recordedAt.UTC(),
		Visible:    in.Visible,
	}, s.cfg.RetainPerVessel)
	if err != nil {
		return RecordResult{}, errs.Transient("append position", fmt.Errorf("vessel %d: %w", in.VesselID, err))
	}

	result := RecordResult{Position: saved, Zones: []model.Zone{}}
	if s.zones != nil {
		zones, err := s.zones.ContainingZones(ctx, point)
		if err != nil {
			s.log.Warn("zone check after position update failed", zap.Int64("vessel_id", in.VesselID), zap.Error(err))
		} else {
			result.Zones = zones
		}
	}
	return result, nil
}
