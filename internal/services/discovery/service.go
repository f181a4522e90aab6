package discovery

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/services/analytics"
	"github.com/frogody/floatr-app-sub000/internal/services/spatial"
)

const (
	defaultRadiusKM     = 25
	defaultMaxRadiusKM  = 100
	defaultMaxResults   = 100
	defaultPreviewItems = 3
)

var (
	ErrMissingCoordinates = errs.Validation("coordinates", "lat and lng are required")
	ErrInvalidRadius      = errs.Validation("radius", "radius must be a positive number of kilometres")
)

type VesselStore interface {
	VesselsByCaptain(ctx context.Context, userID int64) ([]model.Vessel, error)
	VesselsByIDs(ctx context.Context, ids []int64) (map[int64]model.Vessel, error)
}

type BlockStore interface {
	BlockedUserIDs(ctx context.Context, userID int64) ([]int64, error)
}

type PreferencesStore interface {
	GetPreferences(ctx context.Context, userID int64) (model.DiscoveryPreferences, error)
}

type Proximity interface {
	Nearby(ctx context.Context, point model.Point, radiusKM float64, since time.Time) ([]spatial.PositionHit, error)
}

type AvatarSigner interface {
	AvatarURL(ctx context.Context, key string) (string, error)
}

type Auditor interface {
	Record(ctx context.Context, userID int64, name string, props map[string]any) error
}

type ResultObserver interface {
	Observe(float64)
}

type Config struct {
	DefaultRadiusKM float64
	MaxRadiusKM     float64
	RecencyWindow   time.Duration
	MaxResults      int
	PreviewItems    int
}

type Dependencies struct {
	Vessels     VesselStore
	Blocks      BlockStore
	Preferences PreferencesStore
	Proximity   Proximity
	Logger      *zap.Logger
}

type Service struct {
	vessels     VesselStore
	blocks      BlockStore
	preferences PreferencesStore
	proximity   Proximity
	signer      AvatarSigner
	audit       Auditor
	results     ResultObserver
	log         *zap.Logger
	cfg         Config
	now         func() time.Time
}

type Query struct {
	Lat      *float64
	Lng      *float64
	RadiusKM float64
	Vibes    []string
	Types    []string
}

type Filters struct {
	Vibes []string `json:"vibes"`
	Types []string `json:"types"`
}

type CaptainSummary struct {
	UserID      int64
	DisplayName string
	AvatarURL   string
}

type CrewPreview struct {
	Name      string
	AvatarURL string
}

type Candidate struct {
	VesselID     int64
	Name         string
	Type         string
	Capacity     int
	Vibe         string
	DistanceKM   float64
	LastSeenAt   time.Time
	HeadingDeg   float64
	SpeedKn      float64
	Captain      CaptainSummary
	Crew         []CrewPreview
	CrewCount    int
	Amenities    []string
	AmenityCount int
}

type Result struct {
	Candidates []Candidate
	Applied    Filters
	RadiusKM   float64
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.DefaultRadiusKM <= 0 {
		cfg.DefaultRadiusKM = defaultRadiusKM
	}
	if cfg.MaxRadiusKM <= 0 {
		cfg.MaxRadiusKM = defaultMaxRadiusKM
	}
	if cfg.RecencyWindow <= 0 {
		cfg.RecencyWindow = 2 * time.Hour
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.PreviewItems <= 0 {
		cfg.PreviewItems = defaultPreviewItems
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	return &Service{
		vessels:     deps.Vessels,
		blocks:      deps.Blocks,
		preferences: deps.Preferences,
		proximity:   deps.Proximity,
		log:         log,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (s *Service) AttachAvatarSigner(signer AvatarSigner) {
	s.signer = signer
}

func (s *Service) AttachAuditor(audit Auditor) {
	s.audit = audit
}

func (s *Service) AttachResultObserver(observer ResultObserver) {
	s.results = observer
}

// FindNearby lists discoverable vessels around a point for the requesting
// captain, excluding their own vessels and anyone blocked in either direction.
func (s *Service) FindNearby(ctx context.Context, userID int64, q Query) (Result, error) {
	if q.Lat == nil || q.Lng == nil {
		return Result{}, ErrMissingCoordinates
	}
	point := model.Point{Lat: *q.Lat, Lng: *q.Lng}
	if err := spatial.ValidatePoint(point); err != nil {
		return Result{}, err
	}
	radius, err := s.resolveRadius(q.RadiusKM)
	if err != nil {
		return Result{}, err
	}

	var (
		owned   []model.Vessel
		blocked []int64
		prefs   model.DiscoveryPreferences
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		owned, err = s.vessels.VesselsByCaptain(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		blocked, err = s.blocks.BlockedUserIDs(gctx, userID)
		return err
	})
	g.Go(func() error {
		if s.preferences == nil {
			return nil
		}
		var err error
		prefs, err = s.preferences.GetPreferences(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, errs.Transient("resolve requester context", err)
	}

	applied := Filters{
		Vibes: pickFilter(q.Vibes, prefs.Vibes),
		Types: pickFilter(q.Types, prefs.Types),
	}

	hits, err := s.proximity.Nearby(ctx, point, radius, s.now().Add(-s.cfg.RecencyWindow))
	if err != nil {
		return Result{}, err
	}

	ownedIDs := make(map[int64]struct{}, len(owned))
	for _, v := range owned {
		ownedIDs[v.ID] = struct{}{}
	}
	blockedIDs := make(map[int64]struct{}, len(blocked))
	for _, id := range blocked {
		blockedIDs[id] = struct{}{}
	}

	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		if _, mine := ownedIDs[h.Position.VesselID]; mine {
			continue
		}
		ids = append(ids, h.Position.VesselID)
	}
	vessels, err := s.vessels.VesselsByIDs(ctx, ids)
	if err != nil {
		return Result{}, errs.Transient("load candidate vessels", err)
	}

	candidates := make([]Candidate, 0, min(len(ids), s.cfg.MaxResults))
	for _, h := range hits {
		if len(candidates) >= s.cfg.MaxResults {
			break
		}
		v, ok := vessels[h.Position.VesselID]
		if !ok {
			continue
		}
		if _, mine := ownedIDs[v.ID]; mine || v.CaptainUserID == userID {
			continue
		}
		if _, isBlocked := blockedIDs[v.CaptainUserID]; isBlocked {
			continue
		}
		if !v.Discoverable() {
			continue
		}
		if !matchesFilter(applied.Vibes, v.Vibe) || !matchesFilter(applied.Types, v.Type) {
			continue
		}
		candidates = append(candidates, s.buildCandidate(ctx, v, h))
	}

	if s.results != nil {
		s.results.Observe(float64(len(candidates)))
	}
	s.recordSearch(ctx, userID, point, radius, applied, len(candidates))

	return Result{Candidates: candidates, Applied: applied, RadiusKM: radius}, nil
}

func (s *Service) resolveRadius(radius float64) (float64, error) {
	if math.IsNaN(radius) || math.IsInf(radius, 0) || radius < 0 {
		return 0, ErrInvalidRadius
	}
	if radius == 0 {
		return s.cfg.DefaultRadiusKM, nil
	}
	if radius > s.cfg.MaxRadiusKM {
		return s.cfg.MaxRadiusKM, nil
	}
	return radius, nil
}

func (s *Service) buildCandidate(ctx context.Context, v model.Vessel, h spatial.PositionHit) Candidate {
	c := Candidate{
		VesselID:   v.ID,
		Name:       v.Name,
		Type:       v.Type,
		Capacity:   v.Capacity,
		Vibe:       v.Vibe,
		DistanceKM: h.DistanceKM,
		LastSeenAt: h.Position.RecordedAt,
		HeadingDeg: h.Position.HeadingDeg,
		SpeedKn:    h.Position.SpeedKn,
		Captain: CaptainSummary{
			UserID:      v.Captain.UserID,
			DisplayName: v.Captain.DisplayName,
			AvatarURL:   s.signAvatar(ctx, v.Captain.AvatarKey),
		},
		CrewCount:    len(v.Crew),
		AmenityCount: len(v.Amenities),
	}

	crew := v.Crew
	if len(crew) > s.cfg.PreviewItems {
		crew = crew[:s.cfg.PreviewItems]
	}
	c.Crew = make([]CrewPreview, 0, len(crew))
	for _, m := range crew {
		c.Crew = append(c.Crew, CrewPreview{Name: m.Name, AvatarURL: s.signAvatar(ctx, m.AvatarKey)})
	}

	amenities := v.Amenities
	if len(amenities) > s.cfg.PreviewItems {
		amenities = amenities[:s.cfg.PreviewItems]
	}
	c.Amenities = append([]string{}, amenities...)
	return c
}

func (s *Service) signAvatar(ctx context.Context, key string) string {
	if s.signer == nil || strings.TrimSpace(key) == "" {
		return ""
	}
	url, err := s.signer.AvatarURL(ctx, key)
	if err != nil {
		s.log.Warn("sign avatar url failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return url
}

func (s *Service) recordSearch(ctx context.Context, userID int64, p model.Point, radius float64, applied Filters, count int) {
	if s.audit == nil {
		return
	}
	props := map[string]any{
		"lat":          spatial.RoundCoord(p.Lat),
		"lng":          spatial.RoundCoord(p.Lng),
		"radius_km":    radius,
		"result_count": count,
		"vibes":        applied.Vibes,
		"types":        applied.Types,
	}
	if err := s.audit.Record(ctx, userID, analytics.EventDiscoverySearch, props); err != nil {
		s.log.Debug("discovery audit skipped", zap.Error(err))
	}
}

func pickFilter(explicit, stored []string) []string {
	if out := normalize(explicit); len(out) > 0 {
		return out
	}
	return normalize(stored)
}

func normalize(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func matchesFilter(allowed []string, value string) bool {
	if len(allowed) == 0 {
		return true
	}
	value = strings.ToLower(strings.TrimSpace(value))
	for _, a := range allowed {
		if a == value {
			return true
		}
	}
	return false
}
