// Package memory is an in-process storage backend with the same semantics as
// the postgres repositories. It backs tests and the "memory" storage driver.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/frogody/floatr-app-sub000/internal/domain/enums"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/repo"
)

type pair [2]int64

func orderedPair(a, b int64) pair {
	lo, hi := model.OrderedPair(a, b)
	return pair{lo, hi}
}

type rateWindow struct {
	count     int64
	expiresAt time.Time
}

// Store serialises every operation behind one mutex, which also provides the
// per-pair serialisation swipes rely on.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	nextID int64

	vessels     map[int64]model.Vessel
	blocks      map[pair]struct{}
	preferences map[int64]model.DiscoveryPreferences
	positions   map[int64][]model.Position
	zones       map[int64]model.Zone

	swipes      map[pair]model.Swipe
	matches     map[int64]model.Match
	matchByPair map[pair]int64

	rooms      map[int64]model.ChatRoom
	roomByPair map[pair]int64
	messages   map[int64][]model.Message

	events  []model.Event
	windows map[string]rateWindow
}

func New() *Store {
	return &Store{
		now:         time.Now,
		vessels:     make(map[int64]model.Vessel),
		blocks:      make(map[pair]struct{}),
		preferences: make(map[int64]model.DiscoveryPreferences),
		positions:   make(map[int64][]model.Position),
		zones:       make(map[int64]model.Zone),
		swipes:      make(map[pair]model.Swipe),
		matches:     make(map[int64]model.Match),
		matchByPair: make(map[pair]int64),
		rooms:       make(map[int64]model.ChatRoom),
		roomByPair:  make(map[pair]int64),
		messages:    make(map[int64][]model.Message),
		windows:     make(map[string]rateWindow),
	}
}

// SetClock overrides the clock used for rate windows.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// Ping satisfies the readiness check.
func (s *Store) Ping(context.Context) error {
	return nil
}

// --- vessels, preferences, blocks ---

func (s *Store) PutVessel(v model.Vessel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vessels[v.ID] = cloneVessel(v)
}

func (s *Store) PutPreferences(p model.DiscoveryPreferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Vibes = append([]string(nil), p.Vibes...)
	p.Types = append([]string(nil), p.Types...)
	s.preferences[p.UserID] = p
}

func (s *Store) GetVessel(_ context.Context, id int64) (model.Vessel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vessels[id]
	if !ok {
		return model.Vessel{}, repo.ErrNotFound
	}
	return cloneVessel(v), nil
}

func (s *Store) VesselsByIDs(_ context.Context, ids []int64) (map[int64]model.Vessel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int64]model.Vessel, len(ids))
	for _, id := range ids {
		if v, ok := s.vessels[id]; ok {
			out[id] = cloneVessel(v)
		}
	}
	return out, nil
}

func (s *Store) VesselsByCaptain(_ context.Context, userID int64) ([]model.Vessel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vesselsByCaptainLocked(userID), nil
}

func (s *Store) vesselsByCaptainLocked(userID int64) []model.Vessel {
	out := make([]model.Vessel, 0, 2)
	for _, v := range s.vessels {
		if v.CaptainUserID == userID {
			out = append(out, cloneVessel(v))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) GetPreferences(_ context.Context, userID int64) (model.DiscoveryPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.preferences[userID]
	if !ok {
		return model.DiscoveryPreferences{UserID: userID}, nil
	}
	p.Vibes = append([]string(nil), p.Vibes...)
	p.Types = append([]string(nil), p.Types...)
	return p, nil
}

func (s *Store) BlockedUserIDs(_ context.Context, userID int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[int64]struct{})
	for key := range s.blocks {
		switch userID {
		case key[0]:
			seen[key[1]] = struct{}{}
		case key[1]:
			seen[key[0]] = struct{}{}
		}
	}
	out := make([]int64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *Store) IsBlockedEither(_ context.Context, a, b int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ab := s.blocks[pair{a, b}]
	_, ba := s.blocks[pair{b, a}]
	return ab || ba, nil
}

// --- positions ---

func (s *Store) AppendPosition(_ context.Context, p model.Position, retain int) (model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.id()
	rows := append(s.positions[p.VesselID], p)
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].RecordedAt.Equal(rows[j].RecordedAt) {
			return rows[i].RecordedAt.After(rows[j].RecordedAt)
		}
		return rows[i].ID > rows[j].ID
	})
	if retain > 0 && len(rows) > retain {
		oldestKept := rows[retain-1].RecordedAt
		kept := rows[:0]
		for _, row := range rows {
			if !row.RecordedAt.Before(oldestKept) {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	s.positions[p.VesselID] = rows
	return p, nil
}

// PositionHistory returns a vessel's retained rows, newest first.
func (s *Store) PositionHistory(vesselID int64) []model.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Position(nil), s.positions[vesselID]...)
}

func (s *Store) LatestPositions(_ context.Context, bbox model.BBox, since time.Time) ([]model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Position, 0)
	for _, rows := range s.positions {
		if len(rows) == 0 {
			continue
		}
		latest := rows[0]
		if latest.RecordedAt.Before(since) || !latest.Visible {
			continue
		}
		if !bbox.Contains(latest.Point()) {
			continue
		}
		out = append(out, latest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VesselID < out[j].VesselID })
	return out, nil
}

// --- zones ---

func (s *Store) PutZone(z model.Zone) model.Zone {
	s.mu.Lock()
	defer s.mu.Unlock()
	if z.ID == 0 {
		z.ID = s.id()
	}
	z.Regulations = append([]string(nil), z.Regulations...)
	s.zones[z.ID] = z
	return z
}

func (s *Store) ListActiveZones(context.Context) ([]model.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Zone, 0, len(s.zones))
	for _, z := range s.zones {
		if z.Active {
			z.Regulations = append([]string(nil), z.Regulations...)
			out = append(out, z)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- events ---

func (s *Store) InsertEvents(_ context.Context, events []model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		e.ID = s.id()
		s.events = append(s.events, e)
	}
	return nil
}

func (s *Store) Events() []model.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Event(nil), s.events...)
}

// --- rate windows ---

func (s *Store) IncrementWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = rateWindow{expiresAt: now.Add(window)}
	}
	w.count++
	s.windows[key] = w
	return w.count, w.expiresAt.Sub(now), nil
}

func (s *Store) WindowState(_ context.Context, key string) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		return 0, 0, nil
	}
	return w.count, w.expiresAt.Sub(now), nil
}

func cloneVessel(v model.Vessel) model.Vessel {
	v.Amenities = append([]string(nil), v.Amenities...)
	v.Crew = append([]model.CrewMember(nil), v.Crew...)
	return v
}

func cloneMatch(m model.Match) model.Match {
	if m.MatchedAt != nil {
		t := *m.MatchedAt
		m.MatchedAt = &t
	}
	if m.ExpiresAt != nil {
		t := *m.ExpiresAt
		m.ExpiresAt = &t
	}
	return m
}

func cloneRoom(r model.ChatRoom) model.ChatRoom {
	r.Participants = append([]int64(nil), r.Participants...)
	if r.LastMessageAt != nil {
		t := *r.LastMessageAt
		r.LastMessageAt = &t
	}
	return r
}

func cloneMessage(m model.Message) model.Message {
	m.ReadBy = append([]int64(nil), m.ReadBy...)
	return m
}

func isLive(status enums.MatchStatus) bool {
	return status != enums.MatchStatusExpired
}
