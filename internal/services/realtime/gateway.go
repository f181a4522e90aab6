package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/infra/metrics"
	"github.com/frogody/floatr-app-sub000/internal/services/chat"
)

const operationTimeout = 10 * time.Second

var (
	errNotJoined    = errs.Authorization("join the match before using it")
	errBadFrame     = errs.Validation("frame", "malformed frame")
	errUnknownFrame = errs.Validation("type", "unknown frame type")
	errMissingMatch = errs.Validation("match_id", "match_id is required")
	errInboundLimit = errs.RateLimited("too many frames")
	errGatewayDown  = errors.New("realtime gateway closed")
)

type ChatRooms interface {
	ResolveRoom(ctx context.Context, userID, matchID int64) (chat.Membership, error)
	GetOrCreateRoom(ctx context.Context, userID, matchID int64) (chat.Membership, error)
	PostMessage(ctx context.Context, userID, matchID int64, content, rawType string) (model.Message, error)
	MarkRead(ctx context.Context, userID, matchID, messageID int64) (int64, model.Message, error)
}

type Config struct {
	PingInterval     time.Duration
	HeartbeatTimeout time.Duration
	WriteTimeout     time.Duration
	SendBuffer       int
	MaxFrameBytes    int64
	InboundPerSec    float64
	InboundBurst     int
	AllowedOrigins   []string
}

// Gateway fans chat traffic out to live connections grouped by room. Both
// directional match rows share one room, so both captains land in the same
// group whichever match id they join with.
type Gateway struct {
	chat     ChatRooms
	log      *zap.Logger
	cfg      Config
	upgrader websocket.Upgrader
	metrics  *metrics.Metrics

	mu     sync.RWMutex
	groups map[int64]*group
	conns  map[string]*Conn
	closed bool
}

type group struct {
	roomID  int64
	vessels [2]int64
	// order serialises persist+fan-out so delivery order equals stored order.
	order   sync.Mutex
	members map[string]*Conn
}

func NewGateway(chatRooms ChatRooms, log *zap.Logger, cfg Config) *Gateway {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.HeartbeatTimeout <= cfg.PingInterval {
		cfg.HeartbeatTimeout = cfg.PingInterval * 2
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = 16 << 10
	}
	if cfg.InboundPerSec <= 0 {
		cfg.InboundPerSec = 10
	}
	if cfg.InboundBurst <= 0 {
		cfg.InboundBurst = 20
	}
	if log == nil {
		log = zap.NewNop()
	}

	g := &Gateway{
		chat:   chatRooms,
		log:    log,
		cfg:    cfg,
		groups: make(map[int64]*group),
		conns:  make(map[string]*Conn),
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

func (g *Gateway) AttachMetrics(m *metrics.Metrics) {
	g.metrics = m
}

// Serve upgrades the request and blocks until the connection ends. The caller
// has already authenticated userID.
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, userID int64) error {
	g.mu.RLock()
	closed := g.closed
	g.mu.RUnlock()
	if closed {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return errGatewayDown
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := newConn(g, ws, userID)
	if !g.register(c) {
		_ = ws.Close()
		return errGatewayDown
	}
	g.log.Info("realtime connection opened", zap.String("conn_id", c.id), zap.Int64("user_id", userID))

	go c.writePump()
	c.readPump(r.Context())
	c.close()
	g.log.Info("realtime connection closed", zap.String("conn_id", c.id), zap.Int64("user_id", userID))
	return nil
}

// Close drops every connection and refuses new ones.
func (g *Gateway) Close() {
	g.mu.Lock()
	g.closed = true
	conns := make([]*Conn, 0, len(g.conns))
	for _, c := range g.conns {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

// GroupMembers returns the connection ids currently in a room's group.
func (g *Gateway) GroupMembers(roomID int64) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	grp, ok := g.groups[roomID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(grp.members))
	for id := range grp.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	if len(g.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range g.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (g *Gateway) register(c *Conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.conns[c.id] = c
	if g.metrics != nil {
		g.metrics.RealtimeConnections.Inc()
	}
	return true
}

// unregister removes the connection and all of its group memberships.
func (g *Gateway) unregister(c *Conn) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.conns[c.id]; !ok {
		return
	}
	delete(g.conns, c.id)
	for _, roomID := range c.roomIDs() {
		g.leaveLocked(roomID, c.id)
	}
	if g.metrics != nil {
		g.metrics.RealtimeConnections.Dec()
		g.metrics.RealtimeGroups.Set(float64(len(g.groups)))
	}
}

// join is a no-op for a connection that has already been unregistered.
func (g *Gateway) join(room model.ChatRoom, c *Conn) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, live := g.conns[c.id]; !live {
		return false
	}
	grp, ok := g.groups[room.ID]
	if !ok {
		grp = &group{roomID: room.ID, members: make(map[string]*Conn)}
		if len(room.Participants) == 2 {
			lo, hi := model.OrderedPair(room.Participants[0], room.Participants[1])
			grp.vessels = [2]int64{lo, hi}
		}
		g.groups[room.ID] = grp
	}
	grp.members[c.id] = c
	if g.metrics != nil {
		g.metrics.RealtimeGroups.Set(float64(len(g.groups)))
	}
	return true
}

// CloseRoom evicts every connection from the group of the room shared by two
// vessels. Each member gets an error frame per affected match; sockets stay
// open.
func (g *Gateway) CloseRoom(vesselA, vesselB int64) {
	lo, hi := model.OrderedPair(vesselA, vesselB)
	key := [2]int64{lo, hi}

	g.mu.Lock()
	var (
		roomID  int64
		evicted []*Conn
	)
	for id, grp := range g.groups {
		if grp.vessels != key {
			continue
		}
		roomID = id
		for _, c := range grp.members {
			evicted = append(evicted, c)
		}
		grp.members = make(map[string]*Conn)
		delete(g.groups, id)
		break
	}
	if g.metrics != nil {
		g.metrics.RealtimeGroups.Set(float64(len(g.groups)))
	}
	g.mu.Unlock()

	for _, c := range evicted {
		for _, matchID := range c.forgetRoom(roomID) {
			c.sendError(matchID, chat.ErrRoomInactive)
		}
	}
	if len(evicted) > 0 {
		g.log.Info("realtime room closed", zap.Int64("room_id", roomID), zap.Int("evicted", len(evicted)))
	}
}

// PostMessage stores a message for a caller that is not on a socket and fans
// it out to the room's live members under the same ordering as websocket
// sends.
func (g *Gateway) PostMessage(ctx context.Context, userID, matchID int64, content, rawType string) (model.Message, error) {
	member, err := g.chat.ResolveRoom(ctx, userID, matchID)
	if err != nil {
		return model.Message{}, err
	}
	return g.postToRoom(ctx, member.Room.ID, "", userID, matchID, content, rawType)
}

// MarkRead persists a read receipt and relays it to the room's live members.
func (g *Gateway) MarkRead(ctx context.Context, userID, matchID, messageID int64) (int64, model.Message, error) {
	reader, msg, err := g.chat.MarkRead(ctx, userID, matchID, messageID)
	if err != nil {
		return 0, model.Message{}, err
	}
	if grp := g.group(msg.RoomID); grp != nil {
		g.broadcast(grp, "", Envelope{
			Type:           TypeRead,
			RoomID:         msg.RoomID,
			MessageID:      messageID,
			ReaderVesselID: reader,
		})
	}
	return reader, msg, nil
}

// postToRoom holds the group's ordering lock across persist and fan-out so
// delivery order equals stored order. Rooms nobody has joined are persisted
// only.
func (g *Gateway) postToRoom(ctx context.Context, roomID int64, skipID string, userID, matchID int64, content, rawType string) (model.Message, error) {
	grp := g.group(roomID)
	if grp != nil {
		grp.order.Lock()
		defer grp.order.Unlock()
	}
	msg, err := g.chat.PostMessage(ctx, userID, matchID, content, rawType)
	if err != nil {
		return model.Message{}, err
	}
	if grp != nil {
		g.broadcast(grp, skipID, Envelope{Type: TypeMessage, RoomID: roomID, Message: &msg})
	}
	return msg, nil
}

func (g *Gateway) leave(roomID int64, connID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.leaveLocked(roomID, connID)
	if g.metrics != nil {
		g.metrics.RealtimeGroups.Set(float64(len(g.groups)))
	}
}

func (g *Gateway) leaveLocked(roomID int64, connID string) {
	grp, ok := g.groups[roomID]
	if !ok {
		return
	}
	delete(grp.members, connID)
	if len(grp.members) == 0 {
		delete(g.groups, roomID)
	}
}

func (g *Gateway) group(roomID int64) *group {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.groups[roomID]
}

// broadcast delivers to every member except the one with skipID.
func (g *Gateway) broadcast(grp *group, skipID string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		g.log.Error("encode realtime frame", zap.String("type", env.Type), zap.Error(err))
		return
	}

	g.mu.RLock()
	targets := make([]*Conn, 0, len(grp.members))
	for id, c := range grp.members {
		if id != skipID {
			targets = append(targets, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(data)
	}
}

func (g *Gateway) dispatch(ctx context.Context, c *Conn, in Envelope) {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	switch in.Type {
	case TypeJoin:
		g.handleJoin(ctx, c, in)
	case TypeLeave:
		g.handleLeave(c, in)
	case TypeSend:
		g.handleSend(ctx, c, in)
	case TypeMarkRead:
		g.handleMarkRead(ctx, c, in)
	case TypeTyping:
		g.handleTyping(c, in)
	default:
		c.sendError(in.MatchID, errUnknownFrame)
	}
}

func (g *Gateway) handleJoin(ctx context.Context, c *Conn, in Envelope) {
	if in.MatchID <= 0 {
		c.sendError(0, errMissingMatch)
		return
	}
	member, err := g.chat.GetOrCreateRoom(ctx, c.userID, in.MatchID)
	if err != nil {
		c.sendError(in.MatchID, err)
		return
	}

	c.remember(in.MatchID, membership{roomID: member.Room.ID, vesselID: member.VesselID})
	if !g.join(member.Room, c) {
		return
	}
	c.sendEnvelope(Envelope{
		Type:     TypeJoined,
		MatchID:  in.MatchID,
		RoomID:   member.Room.ID,
		VesselID: member.VesselID,
	})
}

func (g *Gateway) handleLeave(c *Conn, in Envelope) {
	m, ok := c.forget(in.MatchID)
	if !ok {
		return
	}
	if !c.inRoom(m.roomID) {
		g.leave(m.roomID, c.id)
	}
}

func (g *Gateway) handleSend(ctx context.Context, c *Conn, in Envelope) {
	m, _, ok := g.joinedGroup(c, in.MatchID)
	if !ok {
		c.sendError(in.MatchID, errNotJoined)
		return
	}
	msg, err := g.postToRoom(ctx, m.roomID, c.id, c.userID, in.MatchID, in.Content, in.MessageType)
	if err != nil {
		c.sendError(in.MatchID, err)
		return
	}
	c.sendEnvelope(Envelope{Type: TypeSent, MatchID: in.MatchID, RoomID: m.roomID, Message: &msg})
}

func (g *Gateway) handleMarkRead(ctx context.Context, c *Conn, in Envelope) {
	m, grp, ok := g.joinedGroup(c, in.MatchID)
	if !ok {
		c.sendError(in.MatchID, errNotJoined)
		return
	}
	reader, _, err := g.chat.MarkRead(ctx, c.userID, in.MatchID, in.MessageID)
	if err != nil {
		c.sendError(in.MatchID, err)
		return
	}
	g.broadcast(grp, c.id, Envelope{
		Type:           TypeRead,
		RoomID:         m.roomID,
		MessageID:      in.MessageID,
		ReaderVesselID: reader,
	})
}

func (g *Gateway) handleTyping(c *Conn, in Envelope) {
	m, grp, ok := g.joinedGroup(c, in.MatchID)
	if !ok {
		c.sendError(in.MatchID, errNotJoined)
		return
	}
	typing := in.IsTyping != nil && *in.IsTyping
	g.broadcast(grp, c.id, Envelope{
		Type:     TypeTyping,
		RoomID:   m.roomID,
		UserID:   c.userID,
		VesselID: m.vesselID,
		IsTyping: &typing,
	})
}

func (g *Gateway) joinedGroup(c *Conn, matchID int64) (membership, *group, bool) {
	m, ok := c.membership(matchID)
	if !ok {
		return membership{}, nil, false
	}
	grp := g.group(m.roomID)
	if grp == nil {
		return membership{}, nil, false
	}
	return m, grp, true
}
