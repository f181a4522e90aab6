package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
)

type membership struct {
	roomID   int64
	vesselID int64
}

// Conn is one websocket client. Only writePump writes to the socket.
type Conn struct {
	id      string
	userID  int64
	gw      *Gateway
	ws      *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter

	mu    sync.Mutex
	rooms map[int64]membership // by match id

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(g *Gateway, ws *websocket.Conn, userID int64) *Conn {
	return &Conn{
		id:      uuid.NewString(),
		userID:  userID,
		gw:      g,
		ws:      ws,
		send:    make(chan []byte, g.cfg.SendBuffer),
		limiter: rate.NewLimiter(rate.Limit(g.cfg.InboundPerSec), g.cfg.InboundBurst),
		rooms:   make(map[int64]membership),
		done:    make(chan struct{}),
	}
}

func (c *Conn) readPump(ctx context.Context) {
	cfg := c.gw.cfg
	c.ws.SetReadLimit(cfg.MaxFrameBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(cfg.HeartbeatTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(cfg.HeartbeatTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gw.log.Debug("realtime read ended", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(cfg.HeartbeatTimeout))

		if !c.limiter.Allow() {
			c.sendError(0, errInboundLimit)
			continue
		}
		var in Envelope
		if err := json.Unmarshal(data, &in); err != nil {
			c.sendError(0, errBadFrame)
			continue
		}
		c.gw.dispatch(ctx, c, in)
	}
}

func (c *Conn) writePump() {
	cfg := c.gw.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// enqueue never blocks; a client that cannot keep up is disconnected.
func (c *Conn) enqueue(data []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- data:
	default:
		c.gw.log.Warn("dropping slow realtime consumer", zap.String("conn_id", c.id), zap.Int64("user_id", c.userID))
		c.close()
	}
}

func (c *Conn) sendEnvelope(env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		c.gw.log.Error("encode realtime frame", zap.String("type", env.Type), zap.Error(err))
		return
	}
	c.enqueue(data)
}

func (c *Conn) sendError(matchID int64, err error) {
	code := errs.KindOf(err)
	reason := errs.MessageOf(err)
	if code == errs.KindUnknown || code == errs.KindTransient {
		c.gw.log.Error("realtime operation failed", zap.String("conn_id", c.id), zap.Error(err))
		if code == errs.KindUnknown {
			code = "internal"
		}
		reason = "temporarily unavailable"
	}
	c.sendEnvelope(Envelope{
		Type:    TypeError,
		MatchID: matchID,
		Code:    string(code),
		Reason:  reason,
		Field:   errs.FieldOf(err),
	})
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.gw.unregister(c)
		_ = c.ws.Close()
	})
}

func (c *Conn) remember(matchID int64, m membership) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[matchID] = m
}

func (c *Conn) forget(matchID int64) (membership, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.rooms[matchID]
	delete(c.rooms, matchID)
	return m, ok
}

// forgetRoom drops every membership pointing at roomID and returns the match
// ids they were joined under.
func (c *Conn) forgetRoom(roomID int64) []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var matchIDs []int64
	for matchID, m := range c.rooms {
		if m.roomID == roomID {
			matchIDs = append(matchIDs, matchID)
			delete(c.rooms, matchID)
		}
	}
	return matchIDs
}

func (c *Conn) membership(matchID int64) (membership, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.rooms[matchID]
	return m, ok
}

func (c *Conn) inRoom(roomID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.rooms {
		if m.roomID == roomID {
			return true
		}
	}
	return false
}

func (c *Conn) roomIDs() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := make(map[int64]struct{}, len(c.rooms))
	out := make([]int64, 0, len(c.rooms))
	for _, m := range c.rooms {
		if _, ok := seen[m.roomID]; ok {
			continue
		}
		seen[m.roomID] = struct{}{}
		out = append(out, m.roomID)
	}
	return out
}
