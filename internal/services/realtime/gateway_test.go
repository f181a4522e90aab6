package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/frogody/floatr-app-sub000/internal/domain/model"
	"github.com/frogody/floatr-app-sub000/internal/repo"
	"github.com/frogody/floatr-app-sub000/internal/repo/memory"
	"github.com/frogody/floatr-app-sub000/internal/services/chat"
)

type harness struct {
	store  *memory.Store
	gw     *Gateway
	server *httptest.Server
	ab, ba model.Match
}

// Captains 10 and 20 are matched through vessels 1 and 2; captain 30 is not.
func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	store := memory.New()
	for _, v := range []model.Vessel{
		{ID: 1, CaptainUserID: 10, Active: true, Captain: model.Captain{UserID: 10, Active: true}},
		{ID: 2, CaptainUserID: 20, Active: true, Captain: model.Captain{UserID: 20, Active: true}},
		{ID: 3, CaptainUserID: 30, Active: true, Captain: model.Captain{UserID: 30, Active: true}},
	} {
		store.PutVessel(v)
	}
	h := &harness{store: store}
	err := store.RunPairTx(context.Background(), 1, 2, func(ctx context.Context, tx repo.PairTx) error {
		var err error
		h.ab, h.ba, err = tx.UpsertMatched(ctx, 1, 2, time.Now().UTC())
		return err
	})
	if err != nil {
		t.Fatalf("seed match: %v", err)
	}

	chatSvc := chat.NewService(chat.Dependencies{Matches: store, Vessels: store, Blocks: store, Rooms: store}, chat.Config{})
	h.gw = NewGateway(chatSvc, nil, cfg)
	h.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.URL.Query().Get("uid"), 10, 64)
		_ = h.gw.Serve(w, r, userID)
	}))
	t.Cleanup(func() {
		h.gw.Close()
		h.server.Close()
	})
	return h
}

func (h *harness) dial(t *testing.T, userID int64) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http") + "/?uid=" + strconv.FormatInt(userID, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, env Envelope) {
	t.Helper()
	if err := conn.WriteJSON(env); err != nil {
		t.Fatalf("write %s: %v", env.Type, err)
	}
}

// expect reads frames until one of the wanted type arrives.
func expect(t *testing.T, conn *websocket.Conn, frameType string) Envelope {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", frameType, err)
		}
		if env.Type == frameType {
			return env
		}
	}
}

// expectNone fails if a frame of the given type arrives within d.
func expectNone(t *testing.T, conn *websocket.Conn, frameType string, d time.Duration) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(d))
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		if env.Type == frameType {
			t.Fatalf("unexpected %s frame %+v", frameType, env)
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestGatewayRelaysRoomTraffic(t *testing.T) {
	h := newHarness(t, Config{})
	alice := h.dial(t, 10)
	bob := h.dial(t, 20)

	write(t, alice, Envelope{Type: TypeJoin, MatchID: h.ab.ID})
	joinedA := expect(t, alice, TypeJoined)
	write(t, bob, Envelope{Type: TypeJoin, MatchID: h.ba.ID})
	joinedB := expect(t, bob, TypeJoined)

	if joinedA.RoomID == 0 || joinedA.RoomID != joinedB.RoomID {
		t.Fatalf("both sides must share a room, got %d and %d", joinedA.RoomID, joinedB.RoomID)
	}
	if joinedA.VesselID != 1 || joinedB.VesselID != 2 {
		t.Fatalf("unexpected vessels %d %d", joinedA.VesselID, joinedB.VesselID)
	}

	for _, text := range []string{"ahoy", "anchor at the cove?", "bring ice"} {
		write(t, alice, Envelope{Type: TypeSend, MatchID: h.ab.ID, Content: text})
	}
	var lastID int64
	for _, text := range []string{"ahoy", "anchor at the cove?", "bring ice"} {
		sent := expect(t, alice, TypeSent)
		got := expect(t, bob, TypeMessage)
		if got.Message == nil || got.Message.Content != text {
			t.Fatalf("expected %q, got %+v", text, got.Message)
		}
		if sent.Message == nil || sent.Message.ID != got.Message.ID {
			t.Fatalf("sender ack and broadcast disagree: %+v vs %+v", sent.Message, got.Message)
		}
		if got.Message.ID <= lastID {
			t.Fatalf("broadcast order must follow stored order")
		}
		lastID = got.Message.ID
	}

	write(t, bob, Envelope{Type: TypeMarkRead, MatchID: h.ba.ID, MessageID: lastID})
	read := expect(t, alice, TypeRead)
	if read.MessageID != lastID || read.ReaderVesselID != 2 {
		t.Fatalf("unexpected read receipt %+v", read)
	}

	typing := true
	write(t, alice, Envelope{Type: TypeTyping, MatchID: h.ab.ID, IsTyping: &typing})
	got := expect(t, bob, TypeTyping)
	if got.UserID != 10 || got.IsTyping == nil || !*got.IsTyping {
		t.Fatalf("unexpected typing frame %+v", got)
	}
}

func TestGatewayRefusesNonParticipant(t *testing.T) {
	h := newHarness(t, Config{})
	alice := h.dial(t, 10)
	mallory := h.dial(t, 30)

	write(t, alice, Envelope{Type: TypeJoin, MatchID: h.ab.ID})
	joined := expect(t, alice, TypeJoined)

	write(t, mallory, Envelope{Type: TypeJoin, MatchID: h.ab.ID})
	refused := expect(t, mallory, TypeError)
	if refused.Code != "authorization" {
		t.Fatalf("expected authorization error, got %+v", refused)
	}
	if members := h.gw.GroupMembers(joined.RoomID); len(members) != 1 {
		t.Fatalf("non participant must not be admitted, members=%v", members)
	}

	write(t, mallory, Envelope{Type: TypeSend, MatchID: h.ab.ID, Content: "hi"})
	if e := expect(t, mallory, TypeError); e.Code != "authorization" {
		t.Fatalf("send without join should fail, got %+v", e)
	}

	// The connection stays usable after errors.
	write(t, mallory, Envelope{Type: "bogus"})
	if e := expect(t, mallory, TypeError); e.Code != "validation" {
		t.Fatalf("expected validation error for unknown frame, got %+v", e)
	}
}

func TestGatewayReportsValidationErrors(t *testing.T) {
	h := newHarness(t, Config{})
	alice := h.dial(t, 10)

	write(t, alice, Envelope{Type: TypeJoin, MatchID: h.ab.ID})
	expect(t, alice, TypeJoined)

	write(t, alice, Envelope{Type: TypeSend, MatchID: h.ab.ID, Content: "   "})
	e := expect(t, alice, TypeError)
	if e.Code != "validation" || e.Field != "content" {
		t.Fatalf("unexpected error frame %+v", e)
	}
}

func TestGatewayDisconnectLeavesGroups(t *testing.T) {
	h := newHarness(t, Config{})
	alice := h.dial(t, 10)
	bob := h.dial(t, 20)

	write(t, alice, Envelope{Type: TypeJoin, MatchID: h.ab.ID})
	joined := expect(t, alice, TypeJoined)
	write(t, bob, Envelope{Type: TypeJoin, MatchID: h.ba.ID})
	expect(t, bob, TypeJoined)

	if members := h.gw.GroupMembers(joined.RoomID); len(members) != 2 {
		t.Fatalf("expected two members, got %v", members)
	}
	_ = alice.Close()
	waitFor(t, "alice to leave the group", func() bool {
		return len(h.gw.GroupMembers(joined.RoomID)) == 1
	})
}

func TestGatewayDropsIdleConnections(t *testing.T) {
	h := newHarness(t, Config{PingInterval: 20 * time.Millisecond, HeartbeatTimeout: 80 * time.Millisecond})
	alice := h.dial(t, 10)

	write(t, alice, Envelope{Type: TypeJoin, MatchID: h.ab.ID})
	joined := expect(t, alice, TypeJoined)

	// Not reading means pings go unanswered.
	waitFor(t, "idle connection to be dropped", func() bool {
		return len(h.gw.GroupMembers(joined.RoomID)) == 0
	})
}

func TestGatewayThrottlesInboundFrames(t *testing.T) {
	h := newHarness(t, Config{InboundPerSec: 1, InboundBurst: 1})
	alice := h.dial(t, 10)

	write(t, alice, Envelope{Type: TypeJoin, MatchID: h.ab.ID})
	write(t, alice, Envelope{Type: TypeJoin, MatchID: h.ab.ID})
	e := expect(t, alice, TypeError)
	if e.Code != "rate_limited" {
		t.Fatalf("expected rate limited frame, got %+v", e)
	}
}

func TestGatewayRelaysWritesMadeOutsideSockets(t *testing.T) {
	h := newHarness(t, Config{})
	bob := h.dial(t, 20)
	ctx := context.Background()

	write(t, bob, Envelope{Type: TypeJoin, MatchID: h.ba.ID})
	joined := expect(t, bob, TypeJoined)

	msg, err := h.gw.PostMessage(ctx, 10, h.ab.ID, "hello", "")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	got := expect(t, bob, TypeMessage)
	if got.Message == nil || got.Message.ID != msg.ID || got.RoomID != joined.RoomID {
		t.Fatalf("expected relayed message %d, got %+v", msg.ID, got)
	}

	alice := h.dial(t, 10)
	write(t, alice, Envelope{Type: TypeJoin, MatchID: h.ab.ID})
	expect(t, alice, TypeJoined)

	reader, _, err := h.gw.MarkRead(ctx, 20, h.ba.ID, msg.ID)
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	read := expect(t, alice, TypeRead)
	if read.MessageID != msg.ID || read.ReaderVesselID != reader {
		t.Fatalf("unexpected read receipt %+v", read)
	}
}

func TestGatewayPostToUnjoinedRoomStillPersists(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	msg, err := h.gw.PostMessage(ctx, 10, h.ab.ID, "anyone?", "")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if msg.ID == 0 || msg.SenderVesselID != 1 {
		t.Fatalf("unexpected stored message %+v", msg)
	}
}

func TestGatewayCloseRoomStopsRelaying(t *testing.T) {
	h := newHarness(t, Config{})
	alice := h.dial(t, 10)
	bob := h.dial(t, 20)
	ctx := context.Background()

	write(t, alice, Envelope{Type: TypeJoin, MatchID: h.ab.ID})
	joined := expect(t, alice, TypeJoined)
	write(t, bob, Envelope{Type: TypeJoin, MatchID: h.ba.ID})
	expect(t, bob, TypeJoined)

	if err := h.store.BlockAndExpire(ctx, 10, 20, time.Now().UTC()); err != nil {
		t.Fatalf("block: %v", err)
	}
	h.gw.CloseRoom(2, 1)

	for _, conn := range []*websocket.Conn{alice, bob} {
		if e := expect(t, conn, TypeError); e.Code != "conflict" {
			t.Fatalf("expected room closed frame, got %+v", e)
		}
	}
	if members := h.gw.GroupMembers(joined.RoomID); len(members) != 0 {
		t.Fatalf("closed room must have no members, got %v", members)
	}

	typing := true
	write(t, bob, Envelope{Type: TypeTyping, MatchID: h.ba.ID, IsTyping: &typing})
	if e := expect(t, bob, TypeError); e.Code != "authorization" {
		t.Fatalf("typing after close should be refused, got %+v", e)
	}
	expectNone(t, alice, TypeTyping, 200*time.Millisecond)

	write(t, bob, Envelope{Type: TypeJoin, MatchID: h.ba.ID})
	if e := expect(t, bob, TypeError); e.Code != "conflict" {
		t.Fatalf("rejoining a closed room should be refused, got %+v", e)
	}
}
