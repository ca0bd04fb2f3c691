package netplay

import (
	"context"
	"errors"
	"testing"

	"github.com/park285/Cheese-Damas/internal/checkers"
	"github.com/park285/Cheese-Damas/internal/protocol"
	"github.com/park285/Cheese-Damas/internal/relay"
)

// loopback connects sessions to an in-process hub. Frames are queued and
// delivered by pump so tests stay single-threaded.
type loopback struct {
	hub   *relay.Hub
	queue []delivery
}

type delivery struct {
	to    *seat
	frame []byte
}

type seat struct {
	id      string
	lb      *loopback
	session *Session
	events  []Event
}

func (s *seat) ID() string { return s.id }

func (s *seat) Send(_ context.Context, frame []byte) error {
	s.lb.queue = append(s.lb.queue, delivery{to: s, frame: frame})
	return nil
}

// seatSender is the session-side view: outbound messages go to the hub.
type seatSender struct{ s *seat }

func (ss seatSender) Send(ctx context.Context, msg protocol.Message) error {
	b, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	// rejections come back as error frames, like over a real socket
	_ = ss.s.lb.hub.Handle(ctx, ss.s, b)
	return nil
}

func (lb *loopback) join(t *testing.T, id, name string) *seat {
	t.Helper()
	s := &seat{id: id, lb: lb}
	s.session = NewSession(seatSender{s}, SessionConfig{PlayerName: name, Strict: true}, func(ev Event) {
		s.events = append(s.events, ev)
	})
	return s
}

func (lb *loopback) pump(t *testing.T) {
	t.Helper()
	for i := 0; len(lb.queue) > 0; i++ {
		if i > 1000 {
			t.Fatalf("loopback did not settle")
		}
		d := lb.queue[0]
		lb.queue = lb.queue[1:]
		msg, err := protocol.Decode(d.frame)
		if err != nil {
			t.Fatalf("bad frame to %s: %v", d.to.id, err)
		}
		d.to.session.Handle(context.Background(), msg)
	}
}

func (s *seat) lastEvent(t *testing.T) Event {
	t.Helper()
	if len(s.events) == 0 {
		t.Fatalf("%s has no events", s.id)
	}
	return s.events[len(s.events)-1]
}

func startedPair(t *testing.T) (*loopback, *seat, *seat) {
	t.Helper()
	ctx := context.Background()
	lb := &loopback{hub: relay.NewHub(nil)}
	host, guest := lb.join(t, "host", "Ana"), lb.join(t, "guest", "Bia")

	code, err := host.session.CreateRoom(ctx, "")
	if err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	lb.pump(t)
	if ev := host.lastEvent(t); ev.Kind != EventRoomCreated || ev.RoomCode != code {
		t.Fatalf("host event %+v", ev)
	}
	if err := guest.session.JoinRoom(ctx, code); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	lb.pump(t)
	if ev := guest.lastEvent(t); ev.Kind != EventJoined || ev.HostName != "Ana" {
		t.Fatalf("guest event %+v", ev)
	}
	if ev := host.lastEvent(t); ev.Kind != EventPlayerJoined || ev.ClientName != "Bia" {
		t.Fatalf("host event %+v", ev)
	}
	if err := host.session.StartGame(ctx); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	lb.pump(t)
	for _, s := range []*seat{host, guest} {
		if ev := s.lastEvent(t); ev.Kind != EventGameStarted {
			t.Fatalf("%s event %+v", s.id, ev)
		}
	}
	return lb, host, guest
}

func TestSessionLobbyAndFirstMove(t *testing.T) {
	lb, host, guest := startedPair(t)
	ctx := context.Background()

	if host.session.Role() != RoleHost || guest.session.Role() != RoleGuest {
		t.Fatalf("roles not assigned")
	}
	if _, err := guest.session.Select(checkers.Coord{Row: 2, Col: 1}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("guest moved on red's turn: %v", err)
	}
	if _, err := host.session.Select(checkers.Coord{Row: 5, Col: 2}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := host.session.Move(ctx, checkers.Coord{Row: 4, Col: 3}); err != nil {
		t.Fatalf("move: %v", err)
	}
	lb.pump(t)
	ev := guest.lastEvent(t)
	if ev.Kind != EventOpponentMoved || ev.Move == nil || ev.Move.To != (checkers.Coord{Row: 4, Col: 3}) {
		t.Fatalf("guest event %+v", ev)
	}

	var hostBoard, guestBoard checkers.Board
	_ = host.session.View(func(a *SyncAdapter) { hostBoard = a.Engine().Board() })
	_ = guest.session.View(func(a *SyncAdapter) {
		guestBoard = a.Engine().Board()
		if !a.IsMyTurn() {
			t.Errorf("guest should be on turn")
		}
	})
	if hostBoard != guestBoard {
		t.Fatalf("boards differ after relayed move")
	}
}

func TestSessionHostLeaves(t *testing.T) {
	lb, host, guest := startedPair(t)
	lb.hub.Disconnect(context.Background(), host)
	lb.pump(t)
	if ev := guest.lastEvent(t); ev.Kind != EventOpponentLeft {
		t.Fatalf("guest event %+v", ev)
	}
	if guest.session.Role() != RoleNone || guest.session.RoomCode() != "" {
		t.Fatalf("guest must leave the destroyed room")
	}
	if err := guest.session.View(func(*SyncAdapter) {}); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("match should be gone, got %v", err)
	}
}

func TestSessionGuestLeavesHostKeepsRoom(t *testing.T) {
	lb, host, guest := startedPair(t)
	code := host.session.RoomCode()
	lb.hub.Disconnect(context.Background(), guest)
	lb.pump(t)
	if ev := host.lastEvent(t); ev.Kind != EventOpponentLeft {
		t.Fatalf("host event %+v", ev)
	}
	if host.session.Role() != RoleHost || host.session.RoomCode() != code {
		t.Fatalf("host must keep the room")
	}
	next := lb.join(t, "next", "Caio")
	if err := next.session.JoinRoom(context.Background(), code); err != nil {
		t.Fatal(err)
	}
	lb.pump(t)
	if ev := host.lastEvent(t); ev.Kind != EventPlayerJoined || ev.ClientName != "Caio" {
		t.Fatalf("host event %+v", ev)
	}
}

func TestSessionServerError(t *testing.T) {
	lb := &loopback{hub: relay.NewHub(nil)}
	s := lb.join(t, "x", "Ana")
	if err := s.session.JoinRoom(context.Background(), "NOPE00"); err != nil {
		t.Fatal(err)
	}
	lb.pump(t)
	ev := s.lastEvent(t)
	if ev.Kind != EventServerError || ev.Text != "Sala não encontrada" {
		t.Fatalf("event %+v", ev)
	}
	// pending cleared, a new request is allowed
	if _, err := s.session.CreateRoom(context.Background(), "ABCDEF"); err != nil {
		t.Fatalf("CreateRoom after error: %v", err)
	}
}

func TestSessionRejectsBadCodeLocally(t *testing.T) {
	lb := &loopback{hub: relay.NewHub(nil)}
	s := lb.join(t, "x", "Ana")
	if err := s.session.JoinRoom(context.Background(), "a b"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("want ErrInvalidInput, got %v", err)
	}
	if len(lb.queue) != 0 {
		t.Fatalf("invalid code reached the relay")
	}
}


func TestUnrelatedErrorKeepsPendingJoin(t *testing.T) {
	ctx := context.Background()
	s := NewSession(&captureSender{}, SessionConfig{PlayerName: "Bia", Strict: true}, nil)
	if err := s.JoinRoom(ctx, "room42"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	// a late rejection of a move from the previous room
	s.Handle(ctx, protocol.Rejection(protocol.MsgMove, "Você não está nesta sala"))
	if _, err := s.CreateRoom(ctx, ""); !errors.Is(err, ErrRoomPending) {
		t.Fatalf("join must still be pending, got %v", err)
	}
	s.Handle(ctx, protocol.JoinSuccess("Ana"))
	if s.Role() != RoleGuest || s.RoomCode() != "ROOM42" {
		t.Fatalf("role=%v code=%q", s.Role(), s.RoomCode())
	}
}

func TestGameStartWithoutRoomIsIgnored(t *testing.T) {
	ctx := context.Background()
	var events []Event
	s := NewSession(&captureSender{}, SessionConfig{PlayerName: "Bia"}, func(ev Event) { events = append(events, ev) })
	s.Handle(ctx, protocol.GameStart("Ana", "Bia"))
	if len(events) != 0 {
		t.Fatalf("events = %+v", events)
	}
	if err := s.View(func(*SyncAdapter) {}); !errors.Is(err, ErrNoMatch) {
		t.Fatalf("no match expected, got %v", err)
	}
}
