package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/park285/Cheese-Damas/internal/protocol"
)

type fakePeer struct {
	id string

	mu     sync.Mutex
	frames [][]byte
}

func newFakePeer(id string) *fakePeer { return &fakePeer{id: id} }

func (f *fakePeer) ID() string { return f.id }

func (f *fakePeer) Send(_ context.Context, frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakePeer) messages(t *testing.T) []protocol.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Message, 0, len(f.frames))
	for _, fr := range f.frames {
		m, err := protocol.Decode(fr)
		if err != nil {
			t.Fatalf("peer %s got bad frame %s: %v", f.id, fr, err)
		}
		out = append(out, m)
	}
	return out
}

func (f *fakePeer) last(t *testing.T) protocol.Message {
	t.Helper()
	msgs := f.messages(t)
	if len(msgs) == 0 {
		t.Fatalf("peer %s received nothing", f.id)
	}
	return msgs[len(msgs)-1]
}

func (f *fakePeer) reset() {
	f.mu.Lock()
	f.frames = nil
	f.mu.Unlock()
}

func send(t *testing.T, h *Hub, p Peer, m protocol.Message) error {
	t.Helper()
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	return h.Handle(context.Background(), p, b)
}

func setupRoom(t *testing.T) (*Hub, *fakePeer, *fakePeer) {
	t.Helper()
	h := NewHub(nil)
	host, guest := newFakePeer("host"), newFakePeer("guest")
	if err := send(t, h, host, protocol.CreateRoom("ABC123", "Ana")); err != nil {
		t.Fatalf("create_room: %v", err)
	}
	if err := send(t, h, guest, protocol.JoinRoom("abc123", "Bia")); err != nil {
		t.Fatalf("join_room: %v", err)
	}
	return h, host, guest
}

func TestCreateAndJoin(t *testing.T) {
	h, host, guest := setupRoom(t)

	hostMsgs := host.messages(t)
	if len(hostMsgs) != 2 || hostMsgs[0].Type != protocol.MsgRoomCreated || hostMsgs[0].RoomCode != "ABC123" {
		t.Fatalf("host frames: %+v", hostMsgs)
	}
	if hostMsgs[1].Type != protocol.MsgPlayerJoined || hostMsgs[1].PlayerName != "Bia" {
		t.Fatalf("host not notified of join: %+v", hostMsgs[1])
	}
	if got := guest.last(t); got.Type != protocol.MsgJoinSuccess || got.HostName != "Ana" {
		t.Fatalf("guest ack: %+v", got)
	}
	info, ok := h.Room("abc123")
	if !ok || !info.HasClient || info.ClientName != "Bia" || info.Started {
		t.Fatalf("room info: %+v %v", info, ok)
	}
}

func TestJoinRejections(t *testing.T) {
	h, _, _ := setupRoom(t)

	stranger := newFakePeer("stranger")
	err := send(t, h, stranger, protocol.JoinRoom("ZZZ999", "Caio"))
	if !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("want ErrRoomNotFound, got %v", err)
	}
	if got := stranger.last(t); got.Type != protocol.MsgError || got.Message != "Sala não encontrada" {
		t.Fatalf("unexpected reply %+v", got)
	}

	stranger.reset()
	err = send(t, h, stranger, protocol.JoinRoom("ABC123", "Caio"))
	if !errors.Is(err, ErrRoomFull) {
		t.Fatalf("want ErrRoomFull, got %v", err)
	}
	if got := stranger.last(t); got.Message != "Sala cheia" {
		t.Fatalf("full room must give a distinct error, got %+v", got)
	}

	err = send(t, h, stranger, protocol.JoinRoom("AB", "Caio"))
	if !errors.Is(err, ErrInvalidRoomCode) {
		t.Fatalf("want ErrInvalidRoomCode, got %v", err)
	}
}

func TestCreateDuplicateCode(t *testing.T) {
	h, _, _ := setupRoom(t)
	other := newFakePeer("other")
	if err := send(t, h, other, protocol.CreateRoom("abc123", "Dora")); !errors.Is(err, ErrRoomExists) {
		t.Fatalf("want ErrRoomExists, got %v", err)
	}
	if h.Len() != 1 {
		t.Fatalf("duplicate create changed room table")
	}
}

func TestPeerCannotHoldTwoRooms(t *testing.T) {
	h, host, _ := setupRoom(t)
	if err := send(t, h, host, protocol.CreateRoom("QWE456", "Ana")); !errors.Is(err, ErrAlreadyInRoom) {
		t.Fatalf("want ErrAlreadyInRoom, got %v", err)
	}
}

func TestStartGameNeedsTwoPlayers(t *testing.T) {
	h := NewHub(nil)
	host := newFakePeer("host")
	if err := send(t, h, host, protocol.CreateRoom("ABC123", "Ana")); err != nil {
		t.Fatal(err)
	}
	if err := send(t, h, host, protocol.StartGame("ABC123")); !errors.Is(err, ErrNeedTwoPlayers) {
		t.Fatalf("want ErrNeedTwoPlayers, got %v", err)
	}
}

func TestStartGameBroadcastsAndRestarts(t *testing.T) {
	h, host, guest := setupRoom(t)
	for i := 0; i < 2; i++ {
		if err := send(t, h, guest, protocol.StartGame("ABC123")); err != nil {
			t.Fatalf("start_game #%d: %v", i, err)
		}
		for _, p := range []*fakePeer{host, guest} {
			got := p.last(t)
			if got.Type != protocol.MsgGameStart || got.HostName != "Ana" || got.ClientName != "Bia" {
				t.Fatalf("peer %s game_start: %+v", p.id, got)
			}
		}
	}
	info, _ := h.Room("ABC123")
	if !info.Started || info.Games != 2 {
		t.Fatalf("room info after restart: %+v", info)
	}
}

func TestMoveForwardedVerbatim(t *testing.T) {
	h, host, guest := setupRoom(t)
	frame := []byte(`{"type":"move","roomCode":"ABC123","from":{"row":5,"col":0},"to":{"row":4,"col":1},"extra":true}`)
	if err := h.Handle(context.Background(), host, frame); err != nil {
		t.Fatalf("move: %v", err)
	}
	guest.mu.Lock()
	got := string(guest.frames[len(guest.frames)-1])
	guest.mu.Unlock()
	if got != string(frame) {
		t.Fatalf("move not forwarded verbatim:\n got %s\nwant %s", got, frame)
	}
	if last := host.last(t); last.Type == protocol.MsgMove {
		t.Fatalf("move echoed back to sender")
	}
}

func TestMoveFromOutsider(t *testing.T) {
	h, _, _ := setupRoom(t)
	outsider := newFakePeer("x")
	err := send(t, h, outsider, protocol.Move("ABC123", protocol.Square{Row: 5, Col: 0}, protocol.Square{Row: 4, Col: 1}))
	if !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("want ErrNotInRoom, got %v", err)
	}
}

func TestPingIgnoredAndGarbageRejected(t *testing.T) {
	h := NewHub(nil)
	p := newFakePeer("p")
	if err := send(t, h, p, protocol.Ping()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if len(p.messages(t)) != 0 {
		t.Fatalf("ping must not be answered")
	}
	if err := h.Handle(context.Background(), p, []byte("{{")); !errors.Is(err, ErrBadMessage) {
		t.Fatalf("want ErrBadMessage, got %v", err)
	}
	if got := p.last(t); got.Type != protocol.MsgError {
		t.Fatalf("garbage must be answered with error, got %+v", got)
	}
}

func TestHostDisconnectClosesRoom(t *testing.T) {
	h, host, guest := setupRoom(t)
	guest.reset()
	h.Disconnect(context.Background(), host)

	msgs := guest.messages(t)
	if len(msgs) != 1 || msgs[0].Type != protocol.MsgOpponentDisconnected {
		t.Fatalf("guest must get exactly one opponent_disconnected, got %+v", msgs)
	}
	if _, ok := h.Room("ABC123"); ok {
		t.Fatalf("room survived host disconnect")
	}
	// the guest's later disconnect is a no-op
	h.Disconnect(context.Background(), guest)
	if len(guest.messages(t)) != 1 {
		t.Fatalf("extra frames after room closed")
	}
}

func TestClientDisconnectFreesSeat(t *testing.T) {
	h, host, guest := setupRoom(t)
	if err := send(t, h, host, protocol.StartGame("ABC123")); err != nil {
		t.Fatal(err)
	}
	host.reset()
	h.Disconnect(context.Background(), guest)

	if got := host.last(t); got.Type != protocol.MsgOpponentDisconnected {
		t.Fatalf("host not notified: %+v", got)
	}
	info, ok := h.Room("ABC123")
	if !ok || info.HasClient || info.Started {
		t.Fatalf("seat not reset: %+v %v", info, ok)
	}
	next := newFakePeer("next")
	if err := send(t, h, next, protocol.JoinRoom("ABC123", "Caio")); err != nil {
		t.Fatalf("rejoin after client left: %v", err)
	}
}

func TestConcurrentJoinsOnlyOneWins(t *testing.T) {
	h := NewHub(nil)
	if err := send(t, h, newFakePeer("host"), protocol.CreateRoom("ABC123", "Ana")); err != nil {
		t.Fatal(err)
	}
	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, _ := json.Marshal(protocol.JoinRoom("ABC123", fmt.Sprintf("p%d", i)))
			errs <- h.Handle(context.Background(), newFakePeer(fmt.Sprintf("j%d", i)), b)
		}(i)
	}
	wg.Wait()
	close(errs)
	wins := 0
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, ErrRoomFull):
			t.Fatalf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("want exactly one successful join, got %d", wins)
	}
}

// gatedPeer blocks inside its first Send until released.
type gatedPeer struct {
	*fakePeer
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedPeer) Send(ctx context.Context, frame []byte) error {
	g.once.Do(func() {
		close(g.entered)
		<-g.release
	})
	return g.fakePeer.Send(ctx, frame)
}

func TestJoinReplyPrecedesGameStart(t *testing.T) {
	h := NewHub(nil)
	host := newFakePeer("host")
	guest := &gatedPeer{fakePeer: newFakePeer("guest"), entered: make(chan struct{}), release: make(chan struct{})}
	if err := send(t, h, host, protocol.CreateRoom("ORDER1", "Ana")); err != nil {
		t.Fatalf("create_room: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = send(t, h, guest, protocol.JoinRoom("ORDER1", "Bia"))
	}()
	<-guest.entered
	go func() {
		defer wg.Done()
		_ = send(t, h, host, protocol.StartGame("ORDER1"))
	}()
	time.Sleep(20 * time.Millisecond)
	close(guest.release)
	wg.Wait()

	var got []protocol.MsgType
	for _, m := range guest.messages(t) {
		got = append(got, m.Type)
	}
	if len(got) != 2 || got[0] != protocol.MsgJoinSuccess || got[1] != protocol.MsgGameStart {
		t.Fatalf("guest saw %v", got)
	}
}

func TestRejectionNamesTheRequest(t *testing.T) {
	h := NewHub(nil)
	p := newFakePeer("p")
	if err := send(t, h, p, protocol.JoinRoom("NOPE00", "Ana")); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("join_room: %v", err)
	}
	if got := p.last(t); got.Type != protocol.MsgError || got.ReplyTo != protocol.MsgJoinRoom {
		t.Fatalf("rejection %+v", got)
	}
	if err := send(t, h, p, protocol.Move("NOPE00", protocol.Square{Row: 5, Col: 0}, protocol.Square{Row: 4, Col: 1})); !errors.Is(err, ErrNotInRoom) {
		t.Fatalf("move: %v", err)
	}
	if got := p.last(t); got.ReplyTo != protocol.MsgMove {
		t.Fatalf("rejection %+v", got)
	}
}
