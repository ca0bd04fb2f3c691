package relay

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-Damas/internal/protocol"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func startServer(t *testing.T) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub(nil)
	ts := httptest.NewServer(NewServer(hub, nil, Options{}))
	t.Cleanup(ts.Close)
	return ts, hub
}

func dial(t *testing.T, ctx context.Context, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func expect(t *testing.T, ctx context.Context, c *websocket.Conn, want protocol.MsgType) protocol.Message {
	t.Helper()
	var m protocol.Message
	if err := wsjson.Read(ctx, c, &m); err != nil {
		t.Fatalf("read %s: %v", want, err)
	}
	if m.Type != want {
		t.Fatalf("got %+v, want type %s", m, want)
	}
	return m
}

func TestBannerOnPlainHTTP(t *testing.T) {
	ts, _ := startServer(t)
	resp, err := http.Get(ts.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Damas") {
		t.Fatalf("banner: %d %q", resp.StatusCode, body)
	}
}

func TestRelayEndToEnd(t *testing.T) {
	ts, hub := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	host := dial(t, ctx, ts)
	guest := dial(t, ctx, ts)

	if err := wsjson.Write(ctx, host, protocol.CreateRoom("ROOM01", "Ana")); err != nil {
		t.Fatal(err)
	}
	expect(t, ctx, host, protocol.MsgRoomCreated)

	if err := wsjson.Write(ctx, guest, protocol.JoinRoom("room01", "Bia")); err != nil {
		t.Fatal(err)
	}
	if m := expect(t, ctx, guest, protocol.MsgJoinSuccess); m.HostName != "Ana" {
		t.Fatalf("join_success host: %q", m.HostName)
	}
	expect(t, ctx, host, protocol.MsgPlayerJoined)

	if err := wsjson.Write(ctx, host, protocol.StartGame("ROOM01")); err != nil {
		t.Fatal(err)
	}
	expect(t, ctx, host, protocol.MsgGameStart)
	expect(t, ctx, guest, protocol.MsgGameStart)

	if err := wsjson.Write(ctx, host, protocol.Ping()); err != nil {
		t.Fatal(err)
	}
	mv := protocol.Move("ROOM01", protocol.Square{Row: 5, Col: 0}, protocol.Square{Row: 4, Col: 1})
	if err := wsjson.Write(ctx, host, mv); err != nil {
		t.Fatal(err)
	}
	got := expect(t, ctx, guest, protocol.MsgMove)
	if *got.From != *mv.From || *got.To != *mv.To {
		t.Fatalf("move mangled: %+v", got)
	}

	_ = host.Close(websocket.StatusNormalClosure, "bye")
	expect(t, ctx, guest, protocol.MsgOpponentDisconnected)

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("room not removed after host left")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type recordingWriter struct {
	frames []string
}

func (w *recordingWriter) Write(_ context.Context, _ websocket.MessageType, p []byte) error {
	w.frames = append(w.frames, string(p))
	return nil
}

func TestWriterFlushesQueueOnClose(t *testing.T) {
	p := &wsPeer{id: "p1", out: make(chan []byte, 4), done: make(chan struct{})}
	for _, f := range []string{"a", "b", "c"} {
		if err := p.Send(context.Background(), []byte(f)); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}
	p.close()
	if err := p.Send(context.Background(), []byte("late")); err != ErrPeerClosed {
		t.Fatalf("send after close: %v", err)
	}

	w := &recordingWriter{}
	p.writeLoop(context.Background(), w, time.Second)
	if strings.Join(w.frames, ",") != "a,b,c" {
		t.Fatalf("written %v", w.frames)
	}
}
