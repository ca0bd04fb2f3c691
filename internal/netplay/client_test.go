package netplay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-Damas/internal/protocol"
	"github.com/park285/Cheese-Damas/internal/relay"
	"nhooyr.io/websocket"
)

func relayURL(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(relay.NewServer(relay.NewHub(nil), nil, relay.Options{}))
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/"
}

func connect(t *testing.T, url string, opts ...ClientOption) (*Client, <-chan protocol.Message) {
	t.Helper()
	c := NewClient(url, opts...)
	inbox := make(chan protocol.Message, 16)
	c.OnMessage(func(m protocol.Message) { inbox <- m })
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = c.Close(ctx)
	})
	return c, inbox
}

func recv(t *testing.T, inbox <-chan protocol.Message, want protocol.MsgType) protocol.Message {
	t.Helper()
	select {
	case m := <-inbox:
		if m.Type != want {
			t.Fatalf("got %+v, want %s", m, want)
		}
		return m
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", want)
	}
	return protocol.Message{}
}

func TestClientThroughRelay(t *testing.T) {
	url := relayURL(t)
	host, hostIn := connect(t, url, WithPingInterval(20*time.Millisecond))
	guest, guestIn := connect(t, url, WithPingInterval(0))
	ctx := context.Background()

	if host.State() != StateConnected {
		t.Fatalf("state = %v", host.State())
	}
	if err := host.Send(ctx, protocol.CreateRoom("TEST01", "Ana")); err != nil {
		t.Fatal(err)
	}
	recv(t, hostIn, protocol.MsgRoomCreated)
	if err := guest.Send(ctx, protocol.JoinRoom("TEST01", "Bia")); err != nil {
		t.Fatal(err)
	}
	recv(t, guestIn, protocol.MsgJoinSuccess)
	recv(t, hostIn, protocol.MsgPlayerJoined)

	// keep-alives flow for a while without producing replies
	time.Sleep(100 * time.Millisecond)
	if err := guest.Send(ctx, protocol.StartGame("TEST01")); err != nil {
		t.Fatal(err)
	}
	recv(t, hostIn, protocol.MsgGameStart)
	recv(t, guestIn, protocol.MsgGameStart)
}

func TestClientStateAfterClose(t *testing.T) {
	url := relayURL(t)
	c, _ := connect(t, url, WithPingInterval(0))
	states := make(chan ConnState, 4)
	c.OnStateChange(func(s ConnState) { states <- s })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.State() != StateClosed {
		t.Fatalf("state after close = %v", c.State())
	}
	if err := c.Send(ctx, protocol.Ping()); err != ErrNotConnected {
		t.Fatalf("send after close: %v", err)
	}
}

func TestClientReportsLostRelay(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		<-release
		_ = conn.Close(websocket.StatusGoingAway, "bye")
	}))
	t.Cleanup(ts.Close)

	c, _ := connect(t, "ws"+strings.TrimPrefix(ts.URL, "http")+"/", WithPingInterval(0))
	lost := make(chan struct{}, 1)
	c.OnStateChange(func(s ConnState) {
		if s == StateDisconnected {
			lost <- struct{}{}
		}
	})

	close(release)
	select {
	case <-lost:
	case <-time.After(3 * time.Second):
		t.Fatalf("state stayed %v after the relay went away", c.State())
	}
	if err := c.Send(context.Background(), protocol.Ping()); err != ErrNotConnected {
		t.Fatalf("send on lost link: %v", err)
	}
}
