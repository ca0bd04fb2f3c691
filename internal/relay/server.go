package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/park285/Cheese-Damas/internal/msgcat"
	"github.com/park285/Cheese-Damas/internal/obslog"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

var (
	ErrSlowPeer   = errors.New("peer send queue full")
	ErrPeerClosed = errors.New("peer closed")
)

type Options struct {
	WriteTimeout time.Duration
	SendQueue    int
	ReadLimit    int64
}

func (o Options) withDefaults() Options {
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 32
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	return o
}

// Server accepts WebSocket connections for the hub and answers plain HTTP
// requests with a text banner.
type Server struct {
	hub  *Hub
	cat  *msgcat.Catalog
	opts Options
	seq  atomic.Uint64
}

func NewServer(hub *Hub, cat *msgcat.Catalog, opts Options) *Server {
	if cat == nil {
		cat = msgcat.MustDefault()
	}
	return &Server{hub: hub, cat: cat, opts: opts.withDefaults()}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintln(w, s.cat.Text("relay.banner", nil))
		return
	}
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		obslog.L().Warn("relay_accept_error", zap.Error(err))
		return
	}
	s.serveConn(r.Context(), c, r.RemoteAddr)
}

func (s *Server) serveConn(parent context.Context, c *websocket.Conn, remote string) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	c.SetReadLimit(s.opts.ReadLimit)

	p := &wsPeer{
		id:   fmt.Sprintf("p%d", s.seq.Add(1)),
		out:  make(chan []byte, s.opts.SendQueue),
		done: make(chan struct{}),
	}
	obslog.L().Info("relay_peer_connected", zap.String("peer", p.id), zap.String("remote", remote))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		p.writeLoop(ctx, c, s.opts.WriteTimeout)
	}()

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			if st := websocket.CloseStatus(err); st != websocket.StatusNormalClosure && st != websocket.StatusGoingAway && ctx.Err() == nil {
				obslog.L().Debug("relay_read_end", zap.String("peer", p.id), zap.Error(err))
			}
			break
		}
		if typ != websocket.MessageText {
			continue
		}
		_ = s.hub.Handle(ctx, p, data)
	}

	p.close()
	s.hub.Disconnect(context.Background(), p)
	wg.Wait()
	_ = c.Close(websocket.StatusNormalClosure, "")
	obslog.L().Info("relay_peer_disconnected", zap.String("peer", p.id))
}

// wsPeer queues frames for a single writer goroutine.
type wsPeer struct {
	id     string
	out    chan []byte
	done   chan struct{}
	closed sync.Once
}

func (p *wsPeer) ID() string { return p.id }

func (p *wsPeer) Send(_ context.Context, frame []byte) error {
	select {
	case <-p.done:
		return ErrPeerClosed
	default:
	}
	select {
	case p.out <- frame:
		return nil
	default:
		return ErrSlowPeer
	}
}

func (p *wsPeer) close() { p.closed.Do(func() { close(p.done) }) }

// frameWriter is the part of *websocket.Conn the writer needs.
type frameWriter interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
}

func (p *wsPeer) writeLoop(ctx context.Context, c frameWriter, timeout time.Duration) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			p.flush(ctx, c, timeout)
			return
		case frame := <-p.out:
			if !p.write(ctx, c, timeout, frame) {
				return
			}
		}
	}
}

// flush writes whatever was queued before the peer closed.
func (p *wsPeer) flush(ctx context.Context, c frameWriter, timeout time.Duration) {
	for {
		select {
		case frame := <-p.out:
			if !p.write(ctx, c, timeout, frame) {
				return
			}
		default:
			return
		}
	}
}

func (p *wsPeer) write(ctx context.Context, c frameWriter, timeout time.Duration, frame []byte) bool {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	err := c.Write(wctx, websocket.MessageText, frame)
	cancel()
	if err != nil {
		obslog.L().Debug("relay_write_error", zap.String("peer", p.id), zap.Error(err))
		return false
	}
	return true
}
