package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/park285/Cheese-Damas/internal/msgcat"
	"github.com/park285/Cheese-Damas/internal/obslog"
	"github.com/park285/Cheese-Damas/internal/protocol"
	"go.uber.org/zap"
)

// Hub owns the room table. Every inbound frame is applied under one lock so
// slot assignment and room teardown are atomic per message. Replies are
// handed to peers before the lock is released, so each peer sees frames in
// the order the hub applied the messages; Peer.Send must not block.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]*room
	byPeer map[string]string // peer id -> room code
	cat    *msgcat.Catalog
	now    func() time.Time
}

func NewHub(cat *msgcat.Catalog) *Hub {
	if cat == nil {
		cat = msgcat.MustDefault()
	}
	return &Hub{
		rooms:  make(map[string]*room),
		byPeer: make(map[string]string),
		cat:    cat,
		now:    time.Now,
	}
}

type outbound struct {
	to    Peer
	frame []byte
}

func (h *Hub) deliver(ctx context.Context, out []outbound) {
	for _, o := range out {
		if o.to == nil {
			continue
		}
		if err := o.to.Send(ctx, o.frame); err != nil {
			obslog.L().Warn("relay_send_error", zap.String("peer", o.to.ID()), zap.Error(err))
		}
	}
}

func encode(to Peer, m protocol.Message) outbound {
	b, err := protocol.Encode(m)
	if err != nil {
		// Message has only plain fields; this cannot fail.
		panic(err)
	}
	return outbound{to: to, frame: b}
}

// Handle applies one inbound frame from p. Rejections are answered with an
// error message to p and also returned.
func (h *Hub) Handle(ctx context.Context, p Peer, frame []byte) error {
	msg, err := protocol.Decode(frame)
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.reject(ctx, p, msg.Type, ErrBadMessage)
		return errors.Join(ErrBadMessage, err)
	}

	var out []outbound
	switch msg.Type {
	case protocol.MsgPing:
		return nil
	case protocol.MsgCreateRoom:
		out, err = h.createRoom(p, msg)
	case protocol.MsgJoinRoom:
		out, err = h.joinRoom(p, msg)
	case protocol.MsgStartGame:
		out, err = h.startGame(p, msg)
	case protocol.MsgMove:
		out, err = h.forwardMove(p, msg, frame)
	default:
		err = ErrBadMessage
	}
	if err != nil {
		h.reject(ctx, p, msg.Type, err)
		obslog.L().Debug("relay_reject",
			zap.String("peer", p.ID()),
			zap.String("type", string(msg.Type)),
			zap.Error(err))
		return err
	}
	h.deliver(ctx, out)
	return nil
}

func (h *Hub) reject(ctx context.Context, p Peer, req protocol.MsgType, err error) {
	text := h.cat.Text(catalogKey(err), nil)
	h.deliver(ctx, []outbound{encode(p, protocol.Rejection(req, text))})
}

// The room handlers below run with h.mu held.

func (h *Hub) createRoom(p Peer, msg protocol.Message) ([]outbound, error) {
	code := protocol.NormalizeRoomCode(msg.RoomCode)
	if !protocol.ValidRoomCode(code) {
		return nil, ErrInvalidRoomCode
	}
	if _, busy := h.byPeer[p.ID()]; busy {
		return nil, ErrAlreadyInRoom
	}
	if _, exists := h.rooms[code]; exists {
		return nil, ErrRoomExists
	}
	h.rooms[code] = &room{
		code:      code,
		host:      p,
		hostName:  strings.TrimSpace(msg.PlayerName),
		createdAt: h.now(),
	}
	h.byPeer[p.ID()] = code
	obslog.L().Info("relay_room_created", zap.String("code", code), zap.String("host", msg.PlayerName))
	return []outbound{encode(p, protocol.RoomCreated(code))}, nil
}

func (h *Hub) joinRoom(p Peer, msg protocol.Message) ([]outbound, error) {
	code := protocol.NormalizeRoomCode(msg.RoomCode)
	if !protocol.ValidRoomCode(code) {
		return nil, ErrInvalidRoomCode
	}
	if _, busy := h.byPeer[p.ID()]; busy {
		return nil, ErrAlreadyInRoom
	}
	r, ok := h.rooms[code]
	if !ok {
		return nil, ErrRoomNotFound
	}
	if r.client != nil {
		return nil, ErrRoomFull
	}
	r.client = p
	r.clientName = strings.TrimSpace(msg.PlayerName)
	h.byPeer[p.ID()] = code
	obslog.L().Info("relay_room_joined", zap.String("code", code), zap.String("client", r.clientName))
	return []outbound{
		encode(p, protocol.JoinSuccess(r.hostName)),
		encode(r.host, protocol.PlayerJoined(r.clientName)),
	}, nil
}

// roomOf returns the sender's room; a non-empty code must match it.
func (h *Hub) roomOf(p Peer, code string) (*room, error) {
	mine, ok := h.byPeer[p.ID()]
	if !ok {
		return nil, ErrNotInRoom
	}
	if c := protocol.NormalizeRoomCode(code); c != "" && c != mine {
		return nil, ErrNotInRoom
	}
	r, ok := h.rooms[mine]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r, nil
}

func (h *Hub) startGame(p Peer, msg protocol.Message) ([]outbound, error) {
	r, err := h.roomOf(p, msg.RoomCode)
	if err != nil {
		return nil, err
	}
	if r.client == nil {
		return nil, ErrNeedTwoPlayers
	}
	r.started = true
	r.games++
	obslog.L().Info("relay_game_start", zap.String("code", r.code), zap.Int("game", r.games))
	start := protocol.GameStart(r.hostName, r.clientName)
	return []outbound{encode(r.host, start), encode(r.client, start)}, nil
}

// forwardMove relays the original frame to the other seat untouched.
func (h *Hub) forwardMove(p Peer, msg protocol.Message, frame []byte) ([]outbound, error) {
	r, err := h.roomOf(p, msg.RoomCode)
	if err != nil {
		return nil, err
	}
	other := r.other(p)
	if other == nil {
		return nil, ErrNeedTwoPlayers
	}
	fwd := make([]byte, len(frame))
	copy(fwd, frame)
	return []outbound{{to: other, frame: fwd}}, nil
}

// Disconnect releases whatever p held. A departing host takes the room with
// it; a departing client frees the seat for a new joiner.
func (h *Hub) Disconnect(ctx context.Context, p Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	code, ok := h.byPeer[p.ID()]
	if !ok {
		return
	}
	delete(h.byPeer, p.ID())
	r := h.rooms[code]
	var notify Peer
	switch {
	case r == nil:
	case r.host.ID() == p.ID():
		delete(h.rooms, code)
		if r.client != nil {
			delete(h.byPeer, r.client.ID())
			notify = r.client
		}
		obslog.L().Info("relay_room_closed", zap.String("code", code))
	default:
		notify = r.host
		r.client = nil
		r.clientName = ""
		r.started = false
		obslog.L().Info("relay_client_left", zap.String("code", code))
	}
	if notify != nil {
		h.deliver(ctx, []outbound{encode(notify, protocol.OpponentDisconnected())})
	}
}

// Room returns a snapshot of the room with the given code.
func (h *Hub) Room(code string) (RoomInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	r, ok := h.rooms[protocol.NormalizeRoomCode(code)]
	if !ok {
		return RoomInfo{}, false
	}
	return r.info(), true
}

// Len is the number of open rooms.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}
