package relay

import (
	"context"
	"errors"
	"time"
)

// Peer is one connected endpoint. Send must not block on a slow reader.
type Peer interface {
	ID() string
	Send(ctx context.Context, frame []byte) error
}

var (
	ErrRoomExists      = errors.New("room already exists")
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room full")
	ErrInvalidRoomCode = errors.New("invalid room code")
	ErrNeedTwoPlayers  = errors.New("room needs two players")
	ErrNotInRoom       = errors.New("peer not in room")
	ErrAlreadyInRoom   = errors.New("peer already in a room")
	ErrBadMessage      = errors.New("bad message")
)

// catalogKey maps a rejection to its user-facing text.
func catalogKey(err error) string {
	switch {
	case errors.Is(err, ErrRoomExists):
		return "relay.error.room_exists"
	case errors.Is(err, ErrRoomNotFound):
		return "relay.error.room_not_found"
	case errors.Is(err, ErrRoomFull):
		return "relay.error.room_full"
	case errors.Is(err, ErrInvalidRoomCode):
		return "relay.error.invalid_code"
	case errors.Is(err, ErrNeedTwoPlayers):
		return "relay.error.need_two_players"
	case errors.Is(err, ErrNotInRoom):
		return "relay.error.not_in_room"
	case errors.Is(err, ErrAlreadyInRoom):
		return "relay.error.already_in_room"
	default:
		return "relay.error.bad_message"
	}
}

type room struct {
	code       string
	host       Peer
	client     Peer
	hostName   string
	clientName string
	started    bool
	createdAt  time.Time
	games      int
}

func (r *room) other(p Peer) Peer {
	switch {
	case r.host != nil && r.host.ID() == p.ID():
		return r.client
	case r.client != nil && r.client.ID() == p.ID():
		return r.host
	}
	return nil
}

// RoomInfo is a read-only view of a room.
type RoomInfo struct {
	Code       string
	HostName   string
	ClientName string
	HasClient  bool
	Started    bool
	Games      int
	CreatedAt  time.Time
}

func (r *room) info() RoomInfo {
	return RoomInfo{
		Code:       r.code,
		HostName:   r.hostName,
		ClientName: r.clientName,
		HasClient:  r.client != nil,
		Started:    r.started,
		Games:      r.games,
		CreatedAt:  r.createdAt,
	}
}
