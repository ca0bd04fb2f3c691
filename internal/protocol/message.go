package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type MsgType string

const (
	MsgCreateRoom           MsgType = "create_room"
	MsgRoomCreated          MsgType = "room_created"
	MsgJoinRoom             MsgType = "join_room"
	MsgJoinSuccess          MsgType = "join_success"
	MsgPlayerJoined         MsgType = "player_joined"
	MsgStartGame            MsgType = "start_game"
	MsgGameStart            MsgType = "game_start"
	MsgMove                 MsgType = "move"
	MsgOpponentDisconnected MsgType = "opponent_disconnected"
	MsgError                MsgType = "error"

	// MsgPing is the client keep-alive; the relay drops it.
	MsgPing MsgType = "ping"
)

// Square is a board coordinate on the wire.
type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (s Square) String() string { return fmt.Sprintf("(%d,%d)", s.Row, s.Col) }

// Message is the single envelope used in both directions. Only the fields
// relevant to Type are set. ReplyTo names the request an error answers.
type Message struct {
	Type       MsgType `json:"type"`
	RoomCode   string  `json:"roomCode,omitempty"`
	PlayerName string  `json:"playerName,omitempty"`
	HostName   string  `json:"hostName,omitempty"`
	ClientName string  `json:"clientName,omitempty"`
	From       *Square `json:"from,omitempty"`
	To         *Square `json:"to,omitempty"`
	Message    string  `json:"message,omitempty"`
	ReplyTo    MsgType `json:"replyTo,omitempty"`
}

var (
	ErrEmptyFrame  = errors.New("protocol: empty frame")
	ErrMissingType = errors.New("protocol: missing type")
	ErrBadMove     = errors.New("protocol: move requires from and to")
)

// Decode parses one frame. It checks the envelope shape only.
func Decode(frame []byte) (Message, error) {
	var m Message
	if len(strings.TrimSpace(string(frame))) == 0 {
		return m, ErrEmptyFrame
	}
	if err := json.Unmarshal(frame, &m); err != nil {
		return m, fmt.Errorf("protocol: decode: %w", err)
	}
	if strings.TrimSpace(string(m.Type)) == "" {
		return m, ErrMissingType
	}
	if m.Type == MsgMove && (m.From == nil || m.To == nil) {
		return m, ErrBadMove
	}
	return m, nil
}

// Encode marshals m into a frame.
func Encode(m Message) ([]byte, error) { return json.Marshal(m) }

func CreateRoom(code, name string) Message {
	return Message{Type: MsgCreateRoom, RoomCode: code, PlayerName: name}
}

func RoomCreated(code string) Message { return Message{Type: MsgRoomCreated, RoomCode: code} }

func JoinRoom(code, name string) Message {
	return Message{Type: MsgJoinRoom, RoomCode: code, PlayerName: name}
}

func JoinSuccess(host string) Message  { return Message{Type: MsgJoinSuccess, HostName: host} }
func PlayerJoined(name string) Message { return Message{Type: MsgPlayerJoined, PlayerName: name} }
func StartGame(code string) Message    { return Message{Type: MsgStartGame, RoomCode: code} }
func OpponentDisconnected() Message    { return Message{Type: MsgOpponentDisconnected} }
func Error(text string) Message        { return Message{Type: MsgError, Message: text} }
func Ping() Message                    { return Message{Type: MsgPing} }

// Rejection is an error answering a request of type req.
func Rejection(req MsgType, text string) Message {
	return Message{Type: MsgError, ReplyTo: req, Message: text}
}

func GameStart(host, client string) Message {
	return Message{Type: MsgGameStart, HostName: host, ClientName: client}
}

func Move(code string, from, to Square) Message {
	return Message{Type: MsgMove, RoomCode: code, From: &from, To: &to}
}
