package netplay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/park285/Cheese-Damas/internal/checkers"
	"github.com/park285/Cheese-Damas/internal/obslog"
	"github.com/park285/Cheese-Damas/internal/protocol"
	"go.uber.org/zap"
)

type Role int

const (
	RoleNone Role = iota
	RoleHost
	RoleGuest
)

type EventKind string

const (
	EventRoomCreated   EventKind = "room_created"
	EventJoined        EventKind = "joined"
	EventPlayerJoined  EventKind = "player_joined"
	EventGameStarted   EventKind = "game_started"
	EventOpponentMoved EventKind = "opponent_moved"
	EventGameOver      EventKind = "game_over"
	EventOpponentLeft  EventKind = "opponent_left"
	EventServerError   EventKind = "server_error"
	EventDesync        EventKind = "desync"
)

// Event is what a session reports to its UI.
type Event struct {
	Kind       EventKind
	RoomCode   string
	HostName   string
	ClientName string
	Text       string
	Move       *checkers.MoveResult
	Result     *checkers.MatchResult
	Err        error
}

var (
	ErrNoRoom       = errors.New("not in a room")
	ErrNoMatch      = errors.New("no match in progress")
	ErrRoomPending  = errors.New("room request already pending")
	ErrInvalidInput = errors.New("invalid room code")
)

type SessionConfig struct {
	PlayerName string
	Strict     bool
	Recorder   checkers.MatchRecorder
	Clock      func() time.Time
}

// Session tracks one player's lobby state and current match against the
// relay. Inbound messages and local input may arrive from different
// goroutines; all state is guarded by mu and events fire after it is released.
type Session struct {
	mu  sync.Mutex
	out Sender
	cfg SessionConfig

	role        Role
	code        string
	pendingCode string
	hostName    string
	clientName  string
	adapter     *SyncAdapter

	onEvent func(Event)
}

func NewSession(out Sender, cfg SessionConfig, onEvent func(Event)) *Session {
	if strings.TrimSpace(cfg.PlayerName) == "" {
		cfg.PlayerName = "Jogador"
	}
	if onEvent == nil {
		onEvent = func(Event) {}
	}
	return &Session{out: out, cfg: cfg, onEvent: onEvent}
}

func (s *Session) emit(events []Event) {
	for _, ev := range events {
		s.onEvent(ev)
	}
}

// CreateRoom asks the relay for a room; an empty code picks a random one.
func (s *Session) CreateRoom(ctx context.Context, code string) (string, error) {
	code = protocol.NormalizeRoomCode(code)
	if code == "" {
		gen, err := protocol.GenerateRoomCode()
		if err != nil {
			return "", err
		}
		code = gen
	}
	if !protocol.ValidRoomCode(code) {
		return "", ErrInvalidInput
	}
	s.mu.Lock()
	if s.role != RoleNone || s.pendingCode != "" {
		s.mu.Unlock()
		return "", ErrRoomPending
	}
	s.pendingCode = code
	s.mu.Unlock()

	if err := s.out.Send(ctx, protocol.CreateRoom(code, s.cfg.PlayerName)); err != nil {
		s.clearPending()
		return "", err
	}
	return code, nil
}

func (s *Session) JoinRoom(ctx context.Context, code string) error {
	code = protocol.NormalizeRoomCode(code)
	if !protocol.ValidRoomCode(code) {
		return ErrInvalidInput
	}
	s.mu.Lock()
	if s.role != RoleNone || s.pendingCode != "" {
		s.mu.Unlock()
		return ErrRoomPending
	}
	s.pendingCode = code
	s.mu.Unlock()

	if err := s.out.Send(ctx, protocol.JoinRoom(code, s.cfg.PlayerName)); err != nil {
		s.clearPending()
		return err
	}
	return nil
}

func (s *Session) clearPending() {
	s.mu.Lock()
	s.pendingCode = ""
	s.mu.Unlock()
}

// StartGame asks the relay to (re)start the match in the current room.
func (s *Session) StartGame(ctx context.Context) error {
	s.mu.Lock()
	code, role := s.code, s.role
	s.mu.Unlock()
	if role == RoleNone {
		return ErrNoRoom
	}
	return s.out.Send(ctx, protocol.StartGame(code))
}

func (s *Session) Select(at checkers.Coord) ([]checkers.Move, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adapter == nil {
		return nil, ErrNoMatch
	}
	return s.adapter.SelectLocal(at)
}

func (s *Session) Move(ctx context.Context, to checkers.Coord) (*checkers.MoveResult, error) {
	s.mu.Lock()
	if s.adapter == nil {
		s.mu.Unlock()
		return nil, ErrNoMatch
	}
	res, err := s.adapter.MoveLocal(ctx, to)
	s.mu.Unlock()
	if res != nil && res.GameOver != nil {
		s.emit([]Event{{Kind: EventGameOver, Result: res.GameOver}})
	}
	return res, err
}

// View calls fn with the current match state under the session lock.
// fn must not call back into the session.
func (s *Session) View(fn func(a *SyncAdapter)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.adapter == nil {
		return ErrNoMatch
	}
	fn(s.adapter)
	return nil
}

func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *Session) RoomCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// Handle applies one relay message.
func (s *Session) Handle(ctx context.Context, msg protocol.Message) {
	s.mu.Lock()
	events := s.handleLocked(ctx, msg)
	s.mu.Unlock()
	s.emit(events)
}

func (s *Session) handleLocked(ctx context.Context, msg protocol.Message) []Event {
	switch msg.Type {
	case protocol.MsgRoomCreated:
		s.role = RoleHost
		s.code = protocol.NormalizeRoomCode(msg.RoomCode)
		if s.code == "" {
			s.code = s.pendingCode
		}
		s.pendingCode = ""
		s.hostName = s.cfg.PlayerName
		return []Event{{Kind: EventRoomCreated, RoomCode: s.code}}

	case protocol.MsgJoinSuccess:
		s.role = RoleGuest
		s.code = s.pendingCode
		s.pendingCode = ""
		s.hostName = msg.HostName
		s.clientName = s.cfg.PlayerName
		return []Event{{Kind: EventJoined, RoomCode: s.code, HostName: msg.HostName}}

	case protocol.MsgPlayerJoined:
		s.clientName = msg.PlayerName
		return []Event{{Kind: EventPlayerJoined, RoomCode: s.code, ClientName: msg.PlayerName}}

	case protocol.MsgGameStart:
		if s.role == RoleNone {
			obslog.L().Warn("game_start_without_room",
				zap.String("pending", s.pendingCode),
				zap.String("host", msg.HostName),
				zap.String("client", msg.ClientName))
			return nil
		}
		s.hostName, s.clientName = msg.HostName, msg.ClientName
		opts := []checkers.Option{checkers.WithRecorder(s.cfg.Recorder)}
		if s.cfg.Clock != nil {
			opts = append(opts, checkers.WithClock(s.cfg.Clock))
		}
		engine := checkers.NewEngine(opts...)
		engine.Init(msg.HostName, msg.ClientName)
		s.adapter = NewSyncAdapter(engine, ColorForHost(s.role == RoleHost), s.code, s.out, s.cfg.Strict)
		obslog.L().Info("match_started",
			zap.String("room", s.code),
			zap.String("match_id", engine.MatchID()),
			zap.String("local_color", string(s.adapter.LocalColor())))
		return []Event{{Kind: EventGameStarted, RoomCode: s.code, HostName: msg.HostName, ClientName: msg.ClientName}}

	case protocol.MsgMove:
		if s.adapter == nil {
			return []Event{{Kind: EventDesync, Err: ErrNoMatch}}
		}
		res, err := s.adapter.ApplyRemote(ctx, msg)
		if err != nil {
			return []Event{{Kind: EventDesync, Err: err}}
		}
		events := []Event{{Kind: EventOpponentMoved, Move: res}}
		if res.GameOver != nil {
			events = append(events, Event{Kind: EventGameOver, Result: res.GameOver})
		}
		return events

	case protocol.MsgOpponentDisconnected:
		s.adapter = nil
		if s.role == RoleGuest {
			// the host's room is gone with them
			s.role = RoleNone
			s.code = ""
			s.hostName = ""
		}
		s.clientName = ""
		return []Event{{Kind: EventOpponentLeft}}

	case protocol.MsgError:
		// only a rejected create/join ends the pending request
		if msg.ReplyTo == protocol.MsgCreateRoom || msg.ReplyTo == protocol.MsgJoinRoom {
			s.pendingCode = ""
		}
		return []Event{{Kind: EventServerError, Text: msg.Message}}
	}
	return nil
}
