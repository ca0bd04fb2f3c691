package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/park285/Cheese-Damas/internal/checkers"
	appcfg "github.com/park285/Cheese-Damas/internal/config"
	"github.com/park285/Cheese-Damas/internal/matchstore"
	"github.com/park285/Cheese-Damas/internal/netplay"
	"github.com/park285/Cheese-Damas/internal/obslog"
	"github.com/park285/Cheese-Damas/internal/protocol"
	"github.com/park285/Cheese-Damas/internal/textview"
	"go.uber.org/zap"
)

// connector opens a relay link. onMsg receives inbound messages, onDrop fires
// once when the link goes away.
type connector func(ctx context.Context, onMsg func(protocol.Message), onDrop func()) (netplay.Sender, func() error, error)

type mode int

const (
	modeNone mode = iota
	modeLocal
	modeNet
)

type shell struct {
	cfg      *appcfg.AppConfig
	out      *textview.Presenter
	recorder checkers.MatchRecorder
	history  matchstore.Store
	connect  connector

	mode  mode
	local *checkers.Engine

	mu        sync.Mutex
	session   *netplay.Session
	closeConn func() error
}

func newShell(cfg *appcfg.AppConfig, out *textview.Presenter, recorder checkers.MatchRecorder, history matchstore.Store, connect connector) *shell {
	return &shell{cfg: cfg, out: out, recorder: recorder, history: history, connect: connect}
}

// handle runs one input line and reports whether the user asked to quit.
func (s *shell) handle(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "ajuda", "help", "?":
		s.out.Sayf("client.help", nil)
	case "local":
		s.startLocal()
	case "criar":
		code := ""
		if len(args) > 0 {
			code = args[0]
		}
		s.createRoom(ctx, code)
	case "entrar":
		if len(args) < 1 {
			s.out.Sayf("client.help", nil)
			return false
		}
		s.joinRoom(ctx, args[0])
	case "iniciar":
		s.startNet(ctx)
	case "sel":
		at, ok := s.coordArgs(args)
		if ok {
			s.selectPiece(at)
		}
	case "mover":
		at, ok := s.coordArgs(args)
		if ok {
			s.movePiece(ctx, at)
		}
	case "tabuleiro":
		s.showBoard()
	case "placar":
		s.showScore()
	case "historico":
		s.showHistory(ctx)
	case "sair", "exit", "quit":
		return true
	default:
		s.out.Sayf("client.unknown_command", nil)
	}
	return false
}

func (s *shell) coordArgs(args []string) (checkers.Coord, bool) {
	if len(args) < 2 {
		s.out.Sayf("client.invalid", map[string]any{"Reason": "use <linha> <coluna>"})
		return checkers.Coord{}, false
	}
	r, err1 := strconv.Atoi(args[0])
	c, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		s.out.Sayf("client.invalid", map[string]any{"Reason": "coordenadas numéricas"})
		return checkers.Coord{}, false
	}
	return checkers.Coord{Row: r, Col: c}, true
}

func (s *shell) startLocal() {
	e := checkers.NewEngine(checkers.WithRecorder(s.recorder))
	e.Init(s.cfg.PlayerName, s.out.Fmt.ColorName(checkers.Blue))
	s.local = e
	s.mode = modeLocal
	red, blue := e.Players()
	s.out.Sayf("client.game_started", map[string]any{"Red": red, "Blue": blue})
	s.showBoard()
	s.out.Say(s.out.Fmt.Turn(red, checkers.Red))
}

// ensureSession dials the relay on first use.
func (s *shell) ensureSession(ctx context.Context) (*netplay.Session, error) {
	s.mu.Lock()
	if s.session != nil {
		sess := s.session
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	sender, closeFn, err := s.connect(ctx,
		func(msg protocol.Message) {
			if sess := s.currentSession(); sess != nil {
				sess.Handle(context.Background(), msg)
			}
		},
		s.dropSession,
	)
	if err != nil {
		return nil, err
	}
	sess := netplay.NewSession(sender, netplay.SessionConfig{
		PlayerName: s.cfg.PlayerName,
		Strict:     s.cfg.StrictSync,
		Recorder:   s.recorder,
	}, s.onEvent)

	s.mu.Lock()
	s.session = sess
	s.closeConn = closeFn
	s.mu.Unlock()
	return sess, nil
}

func (s *shell) dropSession() {
	s.mu.Lock()
	had := s.session != nil
	s.session = nil
	s.closeConn = nil
	s.mu.Unlock()
	if had {
		obslog.L().Info("relay_session_dropped")
		s.out.Sayf("client.disconnected", nil)
	}
}

func (s *shell) currentSession() *netplay.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *shell) close() {
	s.mu.Lock()
	closeFn := s.closeConn
	s.session = nil
	s.closeConn = nil
	s.mu.Unlock()
	if closeFn != nil {
		_ = closeFn()
	}
}

func (s *shell) createRoom(ctx context.Context, code string) {
	sess, err := s.ensureSession(ctx)
	if err != nil {
		s.sayErr(err)
		return
	}
	s.mode = modeNet
	if _, err := sess.CreateRoom(ctx, code); err != nil {
		s.sayErr(err)
	}
}

func (s *shell) joinRoom(ctx context.Context, code string) {
	sess, err := s.ensureSession(ctx)
	if err != nil {
		s.sayErr(err)
		return
	}
	s.mode = modeNet
	if err := sess.JoinRoom(ctx, code); err != nil {
		s.sayErr(err)
	}
}

func (s *shell) startNet(ctx context.Context) {
	sess := s.currentSession()
	if sess == nil {
		s.sayErr(netplay.ErrNoRoom)
		return
	}
	if err := sess.StartGame(ctx); err != nil {
		s.sayErr(err)
	}
}

func (s *shell) selectPiece(at checkers.Coord) {
	switch s.mode {
	case modeLocal:
		if err := s.local.SelectPiece(at); err != nil {
			s.sayErr(err)
			return
		}
		s.out.Say(s.out.Fmt.Selected(at, s.local.ValidMoves(at)))
	case modeNet:
		sess := s.currentSession()
		if sess == nil {
			s.sayErr(netplay.ErrNoMatch)
			return
		}
		moves, err := sess.Select(at)
		if err != nil {
			s.sayErr(err)
			return
		}
		s.out.Say(s.out.Fmt.Selected(at, moves))
	default:
		s.sayErr(netplay.ErrNoMatch)
	}
}

func (s *shell) movePiece(ctx context.Context, to checkers.Coord) {
	switch s.mode {
	case modeLocal:
		mover := s.local.Turn()
		res, err := s.local.MovePiece(ctx, to)
		if err != nil {
			s.sayErr(err)
			return
		}
		s.out.Say(s.out.Fmt.Move(s.nameOf(s.local, mover), res))
		s.showBoard()
		if res.GameOver != nil {
			s.out.Say(s.out.Fmt.GameOver(res.GameOver))
			return
		}
		s.out.Say(s.out.Fmt.Turn(s.nameOf(s.local, s.local.Turn()), s.local.Turn()))
	case modeNet:
		sess := s.currentSession()
		if sess == nil {
			s.sayErr(netplay.ErrNoMatch)
			return
		}
		res, err := sess.Move(ctx, to)
		if res != nil {
			s.out.Say(s.out.Fmt.Move(s.cfg.PlayerName, res))
			s.showBoard()
		}
		if err != nil {
			s.sayErr(err)
			return
		}
		if res.GameOver == nil {
			s.sayNetTurn(sess)
		}
	default:
		s.sayErr(netplay.ErrNoMatch)
	}
}

func (s *shell) nameOf(e *checkers.Engine, c checkers.Color) string {
	red, blue := e.Players()
	if c == checkers.Red {
		return red
	}
	return blue
}

// engineView runs fn against whichever engine is active.
func (s *shell) engineView(fn func(e *checkers.Engine)) bool {
	switch s.mode {
	case modeLocal:
		if s.local == nil {
			return false
		}
		fn(s.local)
		return true
	case modeNet:
		sess := s.currentSession()
		if sess == nil {
			return false
		}
		return sess.View(func(a *netplay.SyncAdapter) { fn(a.Engine()) }) == nil
	}
	return false
}

func (s *shell) renderBoard(e *checkers.Engine) string {
	var sel *checkers.Coord
	var moves []checkers.Move
	if at, has := e.Selected(); has {
		sel = &at
		moves = e.ValidMoves(at)
	}
	return s.out.Fmt.Board(e.Board(), sel, moves)
}

func (s *shell) showBoard() {
	var text string
	if !s.engineView(func(e *checkers.Engine) { text = s.renderBoard(e) }) {
		s.sayErr(netplay.ErrNoMatch)
		return
	}
	s.out.Say(text)
}

func (s *shell) showScore() {
	var text string
	ok := s.engineView(func(e *checkers.Engine) {
		text = s.out.Fmt.Score(e.Stats())
		if res, ended := e.Result(); ended {
			text += "\n" + s.out.Fmt.GameOver(res)
		}
	})
	if !ok {
		s.sayErr(netplay.ErrNoMatch)
		return
	}
	s.out.Say(text)
}

func (s *shell) showHistory(ctx context.Context) {
	if s.history == nil {
		s.out.Say("-")
		return
	}
	recs, err := s.history.Recent(ctx, s.cfg.PlayerName, s.cfg.MatchHistoryLimit)
	if err != nil {
		s.sayErr(err)
		return
	}
	s.out.Say(s.out.Fmt.History(recs))
}

func (s *shell) sayNetTurn(sess *netplay.Session) {
	_ = sess.View(func(a *netplay.SyncAdapter) {
		if a.Engine().GameOver().Over {
			return
		}
		if a.IsMyTurn() {
			s.out.Sayf("client.your_turn", map[string]any{"Color": s.out.Fmt.ColorName(a.LocalColor())})
			return
		}
		s.out.Sayf("client.waiting", nil)
	})
}

// onEvent runs on the relay reader goroutine.
func (s *shell) onEvent(ev netplay.Event) {
	sess := s.currentSession()
	opponent := ""
	if sess != nil && ev.Kind == netplay.EventOpponentMoved {
		_ = sess.View(func(a *netplay.SyncAdapter) { opponent = s.nameOf(a.Engine(), a.RemoteColor()) })
	}
	s.out.Say(s.out.Fmt.Event(ev, opponent))
	if ev.Err != nil {
		obslog.L().Warn("session_event_error", zap.String("kind", string(ev.Kind)), zap.Error(ev.Err))
	}

	switch ev.Kind {
	case netplay.EventGameStarted, netplay.EventOpponentMoved:
		if sess == nil {
			return
		}
		_ = sess.View(func(a *netplay.SyncAdapter) { s.out.Say(s.renderBoard(a.Engine())) })
		s.sayNetTurn(sess)
	}
}

func (s *shell) sayErr(err error) {
	switch {
	case errors.Is(err, netplay.ErrNotYourTurn):
		s.out.Sayf("client.not_your_turn", nil)
	case errors.Is(err, checkers.ErrMustCapture):
		s.out.Sayf("client.must_capture", nil)
	case errors.Is(err, netplay.ErrDesync):
		s.out.Sayf("client.desync", nil)
	default:
		s.out.Sayf("client.invalid", map[string]any{"Reason": fmt.Sprint(err)})
	}
}
