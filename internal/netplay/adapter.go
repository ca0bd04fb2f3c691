package netplay

import (
	"context"
	"errors"
	"fmt"

	"github.com/park285/Cheese-Damas/internal/checkers"
	"github.com/park285/Cheese-Damas/internal/obslog"
	"github.com/park285/Cheese-Damas/internal/protocol"
	"go.uber.org/zap"
)

// Sender delivers protocol messages to the relay.
type Sender interface {
	Send(ctx context.Context, msg protocol.Message) error
}

var (
	ErrNotYourTurn = errors.New("not your turn")
	ErrDesync      = errors.New("opponent move does not match local position")
)

// SyncAdapter drives one engine for a networked match. The local player
// owns one color for the whole match; only origin and destination cross the
// wire and the peer engine re-derives captures and promotion.
type SyncAdapter struct {
	engine *checkers.Engine
	local  checkers.Color
	code   string
	out    Sender

	// strict marks the match broken on the first rejected remote move.
	strict bool
	broken error
}

func NewSyncAdapter(engine *checkers.Engine, local checkers.Color, roomCode string, out Sender, strict bool) *SyncAdapter {
	return &SyncAdapter{engine: engine, local: local, code: roomCode, out: out, strict: strict}
}

// ColorForHost returns the fixed color for a seat: the room creator plays
// red and the joiner blue.
func ColorForHost(isHost bool) checkers.Color {
	if isHost {
		return checkers.Red
	}
	return checkers.Blue
}

func (a *SyncAdapter) Engine() *checkers.Engine    { return a.engine }
func (a *SyncAdapter) LocalColor() checkers.Color  { return a.local }
func (a *SyncAdapter) RemoteColor() checkers.Color { return a.local.Opponent() }
func (a *SyncAdapter) Broken() error               { return a.broken }

// IsMyTurn reports whether the engine is waiting on the local player.
func (a *SyncAdapter) IsMyTurn() bool { return a.engine.Turn() == a.local }

// SelectLocal selects a piece for the local player.
func (a *SyncAdapter) SelectLocal(at checkers.Coord) ([]checkers.Move, error) {
	if a.broken != nil {
		return nil, a.broken
	}
	if !a.IsMyTurn() {
		return nil, ErrNotYourTurn
	}
	if err := a.engine.SelectPiece(at); err != nil {
		return nil, err
	}
	return a.engine.Moves(), nil
}

// MoveLocal plays the selected piece and announces the hop to the peer.
// When the send fails the move stays applied locally.
func (a *SyncAdapter) MoveLocal(ctx context.Context, to checkers.Coord) (*checkers.MoveResult, error) {
	if a.broken != nil {
		return nil, a.broken
	}
	if !a.IsMyTurn() {
		return nil, ErrNotYourTurn
	}
	from, ok := a.engine.Selected()
	if !ok {
		return nil, checkers.ErrNoSelection
	}
	res, err := a.engine.MovePiece(ctx, to)
	if err != nil {
		return nil, err
	}
	msg := protocol.Move(a.code, squareOf(from), squareOf(to))
	if err := a.out.Send(ctx, msg); err != nil {
		return res, fmt.Errorf("send move: %w", err)
	}
	return res, nil
}

// ApplyRemote replays an opponent hop. Any rejection by the engine is a
// desync; in strict mode it also freezes the adapter.
func (a *SyncAdapter) ApplyRemote(ctx context.Context, msg protocol.Message) (*checkers.MoveResult, error) {
	if a.broken != nil {
		return nil, a.broken
	}
	if msg.Type != protocol.MsgMove || msg.From == nil || msg.To == nil {
		return nil, a.desync(errors.New("malformed move message"))
	}
	from, to := coordOf(*msg.From), coordOf(*msg.To)

	if a.strict {
		if a.IsMyTurn() {
			return nil, a.desync(fmt.Errorf("move %v->%v arrived on local turn", from, to))
		}
		if c := a.engine.Board().At(from); c.Color() != a.RemoteColor() {
			return nil, a.desync(fmt.Errorf("origin %v holds %v", from, c))
		}
	}

	// re-selecting the chain piece is allowed, so this works mid-chain too
	if err := a.engine.SelectPiece(from); err != nil {
		return nil, a.desync(fmt.Errorf("select %v: %w", from, err))
	}
	res, err := a.engine.MovePiece(ctx, to)
	if err != nil {
		return nil, a.desync(fmt.Errorf("move %v->%v: %w", from, to, err))
	}
	return res, nil
}

func (a *SyncAdapter) desync(cause error) error {
	err := fmt.Errorf("%w: %v", ErrDesync, cause)
	obslog.L().Warn("sync_desync",
		zap.String("room", a.code),
		zap.String("match_id", a.engine.MatchID()),
		zap.Bool("strict", a.strict),
		zap.Error(cause))
	if a.strict {
		a.broken = err
	}
	return err
}

func squareOf(c checkers.Coord) protocol.Square { return protocol.Square{Row: c.Row, Col: c.Col} }
func coordOf(s protocol.Square) checkers.Coord  { return checkers.Coord{Row: s.Row, Col: s.Col} }
