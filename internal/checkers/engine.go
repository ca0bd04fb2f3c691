package checkers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/park285/Cheese-Damas/internal/obslog"
	"go.uber.org/zap"
)

var (
	redDirs  = [][2]int{{-1, -1}, {-1, 1}}
	blueDirs = [][2]int{{1, -1}, {1, 1}}
	kingDirs = [][2]int{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}
)

// Engine is the rules state machine for one match. It is not safe for
// concurrent use; owners serialize calls.
type Engine struct {
	board       Board
	turn        Color
	selected    *Coord
	moves       []Move
	chain       bool
	mustCapture bool

	started bool
	over    GameOverState
	ended   bool
	result  *MatchResult

	redPlayer  string
	bluePlayer string
	redLive    int
	blueLive   int

	lastHop      *Hop
	plies        int
	redCaptures  int
	blueCaptures int
	startedAt    time.Time
	matchID      string

	recorder MatchRecorder
	now      func() time.Time
	newID    func() string
}

type Option func(*Engine)

// WithRecorder sets the sink that receives the match record at game end.
func WithRecorder(r MatchRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init resets the engine to the starting position with RED to move.
func (e *Engine) Init(redPlayer, bluePlayer string) {
	e.reset(NewBoard(), Red)
	e.redPlayer = redPlayer
	e.bluePlayer = bluePlayer
}

// SetPosition loads an arbitrary position, keeping the player names.
func (e *Engine) SetPosition(b Board, turn Color) error {
	if err := b.Validate(); err != nil {
		return err
	}
	if turn != Red && turn != Blue {
		turn = Red
	}
	e.reset(b, turn)
	return nil
}

func (e *Engine) reset(b Board, turn Color) {
	e.board = b
	e.turn = turn
	e.selected = nil
	e.moves = nil
	e.chain = false
	e.started = true
	e.over = GameOverState{}
	e.ended = false
	e.result = nil
	e.redLive, _ = b.Count(Red)
	e.blueLive, _ = b.Count(Blue)
	e.lastHop = nil
	e.plies = 0
	e.redCaptures = 0
	e.blueCaptures = 0
	e.startedAt = e.now()
	e.matchID = e.newID()
	e.mustCapture = e.anyCapture(turn)
}

// SelectPiece selects the piece at the given square for the side to move.
// On failure nothing changes.
func (e *Engine) SelectPiece(at Coord) error {
	if !e.started {
		return ErrNotStarted
	}
	if e.over.Over {
		return ErrGameOver
	}
	if !at.InBounds() {
		return ErrOutOfBounds
	}
	if e.chain {
		if e.selected == nil || *e.selected != at {
			return ErrChainLocked
		}
		return nil
	}
	if e.board.At(at).Color() != e.turn {
		return ErrNotYourPiece
	}
	moves := e.ValidMoves(at)
	if e.mustCapture && !hasCapture(moves) {
		return ErrMustCapture
	}
	sel := at
	e.selected = &sel
	e.moves = moves
	return nil
}

// ValidMoves lists the legal destinations of the piece at the square.
// Captures exclude simple moves for the piece; when another piece of the
// same side can capture, a piece without captures has no legal move.
func (e *Engine) ValidMoves(at Coord) []Move {
	cell := e.board.At(at)
	if cell == Empty {
		return nil
	}
	simple, captures := pieceMoves(&e.board, at)
	if len(captures) > 0 {
		return captures
	}
	if e.anyCapture(cell.Color()) {
		return nil
	}
	return simple
}

// MovePiece moves the selected piece to the destination.
func (e *Engine) MovePiece(ctx context.Context, to Coord) (*MoveResult, error) {
	if !e.started {
		return nil, ErrNotStarted
	}
	if e.over.Over {
		return nil, ErrGameOver
	}
	if e.selected == nil {
		return nil, ErrNoSelection
	}
	mv, ok := findMove(e.moves, to)
	if !ok {
		return nil, ErrIllegalMove
	}

	from := *e.selected
	piece := e.board.At(from)
	e.board.Set(to, piece)
	e.board.Set(from, Empty)
	e.plies++
	e.lastHop = &Hop{From: from, To: to}

	res := &MoveResult{From: from, To: to}
	if mv.Capture && mv.Captured != nil {
		e.board.Set(*mv.Captured, Empty)
		if e.turn == Red {
			e.blueLive--
			e.redCaptures++
		} else {
			e.redLive--
			e.blueCaptures++
		}
		captured := *mv.Captured
		res.Captured = &captured
	}

	if !piece.IsKing() && to.Row == crowningRow(piece.Color()) {
		e.board.Set(to, piece.Crowned())
		res.Promoted = true
	}

	if mv.Capture && !res.Promoted {
		if _, more := pieceMoves(&e.board, to); len(more) > 0 {
			sel := to
			e.selected = &sel
			e.moves = more
			e.chain = true
			res.Chain = true
			return res, nil
		}
	}

	e.selected = nil
	e.moves = nil
	e.chain = false
	res.TurnOver = true

	next := e.turn.Opponent()
	if state := e.evaluate(next); state.Over {
		e.over = state
		result, err := e.EndGame(ctx, state.Winner)
		if err == nil {
			res.GameOver = result
		}
		return res, nil
	}
	e.turn = next
	e.mustCapture = e.anyCapture(next)
	return res, nil
}

// CheckGameOver evaluates the end condition for the side to move.
func (e *Engine) CheckGameOver() GameOverState {
	if e.over.Over {
		return e.over
	}
	if !e.started {
		return GameOverState{}
	}
	return e.evaluate(e.turn)
}

func (e *Engine) evaluate(toMove Color) GameOverState {
	if e.redLive <= 0 {
		return GameOverState{Over: true, Winner: Blue, Reason: EndNoPieces}
	}
	if e.blueLive <= 0 {
		return GameOverState{Over: true, Winner: Red, Reason: EndNoPieces}
	}
	if !e.hasAnyMove(toMove) {
		return GameOverState{Over: true, Winner: toMove.Opponent(), Reason: EndNoMoves}
	}
	return GameOverState{}
}

// EndGame closes the match, hands the record to the recorder and returns
// the display summary. A match can be ended once.
func (e *Engine) EndGame(ctx context.Context, winner Color) (*MatchResult, error) {
	if !e.started {
		return nil, ErrNotStarted
	}
	if e.ended {
		return nil, ErrMatchEnded
	}
	if winner != Red && winner != Blue {
		return nil, ErrBadWinner
	}
	e.ended = true
	if !e.over.Over || e.over.Winner != winner {
		e.over = GameOverState{Over: true, Winner: winner, Reason: e.over.Reason}
	}
	e.selected = nil
	e.moves = nil
	e.chain = false

	endedAt := e.now()
	duration := endedAt.Sub(e.startedAt)
	if duration < 0 {
		duration = 0
	}
	rec := MatchRecord{
		ID:           e.matchID,
		RedPlayer:    e.redPlayer,
		BluePlayer:   e.bluePlayer,
		RedPieces:    e.redLive,
		BluePieces:   e.blueLive,
		Winner:       winner,
		WinnerName:   e.playerName(winner),
		Reason:       e.over.Reason,
		Moves:        e.plies,
		RedCaptures:  e.redCaptures,
		BlueCaptures: e.blueCaptures,
		StartedAt:    e.startedAt,
		EndedAt:      endedAt,
		Duration:     duration,
		FinalBoard:   e.board,
	}
	if e.lastHop != nil {
		hop := *e.lastHop
		rec.LastMove = &hop
	}
	if e.recorder != nil {
		if err := e.recorder.Record(ctx, rec); err != nil {
			obslog.L().Error("match_record_error", zap.String("match_id", rec.ID), zap.Error(err))
		} else {
			obslog.L().Info("match_recorded", zap.String("match_id", rec.ID), zap.String("winner", string(winner)), zap.String("reason", string(rec.Reason)))
		}
	}
	e.result = &MatchResult{
		Winner:     winner,
		WinnerName: rec.WinnerName,
		Reason:     rec.Reason,
		RedPieces:  rec.RedPieces,
		BluePieces: rec.BluePieces,
		Duration:   duration,
		MatchID:    rec.ID,
	}
	result := *e.result
	return &result, nil
}

func (e *Engine) Stats() Stats {
	_, redKings := e.board.Count(Red)
	_, blueKings := e.board.Count(Blue)
	var elapsed time.Duration
	if e.started {
		elapsed = e.now().Sub(e.startedAt)
		if e.result != nil {
			elapsed = e.result.Duration
		}
	}
	return Stats{
		RedPieces:   e.redLive,
		BluePieces:  e.blueLive,
		RedKings:    redKings,
		BlueKings:   blueKings,
		Turn:        e.turn,
		Moves:       e.plies,
		Elapsed:     elapsed,
		InChain:     e.chain,
		MustCapture: e.mustCapture,
	}
}

// Observation state for the UI.

func (e *Engine) Board() Board            { return e.board }
func (e *Engine) Turn() Color             { return e.turn }
func (e *Engine) InChain() bool           { return e.chain }
func (e *Engine) MustCapture() bool       { return e.mustCapture }
func (e *Engine) GameOver() GameOverState { return e.over }
func (e *Engine) Started() bool           { return e.started }
func (e *Engine) MatchID() string         { return e.matchID }

func (e *Engine) Players() (red, blue string) { return e.redPlayer, e.bluePlayer }

func (e *Engine) Selected() (Coord, bool) {
	if e.selected == nil {
		return Coord{}, false
	}
	return *e.selected, true
}

func (e *Engine) Moves() []Move {
	return append([]Move(nil), e.moves...)
}

// Result returns the summary produced by EndGame, if any.
func (e *Engine) Result() (*MatchResult, bool) {
	if e.result == nil {
		return nil, false
	}
	r := *e.result
	return &r, true
}

func (e *Engine) playerName(c Color) string {
	switch c {
	case Red:
		return e.redPlayer
	case Blue:
		return e.bluePlayer
	default:
		return ""
	}
}

func (e *Engine) anyCapture(color Color) bool {
	for _, sq := range e.board.Squares(color) {
		if _, caps := pieceMoves(&e.board, sq); len(caps) > 0 {
			return true
		}
	}
	return false
}

func (e *Engine) hasAnyMove(color Color) bool {
	for _, sq := range e.board.Squares(color) {
		if len(e.ValidMoves(sq)) > 0 {
			return true
		}
	}
	return false
}

// pieceMoves returns the simple moves and captures of the piece at the square.
func pieceMoves(b *Board, at Coord) (simple, captures []Move) {
	cell := b.At(at)
	if cell == Empty {
		return nil, nil
	}
	for _, d := range directions(cell) {
		next := Coord{Row: at.Row + d[0], Col: at.Col + d[1]}
		if !next.InBounds() {
			continue
		}
		target := b.At(next)
		if target == Empty {
			simple = append(simple, Move{To: next})
			continue
		}
		if target.Color() == cell.Color() {
			continue
		}
		land := Coord{Row: next.Row + d[0], Col: next.Col + d[1]}
		if land.InBounds() && b.At(land) == Empty {
			jumped := next
			captures = append(captures, Move{To: land, Capture: true, Captured: &jumped})
		}
	}
	return simple, captures
}

func directions(c Cell) [][2]int {
	switch c {
	case RedMan:
		return redDirs
	case BlueMan:
		return blueDirs
	case RedKing, BlueKing:
		return kingDirs
	default:
		return nil
	}
}

func crowningRow(c Color) int {
	if c == Red {
		return 0
	}
	return Size - 1
}

func hasCapture(moves []Move) bool {
	for _, m := range moves {
		if m.Capture {
			return true
		}
	}
	return false
}

func findMove(moves []Move, to Coord) (Move, bool) {
	for _, m := range moves {
		if m.To == to {
			return m, true
		}
	}
	return Move{}, false
}
