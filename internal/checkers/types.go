package checkers

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Color identifies a side.
type Color string

const (
	NoColor Color = ""
	Red     Color = "red"
	Blue    Color = "blue"
)

// Opponent returns the other side. NoColor maps to NoColor.
func (c Color) Opponent() Color {
	switch c {
	case Red:
		return Blue
	case Blue:
		return Red
	default:
		return NoColor
	}
}

// Cell is the content of one board square.
type Cell uint8

const (
	Empty Cell = iota
	RedMan
	BlueMan
	RedKing
	BlueKing
)

func (c Cell) Color() Color {
	switch c {
	case RedMan, RedKing:
		return Red
	case BlueMan, BlueKing:
		return Blue
	default:
		return NoColor
	}
}

func (c Cell) IsKing() bool { return c == RedKing || c == BlueKing }

// Crowned returns the king cell of the same colour.
func (c Cell) Crowned() Cell {
	switch c {
	case RedMan:
		return RedKing
	case BlueMan:
		return BlueKing
	default:
		return c
	}
}

func (c Cell) String() string {
	switch c {
	case RedMan:
		return "r"
	case BlueMan:
		return "b"
	case RedKing:
		return "R"
	case BlueKing:
		return "B"
	default:
		return "."
	}
}

// Coord addresses a square; row 0 is the top rank (RED's crowning row).
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (c Coord) InBounds() bool {
	return c.Row >= 0 && c.Row < Size && c.Col >= 0 && c.Col < Size
}

// Dark reports whether pieces may stand on the square.
func (c Coord) Dark() bool { return (c.Row+c.Col)%2 == 1 }

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.Row, c.Col) }

// Move is a legal destination for a selected piece.
type Move struct {
	To       Coord  `json:"to"`
	Capture  bool   `json:"capture"`
	Captured *Coord `json:"captured,omitempty"`
}

// Hop is one origin/destination pair as sent over the wire.
type Hop struct {
	From Coord `json:"from"`
	To   Coord `json:"to"`
}

// EndReason tells why a match finished.
type EndReason string

const (
	EndNoPieces EndReason = "no_pieces"
	EndNoMoves  EndReason = "no_moves"
)

// GameOverState is the result of an end-of-game evaluation.
type GameOverState struct {
	Over   bool      `json:"over"`
	Winner Color     `json:"winner,omitempty"`
	Reason EndReason `json:"reason,omitempty"`
}

// Stats is a read-only snapshot for display.
type Stats struct {
	RedPieces   int           `json:"red_pieces"`
	BluePieces  int           `json:"blue_pieces"`
	RedKings    int           `json:"red_kings"`
	BlueKings   int           `json:"blue_kings"`
	Turn        Color         `json:"turn"`
	Moves       int           `json:"moves"`
	Elapsed     time.Duration `json:"elapsed"`
	InChain     bool          `json:"in_chain"`
	MustCapture bool          `json:"must_capture"`
}

// MatchRecord is the immutable summary handed to a MatchRecorder once per match.
type MatchRecord struct {
	ID           string        `json:"id"`
	RedPlayer    string        `json:"red_player"`
	BluePlayer   string        `json:"blue_player"`
	RedPieces    int           `json:"red_pieces"`
	BluePieces   int           `json:"blue_pieces"`
	Winner       Color         `json:"winner"`
	WinnerName   string        `json:"winner_name"`
	Reason       EndReason     `json:"reason,omitempty"`
	Moves        int           `json:"moves"`
	RedCaptures  int           `json:"red_captures"`
	BlueCaptures int           `json:"blue_captures"`
	StartedAt    time.Time     `json:"started_at"`
	EndedAt      time.Time     `json:"ended_at"`
	Duration     time.Duration `json:"duration"`
	FinalBoard   Board         `json:"final_board"`
	LastMove     *Hop          `json:"last_move,omitempty"`
}

// MatchRecorder persists completed matches.
type MatchRecorder interface {
	Record(ctx context.Context, rec MatchRecord) error
}

// MatchResult is what EndGame returns for display.
type MatchResult struct {
	Winner     Color         `json:"winner"`
	WinnerName string        `json:"winner_name"`
	Reason     EndReason     `json:"reason,omitempty"`
	RedPieces  int           `json:"red_pieces"`
	BluePieces int           `json:"blue_pieces"`
	Duration   time.Duration `json:"duration"`
	MatchID    string        `json:"match_id"`
}

// MoveResult describes what a successful MovePiece did.
type MoveResult struct {
	From     Coord        `json:"from"`
	To       Coord        `json:"to"`
	Captured *Coord       `json:"captured,omitempty"`
	Promoted bool         `json:"promoted"`
	Chain    bool         `json:"chain"`
	TurnOver bool         `json:"turn_over"`
	GameOver *MatchResult `json:"game_over,omitempty"`
}

var (
	ErrOutOfBounds  = errors.New("coordinate out of bounds")
	ErrNotYourPiece = errors.New("square does not hold a piece of the side to move")
	ErrMustCapture  = errors.New("a capturing piece must be selected")
	ErrChainLocked  = errors.New("capture chain in progress with another piece")
	ErrNoSelection  = errors.New("no piece selected")
	ErrIllegalMove  = errors.New("destination is not a legal move")
	ErrGameOver     = errors.New("match is over")
	ErrMatchEnded   = errors.New("match already ended")
	ErrNotStarted   = errors.New("match not started")
	ErrBadWinner    = errors.New("winner must be red or blue")
)
