package textview

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/Cheese-Damas/internal/checkers"
	"github.com/park285/Cheese-Damas/internal/msgcat"
	"github.com/park285/Cheese-Damas/internal/netplay"
)

// Formatter renders engine state and session events as terminal text.
type Formatter struct {
	cat *msgcat.Catalog
}

func NewFormatter(cat *msgcat.Catalog) *Formatter {
	if cat == nil {
		cat = msgcat.MustDefault()
	}
	return &Formatter{cat: cat}
}

func (f *Formatter) Text(key string, data map[string]any) string { return f.cat.Text(key, data) }

func (f *Formatter) ColorName(c checkers.Color) string {
	switch c {
	case checkers.Red, checkers.Blue:
		return f.cat.Text("client.color."+string(c), nil)
	}
	return "-"
}

func (f *Formatter) reason(r checkers.EndReason) string {
	if r == "" {
		return "-"
	}
	return f.cat.Text("client.reason."+string(r), nil)
}

// Board draws the grid with row numbers on the left and column numbers on
// top. Destinations of the current selection are marked with '*', the
// selected piece is bracketed.
func (f *Formatter) Board(b checkers.Board, selected *checkers.Coord, moves []checkers.Move) string {
	targets := make(map[checkers.Coord]bool, len(moves))
	for _, m := range moves {
		targets[m.To] = true
	}
	var sb strings.Builder
	sb.WriteString("    0  1  2  3  4  5  6  7\n")
	for r := 0; r < checkers.Size; r++ {
		fmt.Fprintf(&sb, "%d ", r)
		for c := 0; c < checkers.Size; c++ {
			at := checkers.Coord{Row: r, Col: c}
			glyph := b.At(at).String()
			switch {
			case targets[at]:
				glyph = "*"
			case glyph == "." && !at.Dark():
				glyph = " "
			}
			if selected != nil && *selected == at {
				fmt.Fprintf(&sb, "[%s]", glyph)
			} else {
				fmt.Fprintf(&sb, " %s ", glyph)
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (f *Formatter) Score(s checkers.Stats) string {
	return f.cat.Text("client.score", map[string]any{
		"RedPieces":  s.RedPieces,
		"RedKings":   s.RedKings,
		"BluePieces": s.BluePieces,
		"BlueKings":  s.BlueKings,
		"Moves":      s.Moves,
	})
}

func (f *Formatter) Selected(at checkers.Coord, moves []checkers.Move) string {
	dests := make([]string, 0, len(moves))
	for _, m := range moves {
		dests = append(dests, m.To.String())
	}
	list := strings.Join(dests, " ")
	if list == "" {
		list = "-"
	}
	return f.cat.Text("client.selected", map[string]any{"At": at.String(), "Moves": list})
}

// Move describes one hop by name, including capture, crowning and chain.
func (f *Formatter) Move(name string, res *checkers.MoveResult) string {
	if res == nil {
		return ""
	}
	lines := []string{f.cat.Text("client.moved", map[string]any{"Name": name, "From": res.From.String(), "To": res.To.String()})}
	if res.Captured != nil {
		lines = append(lines, f.cat.Text("client.captured", map[string]any{"Name": name, "At": res.Captured.String()}))
	}
	if res.Promoted {
		lines = append(lines, f.cat.Text("client.promoted", map[string]any{"At": res.To.String()}))
	}
	if res.Chain {
		lines = append(lines, f.cat.Text("client.chain", nil))
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) GameOver(res *checkers.MatchResult) string {
	if res == nil {
		return ""
	}
	winner := res.WinnerName
	if strings.TrimSpace(winner) == "" {
		winner = f.ColorName(res.Winner)
	}
	return f.cat.Text("client.game_over", map[string]any{
		"Winner":   winner,
		"Reason":   f.reason(res.Reason),
		"Duration": formatDuration(res.Duration),
	})
}

func (f *Formatter) Turn(name string, c checkers.Color) string {
	return f.cat.Text("client.turn", map[string]any{"Name": name, "Color": f.ColorName(c)})
}

// Event renders a session event; opponentName names the mover for moves.
func (f *Formatter) Event(ev netplay.Event, opponentName string) string {
	switch ev.Kind {
	case netplay.EventRoomCreated:
		return f.cat.Text("client.room_created", map[string]any{"Code": ev.RoomCode})
	case netplay.EventJoined:
		return f.cat.Text("client.joined", map[string]any{"Host": ev.HostName})
	case netplay.EventPlayerJoined:
		return f.cat.Text("client.player_joined", map[string]any{"Name": ev.ClientName})
	case netplay.EventGameStarted:
		return f.cat.Text("client.game_started", map[string]any{"Red": ev.HostName, "Blue": ev.ClientName})
	case netplay.EventOpponentMoved:
		return f.Move(opponentName, ev.Move)
	case netplay.EventGameOver:
		return f.GameOver(ev.Result)
	case netplay.EventOpponentLeft:
		return f.cat.Text("client.opponent_left", nil)
	case netplay.EventServerError:
		return f.cat.Text("client.server_error", map[string]any{"Message": ev.Text})
	case netplay.EventDesync:
		return f.cat.Text("client.desync", nil)
	}
	return ""
}

// History lists finished matches, newest first.
func (f *Formatter) History(recs []checkers.MatchRecord) string {
	if len(recs) == 0 {
		return "-"
	}
	var sb strings.Builder
	for i, r := range recs {
		fmt.Fprintf(&sb, "%d. %s x %s | %s (%s) | %d jogadas | %s\n",
			i+1, r.RedPlayer, r.BluePlayer, r.WinnerName, f.reason(r.Reason), r.Moves, formatDuration(r.Duration))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := int(d / time.Minute)
	s := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%d:%02d", m, s)
}
