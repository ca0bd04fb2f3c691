package checkers

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Size is the board edge length.
const Size = 8

// Board is an 8x8 grid indexed [row][col]. It is a value type; copies are independent.
type Board [Size][Size]Cell

// NewBoard returns the standard starting position: BLUE men on the dark
// squares of rows 0-2, RED men on the dark squares of rows 5-7.
func NewBoard() Board {
	var b Board
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if (r+c)%2 == 0 {
				continue
			}
			switch {
			case r < 3:
				b[r][c] = BlueMan
			case r > 4:
				b[r][c] = RedMan
			}
		}
	}
	return b
}

func (b Board) At(at Coord) Cell {
	if !at.InBounds() {
		return Empty
	}
	return b[at.Row][at.Col]
}

func (b *Board) Set(at Coord, c Cell) {
	if at.InBounds() {
		b[at.Row][at.Col] = c
	}
}

// Count returns the number of pieces and kings of a colour.
func (b Board) Count(color Color) (pieces, kings int) {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			cell := b[r][c]
			if cell.Color() != color {
				continue
			}
			pieces++
			if cell.IsKing() {
				kings++
			}
		}
	}
	return pieces, kings
}

// Squares returns the coordinates of every piece of the colour, row-major.
func (b Board) Squares(color Color) []Coord {
	var out []Coord
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c].Color() == color {
				out = append(out, Coord{Row: r, Col: c})
			}
		}
	}
	return out
}

// Validate checks the placement invariant: pieces only on dark squares.
func (b Board) Validate() error {
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			if b[r][c] != Empty && (r+c)%2 == 0 {
				return fmt.Errorf("piece on light square %v", Coord{Row: r, Col: c})
			}
			if b[r][c] > BlueKing {
				return fmt.Errorf("invalid cell value %d at %v", b[r][c], Coord{Row: r, Col: c})
			}
		}
	}
	return nil
}

// String renders the grid one row per line using r/b for men and R/B for kings.
func (b Board) String() string {
	var sb strings.Builder
	for r := 0; r < Size; r++ {
		for c := 0; c < Size; c++ {
			sb.WriteString(b[r][c].String())
		}
		if r < Size-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// ParseBoard reads the String form back. Rows may be separated by newlines or '/'.
func ParseBoard(s string) (Board, error) {
	var b Board
	s = strings.ReplaceAll(strings.TrimSpace(s), "/", "\n")
	rows := strings.Split(s, "\n")
	if len(rows) != Size {
		return b, fmt.Errorf("expected %d rows, got %d", Size, len(rows))
	}
	for r, line := range rows {
		line = strings.TrimSpace(line)
		if len(line) != Size {
			return b, fmt.Errorf("row %d: expected %d cells, got %d", r, Size, len(line))
		}
		for c := 0; c < Size; c++ {
			switch line[c] {
			case '.', '-':
				b[r][c] = Empty
			case 'r':
				b[r][c] = RedMan
			case 'b':
				b[r][c] = BlueMan
			case 'R':
				b[r][c] = RedKing
			case 'B':
				b[r][c] = BlueKing
			default:
				return b, fmt.Errorf("row %d col %d: unknown cell %q", r, c, line[c])
			}
		}
	}
	return b, b.Validate()
}

func (b Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.ReplaceAll(b.String(), "\n", "/"))
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseBoard(s)
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}
