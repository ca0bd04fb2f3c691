package matchstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/park285/Cheese-Damas/internal/boardimg"
	"github.com/park285/Cheese-Damas/internal/checkers"
)

// BoardRenderer turns a board into PNG bytes.
type BoardRenderer interface {
	RenderPNG(ctx context.Context, b checkers.Board, opts boardimg.Options) ([]byte, error)
}

// Snapshots writes the final position of each match to <dir>/<match id>.png.
type Snapshots struct {
	dir      string
	renderer BoardRenderer
}

func NewSnapshots(dir string, renderer BoardRenderer) (*Snapshots, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("snapshot dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot dir: %w", err)
	}
	if renderer == nil {
		renderer = boardimg.NewRenderer()
	}
	return &Snapshots{dir: dir, renderer: renderer}, nil
}

func (s *Snapshots) Path(id string) string {
	return filepath.Join(s.dir, filepath.Base(strings.TrimSpace(id))+".png")
}

func (s *Snapshots) Record(ctx context.Context, rec checkers.MatchRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	title := fmt.Sprintf("%s x %s - %s", rec.RedPlayer, rec.BluePlayer, rec.WinnerName)
	opts := boardimg.Options{Title: title}
	if rec.LastMove != nil {
		opts.Highlight = []checkers.Coord{rec.LastMove.From, rec.LastMove.To}
	}
	raw, err := s.renderer.RenderPNG(ctx, rec.FinalBoard, opts)
	if err != nil {
		return fmt.Errorf("render snapshot: %w", err)
	}
	tmp := s.Path(rec.ID) + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, s.Path(rec.ID))
}
