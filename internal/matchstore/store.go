package matchstore

import (
	"context"
	"errors"
	"strings"

	"github.com/park285/Cheese-Damas/internal/checkers"
)

var (
	ErrNotFound       = errors.New("match not found")
	ErrDuplicateMatch = errors.New("match already recorded")
	ErrInvalidRecord  = errors.New("match record without id")
)

// Store records finished matches and serves recent history per player.
type Store interface {
	checkers.MatchRecorder
	Get(ctx context.Context, id string) (*checkers.MatchRecord, error)
	Recent(ctx context.Context, player string, limit int) ([]checkers.MatchRecord, error)
}

func validate(rec checkers.MatchRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return ErrInvalidRecord
	}
	return nil
}

// players returns the distinct non-empty player names of a record.
func players(rec checkers.MatchRecord) []string {
	out := make([]string, 0, 2)
	for _, p := range []string{rec.RedPlayer, rec.BluePlayer} {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if len(out) == 1 && out[0] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}
