package matchstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/Cheese-Damas/internal/checkers"
)

// Memory keeps records in process. Used when nothing else is configured and in tests.
type Memory struct {
	mu       sync.RWMutex
	byID     map[string]checkers.MatchRecord
	byPlayer map[string][]string
}

func NewMemory() *Memory {
	return &Memory{
		byID:     make(map[string]checkers.MatchRecord),
		byPlayer: make(map[string][]string),
	}
}

func (m *Memory) Record(_ context.Context, rec checkers.MatchRecord) error {
	if err := validate(rec); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byID[rec.ID]; exists {
		return ErrDuplicateMatch
	}
	m.byID[rec.ID] = rec
	for _, p := range players(rec) {
		m.byPlayer[p] = append(m.byPlayer[p], rec.ID)
	}
	return nil
}

func (m *Memory) Get(_ context.Context, id string) (*checkers.MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byID[strings.TrimSpace(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Recent returns the player's matches, newest first.
func (m *Memory) Recent(_ context.Context, player string, limit int) ([]checkers.MatchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := m.byPlayer[strings.TrimSpace(player)]
	items := make([]checkers.MatchRecord, 0, len(ids))
	for _, id := range ids {
		items = append(items, m.byID[id])
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].EndedAt.After(items[j].EndedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
