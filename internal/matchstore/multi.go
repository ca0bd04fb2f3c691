package matchstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/park285/Cheese-Damas/internal/checkers"
)

// Multi hands each record to every sink. All sinks are attempted; failures
// are joined.
type Multi struct {
	sinks []namedSink
}

type namedSink struct {
	name string
	rec  checkers.MatchRecorder
}

func NewMulti() *Multi { return &Multi{} }

func (m *Multi) Add(name string, r checkers.MatchRecorder) *Multi {
	if r != nil {
		m.sinks = append(m.sinks, namedSink{name: name, rec: r})
	}
	return m
}

func (m *Multi) Len() int { return len(m.sinks) }

func (m *Multi) Record(ctx context.Context, rec checkers.MatchRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.rec.Record(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}
