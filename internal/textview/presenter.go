package textview

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Presenter writes formatted blocks to a terminal. Safe for concurrent use
// so relay events and command replies do not interleave mid-line.
type Presenter struct {
	mu  sync.Mutex
	out io.Writer
	Fmt *Formatter
}

func NewPresenter(out io.Writer, f *Formatter) *Presenter {
	if f == nil {
		f = NewFormatter(nil)
	}
	return &Presenter{out: out, Fmt: f}
}

func (p *Presenter) Say(text string) {
	text = strings.TrimRight(text, "\n")
	if strings.TrimSpace(text) == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = fmt.Fprintln(p.out, text)
}

func (p *Presenter) Sayf(key string, data map[string]any) { p.Say(p.Fmt.Text(key, data)) }
