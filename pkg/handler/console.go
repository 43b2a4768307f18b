package handler

import (
	"io"
	"sync"

	"github.com/treelog-io/treelog/pkg/level"
	"github.com/treelog-io/treelog/pkg/model"
)

// ANSI sequences for level coloring on the console.
const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiFaint  = "\x1b[2m"
)

// Console writes rendered records to an io.Writer, serializing writes so
// concurrent emissions never interleave.
type Console struct {
	base
	mu    sync.Mutex
	w     io.Writer
	color bool
}

// NewConsole creates a console handler writing to w. When color is true,
// records at WARN and above and below DEBUG are wrapped in ANSI colors;
// color is ignored when a structured formatter is attached (the engine
// disables it during construction).
func NewConsole(name string, w io.Writer, color bool, opts Options) *Console {
	return &Console{base: newBase(name, opts), w: w, color: color}
}

// Emit implements Handler.
func (c *Console) Emit(rec *model.Record) {
	if !c.admit(rec) {
		return
	}
	out := c.formatter.Format(rec)
	if c.color {
		if prefix := colorFor(rec.Level); prefix != "" {
			colored := make([]byte, 0, len(prefix)+len(out)+len(ansiReset))
			colored = append(colored, prefix...)
			colored = append(colored, out...)
			colored = append(colored, ansiReset...)
			out = colored
		}
	}

	c.mu.Lock()
	_, err := c.w.Write(out)
	c.mu.Unlock()
	reportError(c.name, err)
}

func colorFor(lvl level.Level) string {
	switch {
	case lvl >= level.Error:
		return ansiRed
	case lvl >= level.Warn:
		return ansiYellow
	case lvl < level.Debug:
		return ansiFaint
	}
	return ""
}

// Flush implements Handler. Console writes are unbuffered.
func (c *Console) Flush() error { return nil }

// Close implements Handler. The underlying writer (stdout/stderr) is not
// owned by the handler and stays open.
func (c *Console) Close() error { return nil }
