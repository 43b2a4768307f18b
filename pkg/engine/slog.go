package engine

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/treelog-io/treelog/pkg/level"
)

// SlogHandler adapts a slog.Logger onto the engine, so code written against
// the standard structured API routes through the category hierarchy. Levels
// translate through the secondary scale; slog values without an exact
// equivalent are clamped to the nearest native level rather than dropped.
type SlogHandler struct {
	logger *Logger
	attrs  []slog.Attr
	prefix string // group prefix, dot-joined
}

// NewSlogHandler returns a slog handler emitting on the named category.
func NewSlogHandler(e *Engine, category string) *SlogHandler {
	return &SlogHandler{logger: e.Logger(category)}
}

// nativeLevel translates a slog level, handling the unmappable case
// explicitly by clamping to the nearest native level.
func nativeLevel(sl slog.Level) level.Level {
	lvl, err := level.FromSlog(sl)
	if err == nil {
		return lvl
	}
	if !errors.Is(err, level.ErrUnmappable) {
		return level.Info
	}
	switch {
	case sl < slog.LevelDebug:
		return level.Trace
	case sl < slog.LevelInfo:
		return level.Debug
	case sl < slog.LevelWarn:
		return level.Info
	case sl < slog.LevelError:
		return level.Warn
	default:
		return level.Error
	}
}

// Enabled implements slog.Handler.
func (h *SlogHandler) Enabled(_ context.Context, sl slog.Level) bool {
	return h.logger.IsEnabled(nativeLevel(sl))
}

// Handle implements slog.Handler. Attributes are appended to the message as
// key=value pairs; the engine's own MDC travels on ctx as usual.
func (h *SlogHandler) Handle(ctx context.Context, rec slog.Record) error {
	var b strings.Builder
	b.WriteString(rec.Message)
	write := func(key string, a slog.Attr) {
		b.WriteByte(' ')
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(a.Value.String())
	}
	for _, a := range h.attrs {
		// Pre-bound attrs were qualified when added.
		write(a.Key, a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		write(h.qualify(a.Key), a)
		return true
	})
	h.logger.Log(ctx, nativeLevel(rec.Level), nil, "%s", b.String())
	return nil
}

func (h *SlogHandler) qualify(key string) string {
	if h.prefix == "" {
		return key
	}
	return h.prefix + "." + key
}

// WithAttrs implements slog.Handler. Keys are qualified with the group
// prefix open at the time the attribute is bound.
func (h *SlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append([]slog.Attr{}, h.attrs...)
	for _, a := range attrs {
		a.Key = h.qualify(a.Key)
		next.attrs = append(next.attrs, a)
	}
	return &next
}

// WithGroup implements slog.Handler.
func (h *SlogHandler) WithGroup(name string) slog.Handler {
	next := *h
	if next.prefix == "" {
		next.prefix = name
	} else {
		next.prefix += "." + name
	}
	return &next
}
