package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/treelog-io/treelog/pkg/handler"
	"github.com/treelog-io/treelog/pkg/level"
	"github.com/treelog-io/treelog/pkg/mdc"
	"github.com/treelog-io/treelog/pkg/model"
)

// Logger is the emission capability for one category. Obtain one per
// component with Engine.Logger; loggers are safe for concurrent use.
type Logger struct {
	e    *Engine
	name string
	node *node
}

// Logger returns the emission capability for the named category, creating
// the category node lazily.
func (e *Engine) Logger(name string) *Logger {
	return &Logger{e: e, name: name, node: e.registry.lookup(name)}
}

// Name returns the logger's category name.
func (l *Logger) Name() string { return l.name }

// IsEnabled reports whether a record at lvl would currently be dispatched.
// Callers wrap expensive message construction in this check; the engine
// performs it again internally either way.
func (l *Logger) IsEnabled(lvl level.Level) bool {
	return l.e.registry.resolve(l.node).level.Enables(lvl)
}

// Log emits a record at lvl with an optional attached error. The message is
// built with fmt.Sprintf only after the category/level combination is known
// to be enabled.
func (l *Logger) Log(ctx context.Context, lvl level.Level, err error, msg string, args ...any) {
	l.emit(ctx, lvl, err, msg, args)
}

func (l *Logger) Tracef(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, level.Trace, nil, msg, args)
}

func (l *Logger) Debugf(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, level.Debug, nil, msg, args)
}

func (l *Logger) Infof(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, level.Info, nil, msg, args)
}

func (l *Logger) Warnf(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, level.Warn, nil, msg, args)
}

func (l *Logger) Errorf(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, level.Error, nil, msg, args)
}

func (l *Logger) Fatalf(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, level.Fatal, nil, msg, args)
}

func (l *Logger) emit(ctx context.Context, lvl level.Level, err error, msg string, args []any) {
	if l.e.state.Load() != stateActive {
		return
	}

	res := l.e.registry.resolve(l.node)

	// Call sites below the floor should have been elided by the caller;
	// re-validate defensively.
	if !res.minLevel.Enables(lvl) {
		return
	}
	if !res.level.Enables(lvl) {
		return
	}
	if len(res.handlers) == 0 {
		return
	}

	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}

	rec := &model.Record{
		Category:  l.name,
		Level:     lvl,
		Message:   msg,
		Time:      time.Now(),
		Sequence:  l.e.seq.Add(1),
		Goroutine: model.GoroutineID(),
		Err:       err,
		MDC:       mdc.Values(ctx),
		NDC:       mdc.Stack(ctx),
	}
	if err != nil {
		rec.ErrText = err.Error()
	}
	if res.needsCaller {
		// Skip emit and the exported wrapper to land on the call site.
		rec.Caller = model.CaptureCaller(2)
	}

	for _, h := range res.handlers {
		safeEmit(h, rec)
	}
}

// safeEmit isolates handler failures: a panicking handler is reported and
// the remaining handlers still receive the record.
func safeEmit(h handler.Handler, rec *model.Record) {
	defer func() {
		if r := recover(); r != nil {
			handler.ErrorReporter(h.Name(), fmt.Errorf("panic in emit: %v", r))
		}
	}()
	h.Emit(rec)
}
