// Package engine routes emitted records from their category through the
// hierarchy to the configured handlers. It owns the category registry, the
// process lifecycle and the emission capability.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/treelog-io/treelog/pkg/handler"
	"github.com/treelog-io/treelog/pkg/level"
)

// ConfigurationError reports an invalid configuration. It is fatal at
// startup: New refuses to activate an engine with one.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Detail
}

// Engine states.
const (
	stateActive int32 = iota
	stateShuttingDown
	stateClosed
)

// Settings is the validated configuration the engine activates with.
type Settings struct {
	// RootLevel is the root category's default level. Required: level
	// resolution always terminates at the root.
	RootLevel level.Level

	// RootMinLevel is the root category's statement floor.
	RootMinLevel level.Level

	// RootHandlers names the root category's handlers.
	RootHandlers []string

	// Categories holds explicit per-category settings.
	Categories map[string]CategorySettings
}

// Engine is the dispatch engine. Create one with New, obtain loggers with
// Logger, and stop it with Shutdown.
type Engine struct {
	registry *registry
	handlers map[string]handler.Handler
	state    atomic.Int32
	seq      atomic.Uint64
	start    time.Time
}

// New validates settings against the supplied handlers and returns an
// active engine. Validation failures are ConfigurationErrors and happen
// before any record can be emitted.
func New(settings Settings, handlers map[string]handler.Handler) (*Engine, error) {
	if settings.RootLevel == 0 {
		return nil, &ConfigurationError{Detail: "root category must have an explicit level"}
	}
	if settings.RootMinLevel == 0 {
		settings.RootMinLevel = level.All
	}
	if len(settings.RootHandlers) == 0 {
		return nil, &ConfigurationError{Detail: "root category must have at least one handler"}
	}

	e := &Engine{handlers: handlers, start: time.Now()}
	lookupHandler := func(name string) (handler.Handler, bool) {
		h, ok := handlers[name]
		return h, ok
	}

	rootHandlers := make([]handler.Handler, 0, len(settings.RootHandlers))
	for _, ref := range settings.RootHandlers {
		h, ok := handlers[ref]
		if !ok {
			return nil, &ConfigurationError{Detail: fmt.Sprintf("root category references unknown handler %q", ref)}
		}
		rootHandlers = append(rootHandlers, h)
	}
	e.registry = newRegistry(settings.RootLevel, settings.RootMinLevel, rootHandlers)

	// Apply categories in name order so parents configure before children.
	names := make([]string, 0, len(settings.Categories))
	for name := range settings.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := e.registry.configure(name, settings.Categories[name], lookupHandler); err != nil {
			return nil, err
		}
	}

	// A level below the min-level floor would leave statements silently
	// unreachable; reject it now rather than at runtime.
	if name, lvl, floor, bad := e.registry.floorViolation(); bad {
		return nil, &ConfigurationError{Detail: fmt.Sprintf(
			"category %q: level %s is below min-level %s", name, lvl, floor)}
	}

	e.state.Store(stateActive)
	return e, nil
}

// EffectiveLevel resolves the runtime level for category, walking to the
// nearest ancestor with an explicit level.
func (e *Engine) EffectiveLevel(category string) level.Level {
	return e.registry.resolve(e.registry.lookup(category)).level
}

// MinLevel resolves the statement floor for category. Call sites below the
// floor are expected to be compiled out; the engine only re-validates.
func (e *Engine) MinLevel(category string) level.Level {
	return e.registry.resolve(e.registry.lookup(category)).minLevel
}

// Handlers resolves the ordered handler set for category.
func (e *Engine) Handlers(category string) []handler.Handler {
	return e.registry.resolve(e.registry.lookup(category)).handlers
}

// IsEnabledAt reports whether a record at lvl emitted on category would be
// dispatched. This is the runtime check; the min-level floor is a separate,
// build-time concern.
func (e *Engine) IsEnabledAt(category string, lvl level.Level) bool {
	return e.registry.resolve(e.registry.lookup(category)).level.Enables(lvl)
}

// SetCategoryLevel changes a category's level at runtime. The min-level
// invariant is re-validated across the whole tree: lowering a parent can
// strand a descendant with an explicit floor, so the change is applied
// tentatively under the lock and rolled back on any violation.
func (e *Engine) SetCategoryLevel(category string, lvl level.Level) error {
	n := e.registry.lookup(category)

	e.registry.mu.Lock()
	defer e.registry.mu.Unlock()

	prev := n.level
	n.level = &lvl
	if name, bad, floor, found := e.registry.floorViolation(); found {
		n.level = prev
		return &ConfigurationError{Detail: fmt.Sprintf(
			"category %q: level %s is below min-level %s", name, bad, floor)}
	}
	e.registry.gen.Add(1)
	return nil
}

// Uptime returns the time since the engine activated.
func (e *Engine) Uptime() time.Duration { return time.Since(e.start) }

// Shutdown flushes and closes every handler, bounded by ctx. Emissions that
// race shutdown are dropped best-effort; records a handler cannot drain
// before the deadline are discarded.
func (e *Engine) Shutdown(ctx context.Context) error {
	if !e.state.CompareAndSwap(stateActive, stateShuttingDown) {
		return nil
	}
	defer e.state.Store(stateClosed)

	done := make(chan error, 1)
	go func() {
		var first error
		for name, h := range e.handlers {
			if err := h.Flush(); err != nil && first == nil {
				first = fmt.Errorf("flush handler %q: %w", name, err)
			}
			if err := h.Close(); err != nil && first == nil {
				first = fmt.Errorf("close handler %q: %w", name, err)
			}
		}
		done <- first
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
