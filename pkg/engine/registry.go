package engine

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/treelog-io/treelog/pkg/handler"
	"github.com/treelog-io/treelog/pkg/level"
)

// CategorySettings is the explicit configuration of one category node.
// Nil fields inherit from the parent chain.
type CategorySettings struct {
	Level             *level.Level
	MinLevel          *level.Level
	UseParentHandlers *bool
	Handlers          []string
}

// node is one category in the hierarchy. Nodes are created lazily on first
// configuration reference or first emission and live for the process
// lifetime.
type node struct {
	name   string
	parent *node

	// Explicit settings; nil inherits.
	level      *level.Level
	minLevel   *level.Level
	useParents bool
	handlers   []handler.Handler

	// Cached resolution, valid while its generation matches the registry.
	res atomic.Pointer[resolution]
}

// resolution is the effective configuration of a category, computed once per
// generation and read lock-free on the emission hot path.
type resolution struct {
	gen         uint64
	level       level.Level
	minLevel    level.Level
	handlers    []handler.Handler
	needsCaller bool
}

// registry is the hierarchical category namespace. Configuration mutation
// takes the coarse mutex and bumps the generation; resolution on the hot
// path only touches the per-node cache.
type registry struct {
	mu    sync.Mutex
	nodes sync.Map // name -> *node
	gen   atomic.Uint64
	root  *node
}

func newRegistry(rootLevel, rootMinLevel level.Level, rootHandlers []handler.Handler) *registry {
	r := &registry{}
	root := &node{
		name:     "",
		level:    &rootLevel,
		minLevel: &rootMinLevel,
		handlers: rootHandlers,
	}
	r.root = root
	r.nodes.Store("", root)
	r.gen.Store(1)
	return r
}

// parentName strips the last dot-separated segment; the parent of a
// single-segment name is the root.
func parentName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		return name[:i]
	}
	return ""
}

// lookup returns the node for name, creating it and its ancestors lazily.
func (r *registry) lookup(name string) *node {
	if n, ok := r.nodes.Load(name); ok {
		return n.(*node)
	}
	parent := r.lookup(parentName(name))
	n := &node{name: name, parent: parent, useParents: true}
	actual, _ := r.nodes.LoadOrStore(name, n)
	return actual.(*node)
}

// configure applies explicit settings to a category under the registry lock
// and invalidates every cached resolution.
func (r *registry) configure(name string, s CategorySettings, resolveHandler func(string) (handler.Handler, bool)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.lookup(name)
	n.level = s.Level
	n.minLevel = s.MinLevel
	if s.UseParentHandlers != nil {
		n.useParents = *s.UseParentHandlers
	} else {
		n.useParents = true
	}
	n.handlers = nil
	for _, ref := range s.Handlers {
		h, ok := resolveHandler(ref)
		if !ok {
			return &ConfigurationError{Detail: "category " + quoteName(name) + " references unknown handler " + quoteName(ref)}
		}
		n.handlers = append(n.handlers, h)
	}
	r.gen.Add(1)
	return nil
}

// resolve returns the effective configuration for n, computing and caching
// it when the cache is stale.
func (r *registry) resolve(n *node) *resolution {
	gen := r.gen.Load()
	if res := n.res.Load(); res != nil && res.gen == gen {
		return res
	}

	res := &resolution{
		gen:      gen,
		level:    r.effectiveLevel(n),
		minLevel: r.effectiveMinLevel(n),
		handlers: r.effectiveHandlers(n),
	}
	for _, h := range res.handlers {
		if h.NeedsCaller() {
			res.needsCaller = true
			break
		}
	}
	n.res.Store(res)
	return res
}

// effectiveLevel walks from n toward the root and returns the first explicit
// level. The root always has one.
func (r *registry) effectiveLevel(n *node) level.Level {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.level != nil {
			return *cur.level
		}
	}
	return *r.root.level
}

func (r *registry) effectiveMinLevel(n *node) level.Level {
	for cur := n; cur != nil; cur = cur.parent {
		if cur.minLevel != nil {
			return *cur.minLevel
		}
	}
	return *r.root.minLevel
}

// effectiveHandlers returns n's own handlers when set; otherwise the
// parent's resolved handlers when use-parent-handlers is true, recursively
// to the root; otherwise no handlers at all.
func (r *registry) effectiveHandlers(n *node) []handler.Handler {
	for cur := n; cur != nil; cur = cur.parent {
		if len(cur.handlers) > 0 {
			return cur.handlers
		}
		if !cur.useParents {
			return nil
		}
	}
	return nil
}

// floorViolation scans every registered node for an effective level below
// its effective min-level floor. The ALL sentinel is exempt: it admits
// everything at runtime while the floor elides call sites below it.
func (r *registry) floorViolation() (name string, lvl, floor level.Level, found bool) {
	r.nodes.Range(func(_, v any) bool {
		n := v.(*node)
		l := r.effectiveLevel(n)
		f := r.effectiveMinLevel(n)
		if l != level.All && l < f {
			name, lvl, floor, found = n.name, l, f, true
			return false
		}
		return true
	})
	return name, lvl, floor, found
}

func quoteName(s string) string { return "\"" + s + "\"" }
