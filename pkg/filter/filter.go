// Package filter holds named record predicates that handlers attach by name.
package filter

import (
	"errors"
	"fmt"
	"sync"

	"github.com/treelog-io/treelog/pkg/model"
)

// Predicate decides whether a record is admitted by a handler.
type Predicate func(*model.Record) bool

// ErrDuplicateName is returned when registering a filter under a name that
// is already taken.
var ErrDuplicateName = errors.New("filter name already registered")

// Registry maps filter names to predicates. Registration happens during
// configuration assembly; evaluation is concurrent and read-only.
type Registry struct {
	mu      sync.RWMutex
	filters map[string]Predicate
}

// NewRegistry creates an empty filter registry.
func NewRegistry() *Registry {
	return &Registry{filters: make(map[string]Predicate)}
}

// Register binds name to p. Names are process-unique; a collision is a
// configuration error.
func (r *Registry) Register(name string, p Predicate) error {
	if p == nil {
		return fmt.Errorf("filter %q: nil predicate", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.filters[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	r.filters[name] = p
	return nil
}

// Lookup returns the predicate registered under name.
func (r *Registry) Lookup(name string) (Predicate, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.filters[name]
	return p, ok
}

// Evaluate applies the named filter to rec. An unregistered name admits
// nothing; attachment of unknown names is rejected earlier, at
// configuration-validation time.
func (r *Registry) Evaluate(name string, rec *model.Record) bool {
	p, ok := r.Lookup(name)
	if !ok {
		return false
	}
	return p(rec)
}
