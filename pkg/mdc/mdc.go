// Package mdc carries per-task diagnostic context.
//
// Values are attached to a context.Context rather than to the executing
// goroutine, so they follow the logical task across asynchronous hand-offs:
// a continuation resumed on a different goroutine sees the values set by the
// task that spawned it, and sibling tasks sharing pool goroutines can never
// observe each other's values.
package mdc

import "context"

type mdcKey struct{}
type ndcKey struct{}

// Snapshot is an opaque handle to a task's diagnostic context, taken with
// Capture and re-attached with Restore on the receiving side of a hand-off.
type Snapshot struct {
	values map[string]string
	stack  []string
}

func values(ctx context.Context) map[string]string {
	m, _ := ctx.Value(mdcKey{}).(map[string]string)
	return m
}

func stack(ctx context.Context) []string {
	s, _ := ctx.Value(ndcKey{}).([]string)
	return s
}

// Put returns a context carrying key=value in addition to ctx's existing
// diagnostic values. The underlying map is copied, never shared, so contexts
// derived before the call are unaffected.
func Put(ctx context.Context, key, value string) context.Context {
	old := values(ctx)
	next := make(map[string]string, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[key] = value
	return context.WithValue(ctx, mdcKey{}, next)
}

// Get reports the diagnostic value for key, if present.
func Get(ctx context.Context, key string) (string, bool) {
	v, ok := values(ctx)[key]
	return v, ok
}

// Remove returns a context without key. Returns ctx unchanged when the key
// is absent.
func Remove(ctx context.Context, key string) context.Context {
	old := values(ctx)
	if _, ok := old[key]; !ok {
		return ctx
	}
	next := make(map[string]string, len(old)-1)
	for k, v := range old {
		if k != key {
			next[k] = v
		}
	}
	return context.WithValue(ctx, mdcKey{}, next)
}

// Push returns a context with value pushed onto the nested diagnostic stack.
func Push(ctx context.Context, value string) context.Context {
	old := stack(ctx)
	next := make([]string, len(old)+1)
	copy(next, old)
	next[len(old)] = value
	return context.WithValue(ctx, ndcKey{}, next)
}

// Pop returns a context with the top nested diagnostic value removed.
func Pop(ctx context.Context) context.Context {
	old := stack(ctx)
	if len(old) == 0 {
		return ctx
	}
	next := make([]string, len(old)-1)
	copy(next, old[:len(old)-1])
	return context.WithValue(ctx, ndcKey{}, next)
}

// Capture snapshots ctx's diagnostic context for propagation across an
// asynchronous boundary. The snapshot is immutable; later Puts on either
// side do not affect it.
func Capture(ctx context.Context) Snapshot {
	return Snapshot{values: values(ctx), stack: stack(ctx)}
}

// Restore attaches the snapshot to ctx, replacing any diagnostic context it
// already carries. The returned context is scoped to the continuation that
// receives it; discarding it reverts to the receiver's own context, so a
// restore can never leak values into unrelated tasks.
func (s Snapshot) Restore(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, mdcKey{}, s.values)
	return context.WithValue(ctx, ndcKey{}, s.stack)
}

// Values returns a copy of ctx's diagnostic map for embedding into a record.
// Returns nil when no values are set.
func Values(ctx context.Context) map[string]string {
	old := values(ctx)
	if len(old) == 0 {
		return nil
	}
	out := make(map[string]string, len(old))
	for k, v := range old {
		out[k] = v
	}
	return out
}

// Stack returns a copy of ctx's nested diagnostic stack, bottom first.
func Stack(ctx context.Context) []string {
	old := stack(ctx)
	if len(old) == 0 {
		return nil
	}
	out := make([]string, len(old))
	copy(out, old)
	return out
}
