// Package handler implements the configured output sinks: console, file with
// size rotation, RFC 5424 syslog, and an async buffering wrapper.
package handler

import (
	"log"
	"os"

	"github.com/treelog-io/treelog/pkg/filter"
	"github.com/treelog-io/treelog/pkg/format"
	"github.com/treelog-io/treelog/pkg/level"
	"github.com/treelog-io/treelog/pkg/model"
)

// Handler is a named sink with its own admission policy. Emit is a silent
// no-op for records the handler does not admit; it never returns an error
// into the emitting code path.
type Handler interface {
	Name() string
	Emit(rec *model.Record)
	NeedsCaller() bool
	Flush() error
	Close() error
}

// ErrorReporter receives sink failures. It must never log back through the
// failing handler; the default writes to stderr via the stdlib logger.
var ErrorReporter = func(handlerName string, err error) {
	log.New(os.Stderr, "", log.LstdFlags).Printf("treelog: handler %q: %v", handlerName, err)
}

func reportError(name string, err error) {
	if rep := ErrorReporter; rep != nil && err != nil {
		rep(name, err)
	}
}

// base carries the admission policy shared by all concrete handlers.
type base struct {
	name      string
	enabled   bool
	threshold level.Level
	formatter format.Formatter
	filter    filter.Predicate
}

// Options configures a handler's shared admission policy.
type Options struct {
	// Enabled gates the handler entirely; a disabled handler ignores
	// every record.
	Enabled bool

	// Level is the handler's own threshold, applied after the category
	// level check. Zero value means admit everything the category allowed.
	Level level.Level

	// Formatter renders admitted records. Required.
	Formatter format.Formatter

	// Filter, when set, must also admit the record.
	Filter filter.Predicate
}

func newBase(name string, opts Options) base {
	threshold := opts.Level
	if threshold == 0 {
		threshold = level.All
	}
	return base{
		name:      name,
		enabled:   opts.Enabled,
		threshold: threshold,
		formatter: opts.Formatter,
		filter:    opts.Filter,
	}
}

func (b *base) Name() string { return b.name }

func (b *base) NeedsCaller() bool {
	return b.formatter != nil && b.formatter.NeedsCaller()
}

// admit applies the shared policy: disabled, below threshold, or rejected by
// the attached filter all result in a silent no-op.
func (b *base) admit(rec *model.Record) bool {
	if !b.enabled || b.formatter == nil {
		return false
	}
	if !b.threshold.Enables(rec.Level) {
		return false
	}
	if b.filter != nil && !b.filter(rec) {
		return false
	}
	return true
}
