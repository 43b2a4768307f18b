// Package model defines the immutable log record passed between the
// dispatch engine, filters, formatters and handlers.
package model

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/treelog-io/treelog/pkg/level"
)

// Caller identifies the source location that emitted a record. It is only
// captured when some attached formatter actually renders it.
type Caller struct {
	Package  string `json:"package"`
	Function string `json:"function"`
	File     string `json:"file"`
	Line     int    `json:"line"`
}

// Record is an immutable log record.
// It is constructed once at emission time and never mutated afterwards;
// each handler independently decides whether to render and emit it.
type Record struct {
	Category string      `json:"logger_name"`
	Level    level.Level `json:"-"`
	Message  string      `json:"message"`
	Time     time.Time   `json:"timestamp"`
	Sequence uint64      `json:"sequence"`

	// Goroutine is the record's "thread" identity.
	Goroutine string `json:"thread"`

	// Err is the attached error, if any. ErrText carries its rendered
	// form for structured output.
	Err     error  `json:"-"`
	ErrText string `json:"error,omitempty"`

	// MDC is the diagnostic-context snapshot active at emission time.
	MDC map[string]string `json:"mdc,omitempty"`
	// NDC is the nested diagnostic-context stack at emission time.
	NDC []string `json:"ndc,omitempty"`

	Caller *Caller `json:"caller,omitempty"`
}

// Process-wide identity, captured once. Formatters reference these for the
// host and process directives.
var (
	HostName    string
	ProcessID   = os.Getpid()
	ProcessName = filepath.Base(os.Args[0])
)

func init() {
	if h, err := os.Hostname(); err == nil {
		HostName = h
	} else {
		HostName = "localhost"
	}
}

// ShortHostName returns the host name truncated at the first dot.
func ShortHostName() string {
	for i := 0; i < len(HostName); i++ {
		if HostName[i] == '.' {
			return HostName[:i]
		}
	}
	return HostName
}

// GoroutineID returns the current goroutine's numeric id rendered as a
// string. It parses the runtime stack header, which is the only portable way
// to obtain it; callers should capture it once per record.
func GoroutineID() string {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	// Header shape: "goroutine 123 [".
	fields := bytes.Fields(buf[:n])
	if len(fields) >= 2 {
		if _, err := strconv.ParseUint(string(fields[1]), 10, 64); err == nil {
			return string(fields[1])
		}
	}
	return "0"
}

// CaptureCaller resolves the emitting frame skip levels above the caller of
// CaptureCaller. Returns nil when the frame cannot be resolved.
func CaptureCaller(skip int) *Caller {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return nil
	}
	c := &Caller{File: filepath.Base(file), Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		full := fn.Name() // e.g. github.com/x/y/pkg/engine.(*Logger).Infof
		slash := -1
		for i := len(full) - 1; i >= 0; i-- {
			if full[i] == '/' {
				slash = i
				break
			}
		}
		tail := full[slash+1:]
		for i := 0; i < len(tail); i++ {
			if tail[i] == '.' {
				c.Package = full[:slash+1+i]
				c.Function = tail[i+1:]
				break
			}
		}
		if c.Function == "" {
			c.Function = full
		}
	}
	return c
}
