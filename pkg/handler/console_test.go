package handler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/treelog-io/treelog/pkg/format"
	"github.com/treelog-io/treelog/pkg/level"
	"github.com/treelog-io/treelog/pkg/model"
)

func record(lvl level.Level, msg string) *model.Record {
	return &model.Record{Category: "io.test", Level: lvl, Message: msg}
}

func plainOpts(t *testing.T, lvl level.Level) Options {
	t.Helper()
	f, err := format.NewPattern("%p %s%n")
	if err != nil {
		t.Fatalf("NewPattern failed: %v", err)
	}
	return Options{Enabled: true, Level: lvl, Formatter: f}
}

func TestConsoleEmit(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole("console", &buf, false, plainOpts(t, level.All))

	c.Emit(record(level.Info, "hello"))
	if got := buf.String(); got != "INFO hello\n" {
		t.Errorf("Expected %q, got %q", "INFO hello\n", got)
	}
}

func TestConsoleLevelThreshold(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole("console", &buf, false, plainOpts(t, level.Warn))

	c.Emit(record(level.Info, "dropped"))
	c.Emit(record(level.Error, "kept"))

	if got := buf.String(); got != "ERROR kept\n" {
		t.Errorf("Expected only the ERROR line, got %q", got)
	}
}

func TestConsoleDisabled(t *testing.T) {
	var buf bytes.Buffer
	opts := plainOpts(t, level.All)
	opts.Enabled = false
	c := NewConsole("console", &buf, false, opts)

	c.Emit(record(level.Fatal, "silent"))
	if buf.Len() != 0 {
		t.Errorf("Disabled handler must emit nothing, got %q", buf.String())
	}
}

func TestConsoleFilter(t *testing.T) {
	var buf bytes.Buffer
	opts := plainOpts(t, level.All)
	opts.Filter = func(rec *model.Record) bool {
		return !strings.Contains(rec.Message, "noise")
	}
	c := NewConsole("console", &buf, false, opts)

	c.Emit(record(level.Info, "noise"))
	c.Emit(record(level.Info, "signal"))

	if got := buf.String(); got != "INFO signal\n" {
		t.Errorf("Expected only the filtered-in line, got %q", got)
	}
}

func TestConsoleColor(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole("console", &buf, true, plainOpts(t, level.All))

	c.Emit(record(level.Error, "boom"))
	got := buf.String()
	if !strings.HasPrefix(got, ansiRed) || !strings.HasSuffix(got, ansiReset) {
		t.Errorf("Expected red-wrapped output, got %q", got)
	}

	buf.Reset()
	c.Emit(record(level.Info, "plain"))
	if strings.Contains(buf.String(), "\x1b[") {
		t.Errorf("INFO must not be colored, got %q", buf.String())
	}
}

// A failing sink goes to the error reporter, never back to the caller.
func TestConsoleSinkErrorReported(t *testing.T) {
	saved := ErrorReporter
	defer func() { ErrorReporter = saved }()

	var reported []string
	ErrorReporter = func(name string, err error) {
		reported = append(reported, name+": "+err.Error())
	}

	c := NewConsole("broken", failingWriter{}, false, plainOpts(t, level.All))
	c.Emit(record(level.Info, "hello"))

	if len(reported) != 1 || !strings.Contains(reported[0], "broken") {
		t.Errorf("Expected one reported failure for %q, got %v", "broken", reported)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errInjected
}

var errInjected = errInjectedType{}

type errInjectedType struct{}

func (errInjectedType) Error() string { return "injected write failure" }
