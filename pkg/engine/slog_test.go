package engine

import (
	"log/slog"
	"testing"

	"github.com/treelog-io/treelog/pkg/handler"
	"github.com/treelog-io/treelog/pkg/level"
)

func TestSlogBridgeRoutesThroughHierarchy(t *testing.T) {
	mem := &memHandler{}
	e := newTestEngine(t, defaultSettings(map[string]CategorySettings{
		"io.hibernate": {Level: levelPtr(level.Debug)},
	}), map[string]handler.Handler{"mem": mem})

	logger := slog.New(NewSlogHandler(e, "io.hibernate"))
	logger.Debug("query executed", "rows", 12)

	other := slog.New(NewSlogHandler(e, "io.other"))
	other.Debug("dropped by root INFO")

	recs := mem.records()
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(recs))
	}
	if recs[0].Category != "io.hibernate" {
		t.Errorf("Category: %q", recs[0].Category)
	}
	if recs[0].Level != level.Debug {
		t.Errorf("Level: %s", recs[0].Level)
	}
	if recs[0].Message != "query executed rows=12" {
		t.Errorf("Message: %q", recs[0].Message)
	}
}

func TestSlogBridgeWithAttrsAndGroups(t *testing.T) {
	mem := &memHandler{}
	e := newTestEngine(t, defaultSettings(nil), map[string]handler.Handler{"mem": mem})

	logger := slog.New(NewSlogHandler(e, "io.app")).With("service", "billing").WithGroup("http")
	logger.Info("handled", "status", 200)

	recs := mem.records()
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(recs))
	}
	want := "handled service=billing http.status=200"
	if recs[0].Message != want {
		t.Errorf("Expected %q, got %q", want, recs[0].Message)
	}
}

func TestNativeLevelClamping(t *testing.T) {
	cases := map[slog.Level]level.Level{
		slog.LevelDebug:     level.Debug,
		slog.LevelInfo:      level.Info,
		slog.LevelWarn:      level.Warn,
		slog.LevelError:     level.Error,
		slog.LevelDebug - 4: level.Trace,
		slog.LevelInfo - 2:  level.Debug,
		slog.LevelWarn - 1:  level.Info,
		slog.LevelError - 1: level.Warn,
		slog.LevelError + 4: level.Error,
	}
	for sl, want := range cases {
		if got := nativeLevel(sl); got != want {
			t.Errorf("nativeLevel(%v): expected %s, got %s", sl, want, got)
		}
	}
}
