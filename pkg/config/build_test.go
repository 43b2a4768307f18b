package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/treelog-io/treelog/pkg/engine"
	"github.com/treelog-io/treelog/pkg/filter"
	"github.com/treelog-io/treelog/pkg/level"
	"github.com/treelog-io/treelog/pkg/model"
)

func buildAndShutdown(t *testing.T, cfg *Config, filters *filter.Registry) *engine.Engine {
	t.Helper()
	e, err := Build(cfg, filters)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		e.Shutdown(ctx)
	})
	return e
}

func TestBuildDefaultConfig(t *testing.T) {
	e := buildAndShutdown(t, Default(), filter.NewRegistry())

	if !e.IsEnabledAt("anything", level.Info) {
		t.Error("Default root INFO must enable INFO")
	}
	if e.IsEnabledAt("anything", level.Debug) {
		t.Error("Default root INFO must not enable DEBUG")
	}
	if hs := e.Handlers(""); len(hs) != 1 || hs[0].Name() != "console" {
		t.Errorf("Expected console as the only root handler, got %v", hs)
	}
}

func TestBuildFileHandlerEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	cfg := Default()
	cfg.File.Enable = true
	cfg.File.Path = path
	cfg.File.JSON = true
	cfg.Handlers = []string{"file"}

	e := buildAndShutdown(t, cfg, filter.NewRegistry())
	e.Logger("io.app").Infof(context.Background(), "written to disk")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(content), `"message":"written to disk"`) {
		t.Errorf("Unexpected file content: %q", content)
	}
}

func TestBuildInvalidPatternRejected(t *testing.T) {
	cfg := Default()
	cfg.Console.Format = "%q bad"

	_, err := Build(cfg, filter.NewRegistry())
	var cfgErr *engine.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
}

func TestBuildUnknownFilterRejected(t *testing.T) {
	cfg := Default()
	cfg.Console.Filter = "unregistered"

	_, err := Build(cfg, filter.NewRegistry())
	var cfgErr *engine.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
}

func TestBuildFilterAttached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	filters := filter.NewRegistry()
	if err := filters.Register("drop-noise", func(rec *model.Record) bool {
		return !strings.Contains(rec.Message, "noise")
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	cfg := Default()
	cfg.File.Enable = true
	cfg.File.Path = path
	cfg.File.Format = "%s%n"
	cfg.File.Filter = "drop-noise"
	cfg.Handlers = []string{"file"}

	e := buildAndShutdown(t, cfg, filters)
	ctx := context.Background()
	e.Logger("io.app").Infof(ctx, "noise")
	e.Logger("io.app").Infof(ctx, "signal")

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	e.Shutdown(shutdownCtx)

	content, _ := os.ReadFile(path)
	if string(content) != "signal\n" {
		t.Errorf("Filter not applied: %q", content)
	}
}

func TestBuildMinLevelConflictRejected(t *testing.T) {
	cfg := Default() // min-level DEBUG
	trace := level.Trace
	cfg.Categories = map[string]CategoryConfig{
		"io.app": {Level: &trace},
	}

	_, err := Build(cfg, filter.NewRegistry())
	var cfgErr *engine.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
}

func TestBuildUnknownCategoryHandlerRejected(t *testing.T) {
	cfg := Default()
	cfg.Categories = map[string]CategoryConfig{
		"io.app": {Handlers: []string{"nonexistent"}},
	}

	_, err := Build(cfg, filter.NewRegistry())
	var cfgErr *engine.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
}

func TestBuildNamedHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	cfg := Default()
	cfg.Named = map[string]NamedHandlerConfig{
		"audit": {
			Kind: "file",
			File: &FileConfig{
				Enable: true,
				Path:   path,
				HandlerCommon: HandlerCommon{
					Format: "%p %s%n",
				},
			},
		},
	}
	cfg.Categories = map[string]CategoryConfig{
		"audit.trail": {Handlers: []string{"audit"}},
	}

	e := buildAndShutdown(t, cfg, filter.NewRegistry())
	e.Logger("audit.trail").Infof(context.Background(), "user login")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	e.Shutdown(ctx)

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(content) != "INFO user login\n" {
		t.Errorf("Named handler output: %q", content)
	}
}

func TestBuildUnknownNamedKindRejected(t *testing.T) {
	cfg := Default()
	cfg.Named = map[string]NamedHandlerConfig{
		"weird": {Kind: "carrier-pigeon"},
	}
	_, err := Build(cfg, filter.NewRegistry())
	var cfgErr *engine.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Expected ConfigurationError, got %v", err)
	}
}

func TestBuildAsyncWrapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	cfg := Default()
	cfg.File.Enable = true
	cfg.File.Path = path
	cfg.File.Format = "%s%n"
	cfg.File.Async = AsyncConfig{Enable: true, QueueSize: 32}
	cfg.Handlers = []string{"file"}

	e := buildAndShutdown(t, cfg, filter.NewRegistry())
	for i := 0; i < 5; i++ {
		e.Logger("io.app").Infof(context.Background(), "buffered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if got := strings.Count(string(content), "buffered"); got != 5 {
		t.Errorf("Expected 5 drained records, got %d", got)
	}
}
