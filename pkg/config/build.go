package config

import (
	"fmt"
	"io"
	"os"

	"github.com/treelog-io/treelog/pkg/engine"
	"github.com/treelog-io/treelog/pkg/filter"
	"github.com/treelog-io/treelog/pkg/format"
	"github.com/treelog-io/treelog/pkg/handler"
)

// Build validates cfg against the registered filters and assembles an
// active engine. Every failure is an *engine.ConfigurationError, reported
// before the engine can accept a single record.
func Build(cfg *Config, filters *filter.Registry) (*engine.Engine, error) {
	handlers := make(map[string]handler.Handler)

	console, err := buildConsole("console", cfg.Console, filters)
	if err != nil {
		return nil, err
	}
	handlers["console"] = console

	file, err := buildFile("file", cfg.File, filters)
	if err != nil {
		return nil, err
	}
	handlers["file"] = file

	handlers["syslog"] = buildSyslog("syslog", cfg.Syslog, filters)
	if _, err := handlerOptions(cfg.Syslog.HandlerCommon, true, filters); err != nil {
		return nil, configErr("handler %q: %v", "syslog", err)
	}

	for name, named := range cfg.Named {
		h, err := buildNamed(name, named, filters)
		if err != nil {
			return nil, err
		}
		if _, taken := handlers[name]; taken {
			return nil, configErr("named handler %q collides with a built-in handler", name)
		}
		handlers[name] = h
	}

	rootHandlers := cfg.Handlers
	if len(rootHandlers) == 0 {
		rootHandlers = []string{"console"}
		if cfg.File.Enable {
			rootHandlers = append(rootHandlers, "file")
		}
		if cfg.Syslog.Enable {
			rootHandlers = append(rootHandlers, "syslog")
		}
	}

	categories := make(map[string]engine.CategorySettings, len(cfg.Categories))
	for name, cat := range cfg.Categories {
		categories[name] = engine.CategorySettings{
			Level:             cat.Level,
			MinLevel:          cat.MinLevel,
			UseParentHandlers: cat.UseParentHandlers,
			Handlers:          cat.Handlers,
		}
	}

	return engine.New(engine.Settings{
		RootLevel:    cfg.Level,
		RootMinLevel: cfg.MinLevel,
		RootHandlers: rootHandlers,
		Categories:   categories,
	}, handlers)
}

func configErr(formatStr string, args ...any) error {
	return &engine.ConfigurationError{Detail: fmt.Sprintf(formatStr, args...)}
}

// handlerOptions resolves the shared handler policy: formatter, filter
// reference and threshold. Pattern parsing and filter lookups fail here, at
// assembly time.
func handlerOptions(common HandlerCommon, enabled bool, filters *filter.Registry) (handler.Options, error) {
	opts := handler.Options{Enabled: enabled, Level: common.Level}

	if common.JSON {
		opts.Formatter = format.NewJSON()
	} else {
		pattern := common.Format
		if pattern == "" {
			pattern = format.DefaultPattern
		}
		f, err := format.NewPattern(pattern)
		if err != nil {
			return opts, err
		}
		opts.Formatter = f
	}

	if common.Filter != "" {
		p, ok := filters.Lookup(common.Filter)
		if !ok {
			return opts, fmt.Errorf("unknown filter %q", common.Filter)
		}
		opts.Filter = p
	}
	return opts, nil
}

// wrapAsync applies the buffering wrapper when configured.
func wrapAsync(h handler.Handler, async AsyncConfig) handler.Handler {
	if !async.Enable {
		return h
	}
	return handler.NewAsync(h, async.QueueSize, 0)
}

func buildConsole(name string, cfg ConsoleConfig, filters *filter.Registry) (handler.Handler, error) {
	opts, err := handlerOptions(cfg.HandlerCommon, cfg.Enabled(), filters)
	if err != nil {
		return nil, configErr("handler %q: %v", name, err)
	}
	var w io.Writer
	switch cfg.Target {
	case "stdout":
		w = os.Stdout
	case "", "stderr":
		w = os.Stderr
	default:
		return nil, configErr("handler %q: unknown target %q", name, cfg.Target)
	}
	// Color never applies to structured output.
	color := cfg.Color && !cfg.JSON
	return wrapAsync(handler.NewConsole(name, w, color, opts), cfg.Async), nil
}

func buildFile(name string, cfg FileConfig, filters *filter.Registry) (handler.Handler, error) {
	opts, err := handlerOptions(cfg.HandlerCommon, cfg.Enable, filters)
	if err != nil {
		return nil, configErr("handler %q: %v", name, err)
	}
	maxSize, err := parseSize(cfg.Rotation.MaxFileSize)
	if err != nil {
		return nil, configErr("handler %q: %v", name, err)
	}
	if cfg.Rotation.MaxBackupIndex < 0 {
		return nil, configErr("handler %q: negative max-backup-index", name)
	}
	h, err := handler.NewFile(name, cfg.Path, handler.Rotation{
		MaxFileSize: maxSize,
		MaxBackups:  cfg.Rotation.MaxBackupIndex,
	}, opts)
	if err != nil {
		return nil, configErr("handler %q: %v", name, err)
	}
	return wrapAsync(h, cfg.Async), nil
}

func buildSyslog(name string, cfg SyslogConfig, filters *filter.Registry) handler.Handler {
	// Option errors are checked by the caller so this constructor stays
	// infallible: the transport itself dials lazily.
	opts, _ := handlerOptions(cfg.HandlerCommon, cfg.Enable, filters)
	h := handler.NewSyslog(name, handler.SyslogConfig{
		Network:  cfg.Protocol,
		Addr:     cfg.Endpoint,
		Facility: cfg.Facility,
		AppName:  cfg.AppName,
	}, opts)
	return wrapAsync(h, cfg.Async)
}

func buildNamed(name string, cfg NamedHandlerConfig, filters *filter.Registry) (handler.Handler, error) {
	switch cfg.Kind {
	case "console":
		c := ConsoleConfig{}
		if cfg.Console != nil {
			c = *cfg.Console
		}
		if c.Target == "" {
			c.Target = "stderr"
		}
		return buildConsole(name, c, filters)
	case "file":
		if cfg.File == nil {
			return nil, configErr("named handler %q: missing file block", name)
		}
		return buildFile(name, *cfg.File, filters)
	case "syslog":
		if cfg.Syslog == nil {
			return nil, configErr("named handler %q: missing syslog block", name)
		}
		if _, err := handlerOptions(cfg.Syslog.HandlerCommon, true, filters); err != nil {
			return nil, configErr("named handler %q: %v", name, err)
		}
		return buildSyslog(name, *cfg.Syslog, filters), nil
	default:
		return nil, configErr("named handler %q: unknown kind %q", name, cfg.Kind)
	}
}
