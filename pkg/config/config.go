// Package config defines the logging configuration surface and assembles a
// running engine from it. Validation happens here, before activation: an
// invalid pattern, a dangling handler or filter reference, or an
// inconsistent level/min-level pair is rejected while the process starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/treelog-io/treelog/pkg/level"
)

// Config is the full logging configuration, typically loaded from YAML.
type Config struct {
	// Level is the root category's level. Defaults to INFO.
	Level level.Level `yaml:"level"`

	// MinLevel is the root statement floor. Defaults to DEBUG.
	MinLevel level.Level `yaml:"min-level"`

	// Handlers lists the root category's handler names. Defaults to every
	// enabled built-in handler.
	Handlers []string `yaml:"handlers"`

	Console ConsoleConfig `yaml:"console"`
	File    FileConfig    `yaml:"file"`
	Syslog  SyslogConfig  `yaml:"syslog"`

	// Named declares additional handlers referenced by name from
	// category configuration.
	Named map[string]NamedHandlerConfig `yaml:"named-handlers"`

	// Categories holds per-category settings keyed by dot-separated name.
	Categories map[string]CategoryConfig `yaml:"categories"`
}

// HandlerCommon is the policy shared by every handler kind.
type HandlerCommon struct {
	// Level is the handler's own threshold. Defaults to ALL.
	Level level.Level `yaml:"level"`

	// Format is the pattern string. Ignored when JSON is set.
	Format string `yaml:"format"`

	// JSON switches the handler to the structured formatter; pattern and
	// color configuration are then ignored.
	JSON bool `yaml:"json"`

	// Filter names a registered filter predicate.
	Filter string `yaml:"filter"`

	// Async buffers emissions through a bounded queue.
	Async AsyncConfig `yaml:"async"`
}

// AsyncConfig configures a handler's buffering wrapper.
type AsyncConfig struct {
	Enable bool `yaml:"enable"`
	// QueueSize bounds the buffer; overflow drops records.
	QueueSize int `yaml:"queue-size"`
}

// ConsoleConfig configures the default console handler, which exists and is
// enabled unless turned off explicitly.
type ConsoleConfig struct {
	Enable *bool `yaml:"enable"`
	// Target is "stdout" or "stderr". Defaults to stderr.
	Target string `yaml:"target"`
	Color  bool   `yaml:"color"`

	HandlerCommon `yaml:",inline"`
}

// Enabled reports the console's effective enable flag.
func (c ConsoleConfig) Enabled() bool { return c.Enable == nil || *c.Enable }

// FileConfig configures the file handler, disabled by default.
type FileConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`

	Rotation RotationConfig `yaml:"rotation"`

	HandlerCommon `yaml:",inline"`
}

// RotationConfig bounds the file handler's active file and backups.
type RotationConfig struct {
	// MaxFileSize accepts a byte count with an optional k/M/G suffix.
	MaxFileSize string `yaml:"max-file-size"`
	// MaxBackupIndex is the number of rotated files kept.
	MaxBackupIndex int `yaml:"max-backup-index"`
}

// SyslogConfig configures the syslog handler, disabled by default.
type SyslogConfig struct {
	Enable   bool   `yaml:"enable"`
	Endpoint string `yaml:"endpoint"`
	// Protocol is "udp", "tcp" or "unixgram".
	Protocol string `yaml:"protocol"`
	AppName  string `yaml:"app-name"`
	Facility int    `yaml:"facility"`

	HandlerCommon `yaml:",inline"`
}

// NamedHandlerConfig declares an arbitrary named handler of one of the
// built-in kinds.
type NamedHandlerConfig struct {
	// Kind is "console", "file" or "syslog".
	Kind string `yaml:"kind"`

	Console *ConsoleConfig `yaml:"console"`
	File    *FileConfig    `yaml:"file"`
	Syslog  *SyslogConfig  `yaml:"syslog"`
}

// CategoryConfig is the per-category configuration block.
type CategoryConfig struct {
	Level             *level.Level `yaml:"level"`
	MinLevel          *level.Level `yaml:"min-level"`
	UseParentHandlers *bool        `yaml:"use-parent-handlers"`
	Handlers          []string     `yaml:"handlers"`
}

// Default returns the configuration used when no file is supplied: console
// only, root INFO, floor DEBUG.
func Default() *Config {
	return &Config{Level: level.Info, MinLevel: level.Debug}
}

// Load reads and parses a YAML configuration file. Unknown keys are
// rejected so typos surface at startup.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Level == 0 {
		c.Level = level.Info
	}
	if c.MinLevel == 0 {
		c.MinLevel = level.Debug
	}
	if c.Console.Target == "" {
		c.Console.Target = "stderr"
	}
	if c.File.Path == "" {
		c.File.Path = "treelog.log"
	}
	if c.Syslog.Protocol == "" {
		c.Syslog.Protocol = "udp"
	}
}

// parseSize parses a byte count with an optional k/M/G suffix.
func parseSize(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	mult := int64(1)
	switch s[len(s)-1] {
	case 'k', 'K':
		mult = 1 << 10
		s = s[:len(s)-1]
	case 'm', 'M':
		mult = 1 << 20
		s = s[:len(s)-1]
	case 'g', 'G':
		mult = 1 << 30
		s = s[:len(s)-1]
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}
