package config

import (
	"testing"

	"github.com/treelog-io/treelog/pkg/level"
)

func TestParseFullConfig(t *testing.T) {
	cfg, err := Parse([]byte(`
level: WARN
min-level: TRACE
console:
  enable: true
  target: stdout
  color: true
  format: "%d{HH:mm:ss} %-5p %s%e%n"
file:
  enable: true
  path: logs/app.log
  json: true
  rotation:
    max-file-size: 10M
    max-backup-index: 5
syslog:
  enable: true
  endpoint: localhost:514
  protocol: tcp
  app-name: myapp
categories:
  "io.hibernate":
    level: DEBUG
  "io.noisy":
    level: ERROR
    use-parent-handlers: false
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Level != level.Warn || cfg.MinLevel != level.Trace {
		t.Errorf("Root levels: %s / %s", cfg.Level, cfg.MinLevel)
	}
	if cfg.Console.Target != "stdout" || !cfg.Console.Color {
		t.Errorf("Console: %+v", cfg.Console)
	}
	if !cfg.File.Enable || cfg.File.Path != "logs/app.log" || !cfg.File.JSON {
		t.Errorf("File: %+v", cfg.File)
	}
	if cfg.File.Rotation.MaxFileSize != "10M" || cfg.File.Rotation.MaxBackupIndex != 5 {
		t.Errorf("Rotation: %+v", cfg.File.Rotation)
	}
	if cfg.Syslog.Protocol != "tcp" || cfg.Syslog.AppName != "myapp" {
		t.Errorf("Syslog: %+v", cfg.Syslog)
	}

	hib := cfg.Categories["io.hibernate"]
	if hib.Level == nil || *hib.Level != level.Debug {
		t.Errorf("io.hibernate: %+v", hib)
	}
	noisy := cfg.Categories["io.noisy"]
	if noisy.UseParentHandlers == nil || *noisy.UseParentHandlers {
		t.Errorf("io.noisy: %+v", noisy)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Level != level.Info {
		t.Errorf("Default root level: %s", cfg.Level)
	}
	if cfg.MinLevel != level.Debug {
		t.Errorf("Default min-level: %s", cfg.MinLevel)
	}
	if !cfg.Console.Enabled() {
		t.Error("Console must be enabled by default")
	}
	if cfg.File.Enable || cfg.Syslog.Enable {
		t.Error("File and syslog must be disabled by default")
	}
	if cfg.Console.Target != "stderr" {
		t.Errorf("Default console target: %q", cfg.Console.Target)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("levle: INFO\n")); err == nil {
		t.Error("Expected unknown key rejected")
	}
}

func TestParseRejectsBadLevel(t *testing.T) {
	if _, err := Parse([]byte("level: LOUD\n")); err == nil {
		t.Error("Expected unknown level rejected")
	}
}

func TestParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"1024", 1024},
		{"4k", 4096},
		{"10M", 10 << 20},
		{"1G", 1 << 30},
	}
	for _, c := range cases {
		got, err := parseSize(c.in)
		if err != nil {
			t.Errorf("parseSize(%q) failed: %v", c.in, err)
		}
		if got != c.want {
			t.Errorf("parseSize(%q): expected %d, got %d", c.in, c.want, got)
		}
	}
	for _, bad := range []string{"abc", "-5k", "10KB"} {
		if _, err := parseSize(bad); err == nil {
			t.Errorf("parseSize(%q): expected error", bad)
		}
	}
}
