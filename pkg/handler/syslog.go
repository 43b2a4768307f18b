package handler

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/treelog-io/treelog/pkg/level"
	"github.com/treelog-io/treelog/pkg/model"
)

// SyslogConfig describes the syslog handler's transport and message fields.
type SyslogConfig struct {
	// Network is "udp", "tcp" or "unixgram". Defaults to "udp".
	Network string

	// Addr is the collector endpoint, e.g. "localhost:514".
	Addr string

	// Facility is the RFC 5424 facility code. Defaults to 1 (user-level).
	Facility int

	// AppName is the APP-NAME field. Defaults to the process name.
	AppName string
}

// Syslog frames each record as an RFC 5424 message over its transport.
// Transport failures go to the error reporter and the connection is redialed
// on the next emission; they never reach the emitting caller.
type Syslog struct {
	base
	mu   sync.Mutex
	cfg  SyslogConfig
	conn net.Conn
	dial func(network, addr string) (net.Conn, error)
}

// NewSyslog creates a syslog handler. The connection is established lazily
// on first emission.
func NewSyslog(name string, cfg SyslogConfig, opts Options) *Syslog {
	if cfg.Network == "" {
		cfg.Network = "udp"
	}
	if cfg.Facility == 0 {
		cfg.Facility = 1
	}
	if cfg.AppName == "" {
		cfg.AppName = model.ProcessName
	}
	return &Syslog{base: newBase(name, opts), cfg: cfg, dial: net.Dial}
}

// Emit implements Handler.
func (s *Syslog) Emit(rec *model.Record) {
	if !s.admit(rec) {
		return
	}
	msg := bytes.TrimRight(s.formatter.Format(rec), "\n")
	frame := s.frame(rec, msg)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		conn, err := s.dial(s.cfg.Network, s.cfg.Addr)
		if err != nil {
			reportError(s.name, fmt.Errorf("dial %s %s: %w", s.cfg.Network, s.cfg.Addr, err))
			return
		}
		s.conn = conn
	}

	if _, err := s.conn.Write(frame); err != nil {
		reportError(s.name, fmt.Errorf("write: %w", err))
		s.conn.Close()
		s.conn = nil
	}
}

// frame builds an RFC 5424 message. Stream transports use octet-counting
// framing; datagram transports send the bare message.
func (s *Syslog) frame(rec *model.Record, msg []byte) []byte {
	pri := s.cfg.Facility*8 + severityOf(rec.Level)
	var b bytes.Buffer
	fmt.Fprintf(&b, "<%d>1 %s %s %s %d - - ",
		pri,
		rec.Time.Format(time.RFC3339),
		model.HostName,
		s.cfg.AppName,
		model.ProcessID,
	)
	b.Write(msg)

	if s.cfg.Network == "tcp" {
		body := b.Bytes()
		framed := make([]byte, 0, len(body)+8)
		framed = append(framed, strconv.Itoa(len(body))...)
		framed = append(framed, ' ')
		return append(framed, body...)
	}
	return b.Bytes()
}

// severityOf maps the native scale onto syslog severities.
func severityOf(lvl level.Level) int {
	switch {
	case lvl >= level.Fatal:
		return 2 // critical
	case lvl >= level.Error:
		return 3
	case lvl >= level.Warn:
		return 4
	case lvl >= level.Info:
		return 6
	default:
		return 7 // debug
	}
}

// Flush implements Handler.
func (s *Syslog) Flush() error { return nil }

// Close implements Handler.
func (s *Syslog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
