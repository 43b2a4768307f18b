// Package level defines the ordered severity scale used across the engine.
package level

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
)

// Level is an ordered log severity. Higher weights are more severe.
type Level int32

const (
	// All is a sentinel threshold that admits every record. It is never
	// carried by a record itself.
	All Level = math.MinInt32

	Trace Level = 400
	Debug Level = 500
	Info  Level = 800
	Warn  Level = 900
	Error Level = 1000
	Fatal Level = 1100

	// Off is a sentinel threshold that admits nothing.
	Off Level = math.MaxInt32
)

// ErrUnmappable is returned when translating a level to or from the slog
// scale and no equivalent exists.
var ErrUnmappable = errors.New("level has no equivalent on the target scale")

// ErrUnknownWeight is returned by FromWeight for weights that do not
// correspond to a defined level.
var ErrUnknownWeight = errors.New("unknown level weight")

// Weight returns the numeric weight of l.
func (l Level) Weight() int32 { return int32(l) }

// Compare orders a against b by weight: -1, 0 or +1.
func Compare(a, b Level) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Enables reports whether a threshold of l admits a record at lvl.
// Sentinels behave as thresholds: Off admits nothing, All admits everything.
func (l Level) Enables(lvl Level) bool {
	return lvl >= l
}

// FromWeight maps a numeric weight back to its Level.
func FromWeight(n int32) (Level, error) {
	switch Level(n) {
	case All, Trace, Debug, Info, Warn, Error, Fatal, Off:
		return Level(n), nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownWeight, n)
}

// Parse converts a configuration string into a Level. Matching is
// case-insensitive and accepts the common aliases.
func Parse(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ALL":
		return All, nil
	case "TRACE":
		return Trace, nil
	case "DEBUG":
		return Debug, nil
	case "INFO", "":
		return Info, nil
	case "WARN", "WARNING":
		return Warn, nil
	case "ERROR", "ERR":
		return Error, nil
	case "FATAL":
		return Fatal, nil
	case "OFF":
		return Off, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

func (l Level) String() string {
	switch l {
	case All:
		return "ALL"
	case Trace:
		return "TRACE"
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	case Off:
		return "OFF"
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

// MarshalYAML renders the level as its name so configs round-trip.
func (l Level) MarshalYAML() (interface{}, error) { return l.String(), nil }

// UnmarshalYAML parses a level name from configuration.
func (l *Level) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ToSlog translates l to the slog scale. Only Debug, Info, Warn and Error
// have equivalents; everything else reports ErrUnmappable.
func (l Level) ToSlog() (slog.Level, error) {
	switch l {
	case Debug:
		return slog.LevelDebug, nil
	case Info:
		return slog.LevelInfo, nil
	case Warn:
		return slog.LevelWarn, nil
	case Error:
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnmappable, l)
}

// FromSlog translates a slog level to the native scale. Only the four named
// slog levels map; intermediate values report ErrUnmappable.
func FromSlog(sl slog.Level) (Level, error) {
	switch sl {
	case slog.LevelDebug:
		return Debug, nil
	case slog.LevelInfo:
		return Info, nil
	case slog.LevelWarn:
		return Warn, nil
	case slog.LevelError:
		return Error, nil
	}
	return 0, fmt.Errorf("%w: slog(%d)", ErrUnmappable, sl)
}
