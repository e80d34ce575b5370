// Package logging builds the zerolog loggers used across simscript.
//
// A single root logger is built from configuration; every subsystem gets a
// child tagged with a component field so that log lines can be filtered by
// origin.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ErrUnknownFormat is returned for an output format other than console or json.
var ErrUnknownFormat = errors.New("unknown log format")

// Output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Component names.
const (
	ComponentHub      = "hub"
	ComponentOverride = "override"
	ComponentBridge   = "bridge"
	ComponentLua      = "lua"
	ComponentSim      = "sim"
	ComponentServer   = "server"
	ComponentWatch    = "watch"
	ComponentLoop     = "loop"
)

// Options configure New.
type Options struct {
	// Level is a zerolog level name. Empty means info.
	Level string
	// Format is FormatConsole or FormatJSON. Empty means console.
	Format string
	// Output defaults to os.Stderr.
	Output io.Writer
	// NoColor disables ANSI colors in console output.
	NoColor bool
}

// ParseLevel parses a level name, treating the empty string as info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}

// New builds the root logger.
func New(opts Options) (zerolog.Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	switch strings.ToLower(opts.Format) {
	case "", FormatConsole:
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    opts.NoColor,
			TimeFormat: time.TimeOnly,
		}
	case FormatJSON:
	default:
		return zerolog.Nop(), fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// Component returns a child of logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}
