// Package logger builds the process logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Travis-Britz/cfddns"
	"github.com/rs/zerolog"
	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the log file.
const (
	MaxSizeMB  = 10
	MaxBackups = 3
	MaxAgeDays = 28
)

// New returns a logger at level writing to stderr and, if file is not empty, to a rotating log file.
// Stderr gets human-readable output when it is a terminal and JSON otherwise.
// The returned func closes the log file.
func New(level, file string) (*zerolog.Logger, func() error, error) {
	return build(level, file, os.Stderr)
}

func build(level, file string, console io.Writer) (*zerolog.Logger, func() error, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	if f, ok := console.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		console = zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339}
	}

	closer := func() error { return nil }
	out := console
	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return nil, nil, &ddns.ConfigError{Msg: "error creating log directory", Path: file, Err: err}
		}
		lj := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
			MaxAge:     MaxAgeDays,
			LocalTime:  true,
		}
		out = zerolog.MultiLevelWriter(console, lj)
		closer = lj.Close
	}

	l := zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return &l, closer, nil
}

func parseLevel(level string) (zerolog.Level, error) {
	if strings.TrimSpace(level) == "" {
		return zerolog.InfoLevel, nil
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.NoLevel, &ddns.ValidationError{Msg: "invalid log level " + level, Err: err}
	}
	return lvl, nil
}
