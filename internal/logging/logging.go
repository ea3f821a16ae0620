// File: internal/logging/logging.go
// Author: momentics <momentics@gmail.com>
//
// Process logger construction on zerolog. The level is global so that it can
// be changed at runtime by configuration reload.

package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, encoding and destination.
type Config struct {
	Level  string // trace, debug, info, warn, error
	Format string // json or console
	Output string // stdout, stderr or a file path
}

// New builds a logger. The returned closer releases a file destination and
// is a no-op otherwise.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	if err := SetLevel(cfg.Level); err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	var (
		w      io.Writer
		closer io.Closer = nopCloser{}
	)
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("open log output %q: %w", cfg.Output, err)
		}
		w, closer = f, f
	}

	switch strings.ToLower(cfg.Format) {
	case "", "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		_ = closer.Close()
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return zerolog.New(w).With().Timestamp().Logger(), closer, nil
}

// SetLevel changes the global level. An empty level means info.
func SetLevel(level string) error {
	if level == "" {
		level = zerolog.InfoLevel.String()
	}
	l, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(l)
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
