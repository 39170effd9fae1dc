// Package logger builds the root zerolog logger for a run.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
)

// Config holds logger configuration.
type Config struct {
	Level  string `json:"level" toml:"level"`   // debug, info, warn, error
	Pretty bool   `json:"pretty" toml:"pretty"` // human readable console output
	// Dir receives one log file per symbol, interval and day. Empty disables the file.
	Dir string `json:"dir" toml:"dir"`
}

func DefaultConfig() Config {
	return Config{Level: "info", Pretty: true, Dir: "logs"}
}

func (c Config) Validate() error {
	_, err := ParseLevel(c.Level)
	return err
}

// ParseLevel accepts debug, info, warn and error. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.InfoLevel, boterrors.NewConfigurationError("logger", "level",
		fmt.Sprintf("unknown log level %q", s))
}

// Session is a root logger and the log file behind it, if any.
type Session struct {
	Logger zerolog.Logger
	Path   string
	file   *os.File
}

// New builds a logger writing to console and, when cfg.Dir is set, to
// <dir>/<symbol>_<interval>_<date>.log in append mode.
func New(cfg Config, symbol, interval string, console io.Writer) (*Session, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if console == nil {
		console = os.Stdout
	}

	var writers []io.Writer
	if cfg.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"})
	} else {
		writers = append(writers, console)
	}

	s := &Session{}
	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		name := fmt.Sprintf("%s_%s_%s.log", symbol, interval, time.Now().Format("2006-01-02"))
		s.Path = filepath.Join(cfg.Dir, name)

		f, err := os.OpenFile(s.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		s.file = f
		writers = append(writers, f)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	s.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	s.Logger.Info().
		Str("symbol", symbol).
		Str("interval", interval).
		Str("log_file", s.Path).
		Msg("session started")
	return s, nil
}

func (s *Session) Close() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
