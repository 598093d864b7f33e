// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"git.home.luguber.info/inful/feedbot/internal/config"
)

// Rotation defaults for file output.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// New returns a logger for cfg and the writer backing it. Close the writer on
// shutdown. verbose forces debug level.
func New(cfg config.LogConfig, verbose bool) (*slog.Logger, io.WriteCloser, error) {
	var w io.WriteCloser = nopCloser{os.Stderr}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, nil, err
		}
		w = &lj.Logger{
			Filename:   cfg.File,
			MaxSize:    DefaultMaxSizeMB,
			MaxBackups: DefaultMaxBackups,
			MaxAge:     DefaultMaxAgeDays,
			Compress:   true,
		}
	}
	return slog.New(Handler(w, cfg, verbose)), w, nil
}

// Handler builds the slog handler writing to w.
func Handler(w io.Writer, cfg config.LogConfig, verbose bool) slog.Handler {
	level := config.NormalizeLogLevel(cfg.Level).SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if config.NormalizeLogFormat(cfg.Format) == config.LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
