// Package logging builds the slog handler shared by the app and the commands.
package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const (
	DefaultDir = "logs"
)

type Config struct {
	// Level is the minimum severity written.
	Level slog.Level
	// File, when set, receives JSON lines instead of stderr text. It is
	// created under Dir.
	File string
	Dir  string
	// Discard drops everything not sent to File.
	Discard bool
}

func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo, Dir: DefaultDir}
}

// Setup installs a default slog logger built from cfg and routes the std
// log package through it. The returned closer releases the log file.
func Setup(cfg Config) (*slog.Logger, io.Closer, error) {
	var (
		h      slog.Handler
		closer io.Closer = nopCloser{}
	)
	opts := &slog.HandlerOptions{Level: cfg.Level}

	switch {
	case cfg.File != "":
		dir := cfg.Dir
		if dir == "" {
			dir = DefaultDir
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, errors.Wrap(err, "create log dir")
		}
		f, err := os.OpenFile(filepath.Join(dir, cfg.File), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Wrap(err, "open log file")
		}
		h = slog.NewJSONHandler(f, opts)
		closer = f
	case cfg.Discard:
		h = slog.NewTextHandler(io.Discard, opts)
	default:
		h = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)
	log.SetFlags(0)
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
