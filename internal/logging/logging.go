package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"
)

type FileLogger struct {
	Logger  *slog.Logger
	Close   func() error
	Path    string
	Enabled bool
}

func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func disabled() FileLogger {
	return FileLogger{Logger: Nop(), Close: func() error { return nil }, Enabled: false}
}

// NewFileLogger writes JSON lines to <dataDir>/logs/<name>.log when debug is
// set. Otherwise it returns a discarding logger.
func NewFileLogger(dataDir, name string, debug bool) (FileLogger, error) {
	if !debug {
		return disabled(), nil
	}
	if name == "" {
		name = "engine"
	}
	logDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return disabled(), err
	}
	path := filepath.Join(logDir, name+".log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return disabled(), err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	})
	return FileLogger{
		Logger:  slog.New(handler),
		Close:   file.Close,
		Path:    path,
		Enabled: true,
	}, nil
}

// Truncate shortens s to at most max bytes without splitting a rune.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}
