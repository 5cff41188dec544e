package utils

import (
	"io"
	"log/slog"
	"path/filepath"
)

// Creates a text logger with a short timestamp and
// file names stripped down to their base name.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.TimeKey && len(groups) == 0 {
			return slog.String(slog.TimeKey, a.Value.Time().Format("2006-01-02 15:04:05"))
		}
		if a.Key == slog.SourceKey {
			if source, ok := a.Value.Any().(*slog.Source); ok {
				source.File = filepath.Base(source.File)
			}
		}
		return a
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		AddSource:   debug,
		Level:       level,
		ReplaceAttr: replace,
	}))
}

// Logger that drops everything, handy when no logger was configured.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
