//go:build !rp2040 && !rp2350

package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// New returns a coloured console logger writing to w.
func New(level slog.Level, w io.Writer) *slog.Logger {
	h := tint.NewHandler(w, &tint.Options{
		Level:      level,
		AddSource:  level <= slog.LevelDebug,
		TimeFormat: time.Kitchen,
	})
	return slog.New(h)
}

// NewJSON returns a structured logger for unattended deployments.
func NewJSON(level slog.Level, w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Console is the default log sink.
func Console() io.Writer { return os.Stdout }
