// Package logging builds the slog loggers used by the node and the collector.
package logging

import (
	"log/slog"
	"strings"

	"telenode/errcode"
)

// ParseLevel maps debug|info|warn|error onto a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, &errcode.E{
			C:   errcode.InvalidParams,
			Op:  "logging.level",
			Msg: "invalid level " + s + " (allowed: debug, info, warn, error)",
		}
	}
}
