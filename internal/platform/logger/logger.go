package logger

import (
	"log/slog"
	"os"
	"strings"
)

// New returns the engine's structured logger with the given level and format.
// level: "debug", "info", "warn", "error" (default "info"); debug also
// records source locations. format: "json" or "text" (default "json").
// Every record carries a service attribute so engine logs stay attributable
// when aggregated with the capture pipeline's.
func New(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var h slog.Handler
	if strings.ToLower(format) == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h).With(slog.String("service", "timeshift-engine"))
}
