package logger

import (
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// Init configures the process logger: JSON at info level in production,
// text at debug level otherwise. LOG_LEVEL overrides the level either way.
func Init(env string) {
	level := defaultLevel(env)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level = parseLevel(v, level)
	}

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	defaultLogger = slog.New(handler).With("service", "access-management")
	slog.SetDefault(defaultLogger)
}

func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		// lazy initialize a development logger to avoid nil pointer panics
		Init("development")
	}
	return defaultLogger
}

func defaultLevel(env string) slog.Level {
	if env == "production" {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func parseLevel(v string, fallback slog.Level) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
