package logger

import (
	"io"
	"log/slog"
	"strings"

	"github.com/alkime/rapidvoice/internal/config"
)

// Level picks the log level for cfg. Development logs at debug.
func Level(cfg *config.Config) slog.Level {
	if cfg.Env == config.EnvDevelopment {
		return slog.LevelDebug
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup configures JSON structured logging to w and installs it as the
// default logger.
func Setup(cfg *config.Config, w io.Writer) *slog.Logger {
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: Level(cfg),
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

// SetupText is Setup with a human-readable handler, for the CLI.
func SetupText(cfg *config.Config, w io.Writer) *slog.Logger {
	//nolint:exhaustruct // Using default values for other HandlerOptions fields
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: Level(cfg),
	}))
	slog.SetDefault(logger)

	return logger
}
