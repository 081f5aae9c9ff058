package config

import (
	"log/slog"
	"os"
)

// NewLogger builds the process logger: JSON at Info level in production,
// human-readable text with source locations everywhere else.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: cfg.IsDevelopment(),
	}

	var handler slog.Handler
	if cfg.IsProduction() {
		opts.Level = slog.LevelInfo
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
