package internal

import (
	"io"
	"log/slog"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config *Config
	logger *slog.Logger
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogger overrides the default structured logger. Useful for tests and
// embedders that already own a slog handler.
func WithLogger(l *slog.Logger) Option {
	return func(a *application) {
		a.logger = l
	}
}

// buildLogger returns the injected logger, or a JSON logger writing to w at
// the configured level.
func (a *application) buildLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
