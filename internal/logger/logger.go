// Package logger provides structured logging for the annotation editor
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool
}

// New creates the root structured logger for the service. Packages
// derive their own component loggers from it with With().
func New(cfg Config) zerolog.Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	log := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "pagemark").
		Logger()

	if cfg.WithCaller {
		log = log.With().Caller().Logger()
	}

	return log
}

// LogRequest logs a completed HTTP request with structured fields.
func LogRequest(log zerolog.Logger, method, path string, status int, duration time.Duration) {
	event := log.Info()
	if status >= 500 {
		event = log.Error()
	}
	event.
		Str("component", "http").
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Dur("duration_ms", duration).
		Msg("request completed")
}

// LogServerStart logs service startup parameters.
func LogServerStart(log zerolog.Logger, addr, docServiceURL string) {
	log.Info().
		Str("event", "server_start").
		Str("addr", addr).
		Str("docservice", docServiceURL).
		Msg("pagemark server starting")
}

// LogServerShutdown logs service shutdown.
func LogServerShutdown(log zerolog.Logger) {
	log.Info().
		Str("event", "server_shutdown").
		Msg("pagemark server shutting down")
}
