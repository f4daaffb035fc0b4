// Package logging configures the zerolog loggers used by the JupiterOne client.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	var output io.Writer = cfg.Output
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: cfg.Output}
	}

	// Create logger with timestamp
	logger := zerolog.New(output).With().Timestamp().Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// ParseLevel converts a level name to a LogLevel. Unknown names yield
// LevelInfo and false.
func ParseLevel(name string) (LogLevel, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug, true
	case "info":
		return LevelInfo, true
	case "warn", "warning":
		return LevelWarn, true
	case "error":
		return LevelError, true
	default:
		return LevelInfo, false
	}
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// WithSession returns a child logger tagged with a pagination session id.
func WithSession(logger zerolog.Logger, sessionID string) zerolog.Logger {
	return logger.With().Str("session_id", sessionID).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Page fetches (cursor, records per page)
//   - Deferred polls still IN_PROGRESS
//   - Result cache hit/miss
//
// Info: Normal operation events
//   - Query sessions finished (records, pages)
//   - Sync job uploads finished
//   - CLI startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Retry attempts and Retry-After cool-downs
//   - Deprecated skip/limit pagination
//   - Partial results returned after a failed page
//   - Cache errors (query falls through to the API)
//
// Error: Error conditions requiring attention
//   - Requests that exhausted their retries
//   - Authentication failures
//   - Configuration errors
//
// Context Fields:
//   - component: Emitting package (client, pagination, ratelimit, cache)
//   - operation: Logical API operation (cursor_query, deferred_submit, sync_upload, ...)
//   - status: HTTP status code
//   - error_class: Error classification (client, server, rate_limit, network, graphql)
//   - attempt: Retry attempt number
//   - session_id: Pagination session id
//   - records: Number of records in a page or result
//   - pages: Number of pages fetched
//   - duration: Request or session duration
