package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var zlog = zerolog.New(os.Stdout).With().Timestamp().Logger()

// InitStructured initializes the structured zerolog logger
func InitStructured(env string) {
	InitWithWriter(env, nil)
}

// InitWithWriter initializes the logger writing to w. A nil writer selects
// stdout, pretty-printed for development environments.
func InitWithWriter(env string, w io.Writer) {
	if w == nil {
		if isDevelopment(env) {
			// Pretty console output for development
			w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		} else {
			// JSON output for production (machine-readable)
			w = os.Stdout
		}
	}

	level := zerolog.InfoLevel
	if isDevelopment(env) {
		level = zerolog.DebugLevel
	}

	zlog = zerolog.New(w).Level(level).With().
		Timestamp().
		Str("service", "rental-backend").
		Logger()

	zerolog.TimeFieldFormat = time.RFC3339
}

func isDevelopment(env string) bool {
	switch env {
	case "development", "dev", "local":
		return true
	}
	return false
}

// GetLogger returns the global zerolog logger
func GetLogger() *zerolog.Logger {
	return &zlog
}

// WithRequestID returns a logger with request_id field
func WithRequestID(requestID string) zerolog.Logger {
	return zlog.With().Str("request_id", requestID).Logger()
}

// WithUserID returns a logger with user_id field
func WithUserID(userID uint64) zerolog.Logger {
	return zlog.With().Uint64("user_id", userID).Logger()
}

// WithSessionID returns a logger scoped to a real-time session
func WithSessionID(sessionID string) zerolog.Logger {
	return zlog.With().Str("session_id", sessionID).Logger()
}
