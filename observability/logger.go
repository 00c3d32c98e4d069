package observability

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, set by InitLogger
var Logger *zerolog.Logger

var (
	fallbackOnce   sync.Once
	fallbackLogger *zerolog.Logger
)

// NewLogger builds a logger writing to w. Format "console" gives
// human-readable output, anything else JSON.
func NewLogger(w io.Writer, level zerolog.Level, format string) *zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	l := zerolog.New(w).Level(level).With().Timestamp().Logger()
	return &l
}

// InitLogger initializes the global logger from a level name and format
func InitLogger(level, format string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Logger = NewLogger(os.Stdout, lvl, format)
	return nil
}

// logger returns Logger, or a shared JSON info logger before InitLogger ran
func logger() *zerolog.Logger {
	if l := Logger; l != nil {
		return l
	}
	fallbackOnce.Do(func() {
		fallbackLogger = NewLogger(os.Stdout, zerolog.InfoLevel, "json")
	})
	return fallbackLogger
}

// Info logs an info message with alternating key/value pairs
func Info(msg string, args ...any) {
	logger().Info().Fields(args).Msg(msg)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	logger().Warn().Fields(args).Msg(msg)
}

// Error logs an error message
func Error(msg string, args ...any) {
	logger().Error().Fields(args).Msg(msg)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	logger().Debug().Fields(args).Msg(msg)
}

// Fatal logs an error message and exits
func Fatal(msg string, args ...any) {
	logger().Error().Fields(args).Msg(msg)
	os.Exit(1)
}

// WithSymbol returns a logger with symbol field
func WithSymbol(symbol string) *zerolog.Logger {
	l := logger().With().Str("symbol", symbol).Logger()
	return &l
}

// WithComponent returns a logger tagged with the emitting component
func WithComponent(component string) *zerolog.Logger {
	l := logger().With().Str("component", component).Logger()
	return &l
}

// WithError returns a logger with error field
func WithError(err error) *zerolog.Logger {
	l := logger().With().Err(err).Logger()
	return &l
}
