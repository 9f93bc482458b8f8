package telemetry

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var logLevels = map[string]zerolog.Level{
	"trace": zerolog.TraceLevel,
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
	"fatal": zerolog.FatalLevel,
}

// verbosityLevels maps the command line verbosity names to log levels.
var verbosityLevels = map[string]string{
	"quiet":      "error",
	"minimal":    "warn",
	"normal":     "info",
	"detailed":   "debug",
	"diagnostic": "trace",
}

// Logger wraps zerolog.Logger with installer-specific fields.
type Logger struct {
	zlog   zerolog.Logger
	config LoggingConfig
	closer io.Closer
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	var (
		writer io.Writer
		closer io.Closer
	)
	switch cfg.Output {
	case "", "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writer, closer = file, file
	}

	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: consoleTimeFormat(cfg.TimeFormat),
			NoColor:    closer != nil,
		}
	}

	zlog := zerolog.New(writer).With().Timestamp().Logger().Level(ParseLevel(cfg.Level))
	if cfg.EnableCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog, config: cfg, closer: closer}, nil
}

// ParseLevel converts a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	if l, ok := logLevels[strings.ToLower(level)]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// VerbosityLevel maps quiet, minimal, normal, detailed and diagnostic to
// the log level names understood by LoggingConfig.
func VerbosityLevel(verbosity string) (string, error) {
	level, ok := verbosityLevels[strings.ToLower(strings.TrimSpace(verbosity))]
	if !ok {
		return "", fmt.Errorf("unknown verbosity %q (want quiet, minimal, normal, detailed or diagnostic)", verbosity)
	}
	return level, nil
}

func consoleTimeFormat(format string) string {
	if format == "kitchen" {
		return time.Kitchen
	}
	return time.RFC3339
}

// Zerolog exposes the underlying logger for code that logs through zerolog directly.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// NewComponentLogger creates a child logger for a specific component.
func (l *Logger) NewComponentLogger(component string) *Logger {
	return l.derive(l.zlog.With().Str("component", component).Logger())
}

func (l *Logger) derive(z zerolog.Logger) *Logger {
	return &Logger{zlog: z, config: l.config}
}

// Close releases the log file, if the logger owns one.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
