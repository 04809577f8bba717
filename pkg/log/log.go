// Package log provides the process-wide structured logger.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance.
var Logger zerolog.Logger

// Level represents a configured log level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Target selects where log lines are written.
type Target string

const (
	TargetStderr   Target = "stderr"
	TargetJournald Target = "journald"
)

// Config holds logging configuration, bound from CLI flags.
type Config struct {
	Level      Level
	Target     Target
	JSONOutput bool
	Output     io.Writer // overrides Target, used by tests
}

// Init initializes the global logger. Called exactly once at process start.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	// journald consumes structured JSON lines on stderr/stdout under
	// systemd's journal capture; stderr mode uses a human-readable
	// console writer. This process always writes lines to output and
	// leaves capture to the service supervisor (systemd or otherwise)
	// instead of talking to the journald socket directly.
	if cfg.JSONOutput || cfg.Target == TargetJournald {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger tagged with the owning subsystem.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

func Info(msg string)  { Logger.Info().Msg(msg) }
func Debug(msg string) { Logger.Debug().Msg(msg) }
func Warn(msg string)  { Logger.Warn().Msg(msg) }
func Error(msg string) { Logger.Error().Msg(msg) }

func Errorf(msg string, err error) { Logger.Error().Err(err).Msg(msg) }

func Fatal(msg string) { Logger.Fatal().Msg(msg) }
