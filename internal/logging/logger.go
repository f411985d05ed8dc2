// Package logging provides structured logging for the CLI and for library use.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/capiweb/capishare/internal/events"
)

// Logger wraps zerolog with mode-specific behavior.
type Logger struct {
	zlog     zerolog.Logger
	mode     string // "cli", "shell" or "nop"
	eventBus *events.EventBus
	output   io.Writer // current output writer
}

// NewLogger creates a new logger for the specified mode.
// In "cli" mode logs go to stdout (stderr is reserved for progress bars).
// When eventBus is non-nil, warnings and errors are also published as LogEvents.
func NewLogger(mode string, eventBus *events.EventBus) *Logger {
	out := os.Stdout
	if mode != "cli" {
		out = os.Stderr
	}

	l := &Logger{mode: mode, eventBus: eventBus}
	l.SetOutput(out)
	return l
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger("cli", nil)
}

// NewNopLogger returns a logger that discards everything. Components fall
// back to it when constructed without a logger.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop(), mode: "nop", output: io.Discard}
}

// OrNop returns l, or a nop logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}

// Named returns a child logger tagged with a component field.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		zlog:     l.zlog.With().Str("component", component).Logger(),
		mode:     l.mode,
		eventBus: l.eventBus,
		output:   l.output,
	}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger context with additional fields.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// SetOutput changes the output writer for the logger.
// Used to redirect logs above the mpb progress bars.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	if l.mode == "nop" {
		return
	}
	l.zlog = zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger()
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Debugf logs a debug message with printf-style formatting.
// This is only shown when debug/verbose mode is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.zlog.Error().Msg(msg)
	l.publish(events.ErrorLevel, msg)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	l.zlog.Warn().Msg(msg)
	l.publish(events.WarnLevel, msg)
}

func (l *Logger) publish(level events.LogLevel, msg string) {
	if l.eventBus != nil {
		l.eventBus.PublishLog(level, msg, l.mode, nil)
	}
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Configure global logger
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
