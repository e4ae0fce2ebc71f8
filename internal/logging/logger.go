// Package logging provides structured logging for the sync engine and CLI.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/telegram-files/tfsync/internal/events"
)

// Logger wraps zerolog with mode-specific behavior.
type Logger struct {
	zlog     zerolog.Logger
	mode     string // "cli" or "quiet"
	eventBus *events.EventBus
	output   io.Writer // current output writer
}

// NewLogger creates a new logger for the specified mode. Warnings and errors
// are mirrored onto eventBus as LogEvents when it is non-nil.
func NewLogger(mode string, eventBus *events.EventBus) *Logger {
	var output io.Writer

	if mode == "cli" {
		// CLI mode: stdout for logs (stderr reserved for progress bars)
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: "15:04:05",
		}
	} else {
		output = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}
	}

	l := &Logger{
		mode:     mode,
		eventBus: eventBus,
		output:   output,
	}
	l.zlog = l.build(output)
	return l
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger("cli", nil)
}

// NewNopLogger returns a logger that discards everything. Used by tests and
// by components constructed without a logger.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop(), mode: "quiet", output: io.Discard}
}

func (l *Logger) build(w io.Writer) zerolog.Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	if l.eventBus != nil {
		zl = zl.Hook(busHook{bus: l.eventBus})
	}
	return zl
}

// Component returns a child logger tagged with a component field. The child
// shares the parent's output and event bus.
func (l *Logger) Component(name string) *Logger {
	if l == nil {
		return NewNopLogger().Component(name)
	}
	return &Logger{
		zlog:     l.zlog.With().Str("component", name).Logger(),
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

// Fatal returns a fatal level event.
func (l *Logger) Fatal() *zerolog.Event {
	return l.zlog.Fatal()
}

// With creates a child logger with additional context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// SetOutput changes the output writer for the logger.
// Used to route logs through the mpb progress container.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	l.zlog = l.build(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	})
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
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// busHook mirrors warnings and errors onto the event bus so that renderers
// can surface them without parsing log output.
type busHook struct {
	bus *events.EventBus
}

func (h busHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	switch level {
	case zerolog.WarnLevel:
		h.bus.PublishLog(events.WarnLevel, msg, "", nil)
	case zerolog.ErrorLevel, zerolog.FatalLevel:
		h.bus.PublishLog(events.ErrorLevel, msg, "", nil)
	}
}

// RetryLogger adapts a Logger to retryablehttp.LeveledLogger. Retry attempts
// are logged at warn, request tracing at debug.
type RetryLogger struct {
	l *Logger
}

// NewRetryLogger returns an adapter writing through l.
func NewRetryLogger(l *Logger) *RetryLogger {
	if l == nil {
		l = NewNopLogger()
	}
	return &RetryLogger{l: l}
}

func (r *RetryLogger) Error(msg string, keysAndValues ...interface{}) {
	withFields(r.l.Error(), keysAndValues).Msg(msg)
}

func (r *RetryLogger) Info(msg string, keysAndValues ...interface{}) {
	withFields(r.l.Debug(), keysAndValues).Msg(msg)
}

func (r *RetryLogger) Debug(msg string, keysAndValues ...interface{}) {
	withFields(r.l.Debug(), keysAndValues).Msg(msg)
}

func (r *RetryLogger) Warn(msg string, keysAndValues ...interface{}) {
	withFields(r.l.Warn(), keysAndValues).Msg(msg)
}

func withFields(ev *zerolog.Event, kv []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		ev = ev.Interface(key, kv[i+1])
	}
	return ev
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
