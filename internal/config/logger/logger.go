//go:generate mockgen -source=logger.go -destination=logger_mock.go -package=logger
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"

	"github.com/hsiatein/helenium/internal/config"
)

const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
	FatalLevel = "fatal"
	PanicLevel = "panic"
	TraceLevel = "trace"

	ConsoleFormat = "console"
	JSONFormat    = "json"

	TimeFormat = "02.01.2006 15:04:05"
)

// Logger is the interface every actor logs through instead of the
// stdlib log package.
type Logger interface {
	Debug() Event
	Info() Event
	Warn() Event
	Error() Event
}

type Event interface {
	Msg(msg string)
	Msgf(format string, v ...interface{})
	Str(key, value string) Event
	Int(key string, value int) Event
	Dur(key string, value time.Duration) Event
	Err(err error) Event
}

type zerologEvent struct {
	event *zerolog.Event
}

func (e *zerologEvent) Msg(msg string) { e.event.Msg(msg) }

func (e *zerologEvent) Msgf(format string, v ...interface{}) { e.event.Msgf(format, v...) }

func (e *zerologEvent) Str(key, value string) Event {
	return &zerologEvent{event: e.event.Str(key, value)}
}

func (e *zerologEvent) Int(key string, value int) Event {
	return &zerologEvent{event: e.event.Int(key, value)}
}

func (e *zerologEvent) Dur(key string, value time.Duration) Event {
	return &zerologEvent{event: e.event.Dur(key, value)}
}

func (e *zerologEvent) Err(err error) Event {
	return &zerologEvent{event: e.event.Err(err)}
}

// NoopEvent is an Event that discards everything. Nothing in this
// module constructs one.
type NoopEvent struct{}

func (n *NoopEvent) Msg(msg string)                            {}
func (n *NoopEvent) Msgf(format string, v ...interface{})      {}
func (n *NoopEvent) Str(key, value string) Event               { return n }
func (n *NoopEvent) Int(key string, value int) Event           { return n }
func (n *NoopEvent) Dur(key string, value time.Duration) Event { return n }
func (n *NoopEvent) Err(err error) Event                       { return n }

// AppLogger implements Logger over zerolog.
type AppLogger struct {
	log zerolog.Logger
}

// NewLogger builds a logger from the resolved configuration.
func NewLogger(cfg *config.Config) Logger {
	return NewLoggerWithOutput(cfg, nil)
}

// NewLoggerWithOutput is NewLogger with an explicit writer override,
// used by tests to capture output deterministically.
func NewLoggerWithOutput(cfg *config.Config, w io.Writer) Logger {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	zerolog.TimeFieldFormat = time.RFC3339

	level := getLogLevel(cfg.Logging.Level)

	format := cfg.Logging.Format
	if format == "" {
		format = ConsoleFormat
	}

	var output io.Writer
	switch {
	case w != nil:
		output = w
	case format == JSONFormat:
		output = os.Stdout
	default:
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: TimeFormat}
	}

	l := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("version", config.Version).
		Logger()

	return &AppLogger{log: l}
}

func (l *AppLogger) Debug() Event { return &zerologEvent{event: l.log.Debug()} }
func (l *AppLogger) Info() Event  { return &zerologEvent{event: l.log.Info()} }
func (l *AppLogger) Warn() Event  { return &zerologEvent{event: l.log.Warn()} }
func (l *AppLogger) Error() Event { return &zerologEvent{event: l.log.Error()} }

func getLogLevel(level string) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case InfoLevel:
		return zerolog.InfoLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	case FatalLevel:
		return zerolog.FatalLevel
	case PanicLevel:
		return zerolog.PanicLevel
	case TraceLevel:
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}
