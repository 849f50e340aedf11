package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// DefaultLogger is used by the package-level output functions and by
// components that were not handed a logger of their own.
var DefaultLogger = NewLogger(os.Stderr)

// Logger represents an active logging object that emits levelled,
// structured lines.
type Logger interface {
	// Info logs at INFO level. Arguments are handled in the manner of fmt.Print.
	Info(...interface{})
	// Infof logs at INFO level. Arguments are handled in the manner of fmt.Printf.
	Infof(string, ...interface{})
	// Warn logs at WARN level. Arguments are handled in the manner of fmt.Print.
	Warn(...interface{})
	// Warnf logs at WARN level. Arguments are handled in the manner of fmt.Printf.
	Warnf(string, ...interface{})
	// Error logs at ERROR level. Arguments are handled in the manner of fmt.Print.
	Error(...interface{})
	// Errorf logs at ERROR level. Arguments are handled in the manner of fmt.Printf.
	Errorf(string, ...interface{})
	// Fatal logs at FATAL level followed by a call to os.Exit(1).
	Fatal(...interface{})
	// Fatalf logs at FATAL level followed by a call to os.Exit(1).
	Fatalf(string, ...interface{})
	// Panic logs at PANIC level followed by a call to panic().
	Panic(...interface{})
	// Panicf logs at PANIC level followed by a call to panic().
	Panicf(string, ...interface{})
	// Debug logs at DEBUG level. Arguments are handled in the manner of fmt.Print.
	Debug(...interface{})
	// Debugf logs at DEBUG level. Arguments are handled in the manner of fmt.Printf.
	Debugf(string, ...interface{})
	// Trace logs at TRACE level.
	Trace(...interface{})
	// Tracef logs at TRACE level.
	Tracef(string, ...interface{})
	// WithField returns a child logger that adds key=value to every line.
	WithField(key string, value interface{}) Logger
}

// logger is the zerolog backed Logger
type logger struct {
	zl zerolog.Logger
}

var _ Logger = (*logger)(nil)

// NewLogger returns a Logger writing JSON lines to w. The global level
// set by SetGlobalSettings applies.
func NewLogger(w io.Writer) Logger {
	return &logger{
		zl: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// NewConsoleLogger returns a Logger writing human friendly lines to w
func NewConsoleLogger(w io.Writer) Logger {
	return &logger{
		zl: zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger(),
	}
}

// Discard returns a Logger that drops everything
func Discard() Logger {
	return &logger{zl: zerolog.Nop()}
}

func (l *logger) Debug(v ...interface{}) {
	l.zl.Debug().Msg(fmt.Sprint(v...))
}

func (l *logger) Debugf(format string, v ...interface{}) {
	l.zl.Debug().Msgf(format, v...)
}

func (l *logger) Info(v ...interface{}) {
	l.zl.Info().Msg(fmt.Sprint(v...))
}

func (l *logger) Infof(format string, v ...interface{}) {
	l.zl.Info().Msgf(format, v...)
}

func (l *logger) Warn(v ...interface{}) {
	l.zl.Warn().Msg(fmt.Sprint(v...))
}

func (l *logger) Warnf(format string, v ...interface{}) {
	l.zl.Warn().Msgf(format, v...)
}

func (l *logger) Error(v ...interface{}) {
	l.zl.Error().Msg(fmt.Sprint(v...))
}

func (l *logger) Errorf(format string, v ...interface{}) {
	l.zl.Error().Msgf(format, v...)
}

// Fatal exits through zerolog's Msg, which calls os.Exit(1)
func (l *logger) Fatal(v ...interface{}) {
	l.zl.Fatal().Msg(fmt.Sprint(v...))
}

func (l *logger) Fatalf(format string, v ...interface{}) {
	l.zl.Fatal().Msgf(format, v...)
}

func (l *logger) Panic(v ...interface{}) {
	l.zl.Panic().Msg(fmt.Sprint(v...))
}

func (l *logger) Panicf(format string, v ...interface{}) {
	l.zl.Panic().Msgf(format, v...)
}

func (l *logger) Trace(v ...interface{}) {
	l.zl.Trace().Msg(fmt.Sprint(v...))
}

func (l *logger) Tracef(format string, v ...interface{}) {
	l.zl.Trace().Msgf(format, v...)
}

func (l *logger) WithField(key string, value interface{}) Logger {
	return &logger{zl: l.zl.With().Interface(key, value).Logger()}
}

// Info logs to the DefaultLogger at INFO level
func Info(v ...interface{}) {
	DefaultLogger.Info(v...)
}

// Infof logs to the DefaultLogger at INFO level
func Infof(format string, v ...interface{}) {
	DefaultLogger.Infof(format, v...)
}

// Warnf logs to the DefaultLogger at WARN level
func Warnf(format string, v ...interface{}) {
	DefaultLogger.Warnf(format, v...)
}

// Error logs to the DefaultLogger at ERROR level
func Error(v ...interface{}) {
	DefaultLogger.Error(v...)
}

// Errorf logs to the DefaultLogger at ERROR level
func Errorf(format string, v ...interface{}) {
	DefaultLogger.Errorf(format, v...)
}

// Fatal logs to the DefaultLogger and exits
func Fatal(v ...interface{}) {
	DefaultLogger.Fatal(v...)
}

// Fatalf logs to the DefaultLogger and exits
func Fatalf(format string, v ...interface{}) {
	DefaultLogger.Fatalf(format, v...)
}
