package raft

import (
	"fmt"
	"io"
	golog "log"

	"github.com/hashicorp/go-hclog"
	"github.com/rs/zerolog"

	"github.com/super-flat/nodewatcher/logging"
)

// log implements the hashicorp logger on top of logging.Logger so raft
// output ends up in the same structured stream as the rest of the process
type log struct {
	name   string
	logger logging.Logger
}

var _ hclog.Logger = log{}

// newLog returns an instance of log
func newLog(logger logging.Logger) hclog.Logger {
	return log{name: "raft", logger: logger.WithField("component", "raft")}
}

// Log emits the message and args at the provided level
func (l log) Log(level hclog.Level, msg string, args ...interface{}) {
	switch level {
	case hclog.Trace:
		l.Trace(msg, args...)
	case hclog.Debug:
		l.Debug(msg, args...)
	case hclog.Info:
		l.Info(msg, args...)
	case hclog.Warn:
		l.Warn(msg, args...)
	case hclog.Error:
		l.Error(msg, args...)
	default:
		l.Debug(msg, args...)
	}
}

// Trace emits the message and args at TRACE level
func (l log) Trace(msg string, args ...interface{}) {
	l.logger.Trace(format(msg, args))
}

// Debug emits the message and args at DEBUG level
func (l log) Debug(msg string, args ...interface{}) {
	l.logger.Debug(format(msg, args))
}

// Info emits the message and args at INFO level
func (l log) Info(msg string, args ...interface{}) {
	l.logger.Info(format(msg, args))
}

// Warn emits the message and args at WARN level
func (l log) Warn(msg string, args ...interface{}) {
	l.logger.Warn(format(msg, args))
}

// Error emits the message and args at ERROR level
func (l log) Error(msg string, args ...interface{}) {
	l.logger.Error(format(msg, args))
}

// IsTrace indicates that the logger would emit TRACE level logs
func (l log) IsTrace() bool {
	return logging.Enabled(zerolog.TraceLevel)
}

// IsDebug indicates that the logger would emit DEBUG level logs
func (l log) IsDebug() bool {
	return logging.Enabled(zerolog.DebugLevel)
}

// IsInfo indicates that the logger would emit INFO level logs
func (l log) IsInfo() bool {
	return logging.Enabled(zerolog.InfoLevel)
}

// IsWarn indicates that the logger would emit WARN level logs
func (l log) IsWarn() bool {
	return logging.Enabled(zerolog.WarnLevel)
}

// IsError indicates that the logger would emit ERROR level logs
func (l log) IsError() bool {
	return logging.Enabled(zerolog.ErrorLevel)
}

// ImpliedArgs returns the loggers implied args
func (l log) ImpliedArgs() []interface{} {
	return nil
}

// With returns a sub-logger carrying the given key/value pairs
func (l log) With(args ...interface{}) hclog.Logger {
	logger := l.logger
	for i := 0; i+1 < len(args); i += 2 {
		logger = logger.WithField(fmt.Sprint(args[i]), args[i+1])
	}
	return log{name: l.name, logger: logger}
}

// Name returns the loggers name
func (l log) Name() string {
	return l.name
}

// Named creates a sub-logger with name appended to the current one
func (l log) Named(name string) hclog.Logger {
	if l.name != "" {
		name = l.name + "." + name
	}
	return l.ResetNamed(name)
}

// ResetNamed creates a sub-logger with exactly name
func (l log) ResetNamed(name string) hclog.Logger {
	return log{name: name, logger: l.logger.WithField("component", name)}
}

// SetLevel is a no-op; the level is global and set through logging.SetGlobalSettings
func (l log) SetLevel(hclog.Level) {}

// GetLevel returns the log level
func (l log) GetLevel() hclog.Level {
	switch zerolog.GlobalLevel() {
	case zerolog.TraceLevel:
		return hclog.Trace
	case zerolog.DebugLevel:
		return hclog.Debug
	case zerolog.InfoLevel:
		return hclog.Info
	case zerolog.WarnLevel:
		return hclog.Warn
	default:
		return hclog.Error
	}
}

// StandardLogger implementation
func (l log) StandardLogger(opts *hclog.StandardLoggerOptions) *golog.Logger {
	return golog.New(l.StandardWriter(opts), "", 0)
}

// StandardWriter implementation
func (l log) StandardWriter(*hclog.StandardLoggerOptions) io.Writer {
	return io.Discard
}

// format renders hclog style key/value pairs after the message
func format(msg string, args []interface{}) string {
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			msg += fmt.Sprintf(" %v=%v", args[i], args[i+1])
			continue
		}
		msg += fmt.Sprintf(" %v", args[i])
	}
	return msg
}
