package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// LogLevels define the mapping between user-defined log levels and zerolog levels
var LogLevels = map[string]zerolog.Level{
	"INFO":  zerolog.InfoLevel,
	"DEBUG": zerolog.DebugLevel,
	"WARN":  zerolog.WarnLevel,
	"ERROR": zerolog.ErrorLevel,
	"TRACE": zerolog.TraceLevel,
	"FATAL": zerolog.FatalLevel,
	"PANIC": zerolog.PanicLevel,
}

// SetGlobalSettings sets the global logger settings. This should be set
// when starting an application.
func SetGlobalSettings(level string) {
	if found, ok := LogLevels[strings.ToUpper(level)]; ok {
		zerolog.SetGlobalLevel(found)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Enabled reports whether lines at the given level are currently emitted
func Enabled(level zerolog.Level) bool {
	return level >= zerolog.GlobalLevel()
}
