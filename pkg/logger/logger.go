package logx

import (
	"github.com/leadpilot-ai/server/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
	Level:       "debug",
}

type LoggerOpts struct {
	Environment core.Environment
	Level       string
}

func safe(opts ...LoggerOpts) *LoggerOpts {
	if len(opts) == 0 {
		return DefaultLoggerOpts
	}
	return &opts[0]
}

// Init configures the global logger. Production keeps the default JSON writer
// at info level; everything else gets a console writer with caller info.
func Init(opts ...LoggerOpts) {
	o := safe(opts...)
	level, err := zerolog.ParseLevel(o.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.DebugLevel
	}
	if o.Environment.IsProduction() {
		if level < zerolog.InfoLevel {
			level = zerolog.InfoLevel
		}
		log.Logger = log.Logger.Level(level)
		return
	}
	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Caller().Logger().Level(level)
}

// Run returns a logger bound to one pipeline run, so every event carries the
// trace and lead identity. Returned by pointer so call sites can chain level
// methods directly.
func Run(traceID, leadID string) *zerolog.Logger {
	l := log.Logger.With().Str("trace_id", traceID).Str("lead_id", leadID).Logger()
	return &l
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
