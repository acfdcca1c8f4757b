package rediscall

import (
	"time"

	"github.com/dapr/kit/logger"
)

// Logger is used for logging results of remote operations.
type Logger interface {
	// Report is called after every operation.
	// Default implementation logs failures through dapr logger "sentinelpool.call".
	Report(event LogEvent)
}

// LogEvent is a sum-type for events to be logged.
type LogEvent interface {
	logEvent()
}

// LogSuccess is logged when operation succeeded.
type LogSuccess struct {
	Op       string
	Duration time.Duration
}

// LogFailure is logged when operation failed and default were substituted.
type LogFailure struct {
	Op       string
	Args     string // - redacted arguments
	Error    error
	Duration time.Duration
}

func (LogSuccess) logEvent() {}
func (LogFailure) logEvent() {}

var log = logger.NewLogger("sentinelpool.call")

// DefaultLogger is a default Logger implementation.
type DefaultLogger struct{}

// Report implements Logger.Report.
func (DefaultLogger) Report(event LogEvent) {
	switch ev := event.(type) {
	case LogFailure:
		log.Warnf("%s(%s) failed: %v", ev.Op, ev.Args, ev.Error)
	case LogSuccess:
	default:
		log.Warnf("unexpected event: %#v", event)
	}
}

// NoopLogger implements Logger with no logging at all.
type NoopLogger struct{}

// Report implements Logger.Report
func (NoopLogger) Report(LogEvent) {}
