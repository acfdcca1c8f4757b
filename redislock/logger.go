package redislock

import (
	"time"

	"github.com/dapr/kit/logger"
)

// Logger is used for logging lock state transitions.
// Failures of remote operations are logged by rediscall.Caller's logger.
type Logger interface {
	// Report will be called on lock state transitions.
	// Default implementation writes through dapr logger "sentinelpool.lock".
	Report(key string, event LogEvent)
}

// LogEvent is a sum-type for events to be logged.
type LogEvent interface {
	logEvent()
}

// LogAcquired is logged when lock were acquired.
type LogAcquired struct {
	Expiry    time.Time
	Takeover  bool // - expired lease of other owner were taken over
	Reentrant bool // - caller already held the lock
}

// LogContended is logged when lock is held by other owner.
type LogContended struct {
	Expiry time.Time // - lease expiry of current owner
}

// LogTakeoverLost is logged when other process changed the key during takeover.
type LogTakeoverLost struct{}

// LogReleased is logged on Unlock.
type LogReleased struct {
	Deleted bool // - false if lock were already expired and stolen or deleted
}

// LogExtended is logged when lease were extended.
type LogExtended struct {
	Expiry time.Time
}

func (LogAcquired) logEvent()     {}
func (LogContended) logEvent()    {}
func (LogTakeoverLost) logEvent() {}
func (LogReleased) logEvent()     {}
func (LogExtended) logEvent()     {}

var log = logger.NewLogger("sentinelpool.lock")

// DefaultLogger is a default Logger implementation.
type DefaultLogger struct{}

// Report implements Logger.Report.
func (DefaultLogger) Report(key string, event LogEvent) {
	switch ev := event.(type) {
	case LogAcquired:
		switch {
		case ev.Takeover:
			log.Infof("lock %s: expired lease taken over, held until %s", key, ev.Expiry.Format(time.RFC3339Nano))
		case ev.Reentrant:
			log.Debugf("lock %s: reentered", key)
		default:
			log.Debugf("lock %s: acquired until %s", key, ev.Expiry.Format(time.RFC3339Nano))
		}
	case LogContended:
		log.Debugf("lock %s: busy until %s", key, ev.Expiry.Format(time.RFC3339Nano))
	case LogTakeoverLost:
		log.Debugf("lock %s: takeover lost to other process", key)
	case LogReleased:
		if ev.Deleted {
			log.Debugf("lock %s: released", key)
		} else {
			log.Warnf("lock %s: released, but it were not held anymore", key)
		}
	case LogExtended:
		log.Debugf("lock %s: extended until %s", key, ev.Expiry.Format(time.RFC3339Nano))
	default:
		log.Warnf("lock %s: unexpected event: %#v", key, event)
	}
}

// NoopLogger implements Logger with no logging at all.
type NoopLogger struct{}

// Report implements Logger.Report
func (NoopLogger) Report(string, LogEvent) {}
