package redispool

import (
	"time"

	"github.com/dapr/kit/logger"

	"github.com/joomcode/sentinelpool/topology"
)

// Logger is used for logging pool-related events.
type Logger interface {
	// Report will be called when some events happens during pool's lifetime.
	// Default implementation writes through dapr logger "sentinelpool.pool".
	Report(p *Pool, event LogEvent)
}

func (p *Pool) report(event LogEvent) {
	p.opts.Logger.Report(p, event)
}

// LogEvent is a sum-type for events to be logged.
type LogEvent interface {
	logEvent()
}

// LogHandleCreated is logged when new handle were connected to all shards.
type LogHandleCreated struct {
	Version uint64 // - topology version
}

// LogHandleCreateFailed is logged when handle could not be created after all retries.
type LogHandleCreateFailed struct {
	Error error
}

// LogHandleDestroyed is logged when handle is evicted.
type LogHandleDestroyed struct {
	Reason string
}

// LogPingFailed is logged when reused handle fails validation.
type LogPingFailed struct {
	Error error
}

// LogBorrowed is logged on successful Get.
type LogBorrowed struct {
	Wait time.Duration
}

// LogBorrowFailed is logged when Get returns an error.
type LogBorrowFailed struct {
	Error error
}

// LogReturned is logged on Put.
type LogReturned struct {
	Held     time.Duration
	Recycled bool
}

// LogRebuild is logged when pool switches to new topology.
type LogRebuild struct {
	From, To *topology.Topology
	Evicted  int // - number of idle handles destroyed immediately
}

// LogClosed is logged when pool is closed.
type LogClosed struct{}

func (LogHandleCreated) logEvent()      {}
func (LogHandleCreateFailed) logEvent() {}
func (LogHandleDestroyed) logEvent()    {}
func (LogPingFailed) logEvent()         {}
func (LogBorrowed) logEvent()           {}
func (LogBorrowFailed) logEvent()       {}
func (LogReturned) logEvent()           {}
func (LogRebuild) logEvent()            {}
func (LogClosed) logEvent()             {}

var log = logger.NewLogger("sentinelpool.pool")

// DefaultLogger is a default Logger implementation.
type DefaultLogger struct{}

// Report implements Logger.Report.
func (DefaultLogger) Report(p *Pool, event LogEvent) {
	switch ev := event.(type) {
	case LogHandleCreated:
		log.Debugf("pool %s: handle created for topology v%d", p.Name(), ev.Version)
	case LogHandleCreateFailed:
		log.Errorf("pool %s: could not create handle: %v", p.Name(), ev.Error)
	case LogHandleDestroyed:
		log.Debugf("pool %s: handle destroyed: %s", p.Name(), ev.Reason)
	case LogPingFailed:
		log.Warnf("pool %s: handle failed validation: %v", p.Name(), ev.Error)
	case LogBorrowFailed:
		log.Warnf("pool %s: borrow failed: %v", p.Name(), ev.Error)
	case LogRebuild:
		log.Infof("pool %s: rebuilt for topology %s (was %s), %d idle handles evicted",
			p.Name(), ev.To, ev.From, ev.Evicted)
	case LogClosed:
		log.Infof("pool %s: closed", p.Name())
	case LogBorrowed, LogReturned:
	default:
		log.Warnf("pool %s: unexpected event: %#v", p.Name(), event)
	}
}

// NoopLogger implements Logger with no logging at all.
type NoopLogger struct{}

// Report implements Logger.Report
func (NoopLogger) Report(*Pool, LogEvent) {}
