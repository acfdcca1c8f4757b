package redissentinel

import (
	"time"

	"github.com/dapr/kit/logger"
)

// Logger is used for logging sentinel-related events.
type Logger interface {
	// Report will be called when some events happens during watcher's lifetime.
	// sentinel is an address of sentinel endpoint the event relates to.
	// Default implementation writes through dapr logger "sentinelpool.sentinel".
	Report(sentinel string, event LogEvent)
}

// LogEvent is a sum-type for events to be logged.
type LogEvent interface {
	logEvent() // tagging method
}

// LogResolved is logged when group's master were resolved at start.
type LogResolved struct {
	Group string
	Addr  string
}

// LogResolveFailed is logged when sentinel could not resolve group.
type LogResolveFailed struct {
	Group string
	Error error
}

// LogSubscribed is logged when listener subscribed to failover channel.
type LogSubscribed struct {
	Channel string
}

// LogDisconnected is logged when subscription were broken.
type LogDisconnected struct {
	Error error
	Pause time.Duration // - pause before reconnect
}

// LogSwitchMaster is logged on failover notification for tracked group.
type LogSwitchMaster struct {
	Group     string
	From      string
	To        string
	Published bool // - false if topology already had this address
	Resync    bool // - change were found by query after (re)subscription
}

// LogUntrackedGroup is logged when notification is about group not in topology.
type LogUntrackedGroup struct {
	Group string
}

// LogMalformedMessage is logged when notification could not be parsed.
type LogMalformedMessage struct {
	Payload string
	Error   error
}

// LogContextClosed is logged when listener exits because watcher is closed.
type LogContextClosed struct {
	Error error
}

func (LogResolved) logEvent()         {}
func (LogResolveFailed) logEvent()    {}
func (LogSubscribed) logEvent()       {}
func (LogDisconnected) logEvent()     {}
func (LogSwitchMaster) logEvent()     {}
func (LogUntrackedGroup) logEvent()   {}
func (LogMalformedMessage) logEvent() {}
func (LogContextClosed) logEvent()    {}

var log = logger.NewLogger("sentinelpool.sentinel")

// DefaultLogger is a default Logger implementation.
type DefaultLogger struct{}

// Report implements Logger.Report.
func (DefaultLogger) Report(sentinel string, event LogEvent) {
	switch ev := event.(type) {
	case LogResolved:
		log.Infof("sentinel %s: master of %s is %s", sentinel, ev.Group, ev.Addr)
	case LogResolveFailed:
		log.Warnf("sentinel %s: could not resolve %s: %v", sentinel, ev.Group, ev.Error)
	case LogSubscribed:
		log.Infof("sentinel %s: subscribed to %s", sentinel, ev.Channel)
	case LogDisconnected:
		log.Warnf("sentinel %s: subscription lost, reconnect in %s: %v", sentinel, ev.Pause, ev.Error)
	case LogSwitchMaster:
		if ev.Published {
			log.Infof("sentinel %s: master of %s switched %s -> %s", sentinel, ev.Group, ev.From, ev.To)
		} else {
			log.Debugf("sentinel %s: master of %s is already %s", sentinel, ev.Group, ev.To)
		}
	case LogUntrackedGroup:
		log.Debugf("sentinel %s: ignoring notification about untracked group %s", sentinel, ev.Group)
	case LogMalformedMessage:
		log.Errorf("sentinel %s: malformed notification %q: %v", sentinel, ev.Payload, ev.Error)
	case LogContextClosed:
		log.Infof("sentinel %s: listener stopped (%v)", sentinel, ev.Error)
	default:
		log.Warnf("sentinel %s: unexpected event: %#v", sentinel, event)
	}
}

// NoopLogger implements Logger with no logging at all.
type NoopLogger struct{}

// Report implements Logger.Report
func (NoopLogger) Report(string, LogEvent) {}
