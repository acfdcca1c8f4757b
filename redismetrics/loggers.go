package redismetrics

import (
	"strconv"

	"github.com/joomcode/errorx"

	"github.com/joomcode/sentinelpool/rediscall"
	"github.com/joomcode/sentinelpool/rediserror"
	"github.com/joomcode/sentinelpool/redislock"
	"github.com/joomcode/sentinelpool/redispool"
	"github.com/joomcode/sentinelpool/redissentinel"
)

// SentinelLogger returns redissentinel.Logger which counts events and passes them to next.
// next may be nil.
func (m *Metrics) SentinelLogger(next redissentinel.Logger) redissentinel.Logger {
	return sentinelLogger{m: m, next: next}
}

type sentinelLogger struct {
	m    *Metrics
	next redissentinel.Logger
}

func (l sentinelLogger) Report(sentinel string, event redissentinel.LogEvent) {
	var kind string
	switch ev := event.(type) {
	case redissentinel.LogResolved:
		kind = "resolved"
	case redissentinel.LogResolveFailed:
		kind = "resolve_failed"
	case redissentinel.LogSubscribed:
		kind = "subscribed"
	case redissentinel.LogDisconnected:
		kind = "disconnected"
	case redissentinel.LogSwitchMaster:
		kind = "switch_master"
		if ev.Published {
			l.m.topologyChanges.Inc()
		}
	case redissentinel.LogUntrackedGroup:
		kind = "untracked_group"
	case redissentinel.LogMalformedMessage:
		kind = "malformed_message"
	case redissentinel.LogContextClosed:
		kind = "closed"
	default:
		kind = "other"
	}
	l.m.sentinelEvents.WithLabelValues(sentinel, kind).Inc()
	if l.next != nil {
		l.next.Report(sentinel, event)
	}
}

// PoolLogger returns redispool.Logger which counts events and passes them to next.
// next may be nil.
func (m *Metrics) PoolLogger(next redispool.Logger) redispool.Logger {
	return poolLogger{m: m, next: next}
}

type poolLogger struct {
	m    *Metrics
	next redispool.Logger
}

func (l poolLogger) Report(p *redispool.Pool, event redispool.LogEvent) {
	name := p.Name()
	switch ev := event.(type) {
	case redispool.LogBorrowed:
		l.m.poolBorrows.WithLabelValues(name, "ok").Inc()
		l.m.poolWait.Observe(ev.Wait.Seconds())
	case redispool.LogBorrowFailed:
		l.m.poolBorrows.WithLabelValues(name, errorClass(ev.Error)).Inc()
	case redispool.LogHandleCreated:
		l.m.poolHandles.WithLabelValues(name, "created").Inc()
	case redispool.LogHandleCreateFailed:
		l.m.poolHandles.WithLabelValues(name, "create_failed").Inc()
	case redispool.LogHandleDestroyed:
		l.m.poolHandles.WithLabelValues(name, "destroyed").Inc()
	case redispool.LogRebuild:
		l.m.poolRebuilds.Inc()
	}
	if l.next != nil {
		l.next.Report(p, event)
	}
}

// CallLogger returns rediscall.Logger which counts failures, observes durations
// and passes events to next. next may be nil.
func (m *Metrics) CallLogger(next rediscall.Logger) rediscall.Logger {
	return callLogger{m: m, next: next}
}

type callLogger struct {
	m    *Metrics
	next rediscall.Logger
}

func (l callLogger) Report(event rediscall.LogEvent) {
	switch ev := event.(type) {
	case rediscall.LogSuccess:
		l.m.callDuration.WithLabelValues(ev.Op).Observe(ev.Duration.Seconds())
	case rediscall.LogFailure:
		l.m.callDuration.WithLabelValues(ev.Op).Observe(ev.Duration.Seconds())
		l.m.callFailures.WithLabelValues(ev.Op, errorClass(ev.Error)).Inc()
	}
	if l.next != nil {
		l.next.Report(event)
	}
}

// LockLogger returns redislock.Logger which counts lock transitions and passes them to next.
// next may be nil.
func (m *Metrics) LockLogger(next redislock.Logger) redislock.Logger {
	return lockLogger{m: m, next: next}
}

type lockLogger struct {
	m    *Metrics
	next redislock.Logger
}

func (l lockLogger) Report(key string, event redislock.LogEvent) {
	switch ev := event.(type) {
	case redislock.LogAcquired:
		result := "acquired"
		if ev.Takeover {
			result = "takeover"
		} else if ev.Reentrant {
			result = "reentered"
		}
		l.m.lockAcquisitions.WithLabelValues(result).Inc()
	case redislock.LogContended:
		l.m.lockAcquisitions.WithLabelValues("contended").Inc()
	case redislock.LogTakeoverLost:
		l.m.lockAcquisitions.WithLabelValues("takeover_lost").Inc()
	case redislock.LogReleased:
		l.m.lockReleases.WithLabelValues(strconv.FormatBool(ev.Deleted)).Inc()
	}
	if l.next != nil {
		l.next.Report(key, event)
	}
}

// errorClass maps error to a bounded set of label values.
func errorClass(err error) string {
	switch {
	case errorx.IsOfType(err, rediserror.ErrPoolTimeout):
		return "pool_timeout"
	case errorx.IsOfType(err, rediserror.ErrPoolClosed):
		return "pool_closed"
	case errorx.IsOfType(err, rediserror.ErrConnectivity):
		return "connectivity"
	case errorx.IsOfType(err, rediserror.ErrProtocol):
		return "protocol"
	case errorx.IsOfType(err, rediserror.ErrContext):
		return "cancelled"
	case errorx.IsOfType(err, rediserror.ErrConfiguration):
		return "configuration"
	}
	return "unknown"
}
