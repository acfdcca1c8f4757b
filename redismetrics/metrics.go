// Package redismetrics exposes prometheus metrics of sentinelpool components.
//
// Metrics are collected by wrapping Loggers of the components:
//
//	m := redismetrics.New(prometheus.DefaultRegisterer, "sentinelpool")
//	sentinelOpts.Logger = m.SentinelLogger(redissentinel.DefaultLogger{})
//	poolOpts.Logger = m.PoolLogger(redispool.DefaultLogger{})
package redismetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a set of collectors.
type Metrics struct {
	topologyChanges  prometheus.Counter
	sentinelEvents   *prometheus.CounterVec
	poolBorrows      *prometheus.CounterVec
	poolWait         prometheus.Histogram
	poolHandles      *prometheus.CounterVec
	poolRebuilds     prometheus.Counter
	lockAcquisitions *prometheus.CounterVec
	lockReleases     *prometheus.CounterVec
	callFailures     *prometheus.CounterVec
	callDuration     *prometheus.HistogramVec
}

// New creates collectors and registers them in reg.
// It panics if collectors are already registered, like prometheus.MustRegister does.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	m := &Metrics{
		topologyChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sentinel",
			Name:      "topology_changes_total",
			Help:      "Number of published topology changes.",
		}),
		sentinelEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sentinel",
			Name:      "events_total",
			Help:      "Sentinel listener events by sentinel and kind.",
		}, []string{"sentinel", "event"}),
		poolBorrows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "borrows_total",
			Help:      "Pool borrows by result.",
		}, []string{"pool", "result"}),
		poolWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "wait_seconds",
			Help:      "Time spent waiting for a handle.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		poolHandles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "handles_total",
			Help:      "Handles created and destroyed.",
		}, []string{"pool", "event"}),
		poolRebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "rebuilds_total",
			Help:      "Number of pool rebuilds caused by topology change.",
		}),
		lockAcquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "attempts_total",
			Help:      "Lock acquisition attempts by result.",
		}, []string{"result"}),
		lockReleases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "releases_total",
			Help:      "Lock releases; owned=false if the lock were lost before release.",
		}, []string{"owned"}),
		callFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "call",
			Name:      "failures_total",
			Help:      "Failed remote operations by operation and error class.",
		}, []string{"op", "class"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "call",
			Name:      "duration_seconds",
			Help:      "Duration of remote operations including borrow.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.topologyChanges,
		m.sentinelEvents,
		m.poolBorrows,
		m.poolWait,
		m.poolHandles,
		m.poolRebuilds,
		m.lockAcquisitions,
		m.lockReleases,
		m.callFailures,
		m.callDuration,
	)
	return m
}

// PoolBorrows returns borrow counter, labelled by pool and result.
func (m *Metrics) PoolBorrows() *prometheus.CounterVec { return m.poolBorrows }

// PoolHandles returns handle lifecycle counter, labelled by pool and event.
func (m *Metrics) PoolHandles() *prometheus.CounterVec { return m.poolHandles }

// PoolRebuilds returns rebuild counter.
func (m *Metrics) PoolRebuilds() prometheus.Counter { return m.poolRebuilds }

// CallFailures returns failure counter, labelled by operation and error class.
func (m *Metrics) CallFailures() *prometheus.CounterVec { return m.callFailures }

// CallDuration returns operation duration histogram, labelled by operation.
func (m *Metrics) CallDuration() *prometheus.HistogramVec { return m.callDuration }

// LockAcquisitions returns acquisition attempts counter, labelled by result.
func (m *Metrics) LockAcquisitions() *prometheus.CounterVec { return m.lockAcquisitions }

// LockReleases returns release counter, labelled by whether lock were still owned.
func (m *Metrics) LockReleases() *prometheus.CounterVec { return m.lockReleases }
