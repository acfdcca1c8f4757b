package redissentinel

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/joomcode/sentinelpool/rediserror"
	"github.com/joomcode/sentinelpool/topology"
)

const (
	defaultConnectTimeout = 2 * time.Second
	defaultResolveRetries = 3
	defaultResolveBackoff = 1 * time.Second
	defaultReconnectPause = 5 * time.Second
)

// Opts is options for Resolve and NewWatcher.
type Opts struct {
	// Sentinels - addresses (host:port) of sentinel endpoints. They are queried in order.
	Sentinels []string
	// Groups - logical master group names. Topology has the same order.
	Groups []string
	// Password - password for masters, copied into every ShardSpec.
	Password string
	// SentinelPassword - password for sentinels.
	SentinelPassword string
	// ConnectTimeout - dial timeout for sentinels, also copied into ShardSpec.
	// Default is 2s.
	ConnectTimeout time.Duration
	// ResolveRetries - how many additional rounds over all sentinels are made before
	// giving up on a group at start. Default is 3. If ResolveRetries < 0, single round is made.
	ResolveRetries int
	// ResolveBackoff - pause between resolution rounds. Default is 1s.
	ResolveBackoff time.Duration
	// ReconnectPause - pause before resubscribing after subscription loss. Default is 5s.
	ReconnectPause time.Duration
	// Channel - failover notification channel. Default is "+switch-master".
	Channel string
	// Logger
	Logger Logger
	// Dial - connection factory. Default is DialSentinel.
	Dial DialFunc
}

func (opts Opts) withDefaults() Opts {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.ResolveRetries == 0 {
		opts.ResolveRetries = defaultResolveRetries
	} else if opts.ResolveRetries < 0 {
		opts.ResolveRetries = 0
	}
	if opts.ResolveBackoff <= 0 {
		opts.ResolveBackoff = defaultResolveBackoff
	}
	if opts.ReconnectPause <= 0 {
		opts.ReconnectPause = defaultReconnectPause
	}
	if opts.Channel == "" {
		opts.Channel = SwitchMasterChannel
	}
	if opts.Logger == nil {
		opts.Logger = DefaultLogger{}
	}
	if opts.Dial == nil {
		opts.Dial = DialSentinel
	}
	return opts
}

func (opts *Opts) validate() error {
	if len(opts.Sentinels) == 0 {
		return rediserror.ErrNoSentinels.New("no sentinel endpoints configured")
	}
	if len(opts.Groups) == 0 {
		return rediserror.ErrNoGroups.New("no master groups configured")
	}
	seen := make(map[string]bool, len(opts.Groups))
	for _, g := range opts.Groups {
		if g == "" || seen[g] {
			return rediserror.ErrConfiguration.New("group names must be unique and not empty").
				WithProperty(rediserror.EKGroup, g)
		}
		seen[g] = true
	}
	return nil
}

// Resolve asks sentinels for current masters of all groups.
// Every group must be resolved, otherwise ErrUnresolved is returned.
// If ctx is closed during resolution, ErrCancelled is returned.
func Resolve(ctx context.Context, opts Opts) (*topology.Topology, error) {
	if ctx == nil {
		return nil, rediserror.ErrContextIsNil.NewWithNoMessage()
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return resolve(ctx, &opts)
}

func resolve(ctx context.Context, opts *Opts) (*topology.Topology, error) {
	conns := make(map[string]Conn, len(opts.Sentinels))
	defer func() {
		for _, conn := range conns {
			conn.Close()
		}
	}()
	getConn := func(addr string) Conn {
		conn, ok := conns[addr]
		if !ok {
			conn = opts.Dial(addr, opts)
			conns[addr] = conn
		}
		return conn
	}

	specs := make([]topology.ShardSpec, len(opts.Groups))
	for i, group := range opts.Groups {
		try := func() error {
			for _, addr := range opts.Sentinels {
				host, port, err := getConn(addr).MasterAddr(ctx, group)
				if err != nil {
					opts.Logger.Report(addr, LogResolveFailed{Group: group, Error: err})
					if ctx.Err() != nil {
						return backoff.Permanent(ctx.Err())
					}
					continue
				}
				specs[i] = topology.ShardSpec{
					Name:           group,
					Host:           host,
					Port:           port,
					ConnectTimeout: opts.ConnectTimeout,
					Password:       opts.Password,
				}
				opts.Logger.Report(addr, LogResolved{Group: group, Addr: specs[i].Addr()})
				return nil
			}
			return rediserror.ErrUnresolved.New("no sentinel could resolve master").
				WithProperty(rediserror.EKGroup, group)
		}
		b := backoff.WithContext(
			backoff.WithMaxRetries(backoff.NewConstantBackOff(opts.ResolveBackoff), uint64(opts.ResolveRetries)),
			ctx)
		if err := backoff.Retry(try, b); err != nil {
			if ctx.Err() != nil {
				return nil, rediserror.ErrCancelled.Wrap(ctx.Err(), "resolution interrupted").
					WithProperty(rediserror.EKGroup, group)
			}
			return nil, rediserror.WithNewProperty(rediserror.Classify(err), rediserror.EKGroup, group)
		}
	}
	return topology.New(specs...), nil
}

// Watcher keeps topology current by listening to sentinels' failover notifications.
type Watcher struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   Opts

	holder    *topology.Holder
	eg        errgroup.Group
	listeners map[listenerKey]*listener
}

// listenerKey identifies listener by value, so duplicate endpoints share one listener.
type listenerKey struct {
	groups string
	addr   string
}

func newListenerKey(groups []string, addr string) listenerKey {
	sorted := append([]string(nil), groups...)
	sort.Strings(sorted)
	return listenerKey{groups: strings.Join(sorted, ","), addr: addr}
}

// NewWatcher resolves all groups and starts listeners.
// Closing ctx has the same effect as calling Close.
func NewWatcher(ctx context.Context, opts Opts) (*Watcher, error) {
	if ctx == nil {
		return nil, rediserror.ErrContextIsNil.NewWithNoMessage()
	}
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	top, err := resolve(ctx, &opts)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		opts:      opts,
		holder:    topology.NewHolder(top),
		listeners: make(map[listenerKey]*listener),
	}
	w.ctx, w.cancel = context.WithCancel(ctx)

	for _, addr := range opts.Sentinels {
		key := newListenerKey(opts.Groups, addr)
		if _, ok := w.listeners[key]; ok {
			continue
		}
		l := newListener(addr, &w.opts, w.holder)
		w.listeners[key] = l
		w.eg.Go(func() error { return l.run(w.ctx) })
	}
	return w, nil
}

// Topology returns holder of current topology.
func (w *Watcher) Topology() *topology.Holder {
	return w.holder
}

// Listeners returns number of running listeners.
func (w *Watcher) Listeners() int {
	return len(w.listeners)
}

// Close stops all listeners and waits for them to exit.
// It doesn't wait for in-flight requests: subscriptions are closed immediately.
func (w *Watcher) Close() error {
	w.cancel()
	return w.eg.Wait()
}
