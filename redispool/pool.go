package redispool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/puddle/v2"
	"github.com/redis/go-redis/v9"

	"github.com/joomcode/sentinelpool/rediserror"
	"github.com/joomcode/sentinelpool/topology"
)

const (
	defaultSize          = 8
	defaultWaitTimeout   = 2 * time.Second
	defaultCreateRetries = 3
	defaultCreateBackoff = 100 * time.Millisecond
)

// Opts is options for Pool.
type Opts struct {
	// Name - name of the pool, used in logs.
	Name string
	// Size - maximum number of handles. Default is 8.
	Size int32
	// WaitTimeout - how long Get waits for free handle. Default is 2s.
	WaitTimeout time.Duration
	// DB - database number selected on every shard.
	DB int
	// ReadTimeout and WriteTimeout of shard connections. Zero means go-redis defaults.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// NoTestOnBorrow disables ping of reused handles on Get.
	NoTestOnBorrow bool
	// CreateRetries - how many times handle creation is retried. Default is 3.
	// If CreateRetries < 0, creation is not retried.
	CreateRetries int
	// CreateBackoff - pause between creation attempts. Default is 100ms.
	CreateBackoff time.Duration
	// Logger
	Logger Logger
	// NewClient - client factory. Default is NewClient.
	NewClient func(spec topology.ShardSpec, opts *Opts) *redis.Client
}

// generation is a topology pool currently builds handles for.
type generation struct {
	top *topology.Topology
}

// Pool is a bounded pool of Handles, rebuilt when topology changes.
type Pool struct {
	opts   Opts
	holder *topology.Holder
	ring   *ring
	pool   *puddle.Pool[*Handle]

	gen         atomic.Pointer[generation]
	m           sync.Mutex
	unsubscribe func()
	closed      atomic.Bool
}

// New creates pool over topology held by holder.
// Handles are created lazily, so New doesn't touch network.
func New(holder *topology.Holder, opts Opts) (*Pool, error) {
	if holder == nil || holder.Load() == nil || holder.Load().Len() == 0 {
		return nil, rediserror.ErrNoGroups.New("pool needs non-empty topology")
	}
	if opts.Size == 0 {
		opts.Size = defaultSize
	} else if opts.Size < 0 {
		return nil, rediserror.ErrConfiguration.New("pool size must be positive")
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = defaultWaitTimeout
	}
	if opts.CreateRetries == 0 {
		opts.CreateRetries = defaultCreateRetries
	} else if opts.CreateRetries < 0 {
		opts.CreateRetries = 0
	}
	if opts.CreateBackoff <= 0 {
		opts.CreateBackoff = defaultCreateBackoff
	}
	if opts.Logger == nil {
		opts.Logger = DefaultLogger{}
	}
	if opts.NewClient == nil {
		opts.NewClient = NewClient
	}

	p := &Pool{
		opts:   opts,
		holder: holder,
		ring:   newRing(holder.Load().Names()),
	}
	pool, err := puddle.NewPool(&puddle.Config[*Handle]{
		Constructor: p.create,
		Destructor:  func(h *Handle) { h.close() },
		MaxSize:     opts.Size,
	})
	if err != nil {
		return nil, rediserror.ErrConfiguration.Wrap(err, "could not create pool")
	}
	p.pool = pool

	p.gen.Store(&generation{top: holder.Load()})
	p.unsubscribe = holder.Subscribe(p.rebuild)
	// catch change published before subscription
	p.rebuild(holder.Load())
	return p, nil
}

// Name returns name of the pool.
func (p *Pool) Name() string {
	return p.opts.Name
}

// Topology returns topology new handles are built for.
func (p *Pool) Topology() *topology.Topology {
	return p.gen.Load().top
}

func (p *Pool) create(ctx context.Context) (*Handle, error) {
	gen := p.gen.Load()
	var h *Handle
	try := func() error {
		h = newHandle(gen, p.ring, &p.opts)
		if err := h.Ping(ctx); err != nil {
			h.close()
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.opts.CreateBackoff), uint64(p.opts.CreateRetries)),
		ctx)
	if err := backoff.Retry(try, b); err != nil {
		xerr := rediserror.Classify(err)
		p.report(LogHandleCreateFailed{Error: xerr})
		return nil, xerr
	}
	p.report(LogHandleCreated{Version: gen.top.Version()})
	return h, nil
}

// Get borrows handle. It waits up to WaitTimeout if all handles are in use.
// Handle must be returned with Put.
func (p *Pool) Get(ctx context.Context) (*Handle, error) {
	if ctx == nil {
		return nil, rediserror.ErrContextIsNil.NewWithNoMessage()
	}
	start := time.Now()
	h, err := p.get(ctx)
	if err != nil {
		p.report(LogBorrowFailed{Error: err})
		return nil, err
	}
	h.borrowedAt = time.Now()
	p.report(LogBorrowed{Wait: h.borrowedAt.Sub(start)})
	return h, nil
}

func (p *Pool) get(ctx context.Context) (*Handle, error) {
	if p.closed.Load() {
		return nil, rediserror.ErrPoolClosed.New("pool is closed")
	}
	wctx, cancel := context.WithTimeout(ctx, p.opts.WaitTimeout)
	defer cancel()
	for {
		res, err := p.pool.Acquire(wctx)
		if err != nil {
			return nil, p.acquireError(ctx, err)
		}
		h := res.Value()
		if h.gen != p.gen.Load() {
			p.destroy(res, "stale topology")
			continue
		}
		if !h.Valid() {
			p.destroy(res, "invalid")
			continue
		}
		if h.uses > 0 && !p.opts.NoTestOnBorrow {
			if err := h.Ping(wctx); err != nil {
				p.report(LogPingFailed{Error: err})
				p.destroy(res, "validation failed")
				if wctx.Err() != nil {
					return nil, p.acquireError(ctx, wctx.Err())
				}
				continue
			}
		}
		h.uses++
		h.res = res
		return h, nil
	}
}

func (p *Pool) acquireError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return rediserror.ErrCancelled.Wrap(ctx.Err(), "borrow aborted")
	case errors.Is(err, context.DeadlineExceeded):
		return rediserror.ErrPoolTimeout.New("no handle available in %s", p.opts.WaitTimeout)
	case errors.Is(err, puddle.ErrClosedPool):
		return rediserror.ErrPoolClosed.New("pool is closed")
	}
	return rediserror.Classify(err)
}

// Put returns handle to the pool. Invalid handles and handles built for
// outdated topology are destroyed. Put of already returned handle is a no-op.
func (p *Pool) Put(h *Handle) {
	if h == nil || h.res == nil {
		return
	}
	res := h.res
	held := time.Since(h.borrowedAt)
	h.reset()
	switch {
	case p.closed.Load():
		p.destroy(res, "pool closed")
	case !h.Valid():
		p.destroy(res, "invalid")
	case h.gen != p.gen.Load():
		p.destroy(res, "stale topology")
	default:
		res.Release()
		p.report(LogReturned{Held: held, Recycled: true})
		return
	}
	p.report(LogReturned{Held: held})
}

func (p *Pool) destroy(res *puddle.Resource[*Handle], reason string) {
	res.Destroy()
	p.report(LogHandleDestroyed{Reason: reason})
}

// rebuild switches pool to topology t. Idle handles of previous topology are
// destroyed now, borrowed ones are destroyed on return.
func (p *Pool) rebuild(t *topology.Topology) {
	p.m.Lock()
	defer p.m.Unlock()
	old := p.gen.Load()
	if p.closed.Load() || old.top.Equal(t) {
		return
	}
	p.gen.Store(&generation{top: t})
	evicted := 0
	for _, res := range p.pool.AcquireAllIdle() {
		if res.Value().gen == old {
			res.Destroy()
			evicted++
		} else {
			res.ReleaseUnused()
		}
	}
	p.report(LogRebuild{From: old.top, To: t, Evicted: evicted})
}

// Close closes pool. It doesn't wait for borrowed handles:
// they are destroyed when returned.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.unsubscribe()
	for _, res := range p.pool.AcquireAllIdle() {
		res.Destroy()
	}
	go p.pool.Close()
	p.report(LogClosed{})
}

// Stat is a snapshot of pool state.
type Stat struct {
	Total    int32
	Idle     int32
	Borrowed int32
	Max      int32
	Version  uint64 // - version of current topology
}

// Stat returns pool statistics.
func (p *Pool) Stat() Stat {
	st := p.pool.Stat()
	return Stat{
		Total:    st.TotalResources(),
		Idle:     st.IdleResources(),
		Borrowed: st.AcquiredResources(),
		Max:      st.MaxResources(),
		Version:  p.gen.Load().top.Version(),
	}
}
