package redispool

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jackc/puddle/v2"
	"github.com/redis/go-redis/v9"

	"github.com/joomcode/sentinelpool/rediserror"
	"github.com/joomcode/sentinelpool/topology"
)

// Handle is a set of connections, one per shard of the topology it were built for.
// Handle is owned by single borrower until it is returned with Pool.Put.
type Handle struct {
	gen     *generation
	ring    *ring
	clients []*redis.Client

	invalid atomic.Bool
	uses    int

	// per-borrow state, cleared on return
	res        *puddle.Resource[*Handle]
	borrowedAt time.Time
}

func newHandle(gen *generation, r *ring, opts *Opts) *Handle {
	h := &Handle{
		gen:     gen,
		ring:    r,
		clients: make([]*redis.Client, gen.top.Len()),
	}
	for i, spec := range gen.top.Shards() {
		h.clients[i] = opts.NewClient(spec, opts)
	}
	return h
}

// NewClient is a default client factory: single-connection go-redis client for a shard.
func NewClient(spec topology.ShardSpec, opts *Opts) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         spec.Addr(),
		Password:     spec.Password,
		DB:           opts.DB,
		DialTimeout:  spec.ConnectTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     1,
		MaxRetries:   -1,
	})
}

// Topology returns topology handle were built for.
func (h *Handle) Topology() *topology.Topology {
	return h.gen.top
}

// ShardIndex returns index of shard owning the key.
func (h *Handle) ShardIndex(key string) int {
	return h.ring.get(key)
}

// Shard returns client of shard owning the key.
func (h *Handle) Shard(key string) *redis.Client {
	return h.clients[h.ring.get(key)]
}

// ShardAt returns client of i-th shard.
func (h *Handle) ShardAt(i int) *redis.Client {
	return h.clients[i]
}

// Len returns number of shards.
func (h *Handle) Len() int {
	return len(h.clients)
}

// Ping validates every shard. Any failure marks handle invalid.
func (h *Handle) Ping(ctx context.Context) error {
	for i, c := range h.clients {
		if err := c.Ping(ctx).Err(); err != nil {
			h.Invalidate()
			spec := h.gen.top.Shard(i)
			return rediserror.ErrPing.Wrap(err, "shard %s", spec.Name).
				WithProperty(rediserror.EKGroup, spec.Name).
				WithProperty(rediserror.EKAddress, spec.Addr())
		}
	}
	return nil
}

// Invalidate marks handle as broken: it will be destroyed on return instead of reuse.
func (h *Handle) Invalidate() {
	h.invalid.Store(true)
}

// Valid reports whether handle were not invalidated.
func (h *Handle) Valid() bool {
	return !h.invalid.Load()
}

func (h *Handle) reset() {
	h.res = nil
	h.borrowedAt = time.Time{}
}

func (h *Handle) close() {
	for _, c := range h.clients {
		_ = c.Close()
	}
}
