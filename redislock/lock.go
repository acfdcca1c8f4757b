// Package redislock implements remote mutex keyed by a string name,
// with lease expiry and optimistic takeover of abandoned locks.
//
// Lock value is a Token: random owner id plus lease expiry. Expiry is stored
// inside the value, so any party can detect lapsed lease and steal the lock
// regardless of key expiry configured on the server.
//
// Ownership is explicit: successful acquisition returns *Handle, which is
// required to release the lock. Handle must not be shared between goroutines.
package redislock

import (
	"bytes"
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"

	"github.com/joomcode/sentinelpool/rediscall"
	"github.com/joomcode/sentinelpool/rediserror"
	"github.com/joomcode/sentinelpool/redispool"
)

const (
	// MinLease is a lower bound of lease.
	MinLease = time.Second
	// MaxLease is an upper bound and default of lease.
	MaxLease = 24 * time.Hour
	// MinRetrySleep is a lower bound of pause between acquisition attempts.
	MinRetrySleep = 7 * time.Millisecond
)

// Opts is options for Locker.
type Opts struct {
	// Lease - time to live of acquired lock. It is clamped to [MinLease, MaxLease].
	// Default is MaxLease.
	Lease time.Duration
	// RetrySleep - pause between attempts in Lock and TryLockFor.
	// It is at least MinRetrySleep, which is also a default.
	RetrySleep time.Duration
	// Clock - source of time for lease expiry and waiting. Default is real clock.
	Clock clock.Clock
	// Logger
	Logger Logger
}

// ClampLease returns lease bounded to [MinLease, MaxLease]. Non-positive lease means MaxLease.
func ClampLease(lease time.Duration) time.Duration {
	switch {
	case lease <= 0:
		return MaxLease
	case lease < MinLease:
		return MinLease
	case lease > MaxLease:
		return MaxLease
	}
	return lease
}

// Handle is a proof of lock ownership.
type Handle struct {
	key   string
	value []byte
	token Token
}

// Key returns lock name.
func (h *Handle) Key() string {
	return h.key
}

// Token returns token stored under lock key.
func (h *Handle) Token() Token {
	return h.token
}

// Released reports whether Unlock were called with this handle.
func (h *Handle) Released() bool {
	return h.value == nil
}

func newHandle(key string, tok Token) *Handle {
	return &Handle{key: key, value: tok.Encode(), token: tok}
}

// Locker acquires and releases locks through rediscall.Caller.
type Locker struct {
	caller *rediscall.Caller
	opts   Opts
}

// New creates Locker.
func New(caller *rediscall.Caller, opts Opts) *Locker {
	opts.Lease = ClampLease(opts.Lease)
	if opts.RetrySleep < MinRetrySleep {
		opts.RetrySleep = MinRetrySleep
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = DefaultLogger{}
	}
	return &Locker{caller: caller, opts: opts}
}

// Lease returns lease of locks acquired by l.
func (l *Locker) Lease() time.Duration {
	return l.opts.Lease
}

// WithLease returns Locker sharing caller, but acquiring locks with other lease.
func (l *Locker) WithLease(lease time.Duration) *Locker {
	opts := l.opts
	opts.Lease = ClampLease(lease)
	return &Locker{caller: l.caller, opts: opts}
}

func (l *Locker) report(key string, event LogEvent) {
	l.opts.Logger.Report(key, event)
}

// TryLock makes single attempt to acquire lock.
// If held is a handle of current owner, lock is reentered and held is returned.
// Contention and any failure yield (nil, false).
func (l *Locker) TryLock(ctx context.Context, key string, held *Handle) (*Handle, bool) {
	h := rediscall.Do(ctx, l.caller, "lock.try", (*Handle)(nil),
		func(ctx context.Context, ph *redispool.Handle) (*Handle, error) {
			return l.tryLock(ctx, ph.Shard(key), key, held)
		}, key)
	return h, h != nil
}

func (l *Locker) tryLock(ctx context.Context, c *redis.Client, key string, held *Handle) (*Handle, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok := NewToken(l.opts.Clock.Now().Add(l.opts.Lease))
		ok, err := c.SetNX(ctx, key, tok.Encode(), l.opts.Lease).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			l.report(key, LogAcquired{Expiry: tok.ExpiresAt()})
			return newHandle(key, tok), nil
		}

		cur, err := c.Get(ctx, key).Bytes()
		if err == redis.Nil {
			// released or expired in between
			continue
		}
		if err != nil {
			return nil, err
		}
		stored, err := ParseToken(cur)
		if err != nil {
			return nil, rediserror.WithNewProperty(rediserror.Classify(err), rediserror.EKKey, key)
		}
		if !stored.Expired(l.opts.Clock.Now()) {
			if held != nil && held.key == key && bytes.Equal(held.value, cur) {
				l.report(key, LogAcquired{Expiry: stored.ExpiresAt(), Reentrant: true})
				return held, nil
			}
			l.report(key, LogContended{Expiry: stored.ExpiresAt()})
			return nil, nil
		}
		return l.takeover(ctx, c, key, cur)
	}
}

// takeover replaces expired value with fresh token, if the key still holds observed value.
// Single-key transaction serialization on the server arbitrates concurrent stealers.
func (l *Locker) takeover(ctx context.Context, c *redis.Client, key string, observed []byte) (*Handle, error) {
	var h *Handle
	err := c.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		if !bytes.Equal(cur, observed) {
			return nil
		}
		tok := NewToken(l.opts.Clock.Now().Add(l.opts.Lease))
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, tok.Encode(), l.opts.Lease)
			return nil
		})
		if err != nil {
			return err
		}
		h = newHandle(key, tok)
		return nil
	}, key)
	if err == redis.TxFailedErr {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	if h == nil {
		l.report(key, LogTakeoverLost{})
		return nil, nil
	}
	l.report(key, LogAcquired{Expiry: h.token.ExpiresAt(), Takeover: true})
	return h, nil
}

// Lock acquires lock, waiting as long as necessary.
// Error is returned only if ctx were closed, it is ErrCancelled.
func (l *Locker) Lock(ctx context.Context, key string, held *Handle) (*Handle, error) {
	for {
		if h, ok := l.TryLock(ctx, key, held); ok {
			return h, nil
		}
		if err := l.sleep(ctx, l.opts.RetrySleep); err != nil {
			return nil, err
		}
	}
}

// TryLockFor tries to acquire lock during timeout.
// It returns (nil, false, nil) on timeout and ErrCancelled if ctx were closed.
func (l *Locker) TryLockFor(ctx context.Context, key string, held *Handle, timeout time.Duration) (*Handle, bool, error) {
	start := l.opts.Clock.Now()
	for {
		if h, ok := l.TryLock(ctx, key, held); ok {
			return h, true, nil
		}
		left := timeout - l.opts.Clock.Since(start)
		if left <= 0 {
			return nil, false, nil
		}
		pause := l.opts.RetrySleep
		if pause > left {
			pause = left
		}
		if err := l.sleep(ctx, pause); err != nil {
			return nil, false, err
		}
	}
}

func (l *Locker) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return rediserror.ErrCancelled.Wrap(err, "lock wait aborted")
	}
	t := l.opts.Clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C():
		return nil
	case <-ctx.Done():
		return rediserror.ErrCancelled.Wrap(ctx.Err(), "lock wait aborted")
	}
}

// Unlock releases lock if h still owns it. Otherwise it is a no-op.
// h is cleared in any case, so repeated Unlock does nothing.
func (l *Locker) Unlock(ctx context.Context, h *Handle) {
	if h == nil || h.value == nil {
		return
	}
	key, value := h.key, h.value
	h.value = nil
	deleted := rediscall.Do(ctx, l.caller, "lock.unlock", false,
		func(ctx context.Context, ph *redispool.Handle) (bool, error) {
			return compareAndSwap(ctx, ph.Shard(key), key, value, func(pipe redis.Pipeliner) {
				pipe.Del(ctx, key)
			})
		}, key)
	l.report(key, LogReleased{Deleted: deleted})
}

// Extend sets new lease for lock owned by h. It returns false if h doesn't own lock anymore
// or extension failed.
func (l *Locker) Extend(ctx context.Context, h *Handle, lease time.Duration) bool {
	ok, _ := l.ExtendLease(ctx, h, lease)
	return ok
}

// ExtendLease is Extend which tells lost lock from failure.
// (false, nil) means h doesn't own lock anymore; on failure error is
// *errorx.Error from rediserror namespace, and lock may still be held.
func (l *Locker) ExtendLease(ctx context.Context, h *Handle, lease time.Duration) (bool, error) {
	if h == nil || h.value == nil {
		return false, nil
	}
	lease = ClampLease(lease)
	tok := h.token
	tok.Expiry = l.opts.Clock.Now().Add(lease).UnixMilli()
	key, old, value := h.key, h.value, tok.Encode()
	ok, err := rediscall.Exec(ctx, l.caller, "lock.extend",
		func(ctx context.Context, ph *redispool.Handle) (bool, error) {
			return compareAndSwap(ctx, ph.Shard(key), key, old, func(pipe redis.Pipeliner) {
				pipe.Set(ctx, key, value, lease)
			})
		}, key, lease)
	if ok {
		h.value, h.token = value, tok
		l.report(key, LogExtended{Expiry: tok.ExpiresAt()})
	}
	return ok, err
}

// compareAndSwap runs update in transaction if key holds expected value.
func compareAndSwap(ctx context.Context, c *redis.Client, key string, expected []byte, update func(redis.Pipeliner)) (bool, error) {
	done := false
	err := c.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return nil
		}
		if err != nil {
			return err
		}
		if !bytes.Equal(cur, expected) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			update(pipe)
			return nil
		})
		done = err == nil
		return err
	}, key)
	if err == redis.TxFailedErr {
		return false, nil
	}
	return done, err
}

// IsHeldBy reports whether lock is currently owned by h.
func (l *Locker) IsHeldBy(ctx context.Context, h *Handle) bool {
	if h == nil || h.value == nil {
		return false
	}
	return rediscall.Do(ctx, l.caller, "lock.isHeldBy", false,
		func(ctx context.Context, ph *redispool.Handle) (bool, error) {
			cur, err := ph.Shard(h.key).Get(ctx, h.key).Bytes()
			if err == redis.Nil {
				return false, nil
			}
			return bytes.Equal(h.value, cur), err
		}, h.key)
}

// IsLocked reports whether key holds unexpired lease of anyone.
func (l *Locker) IsLocked(ctx context.Context, key string) bool {
	return rediscall.Do(ctx, l.caller, "lock.isLocked", false,
		func(ctx context.Context, ph *redispool.Handle) (bool, error) {
			cur, err := ph.Shard(key).Get(ctx, key).Bytes()
			if err == redis.Nil {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			tok, err := ParseToken(cur)
			if err != nil {
				return false, rediserror.WithNewProperty(rediserror.Classify(err), rediserror.EKKey, key)
			}
			return !tok.Expired(l.opts.Clock.Now()), nil
		}, key)
}

// Remaining returns server-side time to live of the lock key. It is zero if key is absent.
func (l *Locker) Remaining(ctx context.Context, key string) time.Duration {
	return rediscall.Do(ctx, l.caller, "lock.remaining", time.Duration(0),
		func(ctx context.Context, ph *redispool.Handle) (time.Duration, error) {
			d, err := ph.Shard(key).PTTL(ctx, key).Result()
			if err != nil || d < 0 {
				return 0, err
			}
			return d, nil
		}, key)
}
