package redislock

import (
	"context"
	"time"
)

// Mutex is a lock bound to single key, remembering its own Handle.
// Mutex is not safe for concurrent use: every goroutine should have its own Mutex.
type Mutex struct {
	l   *Locker
	key string
	h   *Handle
}

// Mutex returns Mutex for key. If lease is zero, locker's lease is used.
func (l *Locker) Mutex(key string, lease time.Duration) *Mutex {
	if lease != 0 {
		l = l.WithLease(lease)
	}
	return &Mutex{l: l, key: key}
}

// Key returns lock name.
func (m *Mutex) Key() string {
	return m.key
}

// TryLock makes single attempt to acquire lock.
func (m *Mutex) TryLock(ctx context.Context) bool {
	h, ok := m.l.TryLock(ctx, m.key, m.h)
	if ok {
		m.h = h
	}
	return ok
}

// Lock waits until lock is acquired or ctx is closed.
func (m *Mutex) Lock(ctx context.Context) error {
	h, err := m.l.Lock(ctx, m.key, m.h)
	if err == nil {
		m.h = h
	}
	return err
}

// TryLockFor tries to acquire lock during timeout.
func (m *Mutex) TryLockFor(ctx context.Context, timeout time.Duration) (bool, error) {
	h, ok, err := m.l.TryLockFor(ctx, m.key, m.h, timeout)
	if ok {
		m.h = h
	}
	return ok, err
}

// Unlock releases lock. It is a no-op if lock is not held.
func (m *Mutex) Unlock(ctx context.Context) {
	m.l.Unlock(ctx, m.h)
	m.h = nil
}

// Extend refreshes lease of held lock.
func (m *Mutex) Extend(ctx context.Context, lease time.Duration) bool {
	return m.l.Extend(ctx, m.h, lease)
}

// ExtendLease refreshes lease of held lock. (false, nil) means lock is lost.
func (m *Mutex) ExtendLease(ctx context.Context, lease time.Duration) (bool, error) {
	return m.l.ExtendLease(ctx, m.h, lease)
}

// IsHeld reports whether lock is still owned by this Mutex.
func (m *Mutex) IsHeld(ctx context.Context) bool {
	return m.l.IsHeldBy(ctx, m.h)
}

// IsLocked reports whether anyone holds unexpired lease.
func (m *Mutex) IsLocked(ctx context.Context) bool {
	return m.l.IsLocked(ctx, m.key)
}

// Handle returns current handle or nil.
func (m *Mutex) Handle() *Handle {
	return m.h
}
