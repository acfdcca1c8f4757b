// Package rediscall is the single boundary through which remote operations run:
// borrow a handle, execute, classify failure, log it with redacted arguments,
// return the handle.
//
// Do returns caller supplied default on any failure, so routine contention and
// transient blips never reach calling code. Exec returns the classified error
// for callers which must tell failure from default.
package rediscall

import (
	"context"
	"time"

	"github.com/joomcode/errorx"

	"github.com/joomcode/sentinelpool/rediserror"
	"github.com/joomcode/sentinelpool/redispool"
)

// Borrower is a source of handles. *redispool.Pool implements it.
type Borrower interface {
	Get(ctx context.Context) (*redispool.Handle, error)
	Put(h *redispool.Handle)
}

// Func is a remote operation executed with borrowed handle.
type Func[T any] func(ctx context.Context, h *redispool.Handle) (T, error)

// Caller executes operations against handles from Pool.
type Caller struct {
	Pool   Borrower
	Logger Logger
}

// New returns Caller. If logger is nil, DefaultLogger is used.
func New(pool Borrower, logger Logger) *Caller {
	if logger == nil {
		logger = DefaultLogger{}
	}
	return &Caller{Pool: pool, Logger: logger}
}

func (c *Caller) report(event LogEvent) {
	if c.Logger == nil {
		DefaultLogger{}.Report(event)
		return
	}
	c.Logger.Report(event)
}

// Exec borrows handle, runs fn and returns handle back.
// Error is nil or *errorx.Error from rediserror namespace. Connectivity errors
// invalidate handle, so it is not reused.
// args are used only for logging.
func Exec[T any](ctx context.Context, c *Caller, op string, fn Func[T], args ...interface{}) (T, error) {
	var zero T
	start := time.Now()
	fail := func(err *errorx.Error) (T, error) {
		err = rediserror.WithNewProperty(err, rediserror.EKOperation, op)
		c.report(LogFailure{
			Op:       op,
			Args:     FormatArgs(args...),
			Error:    err,
			Duration: time.Since(start),
		})
		return zero, err
	}

	h, err := c.Pool.Get(ctx)
	if err != nil {
		return fail(rediserror.Classify(err))
	}
	res, err := fn(ctx, h)
	if xerr := rediserror.Classify(err); xerr != nil {
		if rediserror.IsConnectivity(xerr) {
			h.Invalidate()
		}
		c.Pool.Put(h)
		return fail(xerr)
	}
	c.Pool.Put(h)
	c.report(LogSuccess{Op: op, Duration: time.Since(start)})
	return res, nil
}

// Do is like Exec, but returns def on any failure.
func Do[T any](ctx context.Context, c *Caller, op string, def T, fn Func[T], args ...interface{}) T {
	res, err := Exec(ctx, c, op, fn, args...)
	if err != nil {
		return def
	}
	return res
}
