package rediserror

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/jackc/puddle/v2"
	"github.com/joomcode/errorx"
	"github.com/redis/go-redis/v9"
)

// Classify converts an error returned by go-redis, net or pool machinery into
// one of Errors types. Errors already belonging to Errors are returned as is.
// nil and redis.Nil are not errors from the taxonomy point of view, so nil is returned.
func Classify(err error) *errorx.Error {
	if err == nil || errors.Is(err, redis.Nil) {
		return nil
	}
	if xerr := errorx.Cast(err); xerr != nil && Errors.IsNamespaceOf(xerr.Type()) {
		return xerr
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrCancelled.WrapWithNoMessage(err)
	case errors.Is(err, puddle.ErrClosedPool), errors.Is(err, redis.ErrClosed):
		return ErrPoolClosed.WrapWithNoMessage(err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrIO.WrapWithNoMessage(err)
	}
	var rerr redis.Error
	if errors.As(err, &rerr) {
		return ErrResult.WrapWithNoMessage(err)
	}
	var operr *net.OpError
	if errors.As(err, &operr) && operr.Op == "dial" {
		return ErrDial.WrapWithNoMessage(err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return ErrIO.WrapWithNoMessage(err)
	}
	return ErrConnectivity.WrapWithNoMessage(err)
}
