package rediserror_test

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/jackc/puddle/v2"
	"github.com/joomcode/errorx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/joomcode/sentinelpool/rediserror"
)

type replyErr string

func (e replyErr) Error() string { return string(e) }
func (replyErr) RedisError()     {}

func TestClassify(t *testing.T) {
	require.Nil(t, Classify(nil))
	require.Nil(t, Classify(redis.Nil))

	for name, tc := range map[string]struct {
		err error
		typ *errorx.Type
	}{
		"cancelled":   {context.Canceled, ErrCancelled},
		"deadline":    {context.DeadlineExceeded, ErrCancelled},
		"pool closed": {puddle.ErrClosedPool, ErrPoolClosed},
		"eof":         {io.EOF, ErrIO},
		"reply":       {replyErr("WRONGTYPE Operation against a key"), ErrResult},
		"dial":        {&net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}, ErrDial},
		"read":        {&net.OpError{Op: "read", Net: "tcp", Err: errors.New("reset")}, ErrIO},
		"other":       {errors.New("something"), ErrConnectivity},
	} {
		xerr := Classify(tc.err)
		require.NotNil(t, xerr, name)
		assert.True(t, xerr.IsOfType(tc.typ), name)
	}
}

func TestClassifyKeepsOwnErrors(t *testing.T) {
	orig := ErrPing.New("no pong")
	require.Same(t, orig, Classify(orig))
}

func TestTraits(t *testing.T) {
	assert.True(t, IsFatal(ErrUnresolved.New("shard-1")))
	assert.False(t, IsConnectivity(ErrUnresolved.New("shard-1")))
	assert.True(t, IsConnectivity(ErrPoolTimeout.New("timeout")))
	assert.False(t, IsFatal(ErrPoolTimeout.New("timeout")))
	assert.False(t, IsFatal(ErrMalformedToken.New("short")))
}

func TestWithNewProperty(t *testing.T) {
	err := WithNewProperty(ErrResult.New("bad"), EKKey, "k1")
	v, ok := err.Property(EKKey)
	require.True(t, ok)
	assert.Equal(t, "k1", v)

	err = WithNewProperty(err, EKKey, "k2")
	v, _ = err.Property(EKKey)
	assert.Equal(t, "k1", v)
}
