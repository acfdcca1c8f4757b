package redissentinel

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/joomcode/sentinelpool/rediserror"
)

// Conn is a connection to single sentinel endpoint.
type Conn interface {
	// MasterAddr asks sentinel for current master of a group.
	MasterAddr(ctx context.Context, group string) (host string, port int, err error)
	// Subscribe subscribes to channel. Subscription is confirmed before return.
	Subscribe(ctx context.Context, channel string) (Subscription, error)
	// Close closes connection.
	Close() error
}

// Subscription is an active pub/sub subscription.
type Subscription interface {
	// ReceiveMessage blocks until next message and returns its payload.
	ReceiveMessage(ctx context.Context) (string, error)
	// Close aborts blocked ReceiveMessage and releases connection.
	// It is safe to call Close several times.
	Close() error
}

// DialFunc creates Conn to sentinel at addr. It should not block: connection
// could be established lazily on first request.
type DialFunc func(addr string, opts *Opts) Conn

// DialSentinel is default DialFunc, it uses go-redis sentinel client.
func DialSentinel(addr string, opts *Opts) Conn {
	return &sentinelConn{
		addr: addr,
		c: redis.NewSentinelClient(&redis.Options{
			Addr:        addr,
			Password:    opts.SentinelPassword,
			DialTimeout: opts.ConnectTimeout,
			ReadTimeout: opts.ConnectTimeout,
			MaxRetries:  -1,
		}),
	}
}

type sentinelConn struct {
	addr string
	c    *redis.SentinelClient
}

func (s *sentinelConn) MasterAddr(ctx context.Context, group string) (string, int, error) {
	res, err := s.c.GetMasterAddrByName(ctx, group).Result()
	if err == redis.Nil {
		return "", 0, rediserror.ErrMalformedAddress.New("sentinel doesn't monitor group").
			WithProperty(rediserror.EKGroup, group).
			WithProperty(rediserror.EKSentinel, s.addr)
	}
	if err != nil {
		return "", 0, rediserror.Classify(err).
			WithProperty(rediserror.EKGroup, group).
			WithProperty(rediserror.EKSentinel, s.addr)
	}
	if len(res) != 2 {
		return "", 0, rediserror.ErrMalformedAddress.NewWithNoMessage().
			WithProperty(rediserror.EKResponse, res).
			WithProperty(rediserror.EKSentinel, s.addr)
	}
	port, err := strconv.Atoi(res[1])
	if err != nil || port <= 0 || port > 65535 || res[0] == "" {
		return "", 0, rediserror.ErrMalformedAddress.NewWithNoMessage().
			WithProperty(rediserror.EKResponse, res).
			WithProperty(rediserror.EKSentinel, s.addr)
	}
	return res[0], port, nil
}

func (s *sentinelConn) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := s.c.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, rediserror.Classify(err).WithProperty(rediserror.EKSentinel, s.addr)
	}
	return subscription{ps}, nil
}

func (s *sentinelConn) Close() error {
	return s.c.Close()
}

type subscription struct {
	ps *redis.PubSub
}

func (s subscription) ReceiveMessage(ctx context.Context) (string, error) {
	msg, err := s.ps.ReceiveMessage(ctx)
	if err != nil {
		return "", rediserror.Classify(err)
	}
	return msg.Payload, nil
}

func (s subscription) Close() error {
	return s.ps.Close()
}
