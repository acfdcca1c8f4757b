package redissentinel

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joomcode/sentinelpool/topology"
)

// listener owns single subscription to single sentinel endpoint.
type listener struct {
	addr   string
	opts   *Opts
	holder *topology.Holder
	// seen is the last master address of each group reported by this sentinel.
	// Only the listener goroutine touches it.
	seen map[string]string
}

func newListener(addr string, opts *Opts, holder *topology.Holder) *listener {
	l := &listener{addr: addr, opts: opts, holder: holder, seen: make(map[string]string)}
	for _, spec := range holder.Load().Shards() {
		l.seen[spec.Name] = spec.Addr()
	}
	return l
}

// run loops over sessions until ctx is closed. It never returns an error:
// every session failure leads to reconnect after ReconnectPause.
func (l *listener) run(ctx context.Context) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(l.opts.ReconnectPause), ctx)
	notify := func(err error, pause time.Duration) {
		l.report(LogDisconnected{Error: err, Pause: pause})
	}
	err := backoff.RetryNotify(func() error { return l.session(ctx) }, b, notify)
	l.report(LogContextClosed{Error: err})
	return nil
}

// session dials sentinel, subscribes and handles messages until error.
// It returns nil only when ctx is closed.
func (l *listener) session(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return backoff.Permanent(err)
	}
	conn := l.opts.Dial(l.addr, l.opts)
	defer conn.Close()

	sub, err := conn.Subscribe(ctx, l.opts.Channel)
	if err != nil {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	stop := context.AfterFunc(ctx, func() { sub.Close() })
	defer func() {
		stop()
		sub.Close()
	}()
	l.report(LogSubscribed{Channel: l.opts.Channel})

	l.resync(ctx, conn)

	for {
		payload, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		l.handle(payload)
	}
}

// handle applies single notification.
func (l *listener) handle(payload string) {
	msg, err := ParseSwitchMaster(payload)
	if err != nil {
		l.report(LogMalformedMessage{Payload: payload, Error: err})
		return
	}
	if l.holder.Load().Index(msg.Group) < 0 {
		l.report(LogUntrackedGroup{Group: msg.Group})
		return
	}
	l.seen[msg.Group] = msg.To()
	published := l.holder.Replace(msg.Group, msg.NewHost, msg.NewPort)
	l.report(LogSwitchMaster{
		Group:     msg.Group,
		From:      msg.From(),
		To:        msg.To(),
		Published: published,
	})
}

// resync asks sentinel about every tracked group, so failovers which happened
// while we were not subscribed are not lost. Only answers which differ from the
// last one of this sentinel are published: a lagging sentinel must not revert
// a failover announced by another one.
func (l *listener) resync(ctx context.Context, conn Conn) {
	top := l.holder.Load()
	for i := 0; i < top.Len(); i++ {
		cur := top.Shard(i)
		host, port, err := conn.MasterAddr(ctx, cur.Name)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.report(LogResolveFailed{Group: cur.Name, Error: err})
			continue
		}
		to := topology.ShardSpec{Host: host, Port: port}
		if l.seen[cur.Name] == to.Addr() {
			continue
		}
		l.seen[cur.Name] = to.Addr()
		if host == cur.Host && port == cur.Port {
			continue
		}
		published := l.holder.Replace(cur.Name, host, port)
		l.report(LogSwitchMaster{
			Group:     cur.Name,
			From:      cur.Addr(),
			To:        to.Addr(),
			Published: published,
			Resync:    true,
		})
	}
}

func (l *listener) report(event LogEvent) {
	l.opts.Logger.Report(l.addr, event)
}
