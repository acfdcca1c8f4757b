package redissentinel_test

import (
	"context"
	"sync"

	"github.com/joomcode/sentinelpool/rediserror"
	. "github.com/joomcode/sentinelpool/redissentinel"
)

type master struct {
	host string
	port int
}

// fakeSentinels emulates several sentinel endpoints sharing one view of masters.
type fakeSentinels struct {
	m          sync.Mutex
	masters    map[string]map[string]master // sentinel -> group -> master
	down       map[string]bool
	subs       map[string][]*fakeSub
	dials      map[string]int
	subscribed chan string
}

func newFakeSentinels() *fakeSentinels {
	return &fakeSentinels{
		masters:    make(map[string]map[string]master),
		down:       make(map[string]bool),
		subs:       make(map[string][]*fakeSub),
		dials:      make(map[string]int),
		subscribed: make(chan string, 100),
	}
}

func (f *fakeSentinels) setMaster(sentinel, group, host string, port int) {
	f.m.Lock()
	defer f.m.Unlock()
	if f.masters[sentinel] == nil {
		f.masters[sentinel] = make(map[string]master)
	}
	f.masters[sentinel][group] = master{host, port}
}

func (f *fakeSentinels) setDown(sentinel string, down bool) {
	f.m.Lock()
	defer f.m.Unlock()
	f.down[sentinel] = down
}

// publish sends payload to all live subscriptions of sentinel.
func (f *fakeSentinels) publish(sentinel, payload string) {
	f.m.Lock()
	subs := append([]*fakeSub(nil), f.subs[sentinel]...)
	f.m.Unlock()
	for _, s := range subs {
		s.deliver(payload)
	}
}

// dropSubscriptions breaks all subscriptions of sentinel.
func (f *fakeSentinels) dropSubscriptions(sentinel string) {
	f.m.Lock()
	subs := f.subs[sentinel]
	f.subs[sentinel] = nil
	f.m.Unlock()
	for _, s := range subs {
		s.Close()
	}
}

func (f *fakeSentinels) dialCount(sentinel string) int {
	f.m.Lock()
	defer f.m.Unlock()
	return f.dials[sentinel]
}

func (f *fakeSentinels) Dial(addr string, opts *Opts) Conn {
	f.m.Lock()
	defer f.m.Unlock()
	f.dials[addr]++
	return &fakeConn{f: f, addr: addr}
}

type fakeConn struct {
	f    *fakeSentinels
	addr string
}

func (c *fakeConn) MasterAddr(ctx context.Context, group string) (string, int, error) {
	c.f.m.Lock()
	defer c.f.m.Unlock()
	if c.f.down[c.addr] {
		return "", 0, rediserror.ErrDial.New("connection refused").WithProperty(rediserror.EKSentinel, c.addr)
	}
	m, ok := c.f.masters[c.addr][group]
	if !ok {
		return "", 0, rediserror.ErrMalformedAddress.New("sentinel doesn't monitor group")
	}
	return m.host, m.port, nil
}

func (c *fakeConn) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	c.f.m.Lock()
	if c.f.down[c.addr] {
		c.f.m.Unlock()
		return nil, rediserror.ErrDial.New("connection refused")
	}
	s := &fakeSub{msgs: make(chan string, 16), closed: make(chan struct{})}
	c.f.subs[c.addr] = append(c.f.subs[c.addr], s)
	c.f.m.Unlock()
	c.f.subscribed <- c.addr
	return s, nil
}

func (c *fakeConn) Close() error { return nil }

type fakeSub struct {
	msgs   chan string
	once   sync.Once
	closed chan struct{}
}

func (s *fakeSub) deliver(payload string) {
	select {
	case s.msgs <- payload:
	case <-s.closed:
	}
}

func (s *fakeSub) ReceiveMessage(ctx context.Context) (string, error) {
	select {
	case m := <-s.msgs:
		return m, nil
	case <-s.closed:
		return "", rediserror.ErrIO.New("subscription closed")
	}
}

func (s *fakeSub) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// recLogger collects events.
type recLogger struct {
	m      sync.Mutex
	events []LogEvent
	ch     chan LogEvent
}

func newRecLogger() *recLogger {
	return &recLogger{ch: make(chan LogEvent, 1000)}
}

func (r *recLogger) Report(sentinel string, event LogEvent) {
	r.m.Lock()
	r.events = append(r.events, event)
	r.m.Unlock()
	select {
	case r.ch <- event:
	default:
	}
}

func (r *recLogger) count(match func(LogEvent) bool) int {
	r.m.Lock()
	defer r.m.Unlock()
	n := 0
	for _, ev := range r.events {
		if match(ev) {
			n++
		}
	}
	return n
}
