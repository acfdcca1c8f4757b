package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joomcode/sentinelpool/rediserror"
)

type extendResult struct {
	ok  bool
	err error
}

// scriptedExtender answers ExtendLease with results in order, repeating the last one.
type scriptedExtender struct {
	m       sync.Mutex
	results []extendResult
	calls   int
}

func (e *scriptedExtender) Key() string { return "job" }

func (e *scriptedExtender) ExtendLease(ctx context.Context, lease time.Duration) (bool, error) {
	e.m.Lock()
	defer e.m.Unlock()
	r := e.results[min(e.calls, len(e.results)-1)]
	e.calls++
	return r.ok, r.err
}

func (e *scriptedExtender) count() int {
	e.m.Lock()
	defer e.m.Unlock()
	return e.calls
}

func runKeepAlive(e extender, lease time.Duration) (<-chan struct{}, <-chan struct{}, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	stop := make(chan struct{})
	var once sync.Once
	fin := make(chan struct{})
	go func() {
		defer close(fin)
		keepAlive(ctx, func() { once.Do(func() { close(stop) }) }, e, lease)
	}()
	return stop, fin, cancel
}

var blip = extendResult{err: rediserror.ErrIO.New("connection reset")}

func TestKeepAliveSurvivesTransientFailures(t *testing.T) {
	e := &scriptedExtender{results: []extendResult{blip, blip, {ok: true}}}
	stopped, done, cancel := runKeepAlive(e, 3*time.Second)

	require.Eventually(t, func() bool { return e.count() >= 4 }, 5*time.Second, 10*time.Millisecond)
	select {
	case <-stopped:
		t.Fatal("command stopped on transient failure")
	default:
	}
	cancel()
	<-done
}

func TestKeepAliveStopsWhenLockIsLost(t *testing.T) {
	e := &scriptedExtender{results: []extendResult{blip, {ok: false}}}
	stopped, done, cancel := runKeepAlive(e, time.Second)
	defer cancel()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("command wasn't stopped")
	}
	<-done
	require.Equal(t, 2, e.count())
}

func TestKeepAliveGivesUpAtLeaseEnd(t *testing.T) {
	e := &scriptedExtender{results: []extendResult{blip}}
	start := time.Now()
	stopped, done, cancel := runKeepAlive(e, time.Second)
	defer cancel()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("command wasn't stopped")
	}
	<-done
	require.Less(t, time.Since(start), 2*time.Second)
	require.Greater(t, e.count(), 3)
}

func TestKeepAliveExitsOnCancel(t *testing.T) {
	e := &scriptedExtender{results: []extendResult{{ok: true}}}
	stopped, done, cancel := runKeepAlive(e, time.Hour)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive didn't exit")
	}
	select {
	case <-stopped:
		t.Fatal("command stopped on cancel")
	default:
	}
	require.Zero(t, e.count())
}
