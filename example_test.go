package sentinelpool_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joomcode/sentinelpool/rediscall"
	"github.com/joomcode/sentinelpool/redislock"
	"github.com/joomcode/sentinelpool/redispool"
	"github.com/joomcode/sentinelpool/redissentinel"
)

func Example_usage() {
	ctx := context.Background()

	watcher, err := redissentinel.NewWatcher(ctx, redissentinel.Opts{
		Sentinels: []string{"127.0.0.1:26379"},
		Groups:    []string{"shard-1", "shard-2"},
		Logger:    redissentinel.NoopLogger{}, // shut up logging. Could be your custom implementation.
		// Other parameters (usually, no need to change):
		// ConnectTimeout, ResolveRetries, ResolveBackoff, ReconnectPause
	})
	if err != nil {
		log.Fatal("could not resolve groups", err)
	}
	defer watcher.Close()

	pool, err := redispool.New(watcher.Topology(), redispool.Opts{
		Name: "example",
		Size: 4,
		// WaitTimeout, NoTestOnBorrow, CreateRetries, ReadTimeout, WriteTimeout
	})
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	caller := rediscall.New(pool, rediscall.NoopLogger{})

	// Do never fails: on any error it returns the default.
	n := rediscall.Do(ctx, caller, "incr", int64(-1),
		func(ctx context.Context, h *redispool.Handle) (int64, error) {
			return h.Shard("counter").Incr(ctx, "counter").Result()
		}, "counter")
	fmt.Println("counter", n)

	// Exec returns classified error.
	v, err := rediscall.Exec(ctx, caller, "get", func(ctx context.Context, h *redispool.Handle) (string, error) {
		return h.Shard("name").Get(ctx, "name").Result()
	}, "name")
	if err == nil {
		fmt.Println("name", v)
	}

	locker := redislock.New(caller, redislock.Opts{Lease: 30 * time.Second})
	mu := locker.Mutex("report", 0)
	if err := mu.Lock(ctx); err != nil {
		log.Fatal(err)
	}
	defer mu.Unlock(ctx)

	// Handle could also be used directly.
	h, err := pool.Get(ctx)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Put(h)
	for i := 0; i < h.Len(); i++ {
		c := h.ShardAt(i)
		fmt.Println(h.Topology().Shard(i).Name, c.Options().Addr)
	}
}
