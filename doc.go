/*
Package sentinelpool - sentinel aware connection pool for a fixed set of redis master groups,
with a lease based distributed lock on top of it.

Each logical shard is a master group monitored by redis sentinels. Shard identity is the
group name, not the address: keys are distributed over group names with consistent hashing,
so failover changes where requests go, but never which shard owns a key.

Structure

- root package is empty

- topology subpackage holds an immutable ordered set of resolved shards and a Holder
which publishes new versions to subscribers

- redissentinel resolves groups through sentinels and watches +switch-master
notifications, keeping topology.Holder current

- redispool is a bounded pool of handles, each handle has a client per shard.
Handles built for an outdated topology are destroyed instead of being reused

- rediscall borrows handle, executes an operation, classifies and logs failure, and returns
handle back to the pool

- redislock is a distributed lock with lease, takeover of expired locks and reentrancy

- rediserror contains error types shared by all subpackages

- redismetrics adapts every Logger hook to prometheus collectors

- config loads settings from TOML file and environment

Usage

	ctx := context.Background()
	watcher, err := redissentinel.NewWatcher(ctx, redissentinel.Opts{
		Sentinels: []string{"10.0.0.1:26379", "10.0.0.2:26379"},
		Groups:    []string{"shard-1", "shard-2", "shard-3"},
	})
	if err != nil {
		// no sentinel knows some group
	}
	defer watcher.Close()

	pool, err := redispool.New(watcher.Topology(), redispool.Opts{Size: 16})
	if err != nil {
		// invalid options
	}
	defer pool.Close()

	locker := redislock.New(rediscall.New(pool, nil), redislock.Opts{Lease: time.Minute})
	if h, ok := locker.TryLock(ctx, "nightly-report", nil); ok {
		defer locker.Unlock(ctx, h)
		// do work
	}

Errors

Failures are *errorx.Error from rediserror namespace. Configuration errors are fatal: they
will not go away on retry. Connectivity errors invalidate the handle they happened on.
rediscall.Do hides every failure behind a caller supplied default, while rediscall.Exec
returns it.
*/
package sentinelpool
