package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joomcode/errorx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/joomcode/sentinelpool/config"
	"github.com/joomcode/sentinelpool/rediserror"
	"github.com/joomcode/sentinelpool/redislock"
)

const sample = `
sentinels = ["10.0.0.1:26379", "10.0.0.2:26379"]
masters = ["shard-1", "shard-2", "shard-3"]
password = "secret"
connect_timeout = "1500ms"

[pool]
size = 16
wait_timeout = "500ms"

[lock]
lease_seconds = 60
retry_sleep_millis = 3
`

func writeFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "sentinelpool.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	c, err := Load(writeFile(t, sample))
	require.NoError(t, err)
	require.NoError(t, c.Validate())

	assert.Equal(t, []string{"10.0.0.1:26379", "10.0.0.2:26379"}, c.Sentinels)
	assert.Equal(t, []string{"shard-1", "shard-2", "shard-3"}, c.Masters)
	assert.Equal(t, 1500*time.Millisecond, c.ConnectTimeout.Duration)
	assert.Equal(t, 16, c.Pool.Size)
	assert.Equal(t, 500*time.Millisecond, c.Pool.WaitTimeout.Duration)

	so := c.SentinelOpts()
	assert.Equal(t, c.Sentinels, so.Sentinels)
	assert.Equal(t, c.Masters, so.Groups)
	assert.Equal(t, "secret", so.Password)
	assert.Equal(t, 1500*time.Millisecond, so.ConnectTimeout)

	po := c.PoolOpts()
	assert.EqualValues(t, 16, po.Size)
	assert.Equal(t, 500*time.Millisecond, po.WaitTimeout)

	lo := c.LockOpts()
	assert.Equal(t, time.Minute, lo.Lease)
	assert.Equal(t, redislock.MinRetrySleep, lo.RetrySleep)
}

func TestDefaults(t *testing.T) {
	c, err := Load(writeFile(t, `
sentinels = ["s:26379"]
masters = ["m"]
`))
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	lo := c.LockOpts()
	assert.Equal(t, redislock.MaxLease, lo.Lease)
	assert.Equal(t, redislock.MinRetrySleep, lo.RetrySleep)
}

func TestLeaseIsClamped(t *testing.T) {
	c := Default()
	c.Lock.LeaseSeconds = 1_000_000
	assert.Equal(t, 24*time.Hour, c.LockOpts().Lease)
	c.Lock.LeaseSeconds = 1
	assert.Equal(t, time.Second, c.LockOpts().Lease)
	c.Lock.RetrySleepMillis = 50
	assert.Equal(t, 50*time.Millisecond, c.LockOpts().RetrySleep)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.True(t, errorx.IsOfType(err, rediserror.ErrConfiguration))

	_, err = Load(writeFile(t, `sentinels = [`))
	require.True(t, errorx.IsOfType(err, rediserror.ErrConfiguration))

	_, err = Load(writeFile(t, `sentinel = ["typo:26379"]`))
	require.True(t, errorx.IsOfType(err, rediserror.ErrConfiguration))
	require.Contains(t, err.Error(), "sentinel")

	_, err = Load(writeFile(t, `connect_timeout = "soon"`))
	require.True(t, errorx.IsOfType(err, rediserror.ErrConfiguration))
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		c := Default()
		c.Sentinels = []string{"s:26379"}
		c.Masters = []string{"m"}
		return c
	}
	c := valid()
	require.NoError(t, c.Validate())

	for name, tc := range map[string]struct {
		mutate func(c *Config)
		typ    *errorx.Type
	}{
		"no sentinels":     {func(c *Config) { c.Sentinels = nil }, rediserror.ErrNoSentinels},
		"no port":          {func(c *Config) { c.Sentinels = []string{"host"} }, rediserror.ErrConfiguration},
		"bad port":         {func(c *Config) { c.Sentinels = []string{"host:0"} }, rediserror.ErrConfiguration},
		"no masters":       {func(c *Config) { c.Masters = nil }, rediserror.ErrNoGroups},
		"duplicate master": {func(c *Config) { c.Masters = []string{"a", "a"} }, rediserror.ErrConfiguration},
		"negative pool":    {func(c *Config) { c.Pool.Size = -1 }, rediserror.ErrConfiguration},
	} {
		c := valid()
		tc.mutate(&c)
		err := c.Validate()
		require.True(t, errorx.IsOfType(err, tc.typ), name)
		require.True(t, rediserror.IsFatal(err), name)
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Load(writeFile(t, sample))
	require.NoError(t, err)

	t.Setenv("SENTINELPOOL_SENTINELS", "a:1,b:2")
	t.Setenv("SENTINELPOOL_POOL_SIZE", "4")
	t.Setenv("SENTINELPOOL_LOCK_LEASE_SECONDS", "30")
	t.Setenv("SENTINELPOOL_CONNECT_TIMEOUT", "3s")
	require.NoError(t, c.ApplyEnv(EnvPrefix))

	assert.Equal(t, []string{"a:1", "b:2"}, c.Sentinels)
	assert.Equal(t, 4, c.Pool.Size)
	assert.Equal(t, 30, c.Lock.LeaseSeconds)
	assert.Equal(t, 3*time.Second, c.ConnectTimeout.Duration)
	// untouched
	assert.Equal(t, []string{"shard-1", "shard-2", "shard-3"}, c.Masters)
	assert.Equal(t, 500*time.Millisecond, c.Pool.WaitTimeout.Duration)

	t.Setenv("SENTINELPOOL_POOL_SIZE", "many")
	require.True(t, errorx.IsOfType(c.ApplyEnv(EnvPrefix), rediserror.ErrConfiguration))
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SENTINELPOOL_SENTINELS", "s:26379")
	t.Setenv("SENTINELPOOL_MASTERS", "m1,m2")
	c, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, c.Validate())
	assert.Equal(t, []string{"m1", "m2"}, c.Masters)
	assert.Equal(t, 86400, c.Lock.LeaseSeconds)
}
