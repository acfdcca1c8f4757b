// Package config reads sentinelpool settings from TOML file and environment.
//
// Example file:
//
//	sentinels = ["10.0.0.1:26379", "10.0.0.2:26379"]
//	masters = ["shard-1", "shard-2"]
//	connect_timeout = "2s"
//
//	[pool]
//	size = 16
//	wait_timeout = "500ms"
//
//	[lock]
//	lease_seconds = 60
//	retry_sleep_millis = 10
//
// Every setting may be overridden by environment variable, e.g.
// SENTINELPOOL_SENTINELS, SENTINELPOOL_POOL_SIZE, SENTINELPOOL_LOCK_LEASE_SECONDS.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"github.com/joomcode/sentinelpool/rediserror"
	"github.com/joomcode/sentinelpool/redislock"
	"github.com/joomcode/sentinelpool/redispool"
	"github.com/joomcode/sentinelpool/redissentinel"
)

// EnvPrefix is a prefix of environment variables.
const EnvPrefix = "SENTINELPOOL"

const (
	defaultLeaseSeconds     = 86400
	defaultRetrySleepMillis = 7
)

// Config is a complete configuration of sentinel watcher, pool and locks.
type Config struct {
	Sentinels        []string `toml:"sentinels" envconfig:"SENTINELS"`
	Masters          []string `toml:"masters" envconfig:"MASTERS"`
	Password         string   `toml:"password" envconfig:"PASSWORD"`
	SentinelPassword string   `toml:"sentinel_password" envconfig:"SENTINEL_PASSWORD"`
	ConnectTimeout   Duration `toml:"connect_timeout" envconfig:"CONNECT_TIMEOUT"`

	Pool PoolConfig `toml:"pool" envconfig:"POOL"`
	Lock LockConfig `toml:"lock" envconfig:"LOCK"`
}

// PoolConfig is a [pool] section.
type PoolConfig struct {
	Size        int      `toml:"size" envconfig:"SIZE"`
	WaitTimeout Duration `toml:"wait_timeout" envconfig:"WAIT_TIMEOUT"`
}

// LockConfig is a [lock] section.
type LockConfig struct {
	LeaseSeconds     int `toml:"lease_seconds" envconfig:"LEASE_SECONDS"`
	RetrySleepMillis int `toml:"retry_sleep_millis" envconfig:"RETRY_SLEEP_MILLIS"`
}

// Duration is a time.Duration read from strings like "1.5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns configuration with defaults applied.
func Default() Config {
	return Config{
		Lock: LockConfig{
			LeaseSeconds:     defaultLeaseSeconds,
			RetrySleepMillis: defaultRetrySleepMillis,
		},
	}
}

// Load reads file over defaults. Unknown keys are reported as errors.
func Load(path string) (Config, error) {
	c := Default()
	meta, err := toml.DecodeFile(path, &c)
	if err != nil {
		return c, rediserror.ErrConfiguration.Wrap(err, "could not read %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return c, rediserror.ErrConfiguration.New("unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return c, nil
}

// ApplyEnv overrides settings from environment variables with given prefix.
// Variables which are not set leave settings untouched.
func (c *Config) ApplyEnv(prefix string) error {
	if err := envconfig.Process(prefix, c); err != nil {
		return rediserror.ErrConfiguration.Wrap(err, "invalid environment")
	}
	return nil
}

// FromEnv returns defaults overridden by environment with EnvPrefix.
func FromEnv() (Config, error) {
	c := Default()
	err := c.ApplyEnv(EnvPrefix)
	return c, err
}

// Validate checks configuration. Lock settings out of bounds are not errors:
// they are clamped on conversion.
func (c *Config) Validate() error {
	if len(c.Sentinels) == 0 {
		return rediserror.ErrNoSentinels.New("sentinels are not configured")
	}
	for _, s := range c.Sentinels {
		host, port, err := net.SplitHostPort(s)
		if err != nil || host == "" {
			return rediserror.ErrConfiguration.New("sentinel address must be host:port").
				WithProperty(rediserror.EKSentinel, s)
		}
		if p, err := strconv.Atoi(port); err != nil || p <= 0 || p > 65535 {
			return rediserror.ErrConfiguration.New("invalid sentinel port").
				WithProperty(rediserror.EKSentinel, s)
		}
	}
	if len(c.Masters) == 0 {
		return rediserror.ErrNoGroups.New("masters are not configured")
	}
	seen := make(map[string]bool, len(c.Masters))
	for _, m := range c.Masters {
		if m == "" || seen[m] {
			return rediserror.ErrConfiguration.New("master names must be unique and not empty").
				WithProperty(rediserror.EKGroup, m)
		}
		seen[m] = true
	}
	if c.Pool.Size < 0 {
		return rediserror.ErrConfiguration.New("pool.size must not be negative")
	}
	if c.ConnectTimeout.Duration < 0 || c.Pool.WaitTimeout.Duration < 0 {
		return rediserror.ErrConfiguration.New("timeouts must not be negative")
	}
	return nil
}

// SentinelOpts converts configuration to redissentinel.Opts.
func (c *Config) SentinelOpts() redissentinel.Opts {
	return redissentinel.Opts{
		Sentinels:        append([]string(nil), c.Sentinels...),
		Groups:           append([]string(nil), c.Masters...),
		Password:         c.Password,
		SentinelPassword: c.SentinelPassword,
		ConnectTimeout:   c.ConnectTimeout.Duration,
	}
}

// PoolOpts converts configuration to redispool.Opts.
func (c *Config) PoolOpts() redispool.Opts {
	return redispool.Opts{
		Size:        int32(c.Pool.Size),
		WaitTimeout: c.Pool.WaitTimeout.Duration,
	}
}

// LockOpts converts configuration to redislock.Opts.
// Lease is clamped to [1, 86400] seconds, retry sleep is at least 7ms.
func (c *Config) LockOpts() redislock.Opts {
	return redislock.Opts{
		Lease:      redislock.ClampLease(time.Duration(c.Lock.LeaseSeconds) * time.Second),
		RetrySleep: max(time.Duration(c.Lock.RetrySleepMillis)*time.Millisecond, redislock.MinRetrySleep),
	}
}
