package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dapr/kit/logger"
	"github.com/spf13/pflag"

	"github.com/joomcode/sentinelpool/config"
)

type options struct {
	Config      string
	Sentinels   []string
	Masters     []string
	Lease       time.Duration
	Wait        time.Duration
	MetricsAddr string
	Logger      logger.Options

	Command string
	Args    []string
}

func parseOptions(args []string) (*options, error) {
	var opts options
	fs := pflag.NewFlagSet("redislock", pflag.ContinueOnError)
	fs.SortFlags = true
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, `Usage:
  redislock [flags] topology
  redislock [flags] run NAME -- COMMAND [ARGS...]

Flags:
`)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.Config, "config", "", "Path to TOML config file")
	fs.StringSliceVar(&opts.Sentinels, "sentinels", nil, "Sentinel addresses, overrides config")
	fs.StringSliceVar(&opts.Masters, "masters", nil, "Master group names, overrides config")
	fs.DurationVar(&opts.Lease, "lease", 0, "Lock lease, overrides config; it is extended while command runs")
	fs.DurationVar(&opts.Wait, "wait", 0, "How long to wait for the lock; 0 means fail immediately, negative means wait forever")
	fs.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Address to serve prometheus metrics on, e.g. :9121")

	opts.Logger = logger.DefaultOptions()
	opts.Logger.AttachCmdFlags(fs.StringVar, fs.BoolVar)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if len(rest) > 0 {
		opts.Command, opts.Args = rest[0], rest[1:]
	}
	return &opts, nil
}

// loadConfig reads config file if any, applies environment and flags.
func (o *options) loadConfig() (config.Config, error) {
	c := config.Default()
	if o.Config != "" {
		var err error
		if c, err = config.Load(o.Config); err != nil {
			return c, err
		}
	}
	if err := c.ApplyEnv(config.EnvPrefix); err != nil {
		return c, err
	}
	if len(o.Sentinels) > 0 {
		c.Sentinels = o.Sentinels
	}
	if len(o.Masters) > 0 {
		c.Masters = o.Masters
	}
	if o.Lease > 0 {
		c.Lock.LeaseSeconds = int(o.Lease / time.Second)
	}
	return c, c.Validate()
}
