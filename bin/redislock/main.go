// Command redislock runs a command while holding distributed lock
// stored in sentinel-managed redis shards.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/dapr/kit/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/joomcode/sentinelpool/config"
	"github.com/joomcode/sentinelpool/rediscall"
	"github.com/joomcode/sentinelpool/redislock"
	"github.com/joomcode/sentinelpool/redismetrics"
	"github.com/joomcode/sentinelpool/redispool"
	"github.com/joomcode/sentinelpool/redissentinel"
)

var log = logger.NewLogger("sentinelpool.redislock")

// exitLocked is returned when lock is held by someone else.
const exitLocked = 75

func main() {
	opts, err := parseOptions(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err = logger.ApplyOptionsToLoggers(&opts.Logger); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, opts)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, opts *options) int {
	cfg, err := opts.loadConfig()
	if err != nil {
		log.Errorf("config: %v", err)
		return 2
	}

	switch opts.Command {
	case "topology":
		return printTopology(ctx, &cfg)
	case "run":
		if len(opts.Args) < 2 {
			log.Error("usage: redislock run NAME -- COMMAND [ARGS...]")
			return 2
		}
		return runLocked(ctx, opts, &cfg, opts.Args[0], opts.Args[1:])
	default:
		log.Errorf("unknown command %q", opts.Command)
		return 2
	}
}

func printTopology(ctx context.Context, cfg *config.Config) int {
	top, err := redissentinel.Resolve(ctx, cfg.SentinelOpts())
	if err != nil {
		log.Errorf("resolve: %v", err)
		return 1
	}
	for _, s := range top.Shards() {
		fmt.Printf("%s %s\n", s.Name, s.Addr())
	}
	return 0
}

type stack struct {
	watcher *redissentinel.Watcher
	pool    *redispool.Pool
	locker  *redislock.Locker
}

func (s *stack) close() {
	s.pool.Close()
	_ = s.watcher.Close()
}

func newStack(ctx context.Context, cfg *config.Config, metrics *redismetrics.Metrics) (*stack, error) {
	so := cfg.SentinelOpts()
	po := cfg.PoolOpts()
	po.Name = "redislock"
	lo := cfg.LockOpts()
	var callLogger rediscall.Logger = rediscall.DefaultLogger{}
	if metrics != nil {
		so.Logger = metrics.SentinelLogger(redissentinel.DefaultLogger{})
		po.Logger = metrics.PoolLogger(redispool.DefaultLogger{})
		lo.Logger = metrics.LockLogger(redislock.DefaultLogger{})
		callLogger = metrics.CallLogger(callLogger)
	}

	w, err := redissentinel.NewWatcher(ctx, so)
	if err != nil {
		return nil, err
	}
	p, err := redispool.New(w.Topology(), po)
	if err != nil {
		_ = w.Close()
		return nil, err
	}
	return &stack{
		watcher: w,
		pool:    p,
		locker:  redislock.New(rediscall.New(p, callLogger), lo),
	}, nil
}

func runLocked(ctx context.Context, opts *options, cfg *config.Config, name string, argv []string) int {
	var metrics *redismetrics.Metrics
	if opts.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics = redismetrics.New(reg, "sentinelpool")
		srv, err := serveMetrics(opts.MetricsAddr, reg)
		if err != nil {
			log.Errorf("metrics: %v", err)
			return 1
		}
		defer shutdown(srv)
	}

	st, err := newStack(ctx, cfg, metrics)
	if err != nil {
		log.Errorf("connect: %v", err)
		return 1
	}
	defer st.close()

	mu := st.locker.Mutex(name, 0)
	switch {
	case opts.Wait == 0:
		if !mu.TryLock(ctx) {
			log.Infof("lock %q is held by someone else", name)
			return exitLocked
		}
	case opts.Wait < 0:
		if err = mu.Lock(ctx); err != nil {
			log.Errorf("lock %q: %v", name, err)
			return 1
		}
	default:
		ok, err := mu.TryLockFor(ctx, opts.Wait)
		if err != nil {
			log.Errorf("lock %q: %v", name, err)
			return 1
		}
		if !ok {
			log.Infof("lock %q was not acquired in %v", name, opts.Wait)
			return exitLocked
		}
	}
	log.Infof("lock %q acquired", name)
	defer func() {
		uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mu.Unlock(uctx)
		log.Infof("lock %q released", name)
	}()

	cmdCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	alive := make(chan struct{})
	go func() {
		defer close(alive)
		keepAlive(cmdCtx, cancel, mu, st.locker.Lease())
	}()

	cmd := exec.CommandContext(cmdCtx, argv[0], argv[1:]...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = 10 * time.Second
	err = cmd.Run()
	// mutex is not safe for concurrent use: unlock only after keepAlive is gone
	cancel()
	<-alive

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exitErr):
		return exitErr.ExitCode()
	default:
		log.Errorf("run %s: %v", argv[0], err)
		return 1
	}
}

type extender interface {
	Key() string
	ExtendLease(ctx context.Context, lease time.Duration) (bool, error)
}

// keepAlive extends lease every third of it. Failed extension is retried
// until lease is about to end. If lock is lost, command is stopped.
func keepAlive(ctx context.Context, stop context.CancelFunc, mu extender, lease time.Duration) {
	interval := lease / 3
	retry := min(time.Second, lease/10)
	expires := time.Now().Add(lease)
	t := time.NewTimer(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		ok, err := mu.ExtendLease(ctx, lease)
		switch {
		case ok:
			expires = time.Now().Add(lease)
			t.Reset(interval)
		case ctx.Err() != nil:
			return
		case err == nil:
			log.Errorf("lock %q is lost, stopping command", mu.Key())
			stop()
			return
		case time.Until(expires) <= retry:
			log.Errorf("lock %q could not be extended before lease end, stopping command: %v", mu.Key(), err)
			stop()
			return
		default:
			log.Warnf("lock %q extension failed, retrying: %v", mu.Key(), err)
			t.Reset(retry)
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:     mux,
		ReadTimeout: time.Second * 10,
	}
	go func() {
		if serr := server.Serve(ln); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", serr)
		}
	}()
	log.Infof("metrics server listening on %s", ln.Addr())
	return server, nil
}

func shutdown(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()
	_ = server.Shutdown(ctx)
}
