package testbed

import (
	"context"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

// Server is a single redis-server process.
type Server struct {
	Port   uint16
	Args   []string
	Cmd    *exec.Cmd
	Paused bool
}

// PortStr returns port as a string.
func (s *Server) PortStr() string {
	return strconv.Itoa(int(s.Port))
}

// Addr returns address server listens on.
func (s *Server) Addr() string {
	return "127.0.0.1:" + s.PortStr()
}

// Start starts server if it is not running, and waits until it answers PING.
func (s *Server) Start() error {
	if s.Cmd != nil {
		return nil
	}
	s.Paused = false
	port := s.PortStr()
	args := append([]string{
		"--bind", "127.0.0.1",
		"--port", port,
		"--logfile", port + ".log",
		"--save", "",
	}, s.Args...)
	return s.start(args)
}

func (s *Server) start(args []string) error {
	s.Cmd = exec.Command(Binary, args...)
	s.Cmd.Dir = Dir
	if err := s.Cmd.Start(); err != nil {
		s.Cmd = nil
		return err
	}
	return s.WaitReady(5 * time.Second)
}

// WaitReady waits until server answers PING.
func (s *Server) WaitReady(timeout time.Duration) error {
	c := s.Client()
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for {
		err := c.Ping(ctx).Err()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Pause stops process with SIGSTOP.
func (s *Server) Pause() error {
	if s.Paused {
		return nil
	}
	if err := s.Cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		return err
	}
	s.Paused = true
	return nil
}

// Resume continues paused process.
func (s *Server) Resume() error {
	if !s.Paused {
		return nil
	}
	if err := s.Cmd.Process.Signal(syscall.SIGCONT); err != nil {
		return err
	}
	s.Paused = false
	return nil
}

// Stop kills process.
func (s *Server) Stop() error {
	if s.Paused {
		_ = s.Resume()
	}
	if s.Cmd == nil {
		return nil
	}
	defer time.Sleep(10 * time.Millisecond)
	p := s.Cmd
	s.Cmd = nil
	defer func() { _ = p.Wait() }()
	return p.Process.Kill()
}

// Client returns new client connected to the server. Caller should close it.
func (s *Server) Client() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        s.Addr(),
		DialTimeout: 100 * time.Millisecond,
		ReadTimeout: time.Second,
		MaxRetries:  -1,
		PoolSize:    1,
	})
}

// Do executes single command.
func (s *Server) Do(args ...interface{}) (interface{}, error) {
	c := s.Client()
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.Do(ctx, args...).Result()
}
