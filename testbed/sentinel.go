package testbed

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Group is a master with single replica.
type Group struct {
	Name    string
	Master  Server
	Replica Server
}

// NewGroup creates group listening on port and port+1. It is not started.
func NewGroup(name string, port uint16) *Group {
	g := &Group{Name: name}
	g.Master.Port = port
	g.Replica.Port = port + 1
	g.Replica.Args = []string{"--replicaof", "127.0.0.1", g.Master.PortStr()}
	return g
}

// Start starts master and replica.
func (g *Group) Start() error {
	if err := g.Master.Start(); err != nil {
		return err
	}
	return g.Replica.Start()
}

// Stop kills both processes.
func (g *Group) Stop() {
	_ = g.Replica.Stop()
	_ = g.Master.Stop()
}

// Sentinels is a set of sentinel processes monitoring groups.
type Sentinels struct {
	Nodes  []Server
	Groups []*Group
}

// NewSentinels creates n sentinels on ports starting from startport. They are not started.
func NewSentinels(startport uint16, n int, groups ...*Group) *Sentinels {
	s := &Sentinels{Nodes: make([]Server, n), Groups: groups}
	for i := range s.Nodes {
		s.Nodes[i].Port = startport + uint16(i)
	}
	return s
}

// Start writes sentinel configs and starts sentinels.
func (s *Sentinels) Start() error {
	for i := range s.Nodes {
		node := &s.Nodes[i]
		if node.Cmd != nil {
			continue
		}
		conf := filepath.Join(Dir, "sentinel-"+node.PortStr()+".conf")
		if err := os.WriteFile(conf, []byte(s.config(node)), 0o644); err != nil {
			return err
		}
		if err := node.start([]string{conf, "--sentinel"}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sentinels) config(node *Server) string {
	var b strings.Builder
	fmt.Fprintf(&b, "bind 127.0.0.1\nport %d\nlogfile %s.log\n", node.Port, node.PortStr())
	for _, g := range s.Groups {
		fmt.Fprintf(&b, "sentinel monitor %s 127.0.0.1 %d 1\n", g.Name, g.Master.Port)
		fmt.Fprintf(&b, "sentinel down-after-milliseconds %s 1000\n", g.Name)
		fmt.Fprintf(&b, "sentinel failover-timeout %s 3000\n", g.Name)
	}
	return b.String()
}

// Stop kills all sentinels.
func (s *Sentinels) Stop() {
	for i := range s.Nodes {
		_ = s.Nodes[i].Stop()
	}
}

// Addrs returns addresses of all sentinels.
func (s *Sentinels) Addrs() []string {
	res := make([]string, len(s.Nodes))
	for i := range s.Nodes {
		res[i] = s.Nodes[i].Addr()
	}
	return res
}

func (s *Sentinels) client(i int) *redis.SentinelClient {
	return redis.NewSentinelClient(&redis.Options{
		Addr:        s.Nodes[i].Addr(),
		DialTimeout: 100 * time.Millisecond,
		ReadTimeout: time.Second,
	})
}

// MasterAddr asks first sentinel for current master of group.
func (s *Sentinels) MasterAddr(ctx context.Context, name string) (string, error) {
	c := s.client(0)
	defer c.Close()
	res, err := c.GetMasterAddrByName(ctx, name).Result()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(res[0], res[1]), nil
}

// Failover forces failover of group and waits until sentinel reports new master.
func (s *Sentinels) Failover(ctx context.Context, name string) (string, error) {
	old, err := s.MasterAddr(ctx, name)
	if err != nil {
		return "", err
	}
	c := s.client(0)
	defer c.Close()
	// replica may be not ready to be promoted right after start
	for {
		err = c.Failover(ctx, name).Err()
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return "", err
		case <-time.After(100 * time.Millisecond):
		}
	}
	for {
		addr, err := s.MasterAddr(ctx, name)
		if err == nil && addr != old {
			return addr, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
