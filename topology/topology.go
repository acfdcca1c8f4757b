// Package topology describes logical master groups and their currently known master addresses.
//
// Topology is immutable: every change produces a new value, which is published
// through Holder with a single atomic swap. Element order is fixed at construction,
// so index i always refers to the same logical group.
package topology

import (
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// ShardSpec is a resolved address of one logical master group.
type ShardSpec struct {
	// Name is a logical group name, as it is known to sentinels. It is a shard identity.
	Name string
	// Host and Port of current master.
	Host string
	Port int
	// ConnectTimeout is used when dialing the master.
	ConnectTimeout time.Duration
	// Password for AUTH (optional).
	Password string
}

// Addr returns host:port.
func (s ShardSpec) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Equal compares all fields.
func (s ShardSpec) Equal(o ShardSpec) bool {
	return s == o
}

func (s ShardSpec) String() string {
	return s.Name + "@" + s.Addr()
}

var versions uint64

// Topology is an ordered immutable sequence of ShardSpec, one per logical group.
type Topology struct {
	shards  []ShardSpec
	version uint64
}

// New creates topology from specs. Order of specs is preserved forever.
func New(specs ...ShardSpec) *Topology {
	t := &Topology{
		shards:  make([]ShardSpec, len(specs)),
		version: atomic.AddUint64(&versions, 1),
	}
	copy(t.shards, specs)
	return t
}

// Len returns number of logical groups.
func (t *Topology) Len() int {
	return len(t.shards)
}

// Shard returns spec at index i.
func (t *Topology) Shard(i int) ShardSpec {
	return t.shards[i]
}

// Shards returns copy of all specs.
func (t *Topology) Shards() []ShardSpec {
	res := make([]ShardSpec, len(t.shards))
	copy(res, t.shards)
	return res
}

// Names returns logical group names in topology order.
func (t *Topology) Names() []string {
	res := make([]string, len(t.shards))
	for i, s := range t.shards {
		res[i] = s.Name
	}
	return res
}

// Index returns position of group with name, or -1.
func (t *Topology) Index(name string) int {
	for i, s := range t.shards {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Version is a process-unique number, increasing with every new Topology value.
func (t *Topology) Version() uint64 {
	return t.version
}

// With returns a copy of topology with element i replaced.
// If spec equals current element, t itself is returned.
func (t *Topology) With(i int, spec ShardSpec) *Topology {
	if t.shards[i].Equal(spec) {
		return t
	}
	n := New(t.shards...)
	n.shards[i] = spec
	return n
}

// Equal compares topologies element-wise. Version is not taken into account.
func (t *Topology) Equal(o *Topology) bool {
	if t == o {
		return true
	}
	if t == nil || o == nil || len(t.shards) != len(o.shards) {
		return false
	}
	for i := range t.shards {
		if !t.shards[i].Equal(o.shards[i]) {
			return false
		}
	}
	return true
}

func (t *Topology) String() string {
	parts := make([]string, len(t.shards))
	for i, s := range t.shards {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
