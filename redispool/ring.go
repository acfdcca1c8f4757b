package redispool

import (
	"sort"
	"strconv"

	"github.com/spaolacci/murmur3"
)

// VirtualNodes is a number of ring points per shard.
const VirtualNodes = 160

// ring maps keys to shard indices with consistent hashing over logical group names.
// Names are the identity of shards, so key placement survives failover.
type ring struct {
	points []uint64
	shards []int
}

func newRing(names []string) *ring {
	r := &ring{
		points: make([]uint64, 0, len(names)*VirtualNodes),
		shards: make([]int, 0, len(names)*VirtualNodes),
	}
	type point struct {
		hash  uint64
		shard int
	}
	pts := make([]point, 0, len(names)*VirtualNodes)
	for i, name := range names {
		for n := 0; n < VirtualNodes; n++ {
			pts = append(pts, point{murmur3.Sum64([]byte(name + "*" + strconv.Itoa(n))), i})
		}
	}
	sort.Slice(pts, func(a, b int) bool {
		if pts[a].hash == pts[b].hash {
			return pts[a].shard < pts[b].shard
		}
		return pts[a].hash < pts[b].hash
	})
	for _, p := range pts {
		r.points = append(r.points, p.hash)
		r.shards = append(r.shards, p.shard)
	}
	return r
}

func (r *ring) get(key string) int {
	if len(r.points) == 0 {
		return -1
	}
	h := murmur3.Sum64([]byte(key))
	i := sort.Search(len(r.points), func(i int) bool { return r.points[i] >= h })
	if i == len(r.points) {
		i = 0
	}
	return r.shards[i]
}
