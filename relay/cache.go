package relay

import (
	"hash/fnv"
	"sync"
)

const cacheShardCount = 32

// CachedFrame is one (hostname, latest frame) pair from a cache snapshot.
type CachedFrame struct {
	Hostname string
	Data     []byte
}

// FrameCache keeps the most recent frame per streaming student. It is sharded
// so that students hashing to different shards never contend: a burst from one
// endpoint cannot serialize writes from the rest of the class.
type FrameCache struct {
	shards [cacheShardCount]cacheShard
}

type cacheShard struct {
	mu     sync.RWMutex
	frames map[string][]byte
}

// NewFrameCache creates an empty cache.
func NewFrameCache() *FrameCache {
	c := &FrameCache{}
	for i := range c.shards {
		c.shards[i].frames = make(map[string][]byte)
	}
	return c
}

func (c *FrameCache) shard(hostname string) *cacheShard {
	h := fnv.New32a()
	h.Write([]byte(hostname))
	return &c.shards[h.Sum32()%cacheShardCount]
}

// Put replaces the cached frame for hostname. Latest wins; there is no history.
func (c *FrameCache) Put(hostname string, frame []byte) {
	s := c.shard(hostname)
	s.mu.Lock()
	s.frames[hostname] = frame
	s.mu.Unlock()
}

// Get returns the cached frame for hostname, or nil if none is cached.
func (c *FrameCache) Get(hostname string) []byte {
	s := c.shard(hostname)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames[hostname]
}

// Remove drops the cached frame for hostname.
func (c *FrameCache) Remove(hostname string) {
	s := c.shard(hostname)
	s.mu.Lock()
	delete(s.frames, hostname)
	s.mu.Unlock()
}

// Len reports how many students currently have a cached frame.
func (c *FrameCache) Len() int {
	n := 0
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		n += len(s.frames)
		s.mu.RUnlock()
	}
	return n
}

// Hostnames lists the students currently cached. Shards are read one at a
// time, so the result reflects no single instant when writes are in flight.
func (c *FrameCache) Hostnames() []string {
	names := make([]string, 0, 16)
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		for hn := range s.frames {
			names = append(names, hn)
		}
		s.mu.RUnlock()
	}
	return names
}

// Snapshot copies out all (hostname, frame) pairs, shard by shard, for
// seeding a newly connected viewer. Like Hostnames it has no cross-key
// atomicity guarantee.
func (c *FrameCache) Snapshot() []CachedFrame {
	out := make([]CachedFrame, 0, 16)
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.RLock()
		for hn, data := range s.frames {
			out = append(out, CachedFrame{Hostname: hn, Data: data})
		}
		s.mu.RUnlock()
	}
	return out
}
