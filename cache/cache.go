package cache

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/bytedance/gopkg/lang/mcache"

	"github.com/segcache/core/internal/gopool"
)

// ErrTooLarge is returned by Write when buf exceeds maxObjectSize.
var ErrTooLarge = errors.New("cache: entry exceeds max object size")

// ErrNoRoom is returned by Write when the cache can't free enough
// space to admit buf even after evicting every entry.
var ErrNoRoom = errors.New("cache: not enough room after evicting everything")

// Stats is a point-in-time snapshot of cache occupancy and
// effectiveness. CurrentBytes is read under the read lock; the hit,
// miss and eviction counters are updated and loaded atomically.
type Stats struct {
	Hits, Misses, Evictions int64
	CurrentBytes, Capacity  int
}

// Cache is a bounded-capacity, readers-preferring LRU object cache
// keyed by (host, uri), spec §3.2/§4.3/§4.4.
type Cache struct {
	gate  rwGate
	pool  entryPool
	store store

	capacity      int
	maxObjectSize int

	hits, misses, evictions int64
}

// New creates a Cache with the given total byte capacity and per-entry
// size limit.
func New(capacity, maxObjectSize int) *Cache {
	return &Cache{
		store:         store{remainingSpace: capacity},
		capacity:      capacity,
		maxObjectSize: maxObjectSize,
	}
}

// Read looks up (host, uri); on a hit it copies the payload into out
// and returns (n, true), and the entry is promoted to MRU. On a miss
// it returns (0, false) — a normal outcome, never an error.
func (c *Cache) Read(host, uri string, out []byte) (int, bool) {
	c.gate.beginRead()
	e := c.store.find(host, uri)
	if e == nil {
		c.gate.endRead()
		atomic.AddInt64(&c.misses, 1)
		return 0, false
	}
	n := copy(out, e.payload)
	c.gate.endRead()
	atomic.AddInt64(&c.hits, 1)

	// Promotion runs as its own write-phase step, after the read phase
	// has released read_mutex, per spec §4.4. The reference lets a
	// writer run in the gap and evict the very entry about to be
	// promoted; rather than reproduce that, re-find under the write
	// lock and skip promotion if the entry is gone (spec §9 open
	// question, resolution (b)).
	c.gate.beginWrite()
	if c.store.find(host, uri) == e {
		c.store.promote(e)
	}
	c.gate.endWrite()
	return n, true
}

// Write admits buf under (host, uri), replacing any existing entry for
// that key and evicting LRU entries until there is room.
func (c *Cache) Write(host, uri string, buf []byte) error {
	if len(buf) > c.maxObjectSize {
		return ErrTooLarge
	}

	c.gate.beginWrite()
	defer c.gate.endWrite()

	if existing := c.store.find(host, uri); existing != nil {
		c.store.unlink(existing)
		c.pool.free(existing)
	}

	for c.store.remainingSpace < len(buf) {
		victim := c.store.evictLRU()
		if victim == nil {
			return ErrNoRoom
		}
		c.pool.free(victim)
		atomic.AddInt64(&c.evictions, 1)
	}

	e := c.pool.alloc()
	e.host = host
	e.uri = uri
	e.payloadSize = len(buf)
	e.payload = mcache.Malloc(len(buf))
	copy(e.payload, buf)
	c.store.insertMRU(e)
	return nil
}

// Stats reports current occupancy and effectiveness counters.
func (c *Cache) Stats() Stats {
	c.gate.beginRead()
	current := c.capacity - c.store.remainingSpace
	c.gate.endRead()

	return Stats{
		Hits:         atomic.LoadInt64(&c.hits),
		Misses:       atomic.LoadInt64(&c.misses),
		Evictions:    atomic.LoadInt64(&c.evictions),
		CurrentBytes: current,
		Capacity:     c.capacity,
	}
}

// StartEvictionSweeper launches a background goroutine that wakes every
// interval and, if current occupancy exceeds softWatermark, evicts LRU
// entries down to it via pool. This never changes Write's own
// evict-until-fit admission logic, which still runs synchronously; it
// only gives an operator a way to proactively shed load between writes.
// The returned func stops the sweeper.
func (c *Cache) StartEvictionSweeper(ctx context.Context, interval time.Duration, softWatermark int, pool *gopool.Pool) func() {
	stop := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				pool.Go(func() { c.sweepTo(softWatermark) })
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()
	return func() { close(stop) }
}

func (c *Cache) sweepTo(softWatermark int) {
	c.gate.beginWrite()
	defer c.gate.endWrite()

	for c.capacity-c.store.remainingSpace > softWatermark {
		victim := c.store.evictLRU()
		if victim == nil {
			return
		}
		log.Printf("cache: sweeper evicting %s", correlationID(victim.host, victim.uri))
		c.pool.free(victim)
		atomic.AddInt64(&c.evictions, 1)
	}
}
