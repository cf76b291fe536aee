// Package cache implements the buffer cache: a small, write-back cache of
// fixed-size disk sectors with FIFO admission/eviction and periodic flush
// (spec §4.1).
//
// Grounded in the teacher's fs/blk.go block/list plumbing (the FIFO list of
// Bdev_block_t under a single mutex) and, further back, the Pintos
// filesys/cache.c this module descends from.
package cache

import (
	"container/list"
	"context"
	"time"

	"github.com/jacobsa/syncutil"
	"golang.org/x/sync/errgroup"

	"biscuit/blkdev"
	"biscuit/mem"
	"biscuit/metrics"
)

// / MaxCache bounds the number of resident cache entries (spec §3).
const MaxCache = 64

// / FlushPeriod is how often the background flusher wakes and writes every
// / resident entry back to the device (spec §4.1).
const FlushPeriod = 50 * time.Millisecond

// / entry is one resident cache line: a sector id and its SECTOR-byte
// / buffer. Eviction order equals insertion order (FIFO), enforced by the
// / cache's list — there is no separate dirty flag because every entry is
// / always written back on eviction/flush (spec §3).
type entry struct {
	sector mem.SectorID
	buf    [mem.SECTOR]byte
}

// / Cache is the write-back sector cache. All public methods serialize
// / through a single cache-wide mutex (spec §5's cache.mu), implemented as
// / an InvariantMutex so the "at most one entry per sector, size <=
// / MaxCache" invariant (spec §8.1) is checked around every critical
// / section when syncutil's invariant checking is enabled; nothing in this
// / module enables it.
type Cache struct {
	dev blkdev.Device

	mu      syncutil.InvariantMutex
	entries map[mem.SectorID]*list.Element // guarded by mu
	order   *list.List                     // of *entry, front = oldest; guarded by mu

	cancel  context.CancelFunc
	flusher *errgroup.Group
}

// / New constructs a Cache over dev and starts its background flush loop.
func New(dev blkdev.Device) *Cache {
	c := &Cache{
		dev:     dev,
		entries: make(map[mem.SectorID]*list.Element),
		order:   list.New(),
	}
	c.mu = syncutil.NewInvariantMutex(c.checkInvariants)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	g, gctx := errgroup.WithContext(ctx)
	c.flusher = g
	g.Go(func() error {
		c.flushLoop(gctx)
		return nil
	})
	return c
}

// / checkInvariants enforces spec §8.1: the entry table and the FIFO list
// / agree, at most one entry per sector, and the table never exceeds
// / MaxCache. Runs under mu.
func (c *Cache) checkInvariants() {
	if len(c.entries) > MaxCache {
		panic("cache: over capacity")
	}
	if c.order.Len() != len(c.entries) {
		panic("cache: list/map size mismatch")
	}
	seen := make(map[mem.SectorID]bool, len(c.entries))
	for e := c.order.Front(); e != nil; e = e.Next() {
		s := e.Value.(*entry).sector
		if seen[s] {
			panic("cache: duplicate sector in FIFO list")
		}
		seen[s] = true
		if c.entries[s] != e {
			panic("cache: map/list element mismatch")
		}
	}
}

func (c *Cache) flushLoop(ctx context.Context) {
	t := time.NewTicker(FlushPeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.Flush()
		}
	}
}

// / lookup returns the resident entry for sector, or nil. Must hold mu.
func (c *Cache) lookup(sector mem.SectorID) *entry {
	if el, ok := c.entries[sector]; ok {
		return el.Value.(*entry)
	}
	return nil
}

// / allocate installs a freshly-read entry for sector, evicting the FIFO
// / head if the cache is full. Must hold mu.
func (c *Cache) allocate(sector mem.SectorID) *entry {
	if len(c.entries) >= MaxCache {
		c.evictHeadLocked()
	}
	e := &entry{sector: sector}
	c.dev.ReadSector(sector, e.buf[:])
	el := c.order.PushBack(e)
	c.entries[sector] = el
	metrics.CacheMiss.Inc()
	return e
}

// / evictHeadLocked writes back and drops the oldest resident entry. Must
// / hold mu.
func (c *Cache) evictHeadLocked() {
	front := c.order.Front()
	if front == nil {
		return
	}
	victim := front.Value.(*entry)
	c.dev.WriteSector(victim.sector, victim.buf[:])
	c.order.Remove(front)
	delete(c.entries, victim.sector)
	metrics.CacheEviction.Inc()
}

// / Read copies n bytes from sector starting at offset into dst. On miss,
// / the sector is read through to the device first so that a subsequent
// / partial write preserves the surrounding bytes (spec §4.1).
func (c *Cache) Read(dst []byte, sector mem.SectorID, offset, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.lookup(sector)
	if e == nil {
		e = c.allocate(sector)
	} else {
		metrics.CacheHit.Inc()
	}
	copy(dst[:n], e.buf[offset:offset+n])
}

// / Write places n bytes from src into the cached sector at offset. Never
// / writes through to the device immediately (spec §4.1); durability is
// / only guaranteed after Flush/Shutdown.
func (c *Cache) Write(src []byte, sector mem.SectorID, offset, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.lookup(sector)
	if e == nil {
		e = c.allocate(sector)
	} else {
		metrics.CacheHit.Inc()
	}
	copy(e.buf[offset:offset+n], src[:n])
}

// / Flush writes every resident entry back to the device, leaving the
// / entries resident (spec §4.1).
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for el := c.order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*entry)
		c.dev.WriteSector(e.sector, e.buf[:])
	}
}

// / FreeCache removes an entry without writing it back, for use by the
// / inode layer when releasing a block whose contents are about to be
// / invalidated (spec §4.1's free_cache).
func (c *Cache) FreeCache(sector mem.SectorID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[sector]
	if !ok {
		return
	}
	c.order.Remove(el)
	delete(c.entries, sector)
}

// / Shutdown flushes every entry, then drops them all and stops the
// / background flusher (spec §4.1).
func (c *Cache) Shutdown() {
	c.Flush()
	c.cancel()
	c.flusher.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[mem.SectorID]*list.Element)
	c.order = list.New()
}
