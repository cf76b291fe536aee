// Package palloc is the narrow external collaborator the spec calls the
// "physical-frame allocator" (§6): get_page(flags) returns a PAGE-aligned
// kernel-visible frame address or null. Out of scope per §1 beyond this
// interface; a bounded-pool reference implementation stands in for the
// real allocator so the resolver in package vmfault has something to
// drive demand paging and eviction against.
package palloc

import (
	"sync"

	"biscuit/mem"
)

// / Flags mirror the flags named in spec §6.
type Flags int

const (
	// / User marks a frame as destined for user-space mapping.
	User Flags = 1 << iota
	// / Zero requests a frame whose contents are zero-filled.
	Zero
)

// / Allocator is the interface every layer above it consumes.
type Allocator interface {
	// / GetPage returns a fresh frame and its backing byte slice, or
	// / (0, nil, false) if the pool is exhausted.
	GetPage(flags Flags) (mem.FrameAddr, []byte, bool)
	// / Put returns a frame to the pool.
	Put(mem.FrameAddr)
}

// / Pool is a reference Allocator: a fixed number of PAGE-sized buffers,
// / handed out and reclaimed by address. Standing in for the teacher's
// / mem.Page_i-backed palloc_get_page.
type Pool struct {
	mu   sync.Mutex
	free []mem.FrameAddr
	mem  map[mem.FrameAddr][]byte
}

// / NewPool constructs a Pool of n frames, each identified by a synthetic
// / page-aligned address starting at base.
func NewPool(n int, base mem.FrameAddr) *Pool {
	p := &Pool{mem: make(map[mem.FrameAddr][]byte, n)}
	for i := 0; i < n; i++ {
		addr := base + mem.FrameAddr(i*mem.PAGE)
		p.free = append(p.free, addr)
		p.mem[addr] = make([]byte, mem.PAGE)
	}
	return p
}

// / GetPage implements Allocator.
func (p *Pool) GetPage(flags Flags) (mem.FrameAddr, []byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		return 0, nil, false
	}
	addr := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	buf := p.mem[addr]
	if flags&Zero != 0 {
		for i := range buf {
			buf[i] = 0
		}
	}
	return addr, buf, true
}

// / Put implements Allocator.
func (p *Pool) Put(addr mem.FrameAddr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, addr)
}

// / Bytes returns the backing buffer for a frame address handed out by
// / this pool, for callers (the frame table's victim path) that only
// / carry the address around.
func (p *Pool) Bytes(addr mem.FrameAddr) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mem[addr]
}
