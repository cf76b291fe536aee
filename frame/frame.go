// Package frame implements the global frame table: a registry of
// allocated physical frames with FIFO victim selection (spec §4.5).
//
// Grounded in Pintos vm/frame.c (struct frame_table's hash + list) and
// the teacher's own re-architecture note (spec §9): the hash+list pair
// becomes a map plus an insertion-order queue of keys, per the teacher's
// hashtable package's map+chain spirit without the intrusive pointers.
package frame

import (
	"github.com/jacobsa/syncutil"

	"biscuit/mem"
	"biscuit/metrics"
)

// / Owner identifies the process a frame belongs to. The core only needs
// / a comparable, opaque handle — process bookkeeping itself is external
// / (spec §1).
type Owner interface{}

// / Entry is one frame-table record: which frame, whose it is, and which
// / of that owner's virtual pages it backs (spec §3).
type Entry struct {
	Frame mem.FrameAddr
	Owner Owner
	Page  mem.PageAddr
}

// / Table is the process-wide frame table. Per spec §5, frame.mu also
// / guards every per-process supplementary page table (coarse locking,
// / §9's documented starting point) — callers needing both acquire this
// / table's lock first, per the lock order frame.mu -> file.mu/swap.mu.
type Table struct {
	mu      syncutil.InvariantMutex
	entries map[mem.FrameAddr]*Entry
	fifo    []mem.FrameAddr // insertion-order queue of keys
}

// / New constructs an empty frame table.
func New() *Table {
	t := &Table{entries: make(map[mem.FrameAddr]*Entry)}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

// / checkInvariants enforces spec §8.3 in its local form: every fifo key
// / names a resident entry and vice versa, with no duplicates.
func (t *Table) checkInvariants() {
	if len(t.fifo) != len(t.entries) {
		panic("frame: fifo/map size mismatch")
	}
	seen := make(map[mem.FrameAddr]bool, len(t.fifo))
	for _, f := range t.fifo {
		if seen[f] {
			panic("frame: duplicate frame in fifo")
		}
		seen[f] = true
		if _, ok := t.entries[f]; !ok {
			panic("frame: fifo key missing from map")
		}
	}
}

// / Lock acquires the table-wide mutex (spec §5's frame.mu). Exported so
// / callers in package vmfault can hold it across the frame-table lookup
// / and the per-process supplementary page-table lookup the spec requires
// / to happen atomically (spec §4.7 step 2).
func (t *Table) Lock() { t.mu.Lock() }

// / Unlock releases the table-wide mutex.
func (t *Table) Unlock() { t.mu.Unlock() }

// / Insert upserts the frame/owner/page mapping, moving frame to the back
// / of the FIFO if it already existed (spec §4.5's insert is an upsert).
// / Callers must hold the table lock.
func (t *Table) Insert(owner Owner, f mem.FrameAddr, page mem.PageAddr) {
	if _, exists := t.entries[f]; exists {
		t.removeFIFO(f)
	}
	t.entries[f] = &Entry{Frame: f, Owner: owner, Page: page}
	t.fifo = append(t.fifo, f)
}

// / Remove drops the frame-table entry for f, if any. Callers must hold
// / the table lock.
func (t *Table) Remove(f mem.FrameAddr) {
	if _, exists := t.entries[f]; !exists {
		return
	}
	delete(t.entries, f)
	t.removeFIFO(f)
}

func (t *Table) removeFIFO(f mem.FrameAddr) {
	for i, k := range t.fifo {
		if k == f {
			t.fifo = append(t.fifo[:i], t.fifo[i+1:]...)
			return
		}
	}
}

// / Find returns the entry for f, or nil. Callers must hold the table
// / lock.
func (t *Table) Find(f mem.FrameAddr) *Entry {
	return t.entries[f]
}

// / SelectVictim pops the FIFO head and immediately reinserts it at the
// / tail, so a subsequent call sees a different victim (spec §4.5) — a
// / deliberate, trivially-correct FIFO policy; pluggable per §9's note
// / that a clock/LRU approximation is the natural upgrade. Callers must
// / hold the table lock.
func (t *Table) SelectVictim() *Entry {
	if len(t.fifo) == 0 {
		return nil
	}
	f := t.fifo[0]
	t.fifo = append(t.fifo[1:], f)
	metrics.FrameEviction.Inc()
	return t.entries[f]
}
