// Package swap implements the swap area: a page-sized slot allocator over
// a second block device, tracked by a free-slot bitmap (spec §4.4).
//
// Grounded in Pintos vm/swap.c (swap_in/swap_out over a disk(1,1) swap
// device and a bitmap of free slots).
package swap

import (
	"sync"

	"biscuit/blkdev"
	"biscuit/mem"
	"biscuit/metrics"
)

// / Area is the swap device plus its slot bitmap, both protected by a
// / single dedicated mutex (spec §4.4, §5's swap.mu).
type Area struct {
	mu     sync.Mutex
	dev    blkdev.Device
	bitmap []bool // bit i: slot i in use
}

// / New constructs a swap Area over dev, sized to however many
// / PAGE/SECTOR-sector slots the device holds.
func New(dev blkdev.Device) *Area {
	slots := int(dev.SizeInSectors()) / mem.PageSectors
	return &Area{dev: dev, bitmap: make([]bool, slots)}
}

// / SwapOut scans the bitmap for a clear bit, sets it, and writes
// / PAGE/SECTOR sectors from frame to the swap device starting at
// / bitIndex*(PAGE/SECTOR). Returns the starting sector id.
// /
// / If the bitmap is full this is a kernel panic (spec §4.4, §7): swap
// / exhaustion is documented as unrecoverable at this layer, not a
// / returned error (spec §9 notes a production variant should fail the
// / allocating operation instead — left as a follow-on, not implemented
// / here, to keep parity with the source's behavior).
func (a *Area) SwapOut(frame []byte) mem.SectorID {
	a.mu.Lock()
	defer a.mu.Unlock()

	slot := -1
	for i, used := range a.bitmap {
		if !used {
			slot = i
			break
		}
	}
	if slot == -1 {
		panic("swap: bitmap exhausted")
	}
	a.bitmap[slot] = true
	metrics.SwapOccupancy.Inc()

	start := mem.SectorID(slot * mem.PageSectors)
	for s := 0; s < mem.PageSectors; s++ {
		a.dev.WriteSector(start+mem.SectorID(s), frame[s*mem.SECTOR:(s+1)*mem.SECTOR])
	}
	return start
}

// / SwapIn reads PAGE/SECTOR sectors starting at slotSector back into
// / frame and clears the corresponding bit.
func (a *Area) SwapIn(slotSector mem.SectorID, frame []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for s := 0; s < mem.PageSectors; s++ {
		a.dev.ReadSector(slotSector+mem.SectorID(s), frame[s*mem.SECTOR:(s+1)*mem.SECTOR])
	}
	slot := int(slotSector) / mem.PageSectors
	a.bitmap[slot] = false
	metrics.SwapOccupancy.Dec()
}

// / Free clears the bit for the slot starting at slotSector without
// / reading it back, used by the supplementary page table's free_all on
// / process teardown (spec §4.6).
func (a *Area) Free(slotSector mem.SectorID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	slot := int(slotSector) / mem.PageSectors
	if a.bitmap[slot] {
		a.bitmap[slot] = false
		metrics.SwapOccupancy.Dec()
	}
}
