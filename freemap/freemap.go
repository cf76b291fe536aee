// Package freemap is the narrow external collaborator the spec calls the
// "free-sector map" (§1, §2): allocation/release of individual disk
// sectors. Out of scope per §1; this package exists only so the inode
// layer above has something concrete to call, mirroring Pintos'
// filesys/free-map.c (free_map_allocate/free_map_release) which the
// teacher's own fs package treats as a given.
package freemap

import (
	"sync"

	"biscuit/mem"
)

// / Map is the interface the inode layer consumes: allocate and release
// / single sectors against a backing bitmap.
type Map interface {
	Allocate() (mem.SectorID, bool)
	Release(mem.SectorID)
}

// / Bitmap is a reference Map implementation: one bit per sector, bit i set
// / means sector i is in use. This type reserves no sector by itself, and
// / Allocate hands out sector 0 like any other — callers reserve fixed
// / sectors (free-map inode, root directory inode per §6) before handing
// / the map to the inode layer.
type Bitmap struct {
	mu   sync.Mutex
	bits []bool
}

// / New creates a Bitmap tracking nsectors sectors, all initially free.
func New(nsectors int) *Bitmap {
	return &Bitmap{bits: make([]bool, nsectors)}
}

// / Allocate finds a clear bit, sets it, and returns the sector it
// / represents. Returns false if the map is full.
func (b *Bitmap) Allocate() (mem.SectorID, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, used := range b.bits {
		if !used {
			b.bits[i] = true
			return mem.SectorID(i), true
		}
	}
	return 0, false
}

// / Reserve marks sector as in-use without scanning, for fixed sectors
// / established at format time (free-map inode, root directory inode).
func (b *Bitmap) Reserve(sector mem.SectorID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bits[sector] = true
}

// / Release clears the bit for sector, making it available for reuse.
func (b *Bitmap) Release(sector mem.SectorID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bits[sector] = false
}
