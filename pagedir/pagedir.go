// Package pagedir is the narrow external collaborator the spec calls the
// "hardware page directory" (§6): set_page/clear_page/is_dirty/
// is_accessed. Out of scope per §1 (it is the hardware page-table
// primitive); a software-simulated Directory (a map, tracking dirty and
// accessed bits explicitly) stands in for the real x86 page tables the
// teacher's vm/as.go Pmap_t wraps with unsafe pointer arithmetic.
package pagedir

import (
	"sync"

	"biscuit/mem"
)

// / Directory is the interface every layer above it consumes.
type Directory interface {
	SetPage(page mem.PageAddr, frame mem.FrameAddr, writable bool)
	ClearPage(page mem.PageAddr)
	IsDirty(page mem.PageAddr) bool
	IsAccessed(page mem.PageAddr) bool
	// / MarkDirty and MarkAccessed simulate the hardware setting these
	// / bits on actual memory access; real hardware does this on every
	// / load/store, which this reference model cannot observe, so tests
	// / call these explicitly to simulate access patterns.
	MarkDirty(page mem.PageAddr)
	MarkAccessed(page mem.PageAddr)
}

type mapping struct {
	frame    mem.FrameAddr
	writable bool
	dirty    bool
	accessed bool
}

// / SoftDirectory is a reference Directory backed by a map.
type SoftDirectory struct {
	mu  sync.Mutex
	pte map[mem.PageAddr]*mapping
}

// / NewSoftDirectory constructs an empty simulated page directory.
func NewSoftDirectory() *SoftDirectory {
	return &SoftDirectory{pte: make(map[mem.PageAddr]*mapping)}
}

// / SetPage implements Directory.
func (d *SoftDirectory) SetPage(page mem.PageAddr, frame mem.FrameAddr, writable bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pte[page] = &mapping{frame: frame, writable: writable}
}

// / ClearPage implements Directory.
func (d *SoftDirectory) ClearPage(page mem.PageAddr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pte, page)
}

// / IsDirty implements Directory.
func (d *SoftDirectory) IsDirty(page mem.PageAddr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.pte[page]
	return ok && m.dirty
}

// / IsAccessed implements Directory.
func (d *SoftDirectory) IsAccessed(page mem.PageAddr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.pte[page]
	return ok && m.accessed
}

// / MarkDirty implements Directory.
func (d *SoftDirectory) MarkDirty(page mem.PageAddr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.pte[page]; ok {
		m.dirty = true
	}
}

// / MarkAccessed implements Directory.
func (d *SoftDirectory) MarkAccessed(page mem.PageAddr) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if m, ok := d.pte[page]; ok {
		m.accessed = true
	}
}

// / Present reports whether page currently has a hardware mapping.
func (d *SoftDirectory) Present(page mem.PageAddr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pte[page]
	return ok
}

// / Writable reports whether page's current mapping is writable.
func (d *SoftDirectory) Writable(page mem.PageAddr) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.pte[page]
	return ok && m.writable
}
