// Package pagetable implements the per-process supplementary page table:
// where each virtual page lives — in a frame, in swap, or backed by a
// file segment (spec §4.6).
//
// Grounded in Pintos vm/page.c's struct page_table_entry, re-architected
// per spec §9's redesign note: the nullable-field encoding becomes a
// tagged sum type, directly enforcing invariant §8.2 (exactly one state
// at a time) instead of merely documenting it.
package pagetable

import (
	"biscuit/frame"
	"biscuit/mem"
	"biscuit/swap"
)

// / stateKind discriminates the tagged PageState union.
type stateKind int

const (
	kindFrame stateKind = iota
	kindSwap
	kindFile
)

// / FileBackingHandle is the narrow view of an open file the page table
// / needs: something to reopen and to read/write pages against. The
// / concrete file-system façade type satisfies this.
type FileBackingHandle interface {
	ReadPage(offset int, dst []byte) int
	WritePage(offset int, src []byte)
}

// / PageState is the tagged variant of spec §9: InFrame(addr) |
// / InSwap(slot) | InFile{handle, offset}. Exactly one constructor is used
// / per entry, which is what makes invariant §8.2 structural rather than
// / conventional.
type PageState struct {
	kind  stateKind
	frame mem.FrameAddr
	slot  mem.SectorID
	file  FileBackingHandle
	off   int
}

// / InFrame constructs a PageState backed by a resident physical frame.
func InFrame(f mem.FrameAddr) PageState { return PageState{kind: kindFrame, frame: f} }

// / InSwap constructs a PageState backed by a swap slot.
func InSwap(slot mem.SectorID) PageState { return PageState{kind: kindSwap, slot: slot} }

// / InFile constructs a PageState backed by a file segment.
func InFile(h FileBackingHandle, off int) PageState {
	return PageState{kind: kindFile, file: h, off: off}
}

// / Frame returns (frame address, true) if the state is InFrame.
func (s PageState) Frame() (mem.FrameAddr, bool) { return s.frame, s.kind == kindFrame }

// / Swap returns (slot sector, true) if the state is InSwap.
func (s PageState) Swap() (mem.SectorID, bool) { return s.slot, s.kind == kindSwap }

// / File returns (handle, offset, true) if the state is InFile.
func (s PageState) File() (FileBackingHandle, int, bool) {
	return s.file, s.off, s.kind == kindFile
}

// / Table is one process's supplementary page table, keyed by user-page
// / base address (spec §4.6). Access is serialized by the owning frame
// / table's coarse lock (spec §5); Table itself holds no lock.
type Table struct {
	entries map[mem.PageAddr]PageState
}

// / New constructs an empty supplementary page table.
func New() *Table {
	return &Table{entries: make(map[mem.PageAddr]PageState)}
}

// / InsertFrame makes page's entry reflect InFrame(f) exactly (spec §4.6).
func (t *Table) InsertFrame(page mem.PageAddr, f mem.FrameAddr) {
	t.entries[page] = InFrame(f)
}

// / InsertSwap makes page's entry reflect InSwap(slot) exactly.
func (t *Table) InsertSwap(page mem.PageAddr, slot mem.SectorID) {
	t.entries[page] = InSwap(slot)
}

// / InsertFile makes page's entry reflect InFile(handle, offset) exactly.
func (t *Table) InsertFile(page mem.PageAddr, h FileBackingHandle, offset int) {
	t.entries[page] = InFile(h, offset)
}

// / Find returns (state, true) if page has an entry.
func (t *Table) Find(page mem.PageAddr) (PageState, bool) {
	s, ok := t.entries[page]
	return s, ok
}

// / Remove drops page's entry, if any.
func (t *Table) Remove(page mem.PageAddr) {
	delete(t.entries, page)
}

// / FreeAll tears the table down at process exit (spec §4.6): every swap
// / bit is cleared, every frame-table entry is removed, then the entry is
// / dropped. Caller must already hold the frame table's lock (spec §5's
// / frame.mu -> swap.mu order).
func (t *Table) FreeAll(frames *frame.Table, area *swap.Area) {
	for page, s := range t.entries {
		if slot, ok := s.Swap(); ok {
			area.Free(slot)
		}
		if f, ok := s.Frame(); ok {
			frames.Remove(f)
		}
		delete(t.entries, page)
	}
}
