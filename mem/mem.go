// Package mem defines the fixed-size units the storage and memory core is
// built from: disk sectors and virtual-memory pages, plus the addressing
// types layered code uses instead of bare ints.
//
// Scope follows §1 of the spec: the teacher's hardware page-directory and
// physical-memory accounting (mem/mem.go's Physmem_t, Pmap_t, unsafe-backed
// Dmap) are out of scope here — only the sizes and sentinels survive.
package mem

// / SECTOR is the fixed size, in bytes, of one block-device sector.
const SECTOR = 512

// / PAGE is the fixed size, in bytes, of one virtual-memory page.
const PAGE = 4096

// / PageSectors is the number of contiguous sectors one page occupies,
// / both in a swap slot and when DMA'd to/from a block device.
const PageSectors = PAGE / SECTOR

// / UNUSED is the sentinel sector id meaning "no allocation", stored as
// / (uint32)-1 so it round-trips bit-exactly through the on-disk inode
// / layout described in spec §3.
const UNUSED SectorID = ^SectorID(0)

// / KernelBase is the boundary between user and kernel virtual address
// / space: addresses below it are user vaddrs, at or above it are kernel
// / vaddrs. Pintos's is_user_vaddr (userprog/exception.c:192) checks a
// / fault address against this same boundary (threads/vaddr.h's
// / PHYS_BASE) before treating a miss as stack growth; PHYS_BASE itself
// / wasn't among the retrieved source files, so this uses Pintos's
// / well-known default 3GB/1GB split.
const KernelBase PageAddr = 0xC0000000

// / SectorID identifies a sector on some block device. It is a distinct
// / type (rather than a bare int) so that frame/page addresses and sector
// / ids can't be mixed up at call sites.
type SectorID uint32

// / FrameAddr identifies a page-aligned physical frame.
type FrameAddr uintptr

// / PageAddr identifies a page-aligned virtual address.
type PageAddr uintptr

// / RoundDownPage aligns a virtual address down to its containing page.
func RoundDownPage(addr uintptr) PageAddr {
	return PageAddr(addr &^ (PAGE - 1))
}

// / PageAligned reports whether addr falls on a page boundary.
func PageAligned(addr uintptr) bool {
	return addr%PAGE == 0
}

// / BytesToSectors returns the number of sectors needed to hold n bytes,
// / rounding up. Mirrors the teacher's bytes_to_sectors helper (inode.c).
func BytesToSectors(n int) int {
	return (n + SECTOR - 1) / SECTOR
}

// / BytesToPages returns the number of pages needed to hold n bytes,
// / rounding up.
func BytesToPages(n int) int {
	return (n + PAGE - 1) / PAGE
}
