// Package inode implements the multilevel indexed file representation:
// per-file metadata, the direct/indirect/double-indirect block index,
// sparse allocation and growth, and directory inodes (spec §4.2), all
// routed through the buffer cache.
//
// Grounded in Pintos filesys/inode.c (the allocate_block/free_blocks/
// inode_read_at/inode_write_at this package generalizes) and the teacher's
// fs/super.go field-accessor style for the on-disk layout.
package inode

import (
	"encoding/binary"

	"biscuit/mem"
)

// / D is the number of direct block pointers an inode carries (spec §3).
const D = 12

// / S is the number of sector ids that fit in one index block
// / (SECTOR/4, spec §3).
const S = mem.SECTOR / 4

// / Magic identifies a valid on-disk inode (spec §3).
const Magic uint32 = 0x494E4F44

// / MaxFileSize is the largest length an inode can address:
// / (D + S + S^2) * SECTOR bytes (spec §3).
const MaxFileSize = (D + S + S*S) * mem.SECTOR

// / onDiskLayoutBytes is the portion of the sector actually occupied by
// / the fields below; the remainder is zero padding out to mem.SECTOR.
const onDiskLayoutBytes = 4*D + 4 + 4 + 4 + 4 + 4 + 4

func init() {
	if onDiskLayoutBytes > mem.SECTOR {
		panic("inode: on-disk layout does not fit in one sector")
	}
}

// / onDisk is the exactly-one-sector-wide on-disk inode record (spec §3).
type onDisk struct {
	direct         [D]mem.SectorID
	indirect       mem.SectorID
	doubleIndirect mem.SectorID
	isDir          bool
	parentDir      mem.SectorID
	length         int
	magic          uint32
}

// / newOnDisk builds a zeroed inode image with every block pointer set to
// / UNUSED (spec §4.2's create: "zero the on-disk image").
func newOnDisk(length int, isDir bool, parentDir mem.SectorID) onDisk {
	d := onDisk{
		indirect:       mem.UNUSED,
		doubleIndirect: mem.UNUSED,
		isDir:          isDir,
		parentDir:      parentDir,
		length:         length,
		magic:          Magic,
	}
	for i := range d.direct {
		d.direct[i] = mem.UNUSED
	}
	return d
}

// / encode serializes the inode into exactly mem.SECTOR bytes.
func (d *onDisk) encode() [mem.SECTOR]byte {
	var buf [mem.SECTOR]byte
	off := 0
	for i := 0; i < D; i++ {
		binary.LittleEndian.PutUint32(buf[off:], uint32(d.direct[i]))
		off += 4
	}
	binary.LittleEndian.PutUint32(buf[off:], uint32(d.indirect))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(d.doubleIndirect))
	off += 4
	if d.isDir {
		binary.LittleEndian.PutUint32(buf[off:], 1)
	}
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(d.parentDir))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(d.length))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], d.magic)
	return buf
}

// / decodeOnDisk parses a sector-sized buffer produced by encode back into an
// / onDisk record.
func decodeOnDisk(buf []byte) onDisk {
	var d onDisk
	off := 0
	for i := 0; i < D; i++ {
		d.direct[i] = mem.SectorID(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}
	d.indirect = mem.SectorID(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	d.doubleIndirect = mem.SectorID(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	d.isDir = binary.LittleEndian.Uint32(buf[off:]) != 0
	off += 4
	d.parentDir = mem.SectorID(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	d.length = int(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	d.magic = binary.LittleEndian.Uint32(buf[off:])
	return d
}

// / sectorIndexOffset returns the byte offset of the slot-th sector id
// / within an index block; used for indirect and double-indirect traversal.
func sectorIndexOffset(slot int) int {
	return slot * 4
}
