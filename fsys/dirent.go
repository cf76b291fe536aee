package fsys

import (
	"biscuit/inode"
	"biscuit/mem"
)

// / NameMax bounds a single path component's length. Directory entry
// / format is declared external to this spec (§6): this fixed-size record
// / is scaffolding to give the façade something concrete to store,
// / modeled on Pintos filesys/directory.h's {inode_sector, name, in_use}.
const NameMax = 60

// / dirEntrySize is the on-disk width of one directory entry: a sector
// / id, a fixed name buffer, and an in-use flag.
const dirEntrySize = 4 + NameMax + 1

type dirEntry struct {
	sector mem.SectorID
	name   string
	inUse  bool
}

func encodeDirEntry(e dirEntry) [dirEntrySize]byte {
	var buf [dirEntrySize]byte
	putU32(buf[0:4], uint32(e.sector))
	copy(buf[4:4+NameMax], e.name)
	if e.inUse {
		buf[4+NameMax] = 1
	}
	return buf
}

func decodeDirEntry(buf []byte) dirEntry {
	sector := mem.SectorID(getU32(buf[0:4]))
	nameBuf := buf[4 : 4+NameMax]
	n := 0
	for n < len(nameBuf) && nameBuf[n] != 0 {
		n++
	}
	return dirEntry{
		sector: sector,
		name:   string(nameBuf[:n]),
		inUse:  buf[4+NameMax] != 0,
	}
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// / dirLookup scans dir's inode content for name, returning its sector
// / and whether it was found.
func dirLookup(reg *inode.Registry, dir *inode.Inode, name string) (mem.SectorID, bool) {
	length := dir.Length()
	var buf [dirEntrySize]byte
	for off := 0; off+dirEntrySize <= length; off += dirEntrySize {
		n := reg.ReadAt(dir, buf[:], dirEntrySize, off)
		if n < dirEntrySize {
			break
		}
		e := decodeDirEntry(buf[:])
		if e.inUse && e.name == name {
			return e.sector, true
		}
	}
	return 0, false
}

// / dirAdd appends a new entry to dir, reusing a free slot if one exists.
// / Returns false if name already exists.
func dirAdd(reg *inode.Registry, dir *inode.Inode, name string, sector mem.SectorID) bool {
	if _, exists := dirLookup(reg, dir, name); exists {
		return false
	}

	length := dir.Length()
	var buf [dirEntrySize]byte
	for off := 0; off+dirEntrySize <= length; off += dirEntrySize {
		n := reg.ReadAt(dir, buf[:], dirEntrySize, off)
		if n < dirEntrySize {
			break
		}
		e := decodeDirEntry(buf[:])
		if !e.inUse {
			enc := encodeDirEntry(dirEntry{sector: sector, name: name, inUse: true})
			reg.WriteAt(dir, enc[:], dirEntrySize, off)
			return true
		}
	}

	enc := encodeDirEntry(dirEntry{sector: sector, name: name, inUse: true})
	reg.WriteAt(dir, enc[:], dirEntrySize, length)
	return true
}

// / dirRemove clears the entry named name inside dir. Returns false if no
// / such entry exists.
func dirRemove(reg *inode.Registry, dir *inode.Inode, name string) bool {
	length := dir.Length()
	var buf [dirEntrySize]byte
	for off := 0; off+dirEntrySize <= length; off += dirEntrySize {
		n := reg.ReadAt(dir, buf[:], dirEntrySize, off)
		if n < dirEntrySize {
			break
		}
		e := decodeDirEntry(buf[:])
		if e.inUse && e.name == name {
			enc := encodeDirEntry(dirEntry{inUse: false})
			reg.WriteAt(dir, enc[:], dirEntrySize, off)
			return true
		}
	}
	return false
}
