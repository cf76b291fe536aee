package inode

import (
	"sync"

	"biscuit/cache"
	"biscuit/defs"
	"biscuit/freemap"
	"biscuit/mem"
)

// / Inode is the in-memory inode: reference-counted, keyed by its sector
// / id in the process-wide Registry so reopening returns the same object
// / (spec §3).
type Inode struct {
	mu sync.Mutex

	Sector mem.SectorID

	openCount      int
	denyWriteCount int
	removed        bool

	disk onDisk
}

// / IsDir reports whether the inode is a directory.
func (i *Inode) IsDir() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.disk.isDir
}

// / ParentDir returns the sector id of the inode's parent directory.
func (i *Inode) ParentDir() mem.SectorID {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.disk.parentDir
}

// / Length returns the inode's current length in bytes.
func (i *Inode) Length() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.disk.length
}

// / Registry is the process-wide table of open inodes, keyed by sector id
// / (spec §4.2's "open-registry"). It owns the buffer cache and free-sector
// / map every inode operation is routed through.
type Registry struct {
	mu sync.Mutex // guards `open`; leaf lock per spec §5

	open map[mem.SectorID]*Inode

	cache *cache.Cache
	fm    freemap.Map
}

// / NewRegistry constructs an empty open-inode registry over the given
// / buffer cache and free-sector map.
func NewRegistry(c *cache.Cache, fm freemap.Map) *Registry {
	return &Registry{
		open: make(map[mem.SectorID]*Inode),
		cache: c,
		fm:    fm,
	}
}

// / resolveBlock is the heart of the layer (spec §4.2): given a zero-based
// / logical block index, returns the backing sector id, allocating and
// / zero-filling index/data blocks on demand. Returns mem.UNUSED if
// / allocation fails anywhere along the path.
func (r *Registry) resolveBlock(d *onDisk, p int) mem.SectorID {
	var zero [mem.SECTOR]byte

	switch {
	case p < D:
		if d.direct[p] == mem.UNUSED {
			sec, ok := r.fm.Allocate()
			if !ok {
				return mem.UNUSED
			}
			r.cache.Write(zero[:], sec, 0, mem.SECTOR)
			d.direct[p] = sec
		}
		return d.direct[p]

	case p < D+S:
		if d.indirect == mem.UNUSED {
			sec, ok := r.fm.Allocate()
			if !ok {
				return mem.UNUSED
			}
			r.writeUnusedBlock(sec)
			d.indirect = sec
		}
		doff := p - D
		return r.ensureIndexedBlock(d.indirect, doff)

	default:
		if d.doubleIndirect == mem.UNUSED {
			sec, ok := r.fm.Allocate()
			if !ok {
				return mem.UNUSED
			}
			r.writeUnusedBlock(sec)
			d.doubleIndirect = sec
		}
		ioff := (p - D - S) / S
		doff := (p - D - S) % S

		indirect := r.ensureIndexSlot(d.doubleIndirect, ioff, func(sec mem.SectorID) {
			r.writeUnusedBlock(sec)
		})
		if indirect == mem.UNUSED {
			return mem.UNUSED
		}
		return r.ensureIndexedBlock(indirect, doff)
	}
}

// / writeUnusedBlock zero/UNUSED-fills a freshly allocated index block: S
// / slots, each mem.UNUSED, so ensureIndexSlot sees "not yet allocated"
// / for every entry (spec §4.2).
func (r *Registry) writeUnusedBlock(sec mem.SectorID) {
	var buf [mem.SECTOR]byte
	for slot := 0; slot < S; slot++ {
		off := sectorIndexOffset(slot)
		putSectorID(buf[off:off+4], mem.UNUSED)
	}
	r.cache.Write(buf[:], sec, 0, mem.SECTOR)
}

// / ensureIndexedBlock ensures the doff-th data-block pointer inside index
// / block `indexSector` is allocated, allocating+zeroing it if UNUSED, and
// / returns it.
func (r *Registry) ensureIndexedBlock(indexSector mem.SectorID, doff int) mem.SectorID {
	return r.ensureIndexSlot(indexSector, doff, func(sec mem.SectorID) {
		var zero [mem.SECTOR]byte
		r.cache.Write(zero[:], sec, 0, mem.SECTOR)
	})
}

// / ensureIndexSlot reads the doff-th sector id out of index block
// / indexSector, allocating a fresh sector (initialized via onAlloc) and
// / writing the pointer back if the slot was UNUSED.
func (r *Registry) ensureIndexSlot(indexSector mem.SectorID, doff int, onAlloc func(mem.SectorID)) mem.SectorID {
	off := sectorIndexOffset(doff)
	var ptrBuf [4]byte
	r.cache.Read(ptrBuf[:], indexSector, off, 4)
	sec := getSectorID(ptrBuf[:])
	if sec == mem.UNUSED {
		newSec, ok := r.fm.Allocate()
		if !ok {
			return mem.UNUSED
		}
		onAlloc(newSec)
		putSectorID(ptrBuf[:], newSec)
		r.cache.Write(ptrBuf[:], indexSector, off, 4)
		sec = newSec
	}
	return sec
}

// / freeAllBlocks releases every data and index block an inode references,
// / from the last logical block down to the first, and evicts each freed
// / sector from the buffer cache without writing it back (spec §4.2).
func (r *Registry) freeAllBlocks(d *onDisk) {
	sectors := mem.BytesToSectors(d.length)
	for p := sectors - 1; p >= 0; p-- {
		switch {
		case p < D:
			if d.direct[p] != mem.UNUSED {
				r.fm.Release(d.direct[p])
				r.cache.FreeCache(d.direct[p])
			}
		case p < D+S:
			doff := p - D
			r.freeIndexedSlot(d.indirect, doff)
			if doff == 0 && d.indirect != mem.UNUSED {
				r.fm.Release(d.indirect)
				r.cache.FreeCache(d.indirect)
			}
		default:
			ioff := (p - D - S) / S
			doff := (p - D - S) % S

			if d.doubleIndirect != mem.UNUSED {
				indirect := r.readIndexSlot(d.doubleIndirect, ioff)
				if indirect != mem.UNUSED {
					r.freeIndexedSlot(indirect, doff)
					if doff == 0 {
						r.fm.Release(indirect)
						r.cache.FreeCache(indirect)
					}
				}
			}
			if ioff == 0 && doff == 0 && d.doubleIndirect != mem.UNUSED {
				r.fm.Release(d.doubleIndirect)
				r.cache.FreeCache(d.doubleIndirect)
			}
		}
	}
}

func (r *Registry) readIndexSlot(indexSector mem.SectorID, slot int) mem.SectorID {
	off := sectorIndexOffset(slot)
	var buf [4]byte
	r.cache.Read(buf[:], indexSector, off, 4)
	return getSectorID(buf[:])
}

func (r *Registry) freeIndexedSlot(indexSector mem.SectorID, slot int) {
	if indexSector == mem.UNUSED {
		return
	}
	block := r.readIndexSlot(indexSector, slot)
	if block != mem.UNUSED {
		r.fm.Release(block)
		r.cache.FreeCache(block)
	}
}

func getSectorID(b []byte) mem.SectorID {
	return mem.SectorID(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

func putSectorID(b []byte, s mem.SectorID) {
	v := uint32(s)
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// / Create initializes an inode with length bytes of data and writes it to
// / sector on the filesystem disk, eagerly allocating every data block
// / (spec §4.2). Known limitation carried from Pintos inode_create: if an
// / allocation partway through fails, already-allocated blocks are not
// / unwound (spec §9).
func (r *Registry) Create(sector mem.SectorID, length int, isDir bool, parentSector mem.SectorID) defs.Err_t {
	d := newOnDisk(length, isDir, parentSector)

	sectors := mem.BytesToSectors(length)
	for p := 0; p < sectors; p++ {
		if r.resolveBlock(&d, p) == mem.UNUSED {
			return defs.ENOSPC
		}
	}

	buf := d.encode()
	r.cache.Write(buf[:], sector, 0, mem.SECTOR)
	return 0
}

// / Open looks the inode up in the registry; on a hit it reopens (bumps
// / openCount) the existing object, otherwise it reads the on-disk image
// / into a fresh Inode and inserts it (spec §4.2).
func (r *Registry) Open(sector mem.SectorID) (*Inode, defs.Err_t) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.open[sector]; ok {
		existing.mu.Lock()
		existing.openCount++
		existing.mu.Unlock()
		return existing, 0
	}

	var buf [mem.SECTOR]byte
	r.cache.Read(buf[:], sector, 0, mem.SECTOR)
	d := decodeOnDisk(buf[:])
	if d.magic != Magic {
		panic("inode: magic mismatch")
	}

	in := &Inode{Sector: sector, openCount: 1, disk: d}
	r.open[sector] = in
	return in, 0
}

// / Close decrements an inode's open count; at zero it is dropped from the
// / registry, and either released (if marked removed) or written back to
// / disk (spec §4.2).
func (r *Registry) Close(in *Inode) {
	r.mu.Lock()
	defer r.mu.Unlock()

	in.mu.Lock()
	in.openCount--
	last := in.openCount == 0
	removed := in.removed
	d := in.disk
	sector := in.Sector
	in.mu.Unlock()

	if !last {
		return
	}
	delete(r.open, sector)

	if removed {
		r.fm.Release(sector)
		r.freeAllBlocks(&d)
		return
	}
	buf := d.encode()
	r.cache.Write(buf[:], sector, 0, mem.SECTOR)
}

// / Remove marks the inode for deferred release: its sector and data
// / blocks are freed by the last Close (spec §4.2).
func (in *Inode) Remove() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.removed = true
}

// / Removed reports whether Remove has been called on this inode.
func (in *Inode) Removed() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.removed
}

// / ReadAt reads up to n bytes from inode into dst starting at byte offset
// / off, bounded by the file's length, and returns the number of bytes
// / actually read (spec §4.2). Note (spec §9): this calls resolveBlock,
// / which can allocate — a pure read of a hole therefore can cause writes.
func (r *Registry) ReadAt(in *Inode, dst []byte, n, off int) int {
	in.mu.Lock()
	defer in.mu.Unlock()

	read := 0
	for read < n {
		offset := off + read
		if offset >= in.disk.length {
			break
		}
		sector := r.resolveBlock(&in.disk, offset/mem.SECTOR)
		if sector == mem.UNUSED {
			break
		}
		sectorOff := offset % mem.SECTOR

		leftInFile := in.disk.length - offset
		leftInSector := mem.SECTOR - sectorOff
		chunk := n - read
		if leftInFile < chunk {
			chunk = leftInFile
		}
		if leftInSector < chunk {
			chunk = leftInSector
		}
		if chunk <= 0 {
			break
		}

		r.cache.Read(dst[read:read+chunk], sector, sectorOff, chunk)
		read += chunk
	}
	return read
}

// / WriteAt writes n bytes from src into inode starting at byte offset off,
// / extending the inode's length up-front to max(length, off+n) so growth
// / is visible to concurrent length readers as soon as it begins (spec
// / §4.2). Returns the number of bytes actually written, and EPERM if
// / writes are currently denied.
func (r *Registry) WriteAt(in *Inode, src []byte, n, off int) (int, defs.Err_t) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.denyWriteCount > 0 {
		return 0, defs.EPERM
	}

	if in.disk.length < off+n {
		in.disk.length = off + n
	}

	written := 0
	for written < n {
		offset := off + written
		sector := r.resolveBlock(&in.disk, offset/mem.SECTOR)
		if sector == mem.UNUSED {
			break
		}
		sectorOff := offset % mem.SECTOR
		leftInSector := mem.SECTOR - sectorOff
		chunk := n - written
		if leftInSector < chunk {
			chunk = leftInSector
		}
		if chunk <= 0 {
			break
		}

		r.cache.Write(src[written:written+chunk], sector, sectorOff, chunk)
		written += chunk
	}
	return written, 0
}

// / DenyWrite increments the inode's deny-write counter (spec §4.2);
// / invariant 0 <= denyWriteCount <= openCount (spec §8.6) is enforced here.
func (in *Inode) DenyWrite() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.denyWriteCount++
	if in.denyWriteCount > in.openCount {
		panic("inode: deny_write_cnt exceeds open_cnt")
	}
}

// / AllowWrite decrements the inode's deny-write counter.
func (in *Inode) AllowWrite() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.denyWriteCount <= 0 {
		panic("inode: allow_write without matching deny_write")
	}
	in.denyWriteCount--
}

// / WriteToken is the RAII-style handle recommended by spec §9 in place of
// / the teacher's bare deny_write_cnt: acquiring "deny writes" returns a
// / token whose Release decrements the counter exactly once.
type WriteToken struct {
	in       *Inode
	released bool
}

// / DenyWriteToken acquires a deny-write token on in. Release must be
// / called exactly once.
func DenyWriteToken(in *Inode) *WriteToken {
	in.DenyWrite()
	return &WriteToken{in: in}
}

// / Release re-enables writes if this token hasn't already released.
func (t *WriteToken) Release() {
	if t.released {
		return
	}
	t.released = true
	t.in.AllowWrite()
}
