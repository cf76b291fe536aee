// Package blkdev is the narrow external collaborator the spec calls "the
// block device abstraction" (§1, §6): synchronous read/write of fixed-size
// sectors, addressed by (channel, unit). The driver itself, interrupt
// handling, and DMA plumbing are out of scope; only the interface this
// module consumes lives here, plus a reference implementation used by
// tests and the cmd/biscuitctl tool.
//
// Grounded in the teacher's fs/blk.go Disk_i interface, generalized from
// the async request-queue shape (Bdev_req_t/AckCh) to the spec's simpler
// synchronous contract.
package blkdev

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/renameio"

	"biscuit/mem"
)

// / Device is the synchronous sector-addressed block device contract
// / every layer above the buffer cache/swap area is built on.
type Device interface {
	// / ReadSector copies exactly mem.SECTOR bytes from sector into buf.
	ReadSector(sector mem.SectorID, buf []byte)
	// / WriteSector copies exactly mem.SECTOR bytes from buf into sector.
	WriteSector(sector mem.SectorID, buf []byte)
	// / SizeInSectors reports the device's total capacity.
	SizeInSectors() mem.SectorID
	// / Channel and Unit identify the device the way §6 addresses disks:
	// / filesystem disk at (1,1), swap disk at (1,1) on a distinct controller.
	Channel() int
	Unit() int
}

// / FileDevice is a reference Device backed by a host file, standing in for
// / the real AHCI/IDE driver the teacher's fs/blk.go Disk_i abstracts. Every
// / write lands in an in-memory image; Flush atomically replaces the backing
// / file via renameio so a crash mid-write can't corrupt the image (this is
// / the "shutdown durability" property spec §8 scenario 6 tests).
type FileDevice struct {
	mu      sync.Mutex
	path    string
	channel int
	unit    int
	image   []byte
}

// / NewFileDevice opens (creating if absent) a file-backed device of the
// / given capacity in sectors at (channel, unit).
func NewFileDevice(path string, channel, unit int, sizeInSectors mem.SectorID) (*FileDevice, error) {
	d := &FileDevice{path: path, channel: channel, unit: unit}
	want := int(sizeInSectors) * mem.SECTOR
	if b, err := os.ReadFile(path); err == nil {
		d.image = b
		if len(d.image) < want {
			d.image = append(d.image, make([]byte, want-len(d.image))...)
		}
	} else if os.IsNotExist(err) {
		d.image = make([]byte, want)
	} else {
		return nil, fmt.Errorf("blkdev: open %s: %w", path, err)
	}
	return d, nil
}

// / ReadSector implements Device.
func (d *FileDevice) ReadSector(sector mem.SectorID, buf []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	off := int(sector) * mem.SECTOR
	if off+mem.SECTOR > len(d.image) {
		panic("blkdev: read past end of device")
	}
	copy(buf, d.image[off:off+mem.SECTOR])
}

// / WriteSector implements Device.
func (d *FileDevice) WriteSector(sector mem.SectorID, buf []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	off := int(sector) * mem.SECTOR
	if off+mem.SECTOR > len(d.image) {
		panic("blkdev: write past end of device")
	}
	copy(d.image[off:off+mem.SECTOR], buf)
}

// / SizeInSectors implements Device.
func (d *FileDevice) SizeInSectors() mem.SectorID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return mem.SectorID(len(d.image) / mem.SECTOR)
}

// / Channel implements Device.
func (d *FileDevice) Channel() int { return d.channel }

// / Unit implements Device.
func (d *FileDevice) Unit() int { return d.unit }

// / Flush durably persists the in-memory image to d.path. The cache and
// / swap layers above never call this (their writes, including the cache's
// / own Flush, only touch the in-memory image); kctx's Shutdown calls it so
// / the whole image becomes crash-safe in one atomic rename.
func (d *FileDevice) Flush() error {
	d.mu.Lock()
	snapshot := append([]byte(nil), d.image...)
	d.mu.Unlock()
	return renameio.WriteFile(d.path, snapshot, 0o600)
}
