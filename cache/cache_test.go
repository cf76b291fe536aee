package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biscuit/mem"
)

// memDevice is an in-memory blkdev.Device stand-in, avoiding any file I/O
// in unit tests.
type memDevice struct {
	sectors [][mem.SECTOR]byte
}

func newMemDevice(n int) *memDevice {
	return &memDevice{sectors: make([][mem.SECTOR]byte, n)}
}

func (d *memDevice) ReadSector(s mem.SectorID, buf []byte)  { copy(buf, d.sectors[s][:]) }
func (d *memDevice) WriteSector(s mem.SectorID, buf []byte) { copy(d.sectors[s][:], buf) }
func (d *memDevice) SizeInSectors() mem.SectorID             { return mem.SectorID(len(d.sectors)) }
func (d *memDevice) Channel() int                            { return 1 }
func (d *memDevice) Unit() int                                { return 1 }

func TestCacheReadWriteRoundTrip(t *testing.T) {
	dev := newMemDevice(4)
	c := New(dev)
	defer c.Shutdown()

	src := []byte("hello")
	c.Write(src, 0, 10, len(src))

	dst := make([]byte, len(src))
	c.Read(dst, 0, 10, len(src))
	assert.Equal(t, src, dst)
}

func TestCacheMissReadsThrough(t *testing.T) {
	dev := newMemDevice(2)
	dev.sectors[1][0] = 0x42
	c := New(dev)
	defer c.Shutdown()

	dst := make([]byte, 1)
	c.Read(dst, 1, 0, 1)
	assert.Equal(t, byte(0x42), dst[0])
}

func TestCacheEvictionWritesBack(t *testing.T) {
	dev := newMemDevice(MaxCache + 1)
	c := New(dev)
	defer c.Shutdown()

	for s := 0; s < MaxCache+1; s++ {
		c.Write([]byte{byte(s + 1)}, mem.SectorID(s), 0, 1)
	}

	// Sector 0 was evicted to admit sector MaxCache; its write must have
	// been flushed through to the device rather than lost.
	require.Equal(t, byte(1), dev.sectors[0][0])
}

func TestCacheFlushPersistsWithoutEviction(t *testing.T) {
	dev := newMemDevice(2)
	c := New(dev)
	defer c.Shutdown()

	c.Write([]byte{0x7}, 0, 0, 1)
	assert.Equal(t, byte(0), dev.sectors[0][0])

	c.Flush()
	assert.Equal(t, byte(0x7), dev.sectors[0][0])
}

func TestFreeCacheDropsWithoutWriteback(t *testing.T) {
	dev := newMemDevice(2)
	c := New(dev)
	defer c.Shutdown()

	c.Write([]byte{0x9}, 0, 0, 1)
	c.FreeCache(0)
	c.Flush()
	assert.Equal(t, byte(0), dev.sectors[0][0])
}
