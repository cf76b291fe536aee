package inode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biscuit/cache"
	"biscuit/defs"
	"biscuit/freemap"
	"biscuit/mem"
)

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

func newTestRegistry(t *testing.T, nsectors int) (*Registry, func()) {
	dev := newMemDevice(nsectors)
	c := cache.New(dev)
	fm := freemap.New(nsectors)
	fm.Reserve(0) // reserve the inode's own sector
	reg := NewRegistry(c, fm)
	return reg, func() { c.Shutdown() }
}

func TestCreateOpenReadWrite(t *testing.T) {
	reg, cleanup := newTestRegistry(t, 64)
	defer cleanup()

	require.Equal(t, defs.Err_t(0), reg.Create(0, 100, false, mem.UNUSED))

	in, err := reg.Open(0)
	require.Equal(t, defs.Err_t(0), err)
	assert.False(t, in.IsDir())
	assert.Equal(t, 100, in.Length())

	n, werr := reg.WriteAt(in, []byte("hello world"), 11, 0)
	require.Equal(t, defs.Err_t(0), werr)
	assert.Equal(t, 11, n)

	dst := make([]byte, 11)
	got := reg.ReadAt(in, dst, 11, 0)
	assert.Equal(t, 11, got)
	assert.Equal(t, "hello world", string(dst))

	reg.Close(in)
}

func TestReopenReturnsSameInode(t *testing.T) {
	reg, cleanup := newTestRegistry(t, 64)
	defer cleanup()

	require.Equal(t, defs.Err_t(0), reg.Create(0, 0, false, mem.UNUSED))

	a, _ := reg.Open(0)
	b, _ := reg.Open(0)
	assert.Same(t, a, b)
	reg.Close(a)
	reg.Close(b)
}

func TestWriteExtendsLength(t *testing.T) {
	reg, cleanup := newTestRegistry(t, 64)
	defer cleanup()

	require.Equal(t, defs.Err_t(0), reg.Create(0, 0, false, mem.UNUSED))
	in, _ := reg.Open(0)

	reg.WriteAt(in, []byte("abc"), 3, mem.SECTOR*2)
	assert.Equal(t, mem.SECTOR*2+3, in.Length())
	reg.Close(in)
}

func TestDirectToIndirectBoundaryCrossing(t *testing.T) {
	reg, cleanup := newTestRegistry(t, 512)
	defer cleanup()

	// D=12 direct blocks; writing at logical block 12 must cross into
	// the indirect block.
	length := (D + 1) * mem.SECTOR
	require.Equal(t, defs.Err_t(0), reg.Create(0, length, false, mem.UNUSED))
	in, _ := reg.Open(0)

	src := []byte("boundary")
	reg.WriteAt(in, src, len(src), D*mem.SECTOR)
	dst := make([]byte, len(src))
	reg.ReadAt(in, dst, len(src), D*mem.SECTOR)
	assert.Equal(t, src, dst)
	reg.Close(in)
}

func TestDenyWriteBlocksWrite(t *testing.T) {
	reg, cleanup := newTestRegistry(t, 64)
	defer cleanup()

	require.Equal(t, defs.Err_t(0), reg.Create(0, 10, false, mem.UNUSED))
	in, _ := reg.Open(0)

	tok := DenyWriteToken(in)
	_, werr := reg.WriteAt(in, []byte("x"), 1, 0)
	assert.Equal(t, defs.EPERM, werr)

	tok.Release()
	_, werr = reg.WriteAt(in, []byte("x"), 1, 0)
	assert.Equal(t, defs.Err_t(0), werr)

	reg.Close(in)
}

func TestRemoveReleasesOnLastClose(t *testing.T) {
	reg, cleanup := newTestRegistry(t, 64)
	defer cleanup()

	require.Equal(t, defs.Err_t(0), reg.Create(0, 10, false, mem.UNUSED))
	a, _ := reg.Open(0)
	b, _ := reg.Open(0)

	a.Remove()
	assert.True(t, a.Removed())

	reg.Close(a)
	// still open via b; sector must not be reused yet
	sec, ok := reg.fm.Allocate()
	require.True(t, ok)
	assert.NotEqual(t, mem.SectorID(0), sec)

	reg.Close(b)
	// the last close released the inode's sector, so it is handed out again
	sec, ok = reg.fm.Allocate()
	require.True(t, ok)
	assert.Equal(t, mem.SectorID(0), sec)
}
