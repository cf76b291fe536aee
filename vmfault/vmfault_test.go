package vmfault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biscuit/cache"
	"biscuit/defs"
	"biscuit/freemap"
	"biscuit/frame"
	"biscuit/fsys"
	"biscuit/inode"
	"biscuit/mem"
	"biscuit/palloc"
	"biscuit/proc"
	"biscuit/swap"
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

func newTestKernel(t *testing.T, nFrames int) (*Resolver, *fsys.FS, *proc.Proc, func()) {
	dev := newMemDevice(256)
	c := cache.New(dev)
	fm := freemap.New(256)
	reg := inode.NewRegistry(c, fm)
	require.Equal(t, defs.Err_t(0), fsys.DoFormat(reg, fm))
	façade := fsys.New(reg, fm)

	frames := frame.New()
	swapDev := newMemDevice(mem.PageSectors * 8)
	area := swap.New(swapDev)
	pages := palloc.NewPool(nFrames, 0x10000)
	r := New(frames, area, pages)

	p := proc.New(nil)
	return r, façade, p, func() { c.Shutdown() }
}

func TestStackGrowthInstallsZeroFrame(t *testing.T) {
	r, _, p, cleanup := newTestKernel(t, 4)
	defer cleanup()

	esp := mem.PageAddr(0xBFFFF000)
	fault := Fault{Addr: 0xBFFFEFE0, NotPresent: true, Write: true, User: true}

	ok := r.Resolve(p, esp, fault)
	assert.True(t, ok)

	page := mem.RoundDownPage(uintptr(fault.Addr))
	r.Frames.Lock()
	state, found := p.Vm.Find(page)
	r.Frames.Unlock()
	require.True(t, found)

	f, isFrame := state.Frame()
	require.True(t, isFrame)
	for _, b := range r.bytesOf(f) {
		assert.Zero(t, b)
	}
}

// TestStackGrowthZeroesEvictedVictimFrame covers the eviction path: with
// only one physical frame available, growing the stack a second time
// must reuse the first page's evicted frame and still zero it, not just
// rely on the allocator's fresh-page zeroing.
func TestStackGrowthZeroesEvictedVictimFrame(t *testing.T) {
	r, _, p, cleanup := newTestKernel(t, 1)
	defer cleanup()

	esp := mem.PageAddr(0xBFFFF000)
	first := Fault{Addr: 0xBFFFEFE0, NotPresent: true, Write: true, User: true}
	require.True(t, r.Resolve(p, esp, first))

	firstPage := mem.RoundDownPage(uintptr(first.Addr))
	r.Frames.Lock()
	state, found := p.Vm.Find(firstPage)
	r.Frames.Unlock()
	require.True(t, found)
	victimFrame, isFrame := state.Frame()
	require.True(t, isFrame)

	buf := r.bytesOf(victimFrame)
	for i := range buf {
		buf[i] = 0xFF
	}

	// The stack pointer has moved down into the first new page, so the
	// second fault is again exactly esp-32.
	esp2 := mem.PageAddr(0xBFFFE000)
	second := Fault{Addr: 0xBFFFDFE0, NotPresent: true, Write: true, User: true}
	require.True(t, r.Resolve(p, esp2, second))

	secondPage := mem.RoundDownPage(uintptr(second.Addr))
	r.Frames.Lock()
	state2, found2 := p.Vm.Find(secondPage)
	r.Frames.Unlock()
	require.True(t, found2)
	f2, isFrame2 := state2.Frame()
	require.True(t, isFrame2)
	assert.Equal(t, victimFrame, f2)

	for _, b := range r.bytesOf(f2) {
		assert.Zero(t, b)
	}
}

func TestStackAccessBelowGuardTerminates(t *testing.T) {
	r, _, p, cleanup := newTestKernel(t, 4)
	defer cleanup()

	esp := mem.PageAddr(0xBFFFF000)
	fault := Fault{Addr: esp - 33, NotPresent: true, Write: true, User: true}

	ok := r.Resolve(p, esp, fault)
	assert.False(t, ok)
}

func TestWriteToReadOnlyPageTerminates(t *testing.T) {
	r, _, p, cleanup := newTestKernel(t, 4)
	defer cleanup()

	fault := Fault{Addr: 0x1000, NotPresent: false, Write: true, User: true}
	ok := r.Resolve(p, 0, fault)
	assert.False(t, ok)
}

func TestSwapHitInstallsFrameAndClearsSwapEntry(t *testing.T) {
	r, _, p, cleanup := newTestKernel(t, 4)
	defer cleanup()

	page := mem.PageAddr(0x5000)
	frameBuf := make([]byte, mem.PAGE)
	frameBuf[0] = 0x55
	slot := r.Swap.SwapOut(frameBuf)

	r.Frames.Lock()
	p.Vm.InsertSwap(page, slot)
	r.Frames.Unlock()

	fault := Fault{Addr: page, NotPresent: true, Write: false, User: true}
	ok := r.Resolve(p, 0xFFFFFFFF, fault)
	assert.True(t, ok)

	r.Frames.Lock()
	state, found := p.Vm.Find(page)
	r.Frames.Unlock()
	require.True(t, found)
	_, isFrame := state.Frame()
	assert.True(t, isFrame)
}

func TestMmapPopulatesFileBackedEntriesLazily(t *testing.T) {
	r, façade, p, cleanup := newTestKernel(t, 4)
	defer cleanup()

	require.Equal(t, defs.Err_t(0), façade.Create("/mapped", nil, mem.PAGE))
	f, err := façade.Open("/mapped", nil)
	require.Equal(t, defs.Err_t(0), err)
	fd := p.AddFile(f)

	base := mem.PageAddr(0x20000)
	id, merr := r.Mmap(p, fd, base, façade, "/mapped")
	require.Equal(t, defs.Err_t(0), merr)
	assert.GreaterOrEqual(t, id, 0)

	r.Frames.Lock()
	state, found := p.Vm.Find(base)
	r.Frames.Unlock()
	require.True(t, found)
	_, _, isFile := state.File()
	assert.True(t, isFile)
}

func TestMunmapWritesBackOnlyDirtyPages(t *testing.T) {
	r, façade, p, cleanup := newTestKernel(t, 4)
	defer cleanup()

	require.Equal(t, defs.Err_t(0), façade.Create("/mapped2", nil, 2*mem.PAGE))
	f, err := façade.Open("/mapped2", nil)
	require.Equal(t, defs.Err_t(0), err)
	fd := p.AddFile(f)

	base := mem.PageAddr(0x30000)
	id, merr := r.Mmap(p, fd, base, façade, "/mapped2")
	require.Equal(t, defs.Err_t(0), merr)

	// Fault both pages in (read) and change the first byte of each frame,
	// then mark only the first page dirty by simulating a hardware write
	// before munmap.
	for i := 0; i < 2; i++ {
		pg := base + mem.PageAddr(i*mem.PAGE)
		fault := Fault{Addr: pg, NotPresent: true, Write: false, User: true}
		require.True(t, r.Resolve(p, 0, fault))
		r.Frames.Lock()
		state, _ := p.Vm.Find(pg)
		r.Frames.Unlock()
		fr, isFrame := state.Frame()
		require.True(t, isFrame)
		r.bytesOf(fr)[0] = 0x5A
	}
	p.Dir.MarkDirty(base)

	require.Equal(t, defs.Err_t(0), r.Munmap(p, id))

	r.Frames.Lock()
	_, found := p.Vm.Find(base)
	r.Frames.Unlock()
	assert.False(t, found)

	got := make([]byte, 1)
	f.ReadAt(got, 1, 0)
	assert.Equal(t, byte(0x5A), got[0])
	f.ReadAt(got, 1, mem.PAGE)
	assert.Equal(t, byte(0), got[0])
}
