package pagetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biscuit/frame"
	"biscuit/mem"
	"biscuit/swap"
)

type fakeFile struct{ reads, writes int }

func (f *fakeFile) ReadPage(offset int, dst []byte) int { f.reads++; return len(dst) }
func (f *fakeFile) WritePage(offset int, src []byte)    { f.writes++ }

type memDevice struct {
	sectors [][mem.SECTOR]byte
}

func (d *memDevice) ReadSector(s mem.SectorID, buf []byte)  { copy(buf, d.sectors[s][:]) }
func (d *memDevice) WriteSector(s mem.SectorID, buf []byte) { copy(d.sectors[s][:], buf) }
func (d *memDevice) SizeInSectors() mem.SectorID             { return mem.SectorID(len(d.sectors)) }
func (d *memDevice) Channel() int                            { return 1 }
func (d *memDevice) Unit() int                                { return 2 }

func TestExactlyOneStateAtATime(t *testing.T) {
	tbl := New()
	tbl.InsertFrame(0x1000, 0x2000)

	_, isFrame := mustState(t, tbl, 0x1000).Frame()
	assert.True(t, isFrame)

	tbl.InsertSwap(0x1000, 7)
	s := mustState(t, tbl, 0x1000)
	_, isFrame = s.Frame()
	assert.False(t, isFrame)
	slot, isSwap := s.Swap()
	assert.True(t, isSwap)
	assert.Equal(t, mem.SectorID(7), slot)
}

func mustState(t *testing.T, tbl *Table, page mem.PageAddr) PageState {
	t.Helper()
	s, ok := tbl.Find(page)
	require.True(t, ok)
	return s
}

func TestFreeAllClearsFramesAndSwap(t *testing.T) {
	frames := frame.New()
	dev := &memDevice{sectors: make([][mem.SECTOR]byte, mem.PageSectors*2)}
	area := swap.New(dev)

	tbl := New()
	frames.Lock()
	frames.Insert("owner", 0x4000, 0x1000)
	tbl.InsertFrame(0x1000, 0x4000)
	frames.Unlock()

	slot := area.SwapOut(make([]byte, mem.PAGE))
	tbl.InsertSwap(0x2000, slot)

	frames.Lock()
	tbl.FreeAll(frames, area)
	f := frames.Find(0x4000)
	frames.Unlock()

	assert.Nil(t, f)
	_, ok := tbl.Find(0x1000)
	assert.False(t, ok)
	_, ok = tbl.Find(0x2000)
	assert.False(t, ok)
}
