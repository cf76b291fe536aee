package swap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
func (d *memDevice) Unit() int                                { return 2 }

func TestSwapOutInRoundTrip(t *testing.T) {
	dev := newMemDevice(mem.PageSectors * 4)
	area := New(dev)

	frame := make([]byte, mem.PAGE)
	for i := range frame {
		frame[i] = byte(i)
	}

	slot := area.SwapOut(frame)

	back := make([]byte, mem.PAGE)
	area.SwapIn(slot, back)
	assert.Equal(t, frame, back)
}

func TestSwapOutReusesFreedSlot(t *testing.T) {
	dev := newMemDevice(mem.PageSectors * 1)
	area := New(dev)

	frame := make([]byte, mem.PAGE)
	slot := area.SwapOut(frame)
	area.Free(slot)

	slot2 := area.SwapOut(frame)
	assert.Equal(t, slot, slot2)
}

func TestSwapOutPanicsWhenExhausted(t *testing.T) {
	dev := newMemDevice(mem.PageSectors * 1)
	area := New(dev)
	frame := make([]byte, mem.PAGE)

	area.SwapOut(frame)
	assert.Panics(t, func() { area.SwapOut(frame) })
}

func TestNewSizesBitmapFromDevice(t *testing.T) {
	dev := newMemDevice(mem.PageSectors * 3)
	area := New(dev)
	require.Len(t, area.bitmap, 3)
}
