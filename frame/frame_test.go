package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"biscuit/mem"
)

func TestInsertFindRemove(t *testing.T) {
	tbl := New()
	tbl.Lock()
	tbl.Insert("owner", 0x1000, 0x2000)
	e := tbl.Find(0x1000)
	tbl.Unlock()

	assert.NotNil(t, e)
	assert.Equal(t, mem.PageAddr(0x2000), e.Page)

	tbl.Lock()
	tbl.Remove(0x1000)
	e = tbl.Find(0x1000)
	tbl.Unlock()
	assert.Nil(t, e)
}

func TestSelectVictimIsFIFO(t *testing.T) {
	tbl := New()
	tbl.Lock()
	tbl.Insert("a", 1, 0x1000)
	tbl.Insert("b", 2, 0x2000)
	tbl.Insert("c", 3, 0x3000)

	first := tbl.SelectVictim()
	second := tbl.SelectVictim()
	third := tbl.SelectVictim()
	fourth := tbl.SelectVictim()
	tbl.Unlock()

	assert.Equal(t, mem.FrameAddr(1), first.Frame)
	assert.Equal(t, mem.FrameAddr(2), second.Frame)
	assert.Equal(t, mem.FrameAddr(3), third.Frame)
	// the queue wraps: having cycled through all three, the next victim
	// is the first one again.
	assert.Equal(t, mem.FrameAddr(1), fourth.Frame)
}

func TestInsertUpsertsMovesToTail(t *testing.T) {
	tbl := New()
	tbl.Lock()
	tbl.Insert("a", 1, 0x1000)
	tbl.Insert("b", 2, 0x2000)
	tbl.Insert("a", 1, 0x9000) // re-insert: moves frame 1 to the tail

	first := tbl.SelectVictim()
	tbl.Unlock()
	assert.Equal(t, mem.FrameAddr(2), first.Frame)
}
