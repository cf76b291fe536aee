package proc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biscuit/mem"
)

func TestAddCloseFile(t *testing.T) {
	p := New(nil)
	fd := p.AddFile(nil)
	assert.GreaterOrEqual(t, fd, 3)

	_, ok := p.GetFile(fd)
	assert.True(t, ok)

	assert.True(t, p.CloseFile(fd))
	_, ok = p.GetFile(fd)
	assert.False(t, ok)
	assert.False(t, p.CloseFile(fd))
}

func TestMmapLookupByContainingPage(t *testing.T) {
	p := New(nil)
	id := p.AddMmap(0x1000, nil, mem.PAGE*2)

	m, ok := p.FindMmap(0x1000)
	require.True(t, ok)
	assert.Equal(t, id, m.ID)

	m, ok = p.FindMmap(0x1000 + mem.PAGE)
	require.True(t, ok)
	assert.Equal(t, id, m.ID)

	_, ok = p.FindMmap(0x1000 + 2*mem.PAGE)
	assert.False(t, ok)
}

func TestExitIsIdempotent(t *testing.T) {
	p := New(nil)
	assert.True(t, p.Exit(7))
	assert.False(t, p.Exit(8))
	assert.Equal(t, 7, p.ExitStatus)
	assert.True(t, p.Exited())
}
