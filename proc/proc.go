/**
 * Package proc holds the process-level bindings the core storage and VM
 * layers are parameterized over (spec §3): the current-directory inode, the
 * open-file table, the per-process supplementary page table, and the mmap
 * list.
 *
 * Grounded in the teacher's accnt.Accnt_t (per-process accounting struct
 * shape) and vm/as.go's Addr_space (the mmap list and exit teardown it
 * drives).
 */
package proc

import (
	"sync"

	"biscuit/fsys"
	"biscuit/mem"
	"biscuit/pagedir"
	"biscuit/pagetable"
)

// / Mmap describes one active mapping: the user-visible base page, the file
// / it is backed by, and the byte length actually mapped (spec §4.8).
type Mmap struct {
	ID     int
	Base   mem.PageAddr
	File   *fsys.File
	Length int
}

// / Proc is one process's bindings (spec §3): current-directory inode,
// / open-file table, supplementary page table, saved stack pointer, active
// / mmaps, and exit status. The methods below take mu; Vm is not guarded
// / by mu but by the frame table's lock (see pagetable.Table), and Dir
// / does its own locking.
type Proc struct {
	mu sync.Mutex

	Cwd   *fsys.File
	Files map[int]*fsys.File
	nextFD int

	Vm  *pagetable.Table
	Dir pagedir.Directory

	Esp mem.PageAddr

	mmaps  map[int]*Mmap
	nextMmapID int

	ExitStatus int
	exited     bool
}

// / New constructs a process context rooted at cwd, with a fresh
// / supplementary page table, a fresh hardware page directory of its
// / own (spec §6 models set_page as taking pd explicitly because every
// / address space owns one), and empty open-file/mmap tables.
func New(cwd *fsys.File) *Proc {
	return &Proc{
		Cwd:    cwd,
		Files:  make(map[int]*fsys.File),
		Vm:     pagetable.New(),
		Dir:    pagedir.NewSoftDirectory(),
		mmaps:  make(map[int]*Mmap),
		nextFD: 3, // 0,1,2 reserved, matching the teacher's fd.Stdin/Stdout/Stderr convention
	}
}

// / AddFile installs f in the open-file table and returns its new
// / descriptor.
func (p *Proc) AddFile(f *fsys.File) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	fd := p.nextFD
	p.nextFD++
	p.Files[fd] = f
	return fd
}

// / GetFile looks a descriptor up, returning (nil, false) if it is unopened.
func (p *Proc) GetFile(fd int) (*fsys.File, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, ok := p.Files[fd]
	return f, ok
}

// / CloseFile removes fd from the open-file table and closes the
// / underlying file, reporting whether fd was open.
func (p *Proc) CloseFile(fd int) bool {
	p.mu.Lock()
	f, ok := p.Files[fd]
	if ok {
		delete(p.Files, fd)
	}
	p.mu.Unlock()
	if !ok {
		return false
	}
	if f != nil {
		f.Close()
	}
	return true
}

// / AddMmap records a new mapping and returns its id, used later to look
// / the mapping back up on munmap (spec §4.8).
func (p *Proc) AddMmap(base mem.PageAddr, f *fsys.File, length int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextMmapID
	p.nextMmapID++
	p.mmaps[id] = &Mmap{ID: id, Base: base, File: f, Length: length}
	return id
}

// / FindMmap returns the mapping covering page, if any.
func (p *Proc) FindMmap(page mem.PageAddr) (*Mmap, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.mmaps {
		pages := mem.BytesToPages(m.Length)
		if page >= m.Base && page < m.Base+mem.PageAddr(pages*mem.PAGE) {
			return m, true
		}
	}
	return nil, false
}

// / RemoveMmap drops a mapping from the table (spec §4.8 munmap, after the
// / caller has written back and torn down its pages).
func (p *Proc) RemoveMmap(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.mmaps, id)
}

// / Mmaps returns a snapshot slice of every active mapping, for exit-time
// / teardown (spec §4.6/§4.8).
func (p *Proc) Mmaps() []*Mmap {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Mmap, 0, len(p.mmaps))
	for _, m := range p.mmaps {
		out = append(out, m)
	}
	return out
}

// / Exit records the process's exit status, idempotently. Returns false if
// / the process had already exited.
func (p *Proc) Exit(status int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.exited {
		return false
	}
	p.exited = true
	p.ExitStatus = status
	return true
}

// / Exited reports whether Exit has already run.
func (p *Proc) Exited() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited
}
