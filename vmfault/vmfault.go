/**
 * Package vmfault implements the page-fault resolver (spec §4.7): the
 * decision tree that turns a hardware fault into either a satisfied
 * access, a newly-installed stack page, or a terminated process, plus
 * mmap/munmap (spec §4.8).
 *
 * Grounded in the Pintos userprog/exception.c page_fault handler,
 * generalized per spec §9: the source's unconditional mmap write-back is
 * replaced with a check of the hardware dirty bit (pagedir.IsDirty)
 * before writing a page back to its file.
 */
package vmfault

import (
	"biscuit/defs"
	"biscuit/frame"
	"biscuit/fsys"
	"biscuit/mem"
	"biscuit/metrics"
	"biscuit/palloc"
	"biscuit/pagetable"
	"biscuit/proc"
	"biscuit/swap"
)

// / Fault is the information the trap handler hands the resolver (spec
// / §4.7): the faulting address and the three error-code bits. The
// / faulting esp (user-mode esp from the trap frame, or the saved kernel
// / esp for kernel-originated faults during a syscall) is passed to
// / Resolve as a separate argument.
type Fault struct {
	Addr      mem.PageAddr
	NotPresent bool
	Write     bool
	User      bool
}

// / Resolver wires together every collaborator the decision tree needs
// / that is shared across processes: the global frame table, swap area,
// / and physical-page allocator. The hardware page directory is NOT
// / shared — spec §6 models set_page/clear_page as taking pd explicitly
// / because each address space owns its own, so Resolve and its helpers
// / read p.Dir off the *proc.Proc passed in, never a directory held here.
type Resolver struct {
	Frames *frame.Table
	Swap   *swap.Area
	Pages  palloc.Allocator
}

// / New constructs a Resolver over the given collaborators.
func New(frames *frame.Table, area *swap.Area, pages palloc.Allocator) *Resolver {
	return &Resolver{Frames: frames, Swap: area, Pages: pages}
}

// / bytesOf views a frame's PAGE-sized buffer from the allocator, for
// / callers (swap-out, file-out) that need raw bytes rather than an
// / address.
func (r *Resolver) bytesOf(f mem.FrameAddr) []byte {
	if p, ok := r.Pages.(interface{ Bytes(mem.FrameAddr) []byte }); ok {
		return p.Bytes(f)
	}
	return nil
}

// / Resolve runs the decision tree of spec §4.7 against one fault. It
// / returns ok=false when the process must be terminated with
// / defs.PID_ERROR (the caller owns actually killing the process; this
// / package only decides).
func (r *Resolver) Resolve(p *proc.Proc, esp mem.PageAddr, flt Fault) (ok bool) {
	metrics.PageFaults.WithLabelValues(kindLabel(flt)).Inc()

	// 1. Write to a present read-only page: terminate.
	if !flt.NotPresent {
		return false
	}

	page := mem.RoundDownPage(uintptr(flt.Addr))

	r.Frames.Lock()
	state, found := p.Vm.Find(page)
	r.Frames.Unlock()

	// 3. Miss.
	if !found {
		if flt.Addr < mem.KernelBase && flt.Addr >= esp-32 {
			return r.installStackPage(p, page)
		}
		return false
	}

	if slot, isSwap := state.Swap(); isSwap {
		return r.faultInSwap(p, page, slot)
	}
	if file, off, isFile := state.File(); isFile {
		return r.faultInFile(p, page, file, off)
	}
	// Already resident: nothing to do (spec doesn't define this path as
	// an error; a present-page fault with NotPresent true but an
	// in-frame entry can't happen under correct hardware, but treat it
	// as already satisfied rather than panicking).
	return true
}

func kindLabel(flt Fault) string {
	if !flt.NotPresent {
		return "readonly_write"
	}
	if flt.Write {
		return "write_miss"
	}
	return "read_miss"
}

// / installStackPage implements spec §4.7.3's stack-growth branch: a
// / fresh zero-filled frame, mapped writable, with no underlying swap or
// / file state.
func (r *Resolver) installStackPage(p *proc.Proc, page mem.PageAddr) bool {
	f, ok := r.acquireFrame(p, palloc.User|palloc.Zero)
	if !ok {
		return false
	}
	p.Dir.SetPage(page, f, true)

	r.Frames.Lock()
	r.Frames.Insert(p, f, page)
	p.Vm.InsertFrame(page, f)
	r.Frames.Unlock()
	return true
}

// / faultInSwap implements spec §4.7.4.
func (r *Resolver) faultInSwap(p *proc.Proc, page mem.PageAddr, slot mem.SectorID) bool {
	f, ok := r.acquireFrame(p, palloc.User)
	if !ok {
		return false
	}
	r.Swap.SwapIn(slot, r.bytesOf(f))
	p.Dir.SetPage(page, f, true)

	r.Frames.Lock()
	r.Frames.Insert(p, f, page)
	p.Vm.InsertFrame(page, f)
	r.Frames.Unlock()
	return true
}

// / faultInFile implements spec §4.7.5.
func (r *Resolver) faultInFile(p *proc.Proc, page mem.PageAddr, file pagetable.FileBackingHandle, off int) bool {
	f, ok := r.acquireFrame(p, palloc.User)
	if !ok {
		return false
	}
	file.ReadPage(off, r.bytesOf(f))
	p.Dir.SetPage(page, f, true)

	r.Frames.Lock()
	r.Frames.Insert(p, f, page)
	p.Vm.InsertFrame(page, f)
	r.Frames.Unlock()
	return true
}

// / acquireFrame implements spec §4.7's "Frame acquisition with
// / eviction": ask the allocator; on failure, select a victim, write it
// / out (to its file if file-backed, to swap otherwise), clear its
// / hardware mapping, and reuse the frame.
func (r *Resolver) acquireFrame(owner frame.Owner, flags palloc.Flags) (mem.FrameAddr, bool) {
	f, buf, ok := r.Pages.GetPage(flags)
	if ok {
		return f, true
	}

	r.Frames.Lock()
	victim := r.Frames.SelectVictim()
	if victim == nil {
		r.Frames.Unlock()
		return 0, false
	}
	victimProc, _ := victim.Owner.(*proc.Proc)
	r.Frames.Unlock()

	victimFrame := victim.Frame
	victimPage := victim.Page
	victimBuf := r.bytesOf(victimFrame)

	if victimProc != nil {
		r.Frames.Lock()
		state, _ := victimProc.Vm.Find(victimPage)
		r.Frames.Unlock()

		if file, off, isFile := state.File(); isFile {
			file.WritePage(off, victimBuf)
			r.Frames.Lock()
			victimProc.Vm.InsertFile(victimPage, file, off)
			r.Frames.Unlock()
		} else {
			slot := r.Swap.SwapOut(victimBuf)
			r.Frames.Lock()
			victimProc.Vm.InsertSwap(victimPage, slot)
			r.Frames.Unlock()
		}
		victimProc.Dir.ClearPage(victimPage)
	}

	r.Frames.Lock()
	r.Frames.Remove(victimFrame)
	r.Frames.Unlock()

	if flags&palloc.Zero != 0 {
		for i := range victimBuf {
			victimBuf[i] = 0
		}
	}

	_ = buf
	return victimFrame, true
}

// / Mmap implements spec §4.8: rejects stdin/stdout, empty files,
// / misaligned bases, and overlap with an already-mapped page; otherwise
// / reopens the file and populates the supplementary page table with
// / in_file entries lazily — no frames are acquired eagerly.
func (r *Resolver) Mmap(p *proc.Proc, fd int, base mem.PageAddr, fsysFS *fsys.FS, path string) (int, defs.Err_t) {
	if fd == 0 || fd == 1 {
		return -1, defs.EINVAL
	}
	if !mem.PageAligned(uintptr(base)) {
		return -1, defs.EINVAL
	}
	f, ok := p.GetFile(fd)
	if !ok {
		return -1, defs.EINVAL
	}
	length := f.Length()
	if length == 0 {
		return -1, defs.EINVAL
	}

	pages := mem.BytesToPages(length)
	for i := 0; i < pages; i++ {
		pg := base + mem.PageAddr(i*mem.PAGE)
		r.Frames.Lock()
		_, exists := p.Vm.Find(pg)
		r.Frames.Unlock()
		if exists {
			return -1, defs.EINVAL
		}
	}

	reopened, err := fsysFS.Open(path, nil)
	if err != 0 {
		return -1, err
	}

	r.Frames.Lock()
	for i := 0; i < pages; i++ {
		pg := base + mem.PageAddr(i*mem.PAGE)
		p.Vm.InsertFile(pg, reopened, i*mem.PAGE)
	}
	r.Frames.Unlock()

	id := p.AddMmap(base, reopened, length)
	return id, 0
}

// / Munmap implements spec §4.8 and its §9 redesign: every page of the
// / mapping that currently resides in a frame AND is dirty (per the
// / hardware dirty bit, not an unconditional write) is written back at
// / its file offset; every page-table entry is dropped; the reopened
// / file handle is closed.
func (r *Resolver) Munmap(p *proc.Proc, mapid int) defs.Err_t {
	var target *proc.Mmap
	for _, m := range p.Mmaps() {
		if m.ID == mapid {
			target = m
			break
		}
	}
	if target == nil {
		return defs.EINVAL
	}

	pages := mem.BytesToPages(target.Length)
	for i := 0; i < pages; i++ {
		pg := target.Base + mem.PageAddr(i*mem.PAGE)

		r.Frames.Lock()
		state, found := p.Vm.Find(pg)
		r.Frames.Unlock()
		if !found {
			continue
		}

		if f, isFrame := state.Frame(); isFrame {
			if p.Dir.IsDirty(pg) {
				target.File.WritePage(i*mem.PAGE, r.bytesOf(f))
			}
			p.Dir.ClearPage(pg)
			r.Frames.Lock()
			r.Frames.Remove(f)
			r.Frames.Unlock()
		}

		r.Frames.Lock()
		p.Vm.Remove(pg)
		r.Frames.Unlock()
	}

	target.File.Close()
	p.RemoveMmap(mapid)
	return 0
}
