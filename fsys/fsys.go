// Package fsys implements path resolution and the file-system façade
// (spec §4.3, §6): walking a `/`-separated path to an inode and
// delegating to the inode layer for create/open/remove.
//
// Grounded in Pintos filesys/filesys.c's filesys_find_dir/
// filesys_find_and_{create,open,remove} family.
package fsys

import (
	"strings"
	"sync"

	"biscuit/defs"
	"biscuit/freemap"
	"biscuit/inode"
	"biscuit/mem"
)

// / FreeMapSector and RootDirSector are the fixed sectors spec §6 assigns
// / system inodes to.
const (
	FreeMapSector mem.SectorID = 0
	RootDirSector mem.SectorID = 1
)

// / FS is the file-system façade: path resolution plus create/open/remove,
// / all serialized by a single file.mu per spec §5 (every call into the
// / façade takes this lock).
type FS struct {
	mu  sync.Mutex
	reg *inode.Registry
	fm  freemap.Map
}

// / New wraps an inode.Registry and free-sector map as a path-resolving
// / façade.
func New(reg *inode.Registry, fm freemap.Map) *FS {
	return &FS{reg: reg, fm: fm}
}

// / DoFormat initializes the free-map and creates the root directory
// / inode with is_dir=true and parent_dir=UNUSED (spec §6's do_format,
// / triggered by the kernel's -f boot argument).
func DoFormat(reg *inode.Registry, fm *freemap.Bitmap) defs.Err_t {
	fm.Reserve(FreeMapSector)
	fm.Reserve(RootDirSector)

	// A minimal placeholder inode for the free-map sector: the spec
	// reserves this sector for free-map bookkeeping (§6) but the actual
	// bitmap is held in memory by package freemap (an external
	// collaborator here) rather than re-derived from this inode's
	// content.
	if err := reg.Create(FreeMapSector, 0, false, mem.UNUSED); err != 0 {
		return err
	}
	return reg.Create(RootDirSector, 0, true, mem.UNUSED)
}

// / parsePath splits a `/`-separated path into its non-empty components.
func parsePath(name string) []string {
	parts := strings.Split(name, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// / resolveDir walks all but the last component of path, starting from
// / root if the path is absolute (spec §4.3) or from cwd otherwise,
// / opening each as a directory and failing if a non-final component is
// / not a directory or does not exist. Returns the parent directory
// / inode (already Open'd — caller must Close it) and the final
// / component's name.
func (f *FS) resolveDir(name string, cwd *inode.Inode) (*inode.Inode, string, defs.Err_t) {
	absolute := strings.HasPrefix(name, "/")
	parts := parsePath(name)

	var dir *inode.Inode
	var err defs.Err_t
	if absolute || cwd == nil {
		dir, err = f.reg.Open(RootDirSector)
	} else {
		dir, err = f.reg.Open(cwd.Sector)
	}
	if err != 0 {
		return nil, "", err
	}

	if len(parts) == 0 {
		return dir, "", 0
	}

	for _, comp := range parts[:len(parts)-1] {
		if !dir.IsDir() {
			f.reg.Close(dir)
			return nil, "", defs.ENOTDIR
		}
		sector, ok := dirLookup(f.reg, dir, comp)
		f.reg.Close(dir)
		if !ok {
			return nil, "", defs.ENOENT
		}
		dir, err = f.reg.Open(sector)
		if err != 0 {
			return nil, "", err
		}
	}
	if !dir.IsDir() {
		f.reg.Close(dir)
		return nil, "", defs.ENOTDIR
	}
	return dir, parts[len(parts)-1], 0
}

// / Lookup resolves path to its inode, returning the inode itself plus
// / its already-open parent directory handle (spec §4.3: "The final
// / component is returned to the caller along with its parent directory
// / handle, for create/remove/open as appropriate"). Caller must Close
// / both returned handles, except when path names the starting directory
// / itself: target and parent are then the same handle, opened once, and
// / are closed once.
func (f *FS) Lookup(path string, cwd *inode.Inode) (target, parent *inode.Inode, err defs.Err_t) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent, final, err := f.resolveDir(path, cwd)
	if err != 0 {
		return nil, nil, err
	}
	if final == "" {
		return parent, parent, 0
	}
	sector, ok := dirLookup(f.reg, parent, final)
	if !ok {
		f.reg.Close(parent)
		return nil, nil, defs.ENOENT
	}
	target, err = f.reg.Open(sector)
	if err != 0 {
		f.reg.Close(parent)
		return nil, nil, err
	}
	return target, parent, 0
}

// / Create resolves path to its parent directory and creates a new
// / regular-file inode named by the final component (spec §4.3, §4.2).
func (f *FS) Create(path string, cwd *inode.Inode, initialSize int) defs.Err_t {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent, final, err := f.resolveDir(path, cwd)
	if err != 0 {
		return err
	}
	defer f.reg.Close(parent)

	if final == "" {
		return defs.EEXIST
	}
	if _, exists := dirLookup(f.reg, parent, final); exists {
		return defs.EEXIST
	}

	sector, ok := f.fm.Allocate()
	if !ok {
		return defs.ENOSPC
	}
	if err := f.reg.Create(sector, initialSize, false, parent.Sector); err != 0 {
		f.fm.Release(sector)
		return err
	}
	if !dirAdd(f.reg, parent, final, sector) {
		f.fm.Release(sector)
		return defs.EEXIST
	}
	return 0
}

// / MkDir is Create's directory-inode counterpart.
func (f *FS) MkDir(path string, cwd *inode.Inode) defs.Err_t {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent, final, err := f.resolveDir(path, cwd)
	if err != 0 {
		return err
	}
	defer f.reg.Close(parent)

	if final == "" {
		return defs.EEXIST
	}
	if _, exists := dirLookup(f.reg, parent, final); exists {
		return defs.EEXIST
	}

	sector, ok := f.fm.Allocate()
	if !ok {
		return defs.ENOSPC
	}
	if err := f.reg.Create(sector, 0, true, parent.Sector); err != 0 {
		f.fm.Release(sector)
		return err
	}
	if !dirAdd(f.reg, parent, final, sector) {
		f.fm.Release(sector)
		return defs.EEXIST
	}
	return 0
}

// / Open resolves path and returns an open File handle over it.
func (f *FS) Open(path string, cwd *inode.Inode) (*File, defs.Err_t) {
	target, parent, err := f.Lookup(path, cwd)
	if err != 0 {
		return nil, err
	}
	if parent != target {
		f.mu.Lock()
		f.reg.Close(parent)
		f.mu.Unlock()
	}
	return &File{reg: f.reg, in: target}, 0
}

// / Remove resolves path and marks the named inode removed, unlinking it
// / from its parent directory (deferred release on last close, spec
// / §4.2/§4.3).
func (f *FS) Remove(path string, cwd *inode.Inode) defs.Err_t {
	f.mu.Lock()
	defer f.mu.Unlock()

	parent, final, err := f.resolveDir(path, cwd)
	if err != 0 {
		return err
	}
	defer f.reg.Close(parent)

	if final == "" {
		return defs.EINVAL
	}
	sector, ok := dirLookup(f.reg, parent, final)
	if !ok {
		return defs.ENOENT
	}
	target, err := f.reg.Open(sector)
	if err != 0 {
		return err
	}
	target.Remove()
	f.reg.Close(target)

	if !dirRemove(f.reg, parent, final) {
		return defs.ENOENT
	}
	return 0
}

// / File is an open file handle: an inode plus an independent cursor,
// / suitable for ordinary read/write and for reopening under mmap (spec
// / §4.8: "reopen the file (independent file cursor)").
type File struct {
	mu     sync.Mutex
	reg    *inode.Registry
	in     *inode.Inode
	cursor int
}

// / Read reads into dst starting at the file's cursor, advancing it.
func (fl *File) Read(dst []byte) int {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	n := fl.reg.ReadAt(fl.in, dst, len(dst), fl.cursor)
	fl.cursor += n
	return n
}

// / Write writes src starting at the file's cursor, advancing it.
func (fl *File) Write(src []byte) (int, defs.Err_t) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	n, err := fl.reg.WriteAt(fl.in, src, len(src), fl.cursor)
	fl.cursor += n
	return n, err
}

// / ReadAt reads n bytes at an explicit offset, independent of the
// / cursor (used by mmap's page-in path).
func (fl *File) ReadAt(dst []byte, n, off int) int {
	return fl.reg.ReadAt(fl.in, dst, n, off)
}

// / WriteAt writes n bytes at an explicit offset, independent of the
// / cursor (used by mmap's page-out path).
func (fl *File) WriteAt(src []byte, n, off int) (int, defs.Err_t) {
	return fl.reg.WriteAt(fl.in, src, n, off)
}

// / ReadPage implements pagetable.FileBackingHandle.
func (fl *File) ReadPage(offset int, dst []byte) int {
	return fl.ReadAt(dst, len(dst), offset)
}

// / WritePage implements pagetable.FileBackingHandle.
func (fl *File) WritePage(offset int, src []byte) {
	fl.WriteAt(src, len(src), offset)
}

// / Length returns the underlying inode's current length.
func (fl *File) Length() int {
	return fl.in.Length()
}

// / Inode exposes the underlying inode (for mmap's base-fd bookkeeping
// / and deny-write handling).
func (fl *File) Inode() *inode.Inode {
	return fl.in
}

// / Close releases the file's inode reference.
func (fl *File) Close() {
	fl.reg.Close(fl.in)
}
