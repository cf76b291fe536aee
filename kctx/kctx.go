/**
 * Package kctx is the kernel-context singleton (spec §9's redesign note:
 * "an explicit kernel context struct instead of ambient globals"). Boot
 * wires the buffer cache, swap area, frame table, physical-page
 * allocator, inode registry, and file-system façade together from a
 * cfg.Config; every other package only ever sees the pieces it needs,
 * passed down from here.
 *
 * Grounded in the teacher's kernel package (kernel/kernel.go), which
 * plays the analogous role of the single place that brings every
 * subsystem up in boot order.
 */
package kctx

import (
	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"biscuit/blkdev"
	"biscuit/cache"
	"biscuit/cfg"
	"biscuit/freemap"
	"biscuit/frame"
	"biscuit/fsys"
	"biscuit/inode"
	"biscuit/mem"
	"biscuit/palloc"
	"biscuit/swap"
	"biscuit/vmfault"
)

// / Kernel is the fully wired core: every subsystem constructed in the
// / teacher's boot order (device -> cache -> registry/free-map -> VM) and
// / held together by this struct instead of package-level globals.
type Kernel struct {
	// / BootID uniquely identifies this boot session, for correlating log
	// / lines and metrics across a process lifetime (useful once multiple
	// / boots' logs are aggregated externally).
	BootID uuid.UUID

	Cfg cfg.Config

	FsDevice   blkdev.Device
	SwapDevice blkdev.Device

	Cache   *cache.Cache
	FreeMap *freemap.Bitmap
	Inodes  *inode.Registry
	FS      *fsys.FS

	Frames   *frame.Table
	SwapArea *swap.Area
	Pages    palloc.Allocator
	Resolver *vmfault.Resolver
}

// / Boot brings a Kernel up per the given configuration: opens (or
// / creates) both device images, constructs the buffer cache, wires the
// / free-map and inode registry over it, and builds the virtual-memory
// / core (frame table, swap area, physical-frame pool, resolver).
func Boot(c cfg.Config) (*Kernel, error) {
	fsDev, err := blkdev.NewFileDevice(c.FsImage, 1, 1, mem.SectorID(c.FsSectors))
	if err != nil {
		return nil, xerrors.Errorf("kctx: opening fs image: %w", err)
	}
	swapDev, err := blkdev.NewFileDevice(c.SwapImage, 1, 2, mem.SectorID(c.SwapSectors))
	if err != nil {
		return nil, xerrors.Errorf("kctx: opening swap image: %w", err)
	}

	bufCache := cache.New(fsDev)
	fm := freemap.New(c.FsSectors)
	registry := inode.NewRegistry(bufCache, fm)
	façade := fsys.New(registry, fm)

	frames := frame.New()
	swapArea := swap.New(swapDev)
	pages := palloc.NewPool(c.Frames, 0)
	resolver := vmfault.New(frames, swapArea, pages)

	k := &Kernel{
		BootID:     uuid.New(),
		Cfg:        c,
		FsDevice:   fsDev,
		SwapDevice: swapDev,
		Cache:      bufCache,
		FreeMap:    fm,
		Inodes:     registry,
		FS:         façade,
		Frames:     frames,
		SwapArea:   swapArea,
		Pages:      pages,
		Resolver:   resolver,
	}

	if c.Format {
		if ferr := k.Format(); ferr != nil {
			return nil, xerrors.Errorf("kctx: format failed: %w", ferr)
		}
	}
	return k, nil
}

// / Format initializes the free-map reservations and root directory
// / inode, mirroring the teacher's -f boot flag / do_format() (spec §6).
func (k *Kernel) Format() error {
	if e := fsys.DoFormat(k.Inodes, k.FreeMap); e != 0 {
		return e
	}
	return nil
}

// / Shutdown flushes the buffer cache and durably persists both device
// / images via their atomic renameio-backed Flush, in that order (spec §8
// / scenario 6: "shutdown durability").
func (k *Kernel) Shutdown() error {
	k.Cache.Shutdown()

	if fd, ok := k.FsDevice.(*blkdev.FileDevice); ok {
		if err := fd.Flush(); err != nil {
			return xerrors.Errorf("kctx: flushing fs image: %w", err)
		}
	}
	if sd, ok := k.SwapDevice.(*blkdev.FileDevice); ok {
		if err := sd.Flush(); err != nil {
			return xerrors.Errorf("kctx: flushing swap image: %w", err)
		}
	}
	return nil
}
