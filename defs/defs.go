// Package defs holds the error taxonomy and process-exit status codes
// shared by every layer of the storage and memory core.
package defs

import "fmt"

// / Err_t is the kernel's errno-style result type: zero means success,
// / any other value names a specific failure from the taxonomy below.
// / Mirrors the teacher's defs.Err_t, as returned by Ufs_t and Vm_t methods.
type Err_t int

// / The error taxonomy named in the spec's error-handling design.
const (
	EINVAL   Err_t = 1 /// invalid argument
	ENOENT   Err_t = 2 /// not found
	EEXIST   Err_t = 3 /// already exists
	ENOTDIR  Err_t = 4 /// not a directory
	ENOSPC   Err_t = 5 /// no space (disk or swap)
	ENOMEM   Err_t = 6 /// out of memory
	EPERM    Err_t = 7 /// permission denied (writes-denied)
	EFAULT   Err_t = 8 /// bad user pointer or faulty access
)

// / Error renders the errno-style value as text. It normalizes sign, so a
// / negated value (the teacher's -Err_t convention) renders the same as the
// / positive one this module's callers return.
func (e Err_t) Error() string {
	v := e
	if v < 0 {
		v = -v
	}
	switch v {
	case 0:
		return "success"
	case EINVAL:
		return "invalid argument"
	case ENOENT:
		return "not found"
	case EEXIST:
		return "already exists"
	case ENOTDIR:
		return "not a directory"
	case ENOSPC:
		return "no space left"
	case ENOMEM:
		return "out of memory"
	case EPERM:
		return "permission denied"
	case EFAULT:
		return "bad user access"
	default:
		return fmt.Sprintf("err_t(%d)", int(e))
	}
}

// / Ok reports whether e represents success (the zero value).
func (e Err_t) Ok() bool {
	return e == 0
}

// / PID_ERROR is the process exit status set by the page-fault resolver
// / (and other fatal paths) before invoking thread/process exit.
const PID_ERROR = -1

// / Device identifiers, kept for wire/ABI parity with the teacher's device
// / numbering scheme even though the console/socket devices themselves are
// / external collaborators out of scope for this module.
const (
	D_CONSOLE = 1
	D_RAWDISK = 5
	D_STAT    = 6
)
