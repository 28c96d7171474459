package fuse

import (
	"errors"
	"syscall"

	"github.com/smackfs/wfs/internal/domain"
)

// errnoFromErr maps the storage error taxonomy onto the errno codes the
// kernel expects. Consistency and transfer failures surface as EIO; local
// recovery cannot validate or repair the on-disk structures.
func errnoFromErr(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, domain.ErrNotDirectory):
		return syscall.ENOTDIR
	case errors.Is(err, domain.ErrIsDirectory):
		return syscall.EISDIR
	case errors.Is(err, domain.ErrNameTooLong):
		return syscall.ENAMETOOLONG
	case errors.Is(err, domain.ErrExists):
		return syscall.EEXIST
	case errors.Is(err, domain.ErrNotEmpty):
		return syscall.ENOTEMPTY
	case errors.Is(err, domain.ErrNoSpace):
		return syscall.ENOSPC
	case errors.Is(err, domain.ErrTooLarge):
		return syscall.EFBIG
	case errors.Is(err, domain.ErrInvalidOffset):
		return syscall.EINVAL
	case errors.Is(err, domain.ErrUnsupported):
		return syscall.ENOSYS
	default:
		return syscall.EIO
	}
}
