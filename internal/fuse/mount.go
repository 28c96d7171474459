package fuse

import (
	"context"
	"fmt"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/smackfs/wfs/internal/domain"
	"github.com/smackfs/wfs/internal/logger"
	"github.com/smackfs/wfs/internal/storage"
	"github.com/smackfs/wfs/internal/usecase"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	Mountpoint string

	// Service handles the filesystem operations against the open image.
	Service usecase.FilesystemService

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// ReadOnly mounts the image read-only; all mutations fail with EROFS
	// before reaching the service.
	ReadOnly bool
}

// Mount mounts the WFS image at the configured mountpoint. The caller must
// call Unmount on the returned server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Service == nil {
		return nil, fmt.Errorf("filesystem service is required")
	}

	root := &wfsNode{svc: options.Service, readOnly: options.ReadOnly}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second

	mountOptions := fuse.MountOptions{
		FsName:     "wfs",
		Name:       "wfsfuse",
		AllowOther: options.AllowOther,
	}
	if options.ReadOnly {
		mountOptions.Options = append(mountOptions.Options, "ro")
	}

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout: &entryTimeout,
		AttrTimeout:  &attrTimeout,
		MountOptions: mountOptions,
	})
	if err != nil {
		return nil, fmt.Errorf("mounting WFS at %s: %w", options.Mountpoint, err)
	}

	logger.Info("WFS mounted at %s", options.Mountpoint)
	return server, nil
}

// wfsNode serves both directories and regular files. Nodes carry no state
// of their own; every operation resolves its path against the image, so
// the node tree never goes stale.
type wfsNode struct {
	gofuse.Inode
	svc      usecase.FilesystemService
	readOnly bool
}

var _ gofuse.InodeEmbedder = (*wfsNode)(nil)
var _ gofuse.NodeGetattrer = (*wfsNode)(nil)
var _ gofuse.NodeSetattrer = (*wfsNode)(nil)
var _ gofuse.NodeLookuper = (*wfsNode)(nil)
var _ gofuse.NodeReaddirer = (*wfsNode)(nil)
var _ gofuse.NodeOpener = (*wfsNode)(nil)
var _ gofuse.NodeReader = (*wfsNode)(nil)
var _ gofuse.NodeWriter = (*wfsNode)(nil)
var _ gofuse.NodeMkdirer = (*wfsNode)(nil)
var _ gofuse.NodeRmdirer = (*wfsNode)(nil)
var _ gofuse.NodeUnlinker = (*wfsNode)(nil)
var _ gofuse.NodeCreater = (*wfsNode)(nil)
var _ gofuse.NodeStatfser = (*wfsNode)(nil)

func (n *wfsNode) fullPath() string {
	return "/" + n.Path(n.Root())
}

func (n *wfsNode) childPath(name string) string {
	path := n.fullPath()
	if path == "/" {
		return "/" + name
	}
	return path + "/" + name
}

func fillAttr(attr domain.Attr, out *fuse.Attr) {
	out.Mode = attr.Mode
	out.Nlink = attr.Nlink
	out.Size = uint64(attr.Size)
	out.Blocks = (out.Size + storage.BlockSize - 1) / storage.BlockSize
	out.Blksize = storage.BlockSize
}

func (n *wfsNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, err := n.svc.Getattr(ctx, n.fullPath())
	if err != nil {
		return errnoFromErr(err)
	}
	fillAttr(attr, &out.Attr)
	return 0
}

func (n *wfsNode) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if size, ok := in.GetSize(); ok {
		if n.readOnly {
			return syscall.EROFS
		}
		if err := n.svc.Truncate(ctx, n.fullPath(), int64(size)); err != nil {
			return errnoFromErr(err)
		}
	}

	attr, err := n.svc.Getattr(ctx, n.fullPath())
	if err != nil {
		return errnoFromErr(err)
	}
	fillAttr(attr, &out.Attr)
	return 0
}

func (n *wfsNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	path := n.childPath(name)
	attr, err := n.svc.Getattr(ctx, path)
	if err != nil {
		return nil, errnoFromErr(err)
	}

	child := n.NewInode(ctx, &wfsNode{svc: n.svc, readOnly: n.readOnly},
		gofuse.StableAttr{Mode: attr.Mode & domain.S_IFMT})
	fillAttr(attr, &out.Attr)
	return child, 0
}

func (n *wfsNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	entries, err := n.svc.Readdir(ctx, n.fullPath())
	if err != nil {
		return nil, errnoFromErr(err)
	}

	stream := make([]fuse.DirEntry, 0, len(entries))
	for _, entry := range entries {
		stream = append(stream, fuse.DirEntry{
			Name: entry.Name,
			Mode: entry.Mode & domain.S_IFMT,
		})
	}
	return gofuse.NewListDirStream(stream), 0
}

func (n *wfsNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 && n.readOnly {
		return nil, 0, syscall.EROFS
	}
	if err := n.svc.Open(ctx, n.fullPath()); err != nil {
		return nil, 0, errnoFromErr(err)
	}
	return nil, 0, 0
}

func (n *wfsNode) Read(ctx context.Context, f gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := n.svc.Read(ctx, n.fullPath(), off, int64(len(dest)))
	if err != nil {
		return nil, errnoFromErr(err)
	}
	return fuse.ReadResultData(data), 0
}

func (n *wfsNode) Write(ctx context.Context, f gofuse.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	if n.readOnly {
		return 0, syscall.EROFS
	}
	written, err := n.svc.Write(ctx, n.fullPath(), off, data)
	if err != nil {
		return 0, errnoFromErr(err)
	}
	return uint32(written), 0
}

func (n *wfsNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	if n.readOnly {
		return nil, syscall.EROFS
	}

	path := n.childPath(name)
	if err := n.svc.Mkdir(ctx, path); err != nil {
		return nil, errnoFromErr(err)
	}

	attr, err := n.svc.Getattr(ctx, path)
	if err != nil {
		return nil, errnoFromErr(err)
	}

	child := n.NewInode(ctx, &wfsNode{svc: n.svc, readOnly: n.readOnly},
		gofuse.StableAttr{Mode: syscall.S_IFDIR})
	fillAttr(attr, &out.Attr)
	return child, 0
}

func (n *wfsNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	if n.readOnly {
		return syscall.EROFS
	}
	return errnoFromErr(n.svc.Rmdir(ctx, n.childPath(name)))
}

func (n *wfsNode) Unlink(ctx context.Context, name string) syscall.Errno {
	if n.readOnly {
		return syscall.EROFS
	}
	return errnoFromErr(n.svc.Unlink(ctx, n.childPath(name)))
}

func (n *wfsNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	return nil, nil, 0, errnoFromErr(n.svc.Create(ctx, n.childPath(name)))
}

func (n *wfsNode) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	stat, err := n.svc.Statfs(ctx)
	if err != nil {
		return errnoFromErr(err)
	}

	out.Bsize = stat.BlockSize
	out.Frsize = stat.BlockSize
	out.Blocks = uint64(stat.TotalBlocks)
	out.Bfree = uint64(stat.FreeBlocks)
	out.Bavail = uint64(stat.FreeBlocks)
	out.NameLen = domain.MaxNameLen
	return 0
}
