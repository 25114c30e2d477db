package fuse

import (
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/bucketfs/pkg/metadata"
)

// Open validates that an inode can be opened as a regular file.
//
// The mount is read-only, so any write access mode is rejected with EROFS
// even though the kernel normally filters these out on an "ro" mount.
// Successful opens enable the kernel page cache: object content is
// immutable for the lifetime of the mount, so cached pages never go stale.
func (fs *FileSystem) Open(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	start := time.Now()
	status := fs.open(input, out)
	fs.record("open", start, status)
	return status
}

func (fs *FileSystem) open(input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	attr, err := fs.table.GetAttr(metadata.Ino(input.NodeId))
	if err != nil {
		return errnoStatus(err)
	}
	if attr.Kind == metadata.KindDirectory {
		return fuse.EISDIR
	}
	if input.Flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0 {
		return fuse.EROFS
	}

	out.OpenFlags = fuse.FOPEN_KEEP_CACHE
	return fuse.OK
}

// OpenDir validates that an inode can be opened as a directory.
func (fs *FileSystem) OpenDir(cancel <-chan struct{}, input *fuse.OpenIn, out *fuse.OpenOut) fuse.Status {
	start := time.Now()
	status := fs.openDir(input)
	fs.record("opendir", start, status)
	return status
}

func (fs *FileSystem) openDir(input *fuse.OpenIn) fuse.Status {
	attr, err := fs.table.GetAttr(metadata.Ino(input.NodeId))
	if err != nil {
		return errnoStatus(err)
	}
	if attr.Kind != metadata.KindDirectory {
		return fuse.ENOTDIR
	}
	return fuse.OK
}
