package fuse

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/bucketfs/pkg/metadata"
)

// Lookup resolves a name under a parent directory.
//
// The namespace is flat, so the only valid parent is the root. Looking up
// under a file inode returns ENOTDIR; looking up under an inode the table
// has never issued returns ENOENT.
func (fs *FileSystem) Lookup(cancel <-chan struct{}, header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	start := time.Now()
	status := fs.lookup(header, name, out)
	fs.record("lookup", start, status)
	return status
}

func (fs *FileSystem) lookup(header *fuse.InHeader, name string, out *fuse.EntryOut) fuse.Status {
	if header.NodeId != uint64(metadata.RootIno) {
		parent, err := fs.table.GetAttr(metadata.Ino(header.NodeId))
		if err != nil {
			return fuse.ENOENT
		}
		if parent.Kind != metadata.KindDirectory {
			return fuse.ENOTDIR
		}
		return fuse.ENOENT
	}

	ino, attr, err := fs.table.Lookup(name)
	if err != nil {
		return errnoStatus(err)
	}

	fs.fillEntryOut(ino, attr, out)
	return fuse.OK
}
