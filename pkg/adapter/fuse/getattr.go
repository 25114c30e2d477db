package fuse

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/bucketfs/pkg/metadata"
)

// GetAttr returns the attributes of an inode straight from the identity
// table.
func (fs *FileSystem) GetAttr(cancel <-chan struct{}, input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	start := time.Now()
	status := fs.getAttr(input, out)
	fs.record("getattr", start, status)
	return status
}

func (fs *FileSystem) getAttr(input *fuse.GetAttrIn, out *fuse.AttrOut) fuse.Status {
	ino := metadata.Ino(input.NodeId)
	attr, err := fs.table.GetAttr(ino)
	if err != nil {
		return errnoStatus(err)
	}

	fillAttr(ino, attr, &out.Attr)
	out.SetTimeout(fs.attrTimeout)
	return fuse.OK
}
