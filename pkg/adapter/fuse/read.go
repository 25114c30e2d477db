package fuse

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/pkg/backend"
	"github.com/marmos91/bucketfs/pkg/metadata"
)

// Read serves a byte range of an object.
//
// This is the only handler that reaches the backend: the inode is resolved
// back to its bucket key, the whole object is fetched through the bridge,
// and the requested window is copied out. Requests at or past end of file
// return zero bytes, requests straddling it return the short tail.
//
// An object that vanished from the bucket after mount surfaces here as
// ENOENT; any other backend failure is reported as EIO.
func (fs *FileSystem) Read(cancel <-chan struct{}, input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	start := time.Now()
	result, status := fs.read(input, buf)
	fs.record("read", start, status)
	return result, status
}

func (fs *FileSystem) read(input *fuse.ReadIn, buf []byte) (fuse.ReadResult, fuse.Status) {
	ino := metadata.Ino(input.NodeId)

	attr, err := fs.table.GetAttr(ino)
	if err != nil {
		return nil, errnoStatus(err)
	}
	if attr.Kind == metadata.KindDirectory {
		return nil, fuse.EISDIR
	}

	key, err := fs.table.NameOf(ino)
	if err != nil {
		return nil, errnoStatus(err)
	}

	data, err := fs.bridge.Fetch(fs.bucket, key)
	if err != nil {
		if backend.IsNotFound(err) {
			logger.Warn("Object %q disappeared from bucket %q after mount", key, fs.bucket)
			return nil, fuse.ENOENT
		}
		logger.Error("Failed to fetch %q from bucket %q: %v", key, fs.bucket, err)
		return nil, fuse.EIO
	}

	if input.Offset >= uint64(len(data)) {
		return fuse.ReadResultData(nil), fuse.OK
	}

	n := copy(buf, data[input.Offset:])
	fs.metrics.RecordBytesRead(n)
	return fuse.ReadResultData(buf[:n]), fuse.OK
}
