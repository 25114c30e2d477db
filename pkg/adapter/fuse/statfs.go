package fuse

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
)

// StatFs reports filesystem-level statistics.
//
// The filesystem is a fixed snapshot, so the block counts describe exactly
// what the bucket held at mount time and nothing is ever free. NameLen is
// announced so pathconf(path, _PC_NAME_MAX) works on the mount.
func (fs *FileSystem) StatFs(cancel <-chan struct{}, input *fuse.InHeader, out *fuse.StatfsOut) fuse.Status {
	start := time.Now()

	out.Bsize = blockSize
	out.Blocks = (fs.table.TotalSize() + blockSize - 1) / blockSize
	out.Bfree = 0
	out.Bavail = 0
	out.Files = uint64(fs.table.Len()) + 1
	out.Ffree = 0
	out.NameLen = 255

	fs.record("statfs", start, fuse.OK)
	return fuse.OK
}
