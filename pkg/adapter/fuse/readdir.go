package fuse

import (
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/bucketfs/pkg/metadata"
)

// Directory listings are served from the table's precomputed enumeration.
// On the wire the root's self-entry is spelled ".", followed by a synthetic
// ".." (the root is its own parent), followed by the children in table
// order. Cookies are position+1, so a listing interrupted by a full reply
// buffer resumes exactly where it stopped.

// wireEntryCount returns the number of entries the root listing produces,
// including "." and "..".
func (fs *FileSystem) wireEntryCount() uint64 {
	// Entries() already contains the self-entry; ".." is synthesized.
	return uint64(len(fs.table.Entries())) + 1
}

// wireEntry returns the directory entry at the given wire position.
func (fs *FileSystem) wireEntry(position uint64) fuse.DirEntry {
	switch position {
	case 0:
		return fuse.DirEntry{Name: ".", Mode: fuse.S_IFDIR, Ino: uint64(metadata.RootIno)}
	case 1:
		return fuse.DirEntry{Name: "..", Mode: fuse.S_IFDIR, Ino: uint64(metadata.RootIno)}
	default:
		entry := fs.table.Entries()[position-1]
		mode := uint32(fuse.S_IFREG)
		if entry.Kind == metadata.KindDirectory {
			mode = fuse.S_IFDIR
		}
		return fuse.DirEntry{Name: entry.Name, Mode: mode, Ino: uint64(entry.Ino)}
	}
}

// checkDirectory validates that an inode names the directory being listed.
func (fs *FileSystem) checkDirectory(nodeID uint64) fuse.Status {
	attr, err := fs.table.GetAttr(metadata.Ino(nodeID))
	if err != nil {
		return errnoStatus(err)
	}
	if attr.Kind != metadata.KindDirectory {
		return fuse.ENOTDIR
	}
	return fuse.OK
}

// ReadDir lists the root directory starting from the request's offset
// cookie, stopping early when the reply buffer fills up.
func (fs *FileSystem) ReadDir(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	start := time.Now()
	status := fs.readDir(input, out)
	fs.record("readdir", start, status)
	return status
}

func (fs *FileSystem) readDir(input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	if status := fs.checkDirectory(input.NodeId); status != fuse.OK {
		return status
	}

	for position := input.Offset; position < fs.wireEntryCount(); position++ {
		wire := fs.wireEntry(position)
		wire.Off = position + 1
		if !out.AddDirEntry(wire) {
			break
		}
	}
	return fuse.OK
}

// ReadDirPlus lists the root directory like ReadDir, additionally filling
// lookup replies for the children so the kernel can prime its dentry and
// attribute caches in one round trip.
func (fs *FileSystem) ReadDirPlus(cancel <-chan struct{}, input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	start := time.Now()
	status := fs.readDirPlus(input, out)
	fs.record("readdirplus", start, status)
	return status
}

func (fs *FileSystem) readDirPlus(input *fuse.ReadIn, out *fuse.DirEntryList) fuse.Status {
	if status := fs.checkDirectory(input.NodeId); status != fuse.OK {
		return status
	}

	for position := input.Offset; position < fs.wireEntryCount(); position++ {
		wire := fs.wireEntry(position)
		wire.Off = position + 1
		entryOut := out.AddDirLookupEntry(wire)
		if entryOut == nil {
			break
		}

		// "." and ".." stay unfilled: the kernel tracks those itself
		// and must not take a lookup reference on them.
		if position < 2 {
			continue
		}

		ino := metadata.Ino(wire.Ino)
		attr, err := fs.table.GetAttr(ino)
		if err != nil {
			return errnoStatus(err)
		}
		fs.fillEntryOut(ino, attr, entryOut)
	}
	return fuse.OK
}
