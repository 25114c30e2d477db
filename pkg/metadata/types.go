// Package metadata holds the immutable identity table that maps bucket
// objects onto FUSE inode numbers and POSIX-style attributes.
//
// The table is built exactly once per mount, from the single backend listing
// performed at construction time, and never changes afterwards. Bucket-side
// changes made after the mount is established are not visible for the
// lifetime of the mount.
package metadata

import "time"

// Ino is a FUSE inode number.
type Ino = uint64

const (
	// RootIno is the inode number of the filesystem root. The FUSE
	// protocol requires the root to use node ID 1.
	RootIno Ino = 1

	// RootName is the root's canonical name in the name index.
	RootName = "/"

	// firstChildIno is where dense child assignment starts.
	firstChildIno Ino = 2
)

// FileKind distinguishes the two node kinds this flat filesystem has.
type FileKind int

const (
	// KindDirectory is the root directory (the only directory).
	KindDirectory FileKind = iota

	// KindRegular is a bucket object exposed as a regular file.
	KindRegular
)

func (k FileKind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindRegular:
		return "regular"
	default:
		return "unknown"
	}
}

// FileAttr is the per-inode attribute record.
//
// Permission bits are not stored here: the transport layer applies the fixed
// read-only policy (0444 for files, 0555 for the root) when it renders
// attributes on the wire.
type FileAttr struct {
	// Kind is directory for the root, regular for every child.
	Kind FileKind

	// Size in bytes. For the root this is the sum of all child sizes.
	Size uint64

	// Mtime is the modification time. For the root this is the maximum
	// child mtime (zero for an empty bucket).
	Mtime time.Time
}

// DirEntry is one element of the root directory enumeration.
type DirEntry struct {
	Ino  Ino
	Name string
	Kind FileKind
}
