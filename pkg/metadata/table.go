package metadata

import (
	"fmt"
	"time"

	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/pkg/backend"
)

// Table is the identity table of one mount: inode → attributes, name →
// inode, plus the precomputed root directory enumeration.
//
// A Table is immutable after BuildTable returns. All read methods are pure,
// so the table needs no locking regardless of how the transport dispatches
// requests.
//
// Identity assignment:
//   - The root always holds inode 1 under its canonical name "/".
//   - Accepted objects get inodes 2, 3, ... densely, in listing order.
//     Objects rejected during construction consume no inode, so the inode
//     range is always exactly [1, 1+Len()].
//
// Assignment order follows whatever order the backend listed the bucket in;
// it is not guaranteed stable across remounts. That is an accepted property
// of the design, not a defect.
type Table struct {
	// attrs maps every inode to its attribute record.
	attrs map[Ino]FileAttr

	// names maps entry names to inodes. The root is present under
	// RootName.
	names map[string]Ino

	// inoNames is the reverse index, used by read to resolve an inode
	// back to its backend key. The root is not present here.
	inoNames map[Ino]string

	// entries is the root enumeration in construction order, root
	// self-entry first. Directory listings slice this by offset to
	// support pause/resume.
	entries []DirEntry
}

// BuildTable constructs the identity table from one backend listing.
//
// Objects missing a key or a timestamp, or reporting a negative size, are
// dropped with a warning; they consume no inode and construction continues
// with the remaining objects. This is the only place partial data is
// tolerated; after construction every lookup either hits or is not-found.
//
// The root's attributes aggregate over the accepted children: size is their
// sum, mtime their maximum (both zero for an empty bucket).
//
// Returns the finished table and the number of objects skipped.
func BuildTable(objects []backend.Object) (*Table, int) {
	t := &Table{
		attrs:    make(map[Ino]FileAttr, len(objects)+1),
		names:    make(map[string]Ino, len(objects)+1),
		inoNames: make(map[Ino]string, len(objects)),
		entries:  make([]DirEntry, 0, len(objects)+1),
	}

	// entries[0] is the root self-entry; attributes are filled in below,
	// once the children are known.
	t.entries = append(t.entries, DirEntry{Ino: RootIno, Name: RootName, Kind: KindDirectory})

	skipped := 0
	next := firstChildIno
	var totalSize uint64
	var maxMtime time.Time

	for _, obj := range objects {
		if reason := validateObject(obj); reason != "" {
			logger.Warn("Skipping bucket entry %q: %s", obj.Key, reason)
			skipped++
			continue
		}

		attr := FileAttr{
			Kind:  KindRegular,
			Size:  uint64(obj.Size),
			Mtime: obj.LastModified,
		}

		ino := next
		next++

		t.attrs[ino] = attr
		t.names[obj.Key] = ino
		t.inoNames[ino] = obj.Key
		t.entries = append(t.entries, DirEntry{Ino: ino, Name: obj.Key, Kind: KindRegular})

		totalSize += attr.Size
		if attr.Mtime.After(maxMtime) {
			maxMtime = attr.Mtime
		}
	}

	t.attrs[RootIno] = FileAttr{
		Kind:  KindDirectory,
		Size:  totalSize,
		Mtime: maxMtime,
	}
	t.names[RootName] = RootIno

	return t, skipped
}

// validateObject returns a non-empty reason when the object must be skipped.
func validateObject(obj backend.Object) string {
	switch {
	case obj.Key == "":
		return "key not available"
	case obj.Size < 0:
		return "negative size"
	case obj.LastModified.IsZero():
		return "last modified not available"
	default:
		return ""
	}
}

// GetAttr returns the attribute record for ino.
func (t *Table) GetAttr(ino Ino) (FileAttr, error) {
	attr, ok := t.attrs[ino]
	if !ok {
		return FileAttr{}, notFound(fmt.Sprintf("unknown inode %d", ino))
	}
	return attr, nil
}

// Lookup resolves a name to its inode and attributes.
func (t *Table) Lookup(name string) (Ino, FileAttr, error) {
	ino, ok := t.names[name]
	if !ok {
		return 0, FileAttr{}, notFound(fmt.Sprintf("no entry named %q", name))
	}
	return ino, t.attrs[ino], nil
}

// NameOf resolves a child inode back to its backend key. The root has no
// backend key, so RootIno is not resolvable here.
func (t *Table) NameOf(ino Ino) (string, error) {
	name, ok := t.inoNames[ino]
	if !ok {
		return "", notFound(fmt.Sprintf("inode %d does not name a bucket entry", ino))
	}
	return name, nil
}

// Entries returns the root directory enumeration: the root self-entry
// followed by one entry per accepted object, in construction order.
//
// The returned slice is the table's own backing array; callers must treat it
// as read-only. Directory listings resume by slicing from their saved
// offset.
func (t *Table) Entries() []DirEntry {
	return t.entries
}

// Len returns the number of children (accepted objects, excluding the root).
func (t *Table) Len() int {
	return len(t.entries) - 1
}

// TotalSize returns the sum of all child sizes.
func (t *Table) TotalSize() uint64 {
	return t.attrs[RootIno].Size
}
