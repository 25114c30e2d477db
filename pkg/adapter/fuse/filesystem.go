// Package fuse exposes the bucket as a read-only FUSE filesystem.
//
// The filesystem is intentionally flat: the mountpoint is a single directory
// whose entries are the bucket's objects, served straight from the identity
// table built at mount time. Metadata requests never touch the network;
// reads go through the synchronous bridge to the backend.
package fuse

import (
	"errors"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/bucketfs/pkg/backend"
	"github.com/marmos91/bucketfs/pkg/bridge"
	"github.com/marmos91/bucketfs/pkg/metadata"
	"github.com/marmos91/bucketfs/pkg/metrics"
)

// Permission bits for the two kinds of node this filesystem serves. The
// mount is read-only, so nothing ever carries a write bit.
const (
	dirMode  = fuse.S_IFDIR | 0o555
	fileMode = fuse.S_IFREG | 0o444
)

// blockSize is the block unit reported through getattr and statfs.
const blockSize = 512

// FileSystem implements the FUSE request handlers for one mounted bucket.
//
// All metadata operations (lookup, getattr, readdir) are answered from the
// immutable identity table, so they are cheap and never fail transiently.
// Read is the only operation that reaches the backend, via the bridge.
//
// The embedded default raw filesystem answers every mutation request with
// ENOSYS; the kernel additionally sees the mount as read-only, so writes
// are rejected before they reach this layer.
type FileSystem struct {
	fuse.RawFileSystem

	table  *metadata.Table
	bridge *bridge.Bridge
	bucket string

	metrics metrics.FUSEMetrics

	entryTimeout time.Duration
	attrTimeout  time.Duration
}

// NewFileSystem creates the request handler set for one bucket mount.
//
// Parameters:
//   - table: identity table built from the mount-time listing
//   - br: synchronous bridge used for object reads
//   - bucket: bucket name passed through to the backend on every read
//   - fuseMetrics: optional metrics collector (nil for no metrics)
//   - entryTimeout, attrTimeout: kernel cache validity for dentries and
//     attributes
func NewFileSystem(table *metadata.Table, br *bridge.Bridge, bucket string, fuseMetrics metrics.FUSEMetrics, entryTimeout, attrTimeout time.Duration) *FileSystem {
	if fuseMetrics == nil {
		fuseMetrics = &noopFUSEMetrics{}
	}

	return &FileSystem{
		RawFileSystem: fuse.NewDefaultRawFileSystem(),
		table:         table,
		bridge:        br,
		bucket:        bucket,
		metrics:       fuseMetrics,
		entryTimeout:  entryTimeout,
		attrTimeout:   attrTimeout,
	}
}

// noopFUSEMetrics provides a local no-op implementation when the metrics
// package is not used.
type noopFUSEMetrics struct{}

func (noopFUSEMetrics) RecordRequest(operation string, duration time.Duration, status string) {}
func (noopFUSEMetrics) RecordBytesRead(n int)                                                 {}

func (fs *FileSystem) String() string {
	return "bucketfs"
}

// record reports one completed request to the metrics collector.
func (fs *FileSystem) record(operation string, start time.Time, status fuse.Status) {
	fs.metrics.RecordRequest(operation, time.Since(start), statusLabel(status))
}

// statusLabel maps a FUSE status to the metrics status label.
func statusLabel(status fuse.Status) string {
	if status.Ok() {
		return "ok"
	}
	return "error"
}

// fillAttr populates a FUSE attribute block from a table record.
//
// The mount presents everything as owned by the mounting user's view of
// root with fixed permissions: directories 0555, files 0444. Atime and
// ctime mirror mtime since the backend only reports one timestamp.
func fillAttr(ino metadata.Ino, attr metadata.FileAttr, out *fuse.Attr) {
	out.Ino = uint64(ino)
	out.Size = attr.Size
	out.Blocks = (attr.Size + blockSize - 1) / blockSize
	out.Blksize = blockSize

	if attr.Kind == metadata.KindDirectory {
		out.Mode = dirMode
		out.Nlink = 2
	} else {
		out.Mode = fileMode
		out.Nlink = 1
	}

	if !attr.Mtime.IsZero() {
		nanos := attr.Mtime.UnixNano()
		out.Mtime = uint64(nanos / 1e9)
		out.Mtimensec = uint32(nanos % 1e9)
		out.Atime = out.Mtime
		out.Atimensec = out.Mtimensec
		out.Ctime = out.Mtime
		out.Ctimensec = out.Mtimensec
	}
}

// fillEntryOut populates a lookup reply and stamps it with the configured
// cache timeouts.
func (fs *FileSystem) fillEntryOut(ino metadata.Ino, attr metadata.FileAttr, out *fuse.EntryOut) {
	out.NodeId = uint64(ino)
	fillAttr(ino, attr, &out.Attr)
	out.SetEntryTimeout(fs.entryTimeout)
	out.SetAttrTimeout(fs.attrTimeout)
}

// errnoStatus translates a domain error into the FUSE status to send back
// to the kernel.
func errnoStatus(err error) fuse.Status {
	var tableErr *metadata.TableError
	if errors.As(err, &tableErr) {
		switch tableErr.Code {
		case metadata.ErrNotFound:
			return fuse.ENOENT
		case metadata.ErrNotDirectory:
			return fuse.ENOTDIR
		default:
			return fuse.EIO
		}
	}
	if backend.IsNotFound(err) {
		return fuse.ENOENT
	}
	return fuse.EIO
}
