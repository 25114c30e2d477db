package fuse

import (
	"syscall"
	"testing"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/bucketfs/pkg/backend"
	"github.com/marmos91/bucketfs/pkg/backend/memory"
	"github.com/marmos91/bucketfs/pkg/bridge"
	"github.com/marmos91/bucketfs/pkg/metadata"
)

const testBucket = "test-bucket"

var (
	testTime1 = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	testTime2 = time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	testTime3 = time.Date(2024, 3, 3, 10, 0, 0, 0, time.UTC)
)

// defaultSeeds is the standard three-object bucket used across the handler
// tests: inodes 2, 3, 4 in this order.
func defaultSeeds() []memory.SeedObject {
	return []memory.SeedObject{
		{Key: "alpha.txt", Data: []byte("hello world!"), LastModified: testTime1},
		{Key: "beta.log", Data: []byte("log line one\nlog line two\n"), LastModified: testTime3},
		{Key: "gamma.bin", Data: []byte{0x00, 0x01, 0x02, 0x03}, LastModified: testTime2},
	}
}

// newTestFS builds a FileSystem over an in-memory backend, mirroring the
// mount sequence: list once through the bridge, build the table, wire the
// handlers.
func newTestFS(t *testing.T, seeds []memory.SeedObject) (*FileSystem, *memory.MemoryBackend) {
	t.Helper()

	be := memory.NewSeeded(seeds)
	br := bridge.New(be)
	t.Cleanup(br.Close)

	objects, err := br.List(testBucket)
	require.NoError(t, err)

	table, skipped := metadata.BuildTable(objects)
	require.Zero(t, skipped)

	return NewFileSystem(table, br, testBucket, nil, time.Second, time.Second), be
}

// newTestFSFromBackend mirrors newTestFS for a pre-built backend, asserting
// how many listing entries the table rejects.
func newTestFSFromBackend(t *testing.T, be *memory.MemoryBackend, wantSkipped int) *FileSystem {
	t.Helper()

	br := bridge.New(be)
	t.Cleanup(br.Close)

	objects, err := br.List(testBucket)
	require.NoError(t, err)

	table, skipped := metadata.BuildTable(objects)
	require.Equal(t, wantSkipped, skipped)

	return NewFileSystem(table, br, testBucket, nil, time.Second, time.Second)
}

// newInvalidObject returns a listing entry the table must reject.
func newInvalidObject() backend.Object {
	return backend.Object{Key: "", Size: 10, LastModified: testTime1}
}

func TestLookupExistingObject(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	var out fuse.EntryOut
	header := &fuse.InHeader{NodeId: uint64(metadata.RootIno)}

	status := fs.Lookup(nil, header, "beta.log", &out)
	require.Equal(t, fuse.OK, status)

	assert.Equal(t, uint64(3), out.NodeId)
	assert.Equal(t, out.NodeId, out.Attr.Ino)
	assert.Equal(t, uint64(26), out.Attr.Size)
	assert.Equal(t, uint32(fileMode), out.Attr.Mode)
	assert.Equal(t, uint64(testTime3.Unix()), out.Attr.Mtime)
}

func TestLookupMissingName(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	var out fuse.EntryOut
	header := &fuse.InHeader{NodeId: uint64(metadata.RootIno)}

	status := fs.Lookup(nil, header, "no-such-object", &out)
	assert.Equal(t, fuse.ENOENT, status)
}

func TestLookupUnderFileInode(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	var out fuse.EntryOut
	header := &fuse.InHeader{NodeId: 2}

	status := fs.Lookup(nil, header, "anything", &out)
	assert.Equal(t, fuse.ENOTDIR, status)
}

func TestLookupUnderUnknownInode(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	var out fuse.EntryOut
	header := &fuse.InHeader{NodeId: 99}

	status := fs.Lookup(nil, header, "anything", &out)
	assert.Equal(t, fuse.ENOENT, status)
}

func TestGetAttrFile(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	var out fuse.AttrOut
	input := &fuse.GetAttrIn{InHeader: fuse.InHeader{NodeId: 2}}

	status := fs.GetAttr(nil, input, &out)
	require.Equal(t, fuse.OK, status)

	assert.Equal(t, uint64(2), out.Attr.Ino)
	assert.Equal(t, uint64(12), out.Attr.Size)
	assert.Equal(t, uint32(fileMode), out.Attr.Mode)
	assert.Equal(t, uint32(1), out.Attr.Nlink)
	assert.Equal(t, uint64(1), out.Attr.Blocks)
}

func TestGetAttrRootAggregates(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	var out fuse.AttrOut
	input := &fuse.GetAttrIn{InHeader: fuse.InHeader{NodeId: uint64(metadata.RootIno)}}

	status := fs.GetAttr(nil, input, &out)
	require.Equal(t, fuse.OK, status)

	assert.Equal(t, uint64(metadata.RootIno), out.Attr.Ino)
	assert.Equal(t, uint32(dirMode), out.Attr.Mode)
	// Size is the sum of the children, mtime the newest child.
	assert.Equal(t, uint64(12+26+4), out.Attr.Size)
	assert.Equal(t, uint64(testTime3.Unix()), out.Attr.Mtime)
}

func TestGetAttrUnknownInode(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	var out fuse.AttrOut
	input := &fuse.GetAttrIn{InHeader: fuse.InHeader{NodeId: 42}}

	status := fs.GetAttr(nil, input, &out)
	assert.Equal(t, fuse.ENOENT, status)
}

func TestOpenReadOnly(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	var out fuse.OpenOut
	input := &fuse.OpenIn{InHeader: fuse.InHeader{NodeId: 2}}

	status := fs.Open(nil, input, &out)
	require.Equal(t, fuse.OK, status)
	assert.Equal(t, uint32(fuse.FOPEN_KEEP_CACHE), out.OpenFlags)
}

func TestOpenForWriteRejected(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	for _, flags := range []uint32{syscall.O_WRONLY, syscall.O_RDWR, syscall.O_RDWR | syscall.O_TRUNC} {
		var out fuse.OpenOut
		input := &fuse.OpenIn{InHeader: fuse.InHeader{NodeId: 2}, Flags: flags}

		status := fs.Open(nil, input, &out)
		assert.Equal(t, fuse.EROFS, status, "flags %#o", flags)
	}
}

func TestOpenDirectoryInode(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	var out fuse.OpenOut
	input := &fuse.OpenIn{InHeader: fuse.InHeader{NodeId: uint64(metadata.RootIno)}}

	status := fs.Open(nil, input, &out)
	assert.Equal(t, fuse.EISDIR, status)
}

func TestOpenDirRoot(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	var out fuse.OpenOut
	input := &fuse.OpenIn{InHeader: fuse.InHeader{NodeId: uint64(metadata.RootIno)}}

	status := fs.OpenDir(nil, input, &out)
	assert.Equal(t, fuse.OK, status)
}

func TestOpenDirOnFile(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	var out fuse.OpenOut
	input := &fuse.OpenIn{InHeader: fuse.InHeader{NodeId: 3}}

	status := fs.OpenDir(nil, input, &out)
	assert.Equal(t, fuse.ENOTDIR, status)
}

func TestStatFs(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	var out fuse.StatfsOut
	header := &fuse.InHeader{NodeId: uint64(metadata.RootIno)}

	status := fs.StatFs(nil, header, &out)
	require.Equal(t, fuse.OK, status)

	assert.Equal(t, uint32(255), out.NameLen)
	assert.Equal(t, uint32(blockSize), out.Bsize)
	assert.Equal(t, uint64(1), out.Blocks) // 42 bytes rounds up to one block
	assert.Equal(t, uint64(4), out.Files)  // three files plus the root
	assert.Zero(t, out.Bfree)
	assert.Zero(t, out.Bavail)
}
