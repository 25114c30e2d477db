package fuse

import (
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/bucketfs/pkg/backend/memory"
	"github.com/marmos91/bucketfs/pkg/metadata"
)

// capturedEntry is one entry a fake reply list accepted, with its cookie.
type capturedEntry struct {
	entry fuse.DirEntry
	off   uint64
}

// fakeDirEntryList emulates the kernel reply buffer with a fixed entry
// capacity so tests can force a listing to stop partway.
type fakeDirEntryList struct {
	capacity int
	accepted []capturedEntry
}

func (l *fakeDirEntryList) AddDirEntry(e fuse.DirEntry, off uint64) bool {
	if len(l.accepted) >= l.capacity {
		return false
	}
	l.accepted = append(l.accepted, capturedEntry{entry: e, off: off})
	return true
}

// capturedLookupEntry is one entry a fake readdirplus list accepted.
type capturedLookupEntry struct {
	entry fuse.DirEntry
	off   uint64
	out   *fuse.EntryOut
}

type fakeDirPlusEntryList struct {
	capacity int
	accepted []capturedLookupEntry
}

func (l *fakeDirPlusEntryList) AddDirLookupEntry(e fuse.DirEntry, off uint64) *fuse.EntryOut {
	if len(l.accepted) >= l.capacity {
		return nil
	}
	out := &fuse.EntryOut{}
	l.accepted = append(l.accepted, capturedLookupEntry{entry: e, off: off, out: out})
	return out
}

func readDirInput(offset uint64) *fuse.ReadIn {
	return &fuse.ReadIn{
		InHeader: fuse.InHeader{NodeId: uint64(metadata.RootIno)},
		Offset:   offset,
	}
}

func entryNames(accepted []capturedEntry) []string {
	names := make([]string, len(accepted))
	for i, e := range accepted {
		names[i] = e.entry.Name
	}
	return names
}

func TestReadDirFullListing(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	out := &fakeDirEntryList{capacity: 100}
	status := fs.ReadDir(nil, readDirInput(0), out)
	require.Equal(t, fuse.OK, status)

	assert.Equal(t, []string{".", "..", "alpha.txt", "beta.log", "gamma.bin"}, entryNames(out.accepted))

	// Cookies are position+1, so each entry resumes after itself.
	for i, accepted := range out.accepted {
		assert.Equal(t, uint64(i+1), accepted.off)
	}

	// Dot entries carry the root inode, children their table inodes.
	assert.Equal(t, uint64(metadata.RootIno), out.accepted[0].entry.Ino)
	assert.Equal(t, uint64(metadata.RootIno), out.accepted[1].entry.Ino)
	assert.Equal(t, uint64(2), out.accepted[2].entry.Ino)
	assert.Equal(t, uint64(4), out.accepted[4].entry.Ino)
	assert.Equal(t, uint32(fuse.S_IFDIR), out.accepted[0].entry.Mode)
	assert.Equal(t, uint32(fuse.S_IFREG), out.accepted[2].entry.Mode)
}

func TestReadDirResume(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	// First batch: room for two entries only.
	first := &fakeDirEntryList{capacity: 2}
	status := fs.ReadDir(nil, readDirInput(0), first)
	require.Equal(t, fuse.OK, status)
	require.Equal(t, []string{".", ".."}, entryNames(first.accepted))

	// Resume from the last cookie handed out.
	resumeAt := first.accepted[len(first.accepted)-1].off
	second := &fakeDirEntryList{capacity: 100}
	status = fs.ReadDir(nil, readDirInput(resumeAt), second)
	require.Equal(t, fuse.OK, status)

	assert.Equal(t, []string{"alpha.txt", "beta.log", "gamma.bin"}, entryNames(second.accepted))
}

func TestReadDirResumeMidChildren(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	first := &fakeDirEntryList{capacity: 4}
	status := fs.ReadDir(nil, readDirInput(0), first)
	require.Equal(t, fuse.OK, status)
	require.Equal(t, []string{".", "..", "alpha.txt", "beta.log"}, entryNames(first.accepted))

	resumeAt := first.accepted[len(first.accepted)-1].off
	second := &fakeDirEntryList{capacity: 100}
	status = fs.ReadDir(nil, readDirInput(resumeAt), second)
	require.Equal(t, fuse.OK, status)

	assert.Equal(t, []string{"gamma.bin"}, entryNames(second.accepted))
}

func TestReadDirAtEnd(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	out := &fakeDirEntryList{capacity: 100}
	status := fs.ReadDir(nil, readDirInput(5), out)
	require.Equal(t, fuse.OK, status)
	assert.Empty(t, out.accepted)
}

func TestReadDirEmptyBucket(t *testing.T) {
	fs, _ := newTestFS(t, nil)

	out := &fakeDirEntryList{capacity: 100}
	status := fs.ReadDir(nil, readDirInput(0), out)
	require.Equal(t, fuse.OK, status)

	assert.Equal(t, []string{".", ".."}, entryNames(out.accepted))
}

func TestReadDirOnFileInode(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	out := &fakeDirEntryList{capacity: 100}
	input := &fuse.ReadIn{InHeader: fuse.InHeader{NodeId: 2}}

	status := fs.ReadDir(nil, input, out)
	assert.Equal(t, fuse.ENOTDIR, status)
}

func TestReadDirUnknownInode(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	out := &fakeDirEntryList{capacity: 100}
	input := &fuse.ReadIn{InHeader: fuse.InHeader{NodeId: 123}}

	status := fs.ReadDir(nil, input, out)
	assert.Equal(t, fuse.ENOENT, status)
}

func TestReadDirPlusFillsLookupEntries(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	out := &fakeDirPlusEntryList{capacity: 100}
	status := fs.ReadDirPlus(nil, readDirInput(0), out)
	require.Equal(t, fuse.OK, status)
	require.Len(t, out.accepted, 5)

	// Dot entries must stay unfilled so the kernel takes no reference.
	assert.Zero(t, out.accepted[0].out.NodeId)
	assert.Zero(t, out.accepted[1].out.NodeId)

	// Children carry full lookup replies matching a direct Lookup.
	child := out.accepted[2]
	assert.Equal(t, "alpha.txt", child.entry.Name)
	assert.Equal(t, uint64(2), child.out.NodeId)
	assert.Equal(t, uint64(12), child.out.Attr.Size)
	assert.Equal(t, uint32(fileMode), child.out.Attr.Mode)

	var direct fuse.EntryOut
	lookupStatus := fs.Lookup(nil, &fuse.InHeader{NodeId: uint64(metadata.RootIno)}, "alpha.txt", &direct)
	require.Equal(t, fuse.OK, lookupStatus)
	assert.Equal(t, direct.Attr, child.out.Attr)
}

func TestReadDirPlusResume(t *testing.T) {
	fs, _ := newTestFS(t, defaultSeeds())

	first := &fakeDirPlusEntryList{capacity: 3}
	status := fs.ReadDirPlus(nil, readDirInput(0), first)
	require.Equal(t, fuse.OK, status)
	require.Len(t, first.accepted, 3)

	resumeAt := first.accepted[len(first.accepted)-1].off
	second := &fakeDirPlusEntryList{capacity: 100}
	status = fs.ReadDirPlus(nil, readDirInput(resumeAt), second)
	require.Equal(t, fuse.OK, status)

	require.Len(t, second.accepted, 2)
	assert.Equal(t, "beta.log", second.accepted[0].entry.Name)
	assert.Equal(t, "gamma.bin", second.accepted[1].entry.Name)
}

func TestReadDirSkipsInvalidObjects(t *testing.T) {
	be := memory.NewSeeded(defaultSeeds())
	be.PutListed(newInvalidObject())

	fs := newTestFSFromBackend(t, be, 1)

	out := &fakeDirEntryList{capacity: 100}
	status := fs.ReadDir(nil, readDirInput(0), out)
	require.Equal(t, fuse.OK, status)

	assert.Equal(t, []string{".", "..", "alpha.txt", "beta.log", "gamma.bin"}, entryNames(out.accepted))
}
