package memory

import (
	"context"
	"sync"
	"time"

	"github.com/marmos91/bucketfs/pkg/backend"
)

// MemoryBackend implements backend.Backend using in-memory storage.
//
// It exists for tests and demo mounts: objects are seeded up front (or added
// with Put), and failures can be injected per operation to exercise the
// error paths of the bridge and the FUSE handlers.
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Fetched data is copied so
// callers cannot race with later Put calls.
type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string][]byte
	listing []backend.Object

	// FailList and FailFetch, when non-nil, are returned verbatim by the
	// corresponding operation. Set them to inject backend failures.
	FailList  error
	FailFetch error

	// ListCalls and FetchCalls count invocations, for tests asserting the
	// one-list-per-mount and one-fetch-per-read contracts.
	ListCalls  int
	FetchCalls int
}

// SeedObject describes one object to preload into a MemoryBackend.
type SeedObject struct {
	Key          string
	Data         []byte
	LastModified time.Time
}

// New creates an empty in-memory backend.
func New() *MemoryBackend {
	return &MemoryBackend{
		objects: make(map[string][]byte),
	}
}

// NewSeeded creates an in-memory backend preloaded with the given objects.
// Listing order follows seed order.
func NewSeeded(seeds []SeedObject) *MemoryBackend {
	b := New()
	for _, s := range seeds {
		b.Put(s.Key, s.Data, s.LastModified)
	}
	return b
}

// Put adds or replaces an object. The data slice is copied.
func (b *MemoryBackend) Put(key string, data []byte, lastModified time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)

	if _, exists := b.objects[key]; !exists {
		b.listing = append(b.listing, backend.Object{
			Key:          key,
			Size:         int64(len(data)),
			LastModified: lastModified,
		})
	} else {
		for i := range b.listing {
			if b.listing[i].Key == key {
				b.listing[i].Size = int64(len(data))
				b.listing[i].LastModified = lastModified
			}
		}
	}
	b.objects[key] = dataCopy
}

// PutListed adds a listing entry without stored data. Tests use this to
// produce entries with missing fields or dangling keys.
func (b *MemoryBackend) PutListed(obj backend.Object) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listing = append(b.listing, obj)
}

// List returns the seeded listing in insertion order.
func (b *MemoryBackend) List(ctx context.Context, bucket string) ([]backend.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.ListCalls++
	failErr := b.FailList
	b.mu.Unlock()

	if failErr != nil {
		return nil, failErr
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	listing := make([]backend.Object, len(b.listing))
	copy(listing, b.listing)
	return listing, nil
}

// Fetch returns a copy of the stored object bytes.
func (b *MemoryBackend) Fetch(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.FetchCalls++
	failErr := b.FailFetch
	b.mu.Unlock()

	if failErr != nil {
		return nil, failErr
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, &backend.NotFoundError{Bucket: bucket, Key: key}
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	return dataCopy, nil
}

var _ backend.Backend = (*MemoryBackend)(nil)
