package backend

import (
	"context"
	"time"
)

// Object describes one entry listed from a bucket.
//
// The backend is a dumb mapper: fields the remote store did not supply are
// left at their zero values ("" for Key, 0 for Size, the zero time for
// LastModified). Deciding whether an object is complete enough to be served
// is the metadata table's job, so all listed objects pass through unfiltered.
type Object struct {
	// Key is the object's name within the bucket.
	Key string

	// Size is the object's length in bytes as reported by the listing.
	Size int64

	// LastModified is the object's modification timestamp.
	LastModified time.Time
}

// Backend provides read access to a remote object store.
//
// Implementations are asynchronous network clients (S3 and compatibles); the
// FUSE layer never calls them directly but goes through the bridge, which
// serializes all backend traffic onto a single worker.
//
// Error Handling:
// Both operations wrap transport errors with context via fmt.Errorf("...: %w").
// Fetch reports a missing key as NotFoundError so callers can distinguish
// "object gone" from "request failed" (see IsNotFound).
type Backend interface {
	// List returns the current contents of the bucket. The filesystem calls
	// this exactly once, at mount time; later bucket changes are never
	// observed.
	List(ctx context.Context, bucket string) ([]Object, error)

	// Fetch returns the complete bytes of the object addressed by key.
	// There is no range support and no caching: every call downloads the
	// whole object.
	Fetch(ctx context.Context, bucket, key string) ([]byte, error)
}
