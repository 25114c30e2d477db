package backend

import (
	"errors"
	"fmt"
)

// ErrObjectNotFound indicates the requested object does not exist in the
// bucket. Implementations wrap this sentinel (directly or via NotFoundError)
// so callers can test with errors.Is.
//
// Protocol Mapping:
//   - FUSE: ENOENT
var ErrObjectNotFound = errors.New("object not found")

// NotFoundError carries the bucket and key of a missing object.
//
// It unwraps to ErrObjectNotFound, so both of these work:
//
//	errors.Is(err, backend.ErrObjectNotFound)
//	backend.IsNotFound(err)
type NotFoundError struct {
	Bucket string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("object %q not found in bucket %q", e.Key, e.Bucket)
}

func (e *NotFoundError) Unwrap() error {
	return ErrObjectNotFound
}

// IsNotFound reports whether err indicates a missing object.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
