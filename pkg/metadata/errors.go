package metadata

// TableError represents a domain error from identity table lookups.
//
// These are request-level errors (unknown inode, unknown name) as opposed to
// infrastructure errors. The FUSE layer translates the Code to the
// transport's native error signaling.
type TableError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string
}

// Error implements the error interface.
func (e *TableError) Error() string {
	return e.Message
}

// ErrorCode represents the category of a table error.
//
// These are generic categories; the FUSE layer maps them to errno values.
type ErrorCode int

const (
	// ErrNotFound indicates the inode or name is not in the table.
	// FUSE mapping: ENOENT
	ErrNotFound ErrorCode = iota

	// ErrNotDirectory indicates a directory operation targeted a regular
	// file.
	// FUSE mapping: ENOTDIR
	ErrNotDirectory

	// ErrIOError indicates a backend failure while serving a request.
	// FUSE mapping: EIO
	ErrIOError
)

// notFound builds the standard not-found error.
func notFound(message string) *TableError {
	return &TableError{Code: ErrNotFound, Message: message}
}
