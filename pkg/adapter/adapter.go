package adapter

import (
	"context"
)

// Adapter represents a server component that can be managed by Server.
//
// Each adapter exposes the bucket through a specific surface (e.g., a FUSE
// mount, a metrics HTTP endpoint) and provides a unified interface for
// lifecycle management.
//
// Lifecycle:
//  1. Creation: Adapter is created with its own configuration
//  2. Startup: Serve() starts the adapter and blocks until shutdown
//  3. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Serve starts the adapter and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must initiate graceful shutdown:
	//   - Stop accepting new requests
	//   - Wait for active operations to complete (with timeout)
	//   - Clean up resources
	//   - Return context.Canceled or nil
	//
	// If Serve returns before context cancellation, Server treats it as
	// a fatal error and stops all other adapters.
	//
	// Parameters:
	//   - ctx: Controls the adapter lifecycle. Cancellation triggers shutdown.
	//
	// Returns:
	//   - nil on graceful shutdown
	//   - context.Canceled if cancelled via context
	//   - error if startup fails or shutdown is not graceful
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown of the adapter.
	//
	// This method may be called concurrently with Serve() during Server shutdown.
	// Implementations must:
	//   - Be safe to call multiple times (idempotent)
	//   - Be safe to call concurrently with Serve()
	//   - Respect the context timeout for shutdown operations
	//   - Clean up all resources (mounts, listeners, goroutines)
	//
	// Parameters:
	//   - ctx: Controls the shutdown timeout. When cancelled, force cleanup.
	//
	// Returns:
	//   - nil if shutdown completed successfully
	//   - error if shutdown exceeded timeout or encountered errors
	Stop(ctx context.Context) error

	// Protocol returns the human-readable adapter name for logging.
	//
	// Examples: "FUSE", "metrics"
	//
	// The returned value should be constant for the lifecycle of the adapter.
	Protocol() string

	// Endpoint returns a human-readable description of where the adapter
	// is serving: a mountpoint path for a filesystem, a listen address for
	// an HTTP server.
	//
	// This is used for logging. The returned value should be constant
	// after Serve() is called.
	Endpoint() string
}
