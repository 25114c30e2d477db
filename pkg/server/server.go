package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/pkg/adapter"
)

// Server manages the lifecycle of the bucketfs adapters.
//
// Architecture:
// Server orchestrates the components that expose the mounted bucket: the
// FUSE adapter and, when enabled, the metrics HTTP server. Each component
// implements adapter.Adapter and runs in its own goroutine.
//
// Lifecycle:
//  1. Creation: New()
//  2. Registration: AddAdapter() for each component
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: Context cancellation triggers graceful shutdown of all adapters
//
// Thread safety:
// Server is safe for concurrent use. AddAdapter() may be called concurrently
// with other methods. Serve() must only be called once per server instance.
//
// Example usage:
//
//	srv := server.New(30 * time.Second)
//	srv.AddAdapter(fuseAdapter)
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && err != context.Canceled {
//	    log.Fatal(err)
//	}
type Server struct {
	// adapters contains all registered adapters
	adapters []adapter.Adapter

	// stopTimeout bounds how long Stop() calls may take during shutdown
	stopTimeout time.Duration

	// mu protects the adapters slice and serving flag
	mu sync.RWMutex

	// serveOnce ensures Serve() is only called once
	serveOnce sync.Once

	// served indicates whether Serve() has been called
	served bool
}

// New creates a new Server.
//
// Parameters:
//   - stopTimeout: maximum time adapters get to shut down gracefully.
//     Zero uses 30 seconds.
//
// Returns a configured but not yet started Server. Call AddAdapter() to
// register components, then Serve() to start.
func New(stopTimeout time.Duration) *Server {
	if stopTimeout == 0 {
		stopTimeout = 30 * time.Second
	}

	return &Server{
		adapters:    make([]adapter.Adapter, 0, 2),
		stopTimeout: stopTimeout,
	}
}

// AddAdapter registers a new adapter with the server.
//
// AddAdapter() may be called multiple times to register different
// components. Duplicate protocols are detected and return an error.
//
// Panics if:
//   - adapter is nil (programmer error)
//   - Serve() has already been called (server is running)
//
// Thread safety:
// Safe to call concurrently from multiple goroutines before Serve() is called.
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
	}

	s.adapters = append(s.adapters, a)

	logger.Info("Registered %s adapter at %s", protocol, a.Endpoint())
	return nil
}

// Serve starts all registered adapters and blocks until the context is
// cancelled or an adapter fails.
//
// Serve() orchestrates the lifecycle of all adapters:
//  1. Validates that at least one adapter is registered
//  2. Starts all adapters concurrently in separate goroutines
//  3. Monitors for context cancellation or adapter failures
//  4. On shutdown signal: stops all adapters in reverse registration order
//  5. Waits for all adapters to complete shutdown
//
// Error handling:
//   - If context is cancelled: initiates graceful shutdown and returns context.Canceled
//   - If any adapter fails: stops all adapters and returns the error
//
// Panics if Serve() is called more than once on the same Server instance.
func (s *Server) Serve(ctx context.Context) error {
	var err error
	ran := false

	s.serveOnce.Do(func() {
		ran = true
		s.mu.Lock()
		s.served = true
		s.mu.Unlock()
		err = s.serve(ctx)
	})

	if !ran {
		panic("Serve() has already been called on this server instance")
	}

	return err
}

// serve is the internal implementation of Serve().
func (s *Server) serve(ctx context.Context) error {
	s.mu.RLock()
	if len(s.adapters) == 0 {
		s.mu.RUnlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.RUnlock()

	logger.Info("Starting bucketfs with %d adapter(s)", len(adapters))

	// Buffered to prevent goroutine leaks if multiple adapters fail
	// simultaneously.
	errChan := make(chan adapterError, len(adapters))

	var wg sync.WaitGroup

	for _, adp := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter at %s", protocol, a.Endpoint())

			if err := a.Serve(ctx); err != nil {
				// context.Canceled is expected during shutdown
				if err != context.Canceled && ctx.Err() == nil {
					logger.Error("%s adapter failed: %v", protocol, err)
					errChan <- adapterError{protocol: protocol, err: err}
				} else {
					logger.Debug("%s adapter stopped gracefully", protocol)
				}
			} else {
				logger.Info("%s adapter stopped", protocol)
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		s.stopAllAdapters(adapters)
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		s.stopAllAdapters(adapters)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("bucketfs stopped gracefully")
	return shutdownErr
}

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters initiates graceful shutdown of all adapters in reverse
// registration order: auxiliary surfaces registered after the mount come
// down first, the mount itself last.
//
// Each Stop() shares one timeout context; errors are logged and the
// remaining adapters are still stopped.
func (s *Server) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (%s)", protocol, adp.Endpoint())

		if err := adp.Stop(ctx); err != nil && err != context.Canceled {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		} else {
			logger.Debug("%s adapter stop signal sent", protocol)
		}
	}
}

// Adapters returns a snapshot of currently registered adapters.
//
// The returned slice is a copy and safe to iterate over without holding
// locks.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
