package fuse

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/pkg/bridge"
	"github.com/marmos91/bucketfs/pkg/metadata"
	"github.com/marmos91/bucketfs/pkg/metrics"
)

// FUSEAdapter implements the adapter.Adapter interface for the FUSE mount.
//
// The adapter owns the kernel mount lifecycle: it mounts the filesystem at
// the configured mountpoint, dispatches kernel requests to the FileSystem
// handlers, and unmounts on shutdown.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Mountpoint unmounted (kernel stops issuing requests)
//  3. Serve() drains and returns
//
// Thread safety:
// All methods are safe for concurrent use. The shutdown mechanism uses
// sync.Once to ensure idempotent behavior even if Stop() is called multiple
// times.
type FUSEAdapter struct {
	// config holds the mount configuration (mountpoint, cache TTLs, flags)
	config FUSEConfig

	// fs dispatches kernel requests against the identity table and bridge
	fs *FileSystem

	// mu guards server, which is created inside Serve()
	mu sync.Mutex

	// server is the go-fuse mount handle, nil until Serve() mounts
	server *fuse.Server

	// shutdownOnce ensures the unmount is only attempted once
	shutdownOnce sync.Once
}

// FUSEConfig holds configuration parameters for the FUSE mount.
//
// Default values (applied by New if zero):
//   - FSName: "bucketfs"
//   - EntryTimeout: 1s
//   - AttrTimeout: 1s
type FUSEConfig struct {
	// Mountpoint is the directory where the filesystem is mounted.
	// Created if it does not exist. Required.
	Mountpoint string `mapstructure:"mountpoint" validate:"required"`

	// FSName is the filesystem source name shown in /proc/mounts.
	FSName string `mapstructure:"fs_name"`

	// AllowOther permits other users (including root) to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool `mapstructure:"allow_other"`

	// Debug enables go-fuse request/response logging. Very verbose;
	// only useful when diagnosing kernel interaction issues.
	Debug bool `mapstructure:"debug"`

	// EntryTimeout is how long the kernel may cache lookup results.
	// The namespace is immutable for the lifetime of the mount, so
	// larger values only improve performance.
	EntryTimeout time.Duration `mapstructure:"entry_timeout" validate:"min=0"`

	// AttrTimeout is how long the kernel may cache attributes.
	AttrTimeout time.Duration `mapstructure:"attr_timeout" validate:"min=0"`
}

// applyDefaults fills in zero values with sensible defaults.
func (c *FUSEConfig) applyDefaults() {
	if c.FSName == "" {
		c.FSName = "bucketfs"
	}
	if c.EntryTimeout == 0 {
		c.EntryTimeout = time.Second
	}
	if c.AttrTimeout == 0 {
		c.AttrTimeout = time.Second
	}
}

// validate checks that the configuration is usable.
func (c *FUSEConfig) validate() error {
	if c.Mountpoint == "" {
		return fmt.Errorf("mountpoint is required")
	}
	if c.EntryTimeout < 0 {
		return fmt.Errorf("invalid EntryTimeout %v: must be >= 0", c.EntryTimeout)
	}
	if c.AttrTimeout < 0 {
		return fmt.Errorf("invalid AttrTimeout %v: must be >= 0", c.AttrTimeout)
	}
	return nil
}

// New creates a new FUSEAdapter serving the given identity table.
//
// The adapter is created unmounted. Call Serve() to mount and begin
// dispatching kernel requests.
//
// Parameters:
//   - config: mount configuration (mountpoint, cache TTLs, flags)
//   - table: identity table built from the mount-time listing
//   - br: synchronous bridge used for object reads
//   - bucket: bucket name passed to the backend on every read
//   - fuseMetrics: optional metrics collector (nil for no metrics)
//
// Panics if config validation fails.
func New(config FUSEConfig, table *metadata.Table, br *bridge.Bridge, bucket string, fuseMetrics metrics.FUSEMetrics) *FUSEAdapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid FUSE config: %v", err))
	}

	return &FUSEAdapter{
		config: config,
		fs:     NewFileSystem(table, br, bucket, fuseMetrics, config.EntryTimeout, config.AttrTimeout),
	}
}

// Serve mounts the filesystem and blocks until it is unmounted.
//
// The mount is read-only and noexec at the kernel level. Requests are
// dispatched single-threaded: the identity table answers metadata requests
// immediately and reads serialize on the bridge anyway, so extra dispatch
// concurrency would buy nothing.
//
// When the context is cancelled, Serve unmounts and returns nil. An
// external unmount (umount(8), fusermount -u) also causes Serve to return.
func (a *FUSEAdapter) Serve(ctx context.Context) error {
	if err := os.MkdirAll(a.config.Mountpoint, 0o755); err != nil {
		return fmt.Errorf("failed to create mountpoint %s: %w", a.config.Mountpoint, err)
	}

	server, err := fuse.NewServer(a.fs, a.config.Mountpoint, &fuse.MountOptions{
		FsName:         a.config.FSName,
		Name:           "bucketfs",
		AllowOther:     a.config.AllowOther,
		Debug:          a.config.Debug,
		SingleThreaded: true,
		Options:        []string{"ro", "noexec"},
	})
	if err != nil {
		return fmt.Errorf("failed to mount at %s: %w", a.config.Mountpoint, err)
	}

	a.mu.Lock()
	a.server = server
	a.mu.Unlock()

	logger.Info("FUSE filesystem mounted at %s (entries: %d)", a.config.Mountpoint, a.fs.table.Len())
	logger.Debug("FUSE config: fs_name=%s allow_other=%v entry_timeout=%v attr_timeout=%v",
		a.config.FSName, a.config.AllowOther, a.config.EntryTimeout, a.config.AttrTimeout)

	// Monitor context cancellation in a separate goroutine so the serve
	// loop can focus on kernel requests.
	go func() {
		<-ctx.Done()
		logger.Info("FUSE shutdown signal received: %v", ctx.Err())
		a.unmount()
	}()

	// Blocks until the filesystem is unmounted, by us or externally.
	server.Serve()

	logger.Info("FUSE filesystem at %s unmounted", a.config.Mountpoint)
	return nil
}

// unmount detaches the filesystem from the kernel, once.
func (a *FUSEAdapter) unmount() {
	a.shutdownOnce.Do(func() {
		a.mu.Lock()
		server := a.server
		a.mu.Unlock()

		if server == nil {
			return
		}

		logger.Debug("Unmounting %s", a.config.Mountpoint)
		if err := server.Unmount(); err != nil {
			// A process holding the mount open makes the unmount fail;
			// the mount stays up and the operator has to retry.
			logger.Warn("Failed to unmount %s: %v", a.config.Mountpoint, err)
		}
	})
}

// Stop initiates shutdown of the FUSE mount.
//
// Stop is safe to call multiple times and safe to call concurrently with
// Serve(). The context is accepted for interface symmetry; the unmount
// syscall itself is not cancellable.
func (a *FUSEAdapter) Stop(ctx context.Context) error {
	a.unmount()
	return nil
}

// Protocol returns "FUSE" as the adapter identifier.
func (a *FUSEAdapter) Protocol() string {
	return "FUSE"
}

// Endpoint returns the mountpoint path.
func (a *FUSEAdapter) Endpoint() string {
	return a.config.Mountpoint
}
