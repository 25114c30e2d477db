package config

import (
	"context"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/bucketfs/internal/logger"
	"github.com/marmos91/bucketfs/pkg/backend"
	"github.com/marmos91/bucketfs/pkg/backend/memory"
	s3backend "github.com/marmos91/bucketfs/pkg/backend/s3"
)

// CreateBackend creates a backend based on configuration.
//
// This factory function uses the Type field to determine which backend
// implementation to create, then decodes the type-specific configuration
// from the corresponding map and passes it to the backend's constructor.
//
// Supported types:
//   - "s3": Uses pkg/backend/s3 (Amazon S3 or compatible storage)
//   - "memory": Uses pkg/backend/memory (in-memory objects, for demos and tests)
//
// Parameters:
//   - ctx: Context for initialization operations
//   - cfg: Backend configuration
//   - s3Metrics: Optional metrics collector for the S3 backend (nil for no metrics)
//
// Returns:
//   - backend.Backend: Initialized backend
//   - error: Configuration or initialization error
func CreateBackend(ctx context.Context, cfg *BackendConfig, s3Metrics s3backend.S3Metrics) (backend.Backend, error) {
	switch cfg.Type {
	case "s3":
		return createS3Backend(ctx, cfg.S3, s3Metrics)
	case "memory":
		return createMemoryBackend(ctx, cfg.Memory)
	default:
		return nil, fmt.Errorf("unknown backend type: %q (supported: s3, memory)", cfg.Type)
	}
}

// createS3Backend creates an S3-based backend.
func createS3Backend(ctx context.Context, options map[string]any, s3Metrics s3backend.S3Metrics) (backend.Backend, error) {
	var opts s3backend.Options
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		// Durations in the config file arrive as strings ("10s").
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build S3 config decoder: %w", err)
	}
	if err := decoder.Decode(options); err != nil {
		return nil, fmt.Errorf("failed to decode S3 backend config: %w", err)
	}

	if opts.Region == "" {
		return nil, fmt.Errorf("S3 backend: region is required")
	}

	be, err := s3backend.New(ctx, opts, s3Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 backend: %w", err)
	}

	logger.Info("S3 backend initialized: region=%s endpoint=%s", opts.Region, opts.Endpoint)
	return be, nil
}

// createMemoryBackend creates an in-memory backend, optionally preseeded
// with objects from configuration. Useful for demo mounts without cloud
// credentials.
func createMemoryBackend(ctx context.Context, options map[string]any) (backend.Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type memoryObject struct {
		Key     string `mapstructure:"key"`
		Content string `mapstructure:"content"`
	}
	type memoryOptions struct {
		Objects []memoryObject `mapstructure:"objects"`
	}

	var opts memoryOptions
	if err := mapstructure.Decode(options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode memory backend config: %w", err)
	}

	be := memory.New()
	now := time.Now()
	for i, obj := range opts.Objects {
		if obj.Key == "" {
			return nil, fmt.Errorf("memory backend: objects[%d]: key is required", i)
		}
		be.Put(obj.Key, []byte(obj.Content), now)
	}

	logger.Info("Memory backend initialized with %d object(s)", len(opts.Objects))
	return be, nil
}
