package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/bucketfs/internal/logger"
	fuseAdapter "github.com/marmos91/bucketfs/pkg/adapter/fuse"
	"github.com/marmos91/bucketfs/pkg/bridge"
	"github.com/marmos91/bucketfs/pkg/config"
	"github.com/marmos91/bucketfs/pkg/metadata"
	"github.com/marmos91/bucketfs/pkg/metrics"
	"github.com/marmos91/bucketfs/pkg/server"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	bucket := flag.String("bucket", "", "Bucket to mount (overrides config)")
	mountpoint := flag.String("mountpoint", "", "Where to mount the bucket (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: DEBUG, INFO, WARN, ERROR (overrides config)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("bucketfs %s\n", version)
		return
	}

	// Load configuration, then let CLI flags win over file and environment.
	cfg, err := loadConfig(*configPath, *bucket, *mountpoint, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "bucketfs: %v\n", err)
		os.Exit(1)
	}

	// Configure logger before anything else logs.
	logger.SetLevel(cfg.Logging.Level)
	if err := logger.SetOutput(cfg.Logging.Output); err != nil {
		fmt.Fprintf(os.Stderr, "bucketfs: failed to set log output: %v\n", err)
		os.Exit(1)
	}

	logger.Info("bucketfs %s starting", version)
	logger.Info("Bucket: %s", cfg.Source.Bucket)
	logger.Info("Mountpoint: %s", cfg.Mount.Mountpoint)

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled on port %d", cfg.Metrics.Port)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil && err != context.Canceled {
		logger.Error("%v", err)
		os.Exit(1)
	}

	logger.Info("bucketfs stopped")
}

// loadConfig loads the configuration with CLI flags taking precedence over
// the config file and environment.
func loadConfig(configPath, bucket, mountpoint, logLevel string) (*config.Config, error) {
	return config.LoadWithOverrides(configPath, func(cfg *config.Config) {
		if bucket != "" {
			cfg.Source.Bucket = bucket
		}
		if mountpoint != "" {
			cfg.Mount.Mountpoint = mountpoint
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
	})
}

// run wires the backend, bridge, identity table, and adapters, then serves
// until the context is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	// Create the backend
	be, err := config.CreateBackend(ctx, &cfg.Backend, metrics.NewS3Metrics())
	if err != nil {
		return fmt.Errorf("failed to create backend: %w", err)
	}

	// All backend traffic funnels through the bridge's single worker.
	br := bridge.New(be)
	defer br.Close()

	// One listing at startup defines the mount's contents. A failure here
	// is fatal: there is nothing sensible to mount without it.
	logger.Info("Listing bucket %q...", cfg.Source.Bucket)
	objects, err := br.List(cfg.Source.Bucket)
	if err != nil {
		return fmt.Errorf("failed to list bucket %q: %w", cfg.Source.Bucket, err)
	}

	table, skipped := metadata.BuildTable(objects)
	logger.Info("Identity table built: %d entries (%d listing entries skipped)", table.Len(), skipped)

	srv := server.New(cfg.Server.ShutdownTimeout)

	mount := fuseAdapter.New(cfg.Mount, table, br, cfg.Source.Bucket, metrics.NewFUSEMetrics())
	if err := srv.AddAdapter(mount); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
		if err := srv.AddAdapter(metricsServer); err != nil {
			return err
		}
	}

	return srv.Serve(ctx)
}
