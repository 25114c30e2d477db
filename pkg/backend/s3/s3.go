package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/marmos91/bucketfs/internal/ratelimiter"
	"github.com/marmos91/bucketfs/pkg/backend"
)

// S3Backend implements backend.Backend against Amazon S3 or any S3-compatible
// store (MinIO, Localstack, Cubbit DS3, etc.).
//
// Characteristics:
//   - List walks ListObjectsV2 pages; missing fields on listed objects map to
//     zero values and are passed through (the metadata table filters them).
//   - Fetch downloads the whole object with GetObject; there is no range
//     support and no caching.
//   - A missing key surfaces as backend.NotFoundError.
//
// Thread Safety:
// The underlying SDK client is safe for concurrent use. In this filesystem
// the bridge serializes all calls anyway, so concurrency never arises.
type S3Backend struct {
	client  *s3.Client
	metrics S3Metrics

	// limiter throttles outbound API calls (one token per ListObjectsV2
	// page and per GetObject). Nil when throttling is disabled.
	limiter *ratelimiter.RateLimiter

	// requestTimeout bounds each List or Fetch. Zero means no deadline.
	requestTimeout time.Duration
}

// Options configures the S3 backend.
//
// The bucket name is not part of the options: it is a per-call argument of
// the Backend interface, supplied by the mount configuration.
type Options struct {
	// Region is the AWS region. Required unless the default credential
	// chain provides one.
	Region string `mapstructure:"region"`

	// Endpoint overrides the S3 endpoint URL. Set this for S3-compatible
	// stores (MinIO, Localstack). Empty uses the AWS default.
	Endpoint string `mapstructure:"endpoint"`

	// AccessKeyID and SecretAccessKey select static credentials. When both
	// are empty the default AWS credential chain is used.
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	// UsePathStyle forces path-style addressing. Implied when Endpoint is
	// set (most S3-compatible stores require it).
	UsePathStyle bool `mapstructure:"use_path_style"`

	// MaxRetries is the maximum number of attempts for transient failures.
	// 0 uses the default of 10.
	MaxRetries int `mapstructure:"max_retries"`

	// RequestTimeout bounds each backend operation (a whole listing or a
	// whole object download). 0 means no deadline.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// RequestsPerSecond caps the sustained rate of outbound API calls.
	// 0 disables throttling.
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the token bucket capacity for RequestsPerSecond. 0 defaults
	// to the sustained rate. Ignored when throttling is disabled.
	Burst uint `mapstructure:"burst"`
}

// New creates an S3 backend from the given options.
//
// This assembles the AWS SDK client: optional custom endpoint resolver with
// an immutable hostname, optional static credentials, and a standard retryer
// for transient errors. Bucket access is not verified here; the first List
// call at mount time reports unreachable or missing buckets.
func New(ctx context.Context, opts Options, metrics S3Metrics) (*S3Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var configOptions []func(*awsConfig.LoadOptions) error

	if opts.Region != "" {
		configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))
	}

	if opts.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		customResolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               opts.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		configOptions = append(configOptions, awsConfig.WithEndpointResolverWithOptions(customResolver))
	}

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		credProvider := credentials.NewStaticCredentialsProvider(
			opts.AccessKeyID,
			opts.SecretAccessKey,
			"", // session token (empty for static credentials)
		)
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(credProvider))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.UsePathStyle || opts.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	if metrics == nil {
		metrics = noopMetrics{}
	}

	var limiter *ratelimiter.RateLimiter
	if opts.RequestsPerSecond > 0 {
		limiter = ratelimiter.New(opts.RequestsPerSecond, opts.Burst)
	}

	return &S3Backend{
		client:         client,
		metrics:        metrics,
		limiter:        limiter,
		requestTimeout: opts.RequestTimeout,
	}, nil
}

// NewWithClient creates an S3 backend around an existing client. Used by
// tests that inject a preconfigured client.
func NewWithClient(client *s3.Client, metrics S3Metrics) *S3Backend {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &S3Backend{client: client, metrics: metrics}
}

// throttle acquires a rate limit token, blocking until one is available or
// the context is cancelled. A nil limiter means throttling is disabled.
func (b *S3Backend) throttle(ctx context.Context) error {
	if b.limiter == nil {
		return nil
	}
	return b.limiter.Wait(ctx)
}

// opContext applies the configured request timeout to ctx. The returned
// cancel func must always be called.
func (b *S3Backend) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.requestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.requestTimeout)
}

// List returns all objects in the bucket, walking every ListObjectsV2 page.
//
// Listed objects with missing fields are mapped to zero values rather than
// skipped: completeness judgments belong to the metadata table.
func (b *S3Backend) List(ctx context.Context, bucket string) (objects []backend.Object, err error) {
	start := time.Now()
	defer func() { b.metrics.ObserveOperation("list", time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := b.opContext(ctx)
	defer cancel()

	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})

	for paginator.HasMorePages() {
		if err := b.throttle(ctx); err != nil {
			return nil, err
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in bucket %q: %w", bucket, err)
		}

		for _, obj := range page.Contents {
			var o backend.Object
			if obj.Key != nil {
				o.Key = *obj.Key
			}
			if obj.Size != nil {
				o.Size = *obj.Size
			}
			if obj.LastModified != nil {
				o.LastModified = *obj.LastModified
			}
			objects = append(objects, o)
		}
	}

	return objects, nil
}

// Fetch downloads the complete object addressed by key.
//
// A missing key is reported as backend.NotFoundError; every other failure is
// wrapped transport error.
func (b *S3Backend) Fetch(ctx context.Context, bucket, key string) (data []byte, err error) {
	start := time.Now()
	defer func() { b.metrics.ObserveOperation("fetch", time.Since(start), err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := b.opContext(ctx)
	defer cancel()

	if err := b.throttle(ctx); err != nil {
		return nil, err
	}

	result, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, &backend.NotFoundError{Bucket: bucket, Key: key}
		}
		return nil, fmt.Errorf("failed to get object %q from bucket %q: %w", key, bucket, err)
	}
	defer result.Body.Close()

	data, err = io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q body: %w", key, err)
	}

	b.metrics.RecordBytes("fetch", int64(len(data)))
	return data, nil
}

var _ backend.Backend = (*S3Backend)(nil)
