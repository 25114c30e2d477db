//go:build integration
// +build integration

package s3

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/marmos91/bucketfs/pkg/backend"
	backendtesting "github.com/marmos91/bucketfs/pkg/backend/testing"
)

// TestS3Backend_Integration runs the backend conformance suite against a real
// S3-compatible service (Localstack).
//
// Prerequisites:
//   - Localstack running on localhost:4566
//   - Run with: go test -tags=integration ./pkg/backend/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3Backend_Integration(t *testing.T) {
	ctx := context.Background()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	b, err := New(ctx, Options{
		Region:          "us-east-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}, nil)
	if err != nil {
		t.Fatalf("Failed to create S3 backend: %v", err)
	}

	bucketCounter := 0

	suite := &backendtesting.BackendTestSuite{
		NewBackend: func(t *testing.T, seeds []backendtesting.SeededObject) (backend.Backend, string) {
			bucketCounter++
			bucket := fmt.Sprintf("bucketfs-test-%d-%d", time.Now().UnixNano(), bucketCounter)

			if _, err := b.client.CreateBucket(ctx, &awss3.CreateBucketInput{
				Bucket: aws.String(bucket),
			}); err != nil {
				t.Fatalf("Failed to create test bucket: %v", err)
			}

			t.Cleanup(func() {
				cleanupBucket(t, b.client, bucket)
			})

			for _, s := range seeds {
				if _, err := b.client.PutObject(ctx, &awss3.PutObjectInput{
					Bucket: aws.String(bucket),
					Key:    aws.String(s.Key),
					Body:   bytes.NewReader(s.Data),
				}); err != nil {
					t.Fatalf("Failed to seed object %q: %v", s.Key, err)
				}
			}

			return b, bucket
		},
	}
	suite.Run(t)
}

// cleanupBucket deletes all objects and then the bucket itself.
func cleanupBucket(t *testing.T, client *awss3.Client, bucket string) {
	t.Helper()
	ctx := context.Background()

	paginator := awss3.NewListObjectsV2Paginator(client, &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			t.Logf("cleanup: failed to list objects: %v", err)
			return
		}
		for _, obj := range page.Contents {
			if _, err := client.DeleteObject(ctx, &awss3.DeleteObjectInput{
				Bucket: aws.String(bucket),
				Key:    obj.Key,
			}); err != nil {
				t.Logf("cleanup: failed to delete %v: %v", obj.Key, err)
			}
		}
	}

	if _, err := client.DeleteBucket(ctx, &awss3.DeleteBucketInput{
		Bucket: aws.String(bucket),
	}); err != nil {
		t.Logf("cleanup: failed to delete bucket: %v", err)
	}
}
