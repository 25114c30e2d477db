package testing

import (
	"context"
	"testing"
	"time"

	"github.com/marmos91/bucketfs/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SeededObject is one object the factory must make visible in the backend
// before the suite runs.
type SeededObject struct {
	Key          string
	Data         []byte
	LastModified time.Time
}

// BackendTestSuite is a conformance suite for backend.Backend implementations.
// It tests the interface contract, not implementation details, so it is
// reusable across implementations (memory, S3 against Localstack, etc.).
//
// Usage:
//
//	func TestMemoryBackend(t *testing.T) {
//	    suite := &testing.BackendTestSuite{
//	        NewBackend: func(t *testing.T, seeds []testing.SeededObject) (backend.Backend, string) {
//	            ...
//	        },
//	    }
//	    suite.Run(t)
//	}
type BackendTestSuite struct {
	// NewBackend creates a fresh backend containing exactly the seeded
	// objects and returns it together with the bucket name to use.
	NewBackend func(t *testing.T, seeds []SeededObject) (backend.Backend, string)
}

// Run executes all tests in the suite.
func (suite *BackendTestSuite) Run(t *testing.T) {
	t.Run("ListAll", suite.testListAll)
	t.Run("ListEmpty", suite.testListEmpty)
	t.Run("FetchRoundTrip", suite.testFetchRoundTrip)
	t.Run("FetchMissing", suite.testFetchMissing)
	t.Run("FetchEmptyObject", suite.testFetchEmptyObject)
}

func defaultSeeds() []SeededObject {
	t1 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	return []SeededObject{
		{Key: "a.txt", Data: []byte("alpha data"), LastModified: t1},
		{Key: "b.txt", Data: []byte("bravo data, somewhat longer"), LastModified: t2},
	}
}

func (suite *BackendTestSuite) testListAll(t *testing.T) {
	seeds := defaultSeeds()
	b, bucket := suite.NewBackend(t, seeds)

	objects, err := b.List(context.Background(), bucket)
	require.NoError(t, err)
	require.Len(t, objects, len(seeds))

	byKey := make(map[string]backend.Object, len(objects))
	for _, o := range objects {
		byKey[o.Key] = o
	}
	for _, s := range seeds {
		o, ok := byKey[s.Key]
		require.True(t, ok, "object %q missing from listing", s.Key)
		assert.Equal(t, int64(len(s.Data)), o.Size)
		assert.False(t, o.LastModified.IsZero(), "object %q has zero timestamp", s.Key)
	}
}

func (suite *BackendTestSuite) testListEmpty(t *testing.T) {
	b, bucket := suite.NewBackend(t, nil)

	objects, err := b.List(context.Background(), bucket)
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func (suite *BackendTestSuite) testFetchRoundTrip(t *testing.T) {
	seeds := defaultSeeds()
	b, bucket := suite.NewBackend(t, seeds)

	for _, s := range seeds {
		data, err := b.Fetch(context.Background(), bucket, s.Key)
		require.NoError(t, err)
		assert.Equal(t, s.Data, data)
	}
}

func (suite *BackendTestSuite) testFetchMissing(t *testing.T) {
	b, bucket := suite.NewBackend(t, defaultSeeds())

	_, err := b.Fetch(context.Background(), bucket, "no-such-key")
	require.Error(t, err)
	assert.True(t, backend.IsNotFound(err), "expected not-found error, got %v", err)
}

func (suite *BackendTestSuite) testFetchEmptyObject(t *testing.T) {
	seeds := []SeededObject{
		{Key: "empty.bin", Data: []byte{}, LastModified: time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)},
	}
	b, bucket := suite.NewBackend(t, seeds)

	data, err := b.Fetch(context.Background(), bucket, "empty.bin")
	require.NoError(t, err)
	assert.Empty(t, data)
}
