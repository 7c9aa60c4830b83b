package minio

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/rastergo/blobstore"
)

func TestNotFoundMapping(t *testing.T) {
	assert.True(t, notFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, notFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, notFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, notFound(errors.New("connection refused")))
	assert.False(t, notFound(nil))
}

func TestKeyMapping(t *testing.T) {
	s := &Store{bucket: "b", prefix: "rasters"}
	assert.Equal(t, "rasters/grid-1/chunk-0-0", s.key("grid-1/chunk-0-0"))
	assert.Equal(t, "grid-1/chunk-0-0", s.trimKey("rasters/grid-1/chunk-0-0"))

	bare := &Store{bucket: "b"}
	assert.Equal(t, "grid-1/chunk-0-0", bare.key("grid-1/chunk-0-0"))
	assert.Equal(t, "grid-1/chunk-0-0", bare.trimKey("grid-1/chunk-0-0"))
}

// TestStoreIntegration requires a running MinIO instance and is skipped
// otherwise.
func TestStoreIntegration(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	bucket := "test-rastergo"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "test-prefix/")

	data := []byte("chunk bytes")
	require.NoError(t, store.Put(ctx, "grid-1/chunk-0-0", data))

	got, err := store.Get(ctx, "grid-1/chunk-0-0")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "grid-1/")
	require.NoError(t, err)
	assert.Contains(t, names, "grid-1/chunk-0-0")

	require.NoError(t, store.Delete(ctx, "grid-1/chunk-0-0"))
	_, err = store.Get(ctx, "grid-1/chunk-0-0")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}
