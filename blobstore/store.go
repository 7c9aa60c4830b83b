// Package blobstore abstracts the opaque keyed storage a grid environment
// swaps chunk blobs to.
//
// A Store only needs to round-trip whole blobs by name; chunks are small and
// always decoded in full, so there is no partial-read surface. Memory and
// local-filesystem implementations live in this package; S3, MinIO and
// DynamoDB backends live in subpackages.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`.
var ErrNotFound = errors.New("blob not found")

// Store is an abstraction for accessing chunk blobs by name.
type Store interface {
	// Put writes a blob atomically, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
	// Get reads a whole blob. The returned slice is owned by the caller.
	Get(ctx context.Context, name string) ([]byte, error)
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns all blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}
