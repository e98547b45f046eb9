package driven

import (
	"context"
	"io"
)

// BlobStore keeps original documents in object storage.
type BlobStore interface {
	// Upload writes the content under name and returns the blob URL.
	Upload(ctx context.Context, name string, content io.Reader, contentType string) (string, error)

	// List returns blob names with the given prefix.
	List(ctx context.Context, prefix string) ([]BlobInfo, error)

	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error

	// Ping validates the storage account is reachable.
	Ping(ctx context.Context) error
}

// BlobInfo describes a stored blob.
type BlobInfo struct {
	Name        string
	Size        int64
	ContentType string
}
