// Package azureblob provides a blob store adapter for Azure Blob Storage.
package azureblob

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"github.com/custodia-labs/kb-cli/internal/core/domain"
	"github.com/custodia-labs/kb-cli/internal/core/ports/driven"
	"github.com/custodia-labs/kb-cli/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// DefaultContainer is the container used when none is configured.
const DefaultContainer = "documents"

// contentTypes covers the ingestible formats; other extensions fall back
// to the system MIME table.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
	".txt":  "text/plain; charset=utf-8",
	".md":   "text/markdown; charset=utf-8",
	".py":   "text/x-python; charset=utf-8",
	".json": "application/json",
	".csv":  "text/csv; charset=utf-8",
}

// Config holds configuration for the blob store.
type Config struct {
	// ConnectionString is the storage account connection string (required).
	ConnectionString string

	// Container is the container name (default: documents).
	Container string
}

// Store keeps original documents in a blob container.
type Store struct {
	client    *azblob.Client
	container string
	ensured   bool
}

// NewStore creates a blob store from a connection string.
func NewStore(cfg Config) (*Store, error) {
	if cfg.ConnectionString == "" {
		return nil, fmt.Errorf("%w: storage connection string is required", domain.ErrConfig)
	}
	if cfg.Container == "" {
		cfg.Container = DefaultContainer
	}

	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: parse storage connection string: %w", domain.ErrConfig, err)
	}

	return &Store{
		client:    client,
		container: cfg.Container,
	}, nil
}

// Container returns the container name.
func (s *Store) Container() string {
	return s.container
}

// Upload writes the content, replacing any existing blob of the same name.
func (s *Store) Upload(ctx context.Context, name string, content io.Reader, contentType string) (string, error) {
	if err := s.ensureContainer(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = ContentType(name)
	}

	_, err := s.client.UploadStream(ctx, s.container, name, content, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", fmt.Errorf("%w: upload %s: %w", domain.ErrBlobStorage, name, err)
	}

	blobURL := s.blobURL(name)
	logger.Debug("Uploaded %s (%s)", blobURL, contentType)
	return blobURL, nil
}

// List returns the blobs whose names start with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]driven.BlobInfo, error) {
	opts := &azblob.ListBlobsFlatOptions{}
	if prefix != "" {
		opts.Prefix = &prefix
	}

	var blobs []driven.BlobInfo
	pager := s.client.NewListBlobsFlatPager(s.container, opts)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			if bloberror.HasCode(err, bloberror.ContainerNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: list blobs: %w", domain.ErrBlobStorage, err)
		}
		for _, item := range resp.Segment.BlobItems {
			info := driven.BlobInfo{Name: deref(item.Name)}
			if item.Properties != nil {
				if item.Properties.ContentLength != nil {
					info.Size = *item.Properties.ContentLength
				}
				info.ContentType = deref(item.Properties.ContentType)
			}
			blobs = append(blobs, info)
		}
	}
	return blobs, nil
}

// Delete removes a blob. A missing blob is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, name, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return fmt.Errorf("%w: delete %s: %w", domain.ErrBlobStorage, name, err)
	}
	return nil
}

// Ping reads the container properties. A missing container still proves
// the account is reachable.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.ServiceClient().NewContainerClient(s.container).GetProperties(ctx, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerNotFound) {
		return fmt.Errorf("%w: %w", domain.ErrBlobStorage, err)
	}
	return nil
}

func (s *Store) ensureContainer(ctx context.Context) error {
	if s.ensured {
		return nil
	}
	_, err := s.client.CreateContainer(ctx, s.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("%w: create container %s: %w", domain.ErrBlobStorage, s.container, err)
	}
	if err == nil {
		logger.Info("Created blob container %q", s.container)
	}
	s.ensured = true
	return nil
}

func (s *Store) blobURL(name string) string {
	segments := strings.Split(name, "/")
	for i := range segments {
		segments[i] = url.PathEscape(segments[i])
	}
	return strings.TrimRight(s.client.URL(), "/") + "/" + s.container + "/" + strings.Join(segments, "/")
}

// ContentType infers a MIME type from the file extension.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
