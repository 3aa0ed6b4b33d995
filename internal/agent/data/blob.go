package data

import (
	"context"
	"fmt"

	"github.com/lk2023060901/agent-gateway/internal/agent/biz"
	pkgminio "github.com/lk2023060901/agent-gateway/internal/pkg/minio"
)

// MinIOBlobStore implements biz.BlobStore on an S3-compatible bucket
type MinIOBlobStore struct {
	client *pkgminio.Client
}

var _ biz.BlobStore = (*MinIOBlobStore)(nil)

// NewMinIOBlobStore creates the blob store
func NewMinIOBlobStore(client *pkgminio.Client) *MinIOBlobStore {
	return &MinIOBlobStore{client: client}
}

// Download reads a whole object from the configured bucket
func (s *MinIOBlobStore) Download(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Download(ctx, name)
	if err != nil {
		if pkgminio.IsNotFound(err) {
			return nil, fmt.Errorf("blob %q does not exist: %w", name, err)
		}
		return nil, fmt.Errorf("failed to download blob %q: %w", name, err)
	}
	return data, nil
}
