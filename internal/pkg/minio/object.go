package minio

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// MaxDownloadSize caps how much of an object Download will buffer.
const MaxDownloadSize = 512 << 20

// Download reads a whole object from the configured bucket into memory.
func (c *Client) Download(ctx context.Context, objectName string) ([]byte, error) {
	return c.DownloadFrom(ctx, c.config.Bucket, objectName)
}

// DownloadFrom reads a whole object from bucketName into memory.
func (c *Client) DownloadFrom(ctx context.Context, bucketName, objectName string) ([]byte, error) {
	if err := c.checkClosed(); err != nil {
		return nil, err
	}

	if bucketName == "" {
		return nil, WrapError("Download", ErrInvalidBucketName, bucketName, objectName)
	}
	if objectName == "" {
		return nil, WrapError("Download", ErrInvalidObjectName, bucketName, objectName)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	object, err := c.client.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, WrapError("Download", err, bucketName, objectName)
	}
	defer object.Close()

	data, err := io.ReadAll(io.LimitReader(object, MaxDownloadSize+1))
	if err != nil {
		return nil, WrapError("Download", err, bucketName, objectName)
	}
	if len(data) > MaxDownloadSize {
		return nil, WrapError("Download", ErrObjectTooLarge, bucketName, objectName)
	}

	c.logger.Debug("object downloaded",
		zap.String("bucket", bucketName),
		zap.String("object", objectName),
		zap.Int("size", len(data)),
	)

	return data, nil
}
