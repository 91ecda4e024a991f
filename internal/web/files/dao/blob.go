// Package dao provides the store implementations behind the files service.
package dao

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Laisky/errors/v2"
	minioLib "github.com/minio/minio-go/v7"

	"github.com/file-vault/file-vault/internal/web/files/model"
)

// Blobs stores file bytes in an S3-compatible bucket.
type Blobs struct {
	cli    *minioLib.Client
	bucket string
}

// NewBlobs creates a blob store over an existing client and bucket.
func NewBlobs(cli *minioLib.Client, bucket string) *Blobs {
	return &Blobs{cli: cli, bucket: bucket}
}

func (b *Blobs) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := b.cli.PutObject(ctx, b.bucket, key, r, size,
		minioLib.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return errors.Wrapf(err, "put object %q", key)
	}

	return nil
}

func (b *Blobs) Get(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	obj, err := b.cli.GetObject(ctx, b.bucket, key, minioLib.GetObjectOptions{})
	if err != nil {
		return nil, 0, errors.Wrapf(err, "get object %q", key)
	}

	// GetObject is lazy, Stat forces the first roundtrip and surfaces
	// missing keys.
	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if minioLib.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, 0, errors.Wrapf(model.ErrNotFound, "object %q", key)
		}
		return nil, 0, errors.Wrapf(err, "stat object %q", key)
	}

	return obj, info.Size, nil
}

func (b *Blobs) Delete(ctx context.Context, key string) error {
	if err := b.cli.RemoveObject(ctx, b.bucket, key, minioLib.RemoveObjectOptions{}); err != nil {
		return errors.Wrapf(err, "remove object %q", key)
	}

	return nil
}

func (b *Blobs) URL(key string) string {
	return fmt.Sprintf("%s/%s/%s",
		strings.TrimSuffix(b.cli.EndpointURL().String(), "/"), b.bucket, key)
}
