// Package minio provides a wrapper for the S3-compatible object store client.
package minio

import (
	"context"
	"time"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	minioLib "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/file-vault/file-vault/library/log"
)

const ensureBucketTimeout = 10 * time.Second

// DialInfo defines the object store connection information.
type DialInfo struct {
	Endpoint,
	AccessKey,
	SecretKey,
	Bucket string
	UseSSL bool
}

// NewClient connects to the object store and makes sure the bucket exists.
func NewClient(ctx context.Context, dialInfo DialInfo) (*minioLib.Client, error) {
	log.Logger.Info("try to connect to object store",
		zap.String("endpoint", dialInfo.Endpoint),
		zap.String("bucket", dialInfo.Bucket),
	)

	cli, err := minioLib.New(dialInfo.Endpoint, &minioLib.Options{
		Creds:  credentials.NewStaticV4(dialInfo.AccessKey, dialInfo.SecretKey, ""),
		Secure: dialInfo.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "new minio client")
	}

	ctx, cancel := context.WithTimeout(ctx, ensureBucketTimeout)
	defer cancel()

	exists, err := cli.BucketExists(ctx, dialInfo.Bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "check bucket %q", dialInfo.Bucket)
	}
	if !exists {
		if err = cli.MakeBucket(ctx, dialInfo.Bucket, minioLib.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrapf(err, "make bucket %q", dialInfo.Bucket)
		}
	}

	return cli, nil
}
