package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"

	"github.com/dtroode/townsquare-auth/internal/model"
)

const archiveContentType = "application/x-ndjson"

// objectAPI is the part of *minio.Client the archive uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

var _ model.LedgerArchive = (*Archive)(nil)

// Archive stores pruned ledger entries as objects in a single bucket.
type Archive struct {
	api    objectAPI
	bucket string
}

// NewArchive creates an Archive on top of a real *minio.Client.
func NewArchive(ctx context.Context, client *minio.Client, bucket string) (*Archive, error) {
	return newArchive(ctx, client, bucket)
}

func newArchive(ctx context.Context, api objectAPI, bucket string) (*Archive, error) {
	a := &Archive{
		api:    api,
		bucket: bucket,
	}

	if err := a.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}

	return a, nil
}

func (a *Archive) ensureBucket(ctx context.Context) error {
	exists, err := a.api.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := a.api.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Upload writes data to key as newline-delimited JSON in a single PUT.
func (a *Archive) Upload(ctx context.Context, key string, data []byte) error {
	_, err := a.api.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: archiveContentType,
	})
	if err != nil {
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// Exists checks if an archive object exists.
func (a *Archive) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.api.StatObject(ctx, a.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}
