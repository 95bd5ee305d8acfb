package minio

import (
	"context"
	"errors"
	"io"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeObjects implements objectAPI without a network.
type fakeObjects struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error
	madeBucket      string

	putErr         error
	putKey         string
	putBody        string
	putSize        int64
	putContentType string

	statErr error
}

func (f *fakeObjects) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}

func (f *fakeObjects) MakeBucket(_ context.Context, bucket string, _ minioLib.MakeBucketOptions) error {
	f.madeBucket = bucket
	return f.makeBucketErr
}

func (f *fakeObjects) PutObject(_ context.Context, _ string, key string, reader io.Reader, objectSize int64, opts minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	if f.putErr != nil {
		return minioLib.UploadInfo{}, f.putErr
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return minioLib.UploadInfo{}, err
	}
	f.putKey, f.putBody, f.putContentType, f.putSize = key, string(body), opts.ContentType, objectSize
	return minioLib.UploadInfo{Key: key, Size: int64(len(body))}, nil
}

func (f *fakeObjects) StatObject(_ context.Context, _ string, _ string, _ minioLib.StatObjectOptions) (minioLib.ObjectInfo, error) {
	return minioLib.ObjectInfo{}, f.statErr
}

func TestNewArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("bucket exists", func(t *testing.T) {
		api := &fakeObjects{bucketExists: true}
		a, err := newArchive(ctx, api, "ledger-archive")
		require.NoError(t, err)
		assert.Equal(t, "ledger-archive", a.bucket)
		assert.Empty(t, api.madeBucket)
	})

	t.Run("bucket created", func(t *testing.T) {
		api := &fakeObjects{}
		_, err := newArchive(ctx, api, "ledger-archive")
		require.NoError(t, err)
		assert.Equal(t, "ledger-archive", api.madeBucket)
	})

	t.Run("bucket check fails", func(t *testing.T) {
		a, err := newArchive(ctx, &fakeObjects{bucketExistsErr: errors.New("boom")}, "b")
		assert.Nil(t, a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to ensure bucket exists")
	})

	t.Run("bucket creation fails", func(t *testing.T) {
		a, err := newArchive(ctx, &fakeObjects{makeBucketErr: errors.New("fail")}, "b")
		assert.Nil(t, a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create bucket")
	})
}

func TestArchive_Upload(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		api := &fakeObjects{}
		a := &Archive{api: api, bucket: "b"}
		body := []byte("{\"jti\":\"x\"}\n")
		err := a.Upload(ctx, "ledger/2026/01/02/030405-x.jsonl", body)
		require.NoError(t, err)
		assert.Equal(t, "ledger/2026/01/02/030405-x.jsonl", api.putKey)
		assert.Equal(t, string(body), api.putBody)
		assert.Equal(t, int64(len(body)), api.putSize)
		assert.Equal(t, archiveContentType, api.putContentType)
	})

	t.Run("error", func(t *testing.T) {
		a := &Archive{api: &fakeObjects{putErr: errors.New("put-fail")}, bucket: "b"}
		err := a.Upload(ctx, "k", []byte("data"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to upload object")
	})
}

func TestArchive_Exists(t *testing.T) {
	ctx := context.Background()

	t.Run("exists", func(t *testing.T) {
		ok, err := (&Archive{api: &fakeObjects{}, bucket: "b"}).Exists(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("not found", func(t *testing.T) {
		a := &Archive{api: &fakeObjects{statErr: minioLib.ErrorResponse{Code: "NoSuchKey"}}, bucket: "b"}
		ok, err := a.Exists(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("other error", func(t *testing.T) {
		a := &Archive{api: &fakeObjects{statErr: errors.New("stat-fail")}, bucket: "b"}
		ok, err := a.Exists(ctx, "k")
		require.Error(t, err)
		assert.False(t, ok)
		assert.Contains(t, err.Error(), "failed to stat object")
	})
}
