package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore stores opaque uploads under generated keys and returns a
// retrievable URL for each.
type ObjectStore interface {
	Save(ctx context.Context, mediaKind, filename, contentType string, r io.Reader, size int64) (string, error)
	Delete(ctx context.Context, key string) error
}

// NewKey generates an object key: a coarse media-type directory plus a
// random filename that keeps the original extension.
func NewKey(mediaKind, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return path.Join(mediaKindDir(mediaKind), uuid.NewString()+ext)
}

// mediaKindDir partitions uploads by coarse media type.
func mediaKindDir(mediaKind string) string {
	switch strings.ToLower(strings.TrimSpace(mediaKind)) {
	case "image":
		return "images"
	case "audio":
		return "audio"
	case "video":
		return "videos"
	default:
		return "documents"
	}
}

// MinioStore implements ObjectStore for MinIO/S3 compatible storage.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	urlExpiry time.Duration
}

// NewMinioStore connects to MinIO and ensures the bucket exists.
func NewMinioStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioStore{client: client, bucket: bucket, urlExpiry: 24 * time.Hour}, nil
}

// Save uploads the object and returns a presigned GET URL.
func (m *MinioStore) Save(ctx context.Context, mediaKind, filename, contentType string, r io.Reader, size int64) (string, error) {
	key := NewKey(mediaKind, filename)
	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(key))
	}
	if _, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	url, err := m.client.PresignedGetObject(ctx, m.bucket, key, m.urlExpiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return url.String(), nil
}

// Delete removes an object by key.
func (m *MinioStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

var _ ObjectStore = (*MinioStore)(nil)
