package remote

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/lecternlabs/lectern/internal/apperr"
)

// MinioStore implements ObjectStore against any S3-compatible endpoint.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the configured endpoint. The bucket must already
// exist; creation is an operator concern.
func NewMinioStore(creds Credentials) (*MinioStore, error) {
	client, err := minio.New(creds.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKeyID, creds.AccessKeySecret, ""),
		Secure: creds.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("remote: connect %s: %w", creds.Endpoint, err)
	}
	return &MinioStore{client: client, bucket: creds.Bucket}, nil
}

func (m *MinioStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("%w: list %s: %v", apperr.ErrRemoteUnavailable, prefix, obj.Err)
		}
		out = append(out, ObjectInfo{Key: obj.Key, ETag: obj.ETag, Size: obj.Size})
	}
	return out, nil
}

func (m *MinioStore) Put(ctx context.Context, key, localPath string) error {
	if _, err := m.client.FPutObject(ctx, m.bucket, key, localPath, minio.PutObjectOptions{}); err != nil {
		return fmt.Errorf("%w: put %s: %v", apperr.ErrRemoteUnavailable, key, err)
	}
	return nil
}

func (m *MinioStore) Get(ctx context.Context, key, localPath string) (bool, error) {
	err := m.client.FGetObject(ctx, m.bucket, key, localPath, minio.GetObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return false, nil
	}
	return false, fmt.Errorf("%w: get %s: %v", apperr.ErrRemoteUnavailable, key, err)
}

func (m *MinioStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: delete %s: %v", apperr.ErrRemoteUnavailable, key, err)
	}
	return nil
}
