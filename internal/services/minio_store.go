package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/damacus/bucketview/internal/models"
	"github.com/minio/minio-go/v7"
)

// MinioStore implements ObjectStore against any S3-compatible endpoint.
// Capabilities are SigV4 presigned URLs verified by the store itself.
type MinioStore struct {
	client MinioClient
	bucket string
}

var _ ObjectStore = (*MinioStore)(nil)

// NewMinioStore binds client to a single bucket
func NewMinioStore(client MinioClient, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket}
}

// Bucket returns the bucket this store is bound to
func (s *MinioStore) Bucket() string {
	return s.bucket
}

func (s *MinioStore) List(ctx context.Context, prefix string) (Listing, error) {
	// Cancelling stops the lister goroutine if we return early on an error.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var listing Listing
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: false, // delimiter "/" yields common prefixes
	}) {
		if obj.Err != nil {
			return Listing{}, &models.StoreError{Op: "list", Key: prefix, Err: translateError(obj.Err)}
		}
		classify(&listing, prefix, ObjectSummary{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	if err := ctx.Err(); err != nil {
		return Listing{}, &models.StoreError{Op: "list", Key: prefix, Err: err}
	}
	return listing, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return &models.StoreError{Op: "delete", Key: key, Err: translateError(err)}
	}
	return nil
}

func (s *MinioStore) Presign(ctx context.Context, key string, op models.Operation, ttl time.Duration) (*url.URL, error) {
	var (
		u   *url.URL
		err error
	)
	switch op {
	case models.OpRead:
		u, err = s.client.PresignedGetObject(ctx, s.bucket, key, ttl, nil)
	case models.OpWrite:
		u, err = s.client.PresignedPutObject(ctx, s.bucket, key, ttl)
	default:
		return nil, models.NewValidationError("operation", fmt.Sprintf("unsupported operation %q", op))
	}
	if err != nil {
		return nil, &models.StoreError{Op: "presign " + string(op), Key: key, Err: translateError(err)}
	}
	return u, nil
}

// Ping checks that the configured bucket is reachable
func (s *MinioStore) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return &models.StoreError{Op: "ping", Key: s.bucket, Err: translateError(err)}
	}
	if !ok {
		return &models.StoreError{Op: "ping", Key: s.bucket, Err: fmt.Errorf("bucket %q does not exist", s.bucket)}
	}
	return nil
}

// translateError maps a missing-key response onto models.ErrNotFound and
// leaves every other store failure untouched.
func translateError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || (resp.StatusCode == http.StatusNotFound && resp.Code == "") {
		return fmt.Errorf("%w: %v", models.ErrNotFound, err)
	}
	return err
}
