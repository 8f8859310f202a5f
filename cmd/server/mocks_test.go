package main

import (
	"context"
	"net/url"
	"time"

	"github.com/damacus/bucketview/internal/services"
	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/mock"
)

// MockMinioClient implements both MinioClient and MinioAdminClient interfaces for testing
type MockMinioClient struct {
	mock.Mock
}

// MinioAdminClient methods

func (m *MockMinioClient) DataUsageInfo(ctx context.Context) (madmin.DataUsageInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(madmin.DataUsageInfo), args.Error(1)
}

// MinioClient methods

func (m *MockMinioClient) ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	args := m.Called(ctx, bucketName, opts)
	return args.Get(0).(func() <-chan minio.ObjectInfo)()
}

func (m *MockMinioClient) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Error(0)
}

func (m *MockMinioClient) PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error) {
	args := m.Called(ctx, bucketName, objectName, expires, reqParams)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*url.URL), args.Error(1)
}

func (m *MockMinioClient) PresignedPutObject(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error) {
	args := m.Called(ctx, bucketName, objectName, expires)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*url.URL), args.Error(1)
}

func (m *MockMinioClient) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

// MockMinioFactory implements MinioClientFactory for testing
type MockMinioFactory struct {
	mock.Mock
}

func (m *MockMinioFactory) NewAdminClient(creds services.Credentials) (services.MinioAdminClient, error) {
	args := m.Called(creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(services.MinioAdminClient), args.Error(1)
}

func (m *MockMinioFactory) NewClient(creds services.Credentials) (services.MinioClient, error) {
	args := m.Called(creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(services.MinioClient), args.Error(1)
}

// listing returns a producer of a fresh, closed channel per call, since a
// tree build lists the same prefix again after every invalidation
func listing(objects ...minio.ObjectInfo) func() <-chan minio.ObjectInfo {
	return func() <-chan minio.ObjectInfo {
		ch := make(chan minio.ObjectInfo, len(objects))
		for _, obj := range objects {
			ch <- obj
		}
		close(ch)
		return ch
	}
}
