package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Credentials holds the long-lived store credentials. They never leave the
// server; clients only ever see capability URLs.
type Credentials struct {
	Endpoint     string `json:"endpoint"`
	Region       string `json:"region"`
	AccessKey    string `json:"accessKey"`
	SecretKey    string `json:"secretKey"`
	SessionToken string `json:"sessionToken,omitempty"`
	// Secure forces TLS on or off. Nil falls back to shouldUseSSL.
	Secure *bool `json:"secure,omitempty"`
}

// MinioClient is an interface for the S3 methods we use
type MinioClient interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error

	// Presigned URLs
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	PresignedPutObject(ctx context.Context, bucketName, objectName string, expires time.Duration) (*url.URL, error)

	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// MinioAdminClient is an interface for the madmin methods we use
type MinioAdminClient interface {
	DataUsageInfo(ctx context.Context) (madmin.DataUsageInfo, error)
}

// MinioClientFactory creates clients from static credentials
type MinioClientFactory interface {
	NewAdminClient(creds Credentials) (MinioAdminClient, error)
	NewClient(creds Credentials) (MinioClient, error)
}

// RealMinioFactory is the production implementation
type RealMinioFactory struct{}

// shouldUseSSL determines if SSL should be used based on the endpoint.
// Returns false for localhost, 127.0.0.1, and docker service names.
func shouldUseSSL(endpoint string) bool {
	// Local development endpoints
	if endpoint == "localhost:9000" || endpoint == "127.0.0.1:9000" {
		return false
	}
	// Docker service names (minio:9000, minio1:9000, minio2:9000, etc.)
	// Only match simple hostnames without dots (not domain names like minio.example.com)
	if strings.HasPrefix(endpoint, "minio") && !strings.Contains(strings.Split(endpoint, ":")[0], ".") && strings.Contains(endpoint, ":9000") {
		return false
	}
	return true
}

func (c Credentials) secure() bool {
	if c.Secure != nil {
		return *c.Secure
	}
	return shouldUseSSL(c.Endpoint)
}

func (f *RealMinioFactory) NewAdminClient(creds Credentials) (MinioAdminClient, error) {
	client, err := madmin.NewWithOptions(creds.Endpoint, &madmin.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKey, creds.SecretKey, creds.SessionToken),
		Secure: creds.secure(),
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (f *RealMinioFactory) NewClient(creds Credentials) (MinioClient, error) {
	client, err := minio.New(creds.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(creds.AccessKey, creds.SecretKey, creds.SessionToken),
		Secure: creds.secure(),
		Region: creds.Region,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
