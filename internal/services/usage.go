package services

import (
	"context"
	"time"

	"github.com/damacus/bucketview/internal/utils"
)

// BucketUsage summarises the configured bucket as last scanned by the server
type BucketUsage struct {
	Bucket        string    `json:"bucket"`
	Objects       uint64    `json:"objects"`
	Size          uint64    `json:"size"`
	FormattedSize string    `json:"formattedSize"`
	LastUpdate    time.Time `json:"lastUpdate"`
}

// UsageReporter reads bucket usage through the MinIO admin API
type UsageReporter struct {
	admin  MinioAdminClient
	bucket string
}

// NewUsageReporter binds admin to bucket
func NewUsageReporter(admin MinioAdminClient, bucket string) *UsageReporter {
	return &UsageReporter{admin: admin, bucket: bucket}
}

// BucketUsage fetches the data usage snapshot and extracts the bucket's entry
func (r *UsageReporter) BucketUsage(ctx context.Context) (BucketUsage, error) {
	info, err := r.admin.DataUsageInfo(ctx)
	if err != nil {
		return BucketUsage{}, err
	}

	usage := BucketUsage{Bucket: r.bucket, LastUpdate: info.LastUpdate}
	if b, ok := info.BucketsUsage[r.bucket]; ok {
		usage.Objects = b.ObjectsCount
		usage.Size = b.Size
	} else if info.BucketSizes != nil {
		usage.Size = info.BucketSizes[r.bucket]
	}
	usage.FormattedSize = utils.FormatBytes(usage.Size)
	return usage, nil
}
