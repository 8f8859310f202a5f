package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/damacus/bucketview/internal/models"
)

// ObjectSummary is the listing metadata for one object
type ObjectSummary struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Listing is the result of one delimited listing call: the immediate child
// prefixes and the objects directly under the queried prefix.
type Listing struct {
	CommonPrefixes []string
	Objects        []ObjectSummary
}

// ObjectStore is the thin adapter over the remote store. Implementations
// surface raw failures as *models.StoreError and never retry.
type ObjectStore interface {
	// List performs a delimited listing under prefix. An object whose key is
	// exactly prefix (a directory marker) is never returned.
	List(ctx context.Context, prefix string) (Listing, error)

	// Delete removes key. A missing key is reported as models.ErrNotFound.
	Delete(ctx context.Context, key string) error

	// Presign returns a signed URL authorizing op on key for ttl.
	Presign(ctx context.Context, key string, op models.Operation, ttl time.Duration) (*url.URL, error)
}

// classify sorts one raw listing entry: directory markers are dropped, keys
// ending in the delimiter are common prefixes, everything else is an object.
func classify(listing *Listing, prefix string, obj ObjectSummary) {
	switch {
	case obj.Key == prefix:
		// directory marker for the folder being listed
	case strings.HasSuffix(obj.Key, models.Delimiter):
		listing.CommonPrefixes = append(listing.CommonPrefixes, obj.Key)
	default:
		listing.Objects = append(listing.Objects, obj)
	}
}
