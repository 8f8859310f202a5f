package services

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/damacus/bucketview/internal/models"
)

// MemoryStorePath is where MemoryStore capability URLs are redeemed
const MemoryStorePath = "/_store/object"

type memoryObject struct {
	data         []byte
	lastModified time.Time
}

// MemoryStore is an in-process ObjectStore for local development and tests.
// It mints HMAC-signed capability URLs under MemoryStorePath and verifies them
// on redemption, mirroring what an S3 endpoint does with presigned URLs.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject

	baseURL *url.URL
	secret  []byte
	now     func() time.Time
}

var _ ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store whose capability URLs point at
// publicURL. An empty secret generates a random one.
func NewMemoryStore(publicURL string, secret []byte) (*MemoryStore, error) {
	base, err := url.Parse(strings.TrimSuffix(publicURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse public url: %w", err)
	}
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, secret); err != nil {
			return nil, fmt.Errorf("generate signing secret: %w", err)
		}
	}
	return &MemoryStore{
		objects: make(map[string]memoryObject),
		baseURL: base,
		secret:  secret,
		now:     time.Now,
	}, nil
}

// SetClock replaces the clock used for modification times and expiry checks
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.now = now
}

func (s *MemoryStore) List(ctx context.Context, prefix string) (Listing, error) {
	if err := ctx.Err(); err != nil {
		return Listing{}, &models.StoreError{Op: "list", Key: prefix, Err: err}
	}

	s.mu.RLock()
	keys := make([]string, 0, len(s.objects))
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	var listing Listing
	seen := make(map[string]bool)
	for _, key := range keys {
		rest := key[len(prefix):]
		if idx := strings.Index(rest, models.Delimiter); idx >= 0 {
			common := prefix + rest[:idx+1]
			if common != prefix && !seen[common] {
				seen[common] = true
				classify(&listing, prefix, ObjectSummary{Key: common})
			}
			continue
		}
		obj := s.objects[key]
		classify(&listing, prefix, ObjectSummary{
			Key:          key,
			Size:         int64(len(obj.data)),
			LastModified: obj.lastModified,
		})
	}
	s.mu.RUnlock()

	return listing, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return &models.StoreError{Op: "delete", Key: key, Err: models.ErrNotFound}
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) Presign(ctx context.Context, key string, op models.Operation, ttl time.Duration) (*url.URL, error) {
	if !op.Valid() {
		return nil, models.NewValidationError("operation", fmt.Sprintf("unsupported operation %q", op))
	}
	expires := s.now().Truncate(time.Second).Add(ttl).Unix()

	q := url.Values{}
	q.Set("key", key)
	q.Set("op", string(op))
	q.Set("expires", strconv.FormatInt(expires, 10))
	q.Set("signature", s.sign(key, op, expires))

	u := *s.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + MemoryStorePath
	u.RawQuery = q.Encode()
	return &u, nil
}

// Authorize checks that query is a capability for op that is valid now and
// returns the key it grants.
func (s *MemoryStore) Authorize(op models.Operation, query url.Values) (string, error) {
	key := query.Get("key")
	expires, err := strconv.ParseInt(query.Get("expires"), 10, 64)
	if err != nil || key == "" {
		return "", models.ErrCapabilityInvalid
	}

	granted := models.Operation(query.Get("op"))
	expected := s.sign(key, granted, expires)
	if !hmac.Equal([]byte(expected), []byte(query.Get("signature"))) {
		return "", models.ErrCapabilityInvalid
	}
	if granted != op {
		return "", models.ErrCapabilityInvalid
	}
	if !s.now().Before(time.Unix(expires, 0)) {
		return "", models.ErrCapabilityExpired
	}
	return key, nil
}

// Get returns the object's bytes and modification time
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[key]
	if !ok {
		return nil, time.Time{}, &models.StoreError{Op: "get", Key: key, Err: models.ErrNotFound}
	}
	data := make([]byte, len(obj.data))
	copy(data, obj.data)
	return data, obj.lastModified, nil
}

// Put stores data at key, replacing any existing object
func (s *MemoryStore) Put(ctx context.Context, key string, data []byte) error {
	if key == "" {
		return models.NewValidationError("key", "Missing key")
	}
	stored := make([]byte, len(data))
	copy(stored, data)

	s.mu.Lock()
	s.objects[key] = memoryObject{data: stored, lastModified: s.now().UTC()}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) sign(key string, op models.Operation, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%s\n%d", op, key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
