package coordinator

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/damacus/bucketview/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockDeleter struct {
	mock.Mock
}

func (m *MockDeleter) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockIssuer struct {
	mock.Mock
}

func (m *MockIssuer) Issue(ctx context.Context, key string, op models.Operation, ttl time.Duration) (models.Capability, error) {
	args := m.Called(ctx, key, op, ttl)
	return args.Get(0).(models.Capability), args.Error(1)
}

type recordingInvalidator struct {
	mu       sync.Mutex
	prefixes []string
}

func (r *recordingInvalidator) Invalidate(prefix string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append(r.prefixes, prefix)
}

type MockTransport struct {
	mock.Mock
	received []byte
}

func (m *MockTransport) Put(ctx context.Context, url string, body io.Reader, size int64) error {
	data, _ := io.ReadAll(body)
	m.received = data
	args := m.Called(ctx, url, size)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) CompleteUpload(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
