package handlers

import (
	"context"

	"github.com/damacus/bucketview/internal/models"
	"github.com/damacus/bucketview/internal/services"
	"github.com/stretchr/testify/mock"
)

type MockTreeSource struct {
	mock.Mock
}

func (m *MockTreeSource) Get(ctx context.Context, prefix string) (models.Tree, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Tree), args.Error(1)
}

type MockMutator struct {
	mock.Mock
}

func (m *MockMutator) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockMutator) IssueRead(ctx context.Context, key string) (models.Capability, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(models.Capability), args.Error(1)
}

func (m *MockMutator) IssueWrite(ctx context.Context, key string) (models.Capability, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(models.Capability), args.Error(1)
}

func (m *MockMutator) CompleteUpload(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

type MockUsageSource struct {
	mock.Mock
}

func (m *MockUsageSource) BucketUsage(ctx context.Context) (services.BucketUsage, error) {
	args := m.Called(ctx)
	return args.Get(0).(services.BucketUsage), args.Error(1)
}
