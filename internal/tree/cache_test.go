package tree

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damacus/bucketview/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	calls   atomic.Int32
	tree    models.Tree
	err     error
	entered chan struct{}
	release chan struct{}
}

func (s *countingSource) Build(ctx context.Context, prefix string) (models.Tree, error) {
	s.calls.Add(1)
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.tree, nil
}

type cacheRecorder struct {
	mu     sync.Mutex
	hits   int
	misses int
	builds int
}

func (r *cacheRecorder) ObserveCacheLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *cacheRecorder) ObserveBuild(err error, dur time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builds++
}

func sampleTree() models.Tree {
	return models.Tree{
		models.NewFolderNode("docs/", []models.Node{models.NewFileNode("docs/a.txt", 1, time.Time{})}),
		models.NewFileNode("top.txt", 3, time.Time{}),
	}
}

func TestCache_HitWithinTTL(t *testing.T) {
	source := &countingSource{tree: sampleTree()}
	recorder := &cacheRecorder{}
	cache := NewCache(source, time.Minute)
	cache.SetObserver(recorder)

	first, err := cache.Get(context.Background(), "")
	require.NoError(t, err)
	second, err := cache.Get(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), source.calls.Load())
	assert.Equal(t, 1, recorder.hits)
	assert.Equal(t, 1, recorder.misses)
	assert.Equal(t, 1, recorder.builds)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source := &countingSource{tree: sampleTree()}
	cache := NewCache(source, 5*time.Second)
	cache.SetClock(func() time.Time { return now })

	_, err := cache.Get(context.Background(), "")
	require.NoError(t, err)

	now = now.Add(4 * time.Second)
	_, err = cache.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), source.calls.Load())

	now = now.Add(time.Second)
	_, err = cache.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestCache_ZeroTTLAlwaysBuilds(t *testing.T) {
	source := &countingSource{tree: sampleTree()}
	cache := NewCache(source, 0)

	for i := 0; i < 3; i++ {
		_, err := cache.Get(context.Background(), "")
		require.NoError(t, err)
	}

	assert.Equal(t, int32(3), source.calls.Load())
	assert.Equal(t, 0, cache.Len())
}

func TestCache_InvalidateRelatedRoots(t *testing.T) {
	source := &countingSource{tree: sampleTree()}
	cache := NewCache(source, time.Minute)
	ctx := context.Background()

	for _, root := range []string{"", "docs/", "docs/img/", "music/"} {
		_, err := cache.Get(ctx, root)
		require.NoError(t, err)
	}
	require.Equal(t, 4, cache.Len())

	cache.Invalidate("docs/")

	// "" and "docs/" contain docs/, "docs/img/" sits beneath it
	assert.Equal(t, 1, cache.Len())
	_, err := cache.Get(ctx, "music/")
	require.NoError(t, err)
	assert.Equal(t, int32(4), source.calls.Load())

	_, err = cache.Get(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int32(5), source.calls.Load())
}

func TestCache_BuildRacingInvalidationIsNotStored(t *testing.T) {
	source := &countingSource{
		tree:    sampleTree(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	cache := NewCache(source, time.Minute)

	done := make(chan error, 1)
	go func() {
		_, err := cache.Get(context.Background(), "")
		done <- err
	}()

	<-source.entered
	cache.Invalidate("docs/")
	close(source.release)
	require.NoError(t, <-done)

	assert.Equal(t, 0, cache.Len())
}

func TestCache_PartialTreesAreNotStored(t *testing.T) {
	partial := sampleTree()
	partial[0].Error = "AccessDenied"
	source := &countingSource{tree: partial}
	cache := NewCache(source, time.Minute)

	tree, err := cache.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "AccessDenied", tree[0].Error)

	_, err = cache.Get(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), source.calls.Load())
	assert.Equal(t, 0, cache.Len())
}

func TestCache_ErrorsAreNotStored(t *testing.T) {
	source := &countingSource{err: errors.New("store down")}
	cache := NewCache(source, time.Minute)

	_, err := cache.Get(context.Background(), "")
	assert.EqualError(t, err, "store down")
	assert.Equal(t, 0, cache.Len())
}

func TestCache_CallerCancellation(t *testing.T) {
	source := &countingSource{
		tree:    sampleTree(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	cache := NewCache(source, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.Get(ctx, "")
		done <- err
	}()

	<-source.entered
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	// the shared build still completes and fills the cache
	close(source.release)
	assert.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, 5*time.Millisecond)
}

func TestCache_BoundedByMaxEntries(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source := &countingSource{tree: sampleTree()}
	cache := NewCache(source, time.Hour)
	cache.SetClock(func() time.Time { return now })
	cache.SetMaxEntries(3)
	ctx := context.Background()

	for _, root := range []string{"", "d", "do", "doc", "docs/"} {
		now = now.Add(time.Second)
		_, err := cache.Get(ctx, root)
		require.NoError(t, err)
		assert.LessOrEqual(t, cache.Len(), 3)
	}
	require.Equal(t, 3, cache.Len())
	require.Equal(t, int32(5), source.calls.Load())

	// the newest roots survive, the oldest were evicted
	_, err := cache.Get(ctx, "docs/")
	require.NoError(t, err)
	assert.Equal(t, int32(5), source.calls.Load())
	_, err = cache.Get(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, int32(6), source.calls.Load())
}

func TestCache_ExpiredRootsAreDropped(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source := &countingSource{tree: sampleTree()}
	cache := NewCache(source, 5*time.Second)
	cache.SetClock(func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := cache.Get(ctx, "p"+strconv.Itoa(i)+"/")
		require.NoError(t, err)
	}
	require.Equal(t, 100, cache.Len())

	now = now.Add(time.Hour)
	_, err := cache.Get(ctx, "fresh/")
	require.NoError(t, err)

	assert.Equal(t, 1, cache.Len())
}

func TestCache_SetMaxEntriesShrinks(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	source := &countingSource{tree: sampleTree()}
	cache := NewCache(source, time.Hour)
	cache.SetClock(func() time.Time { return now })

	for _, root := range []string{"a/", "b/", "c/", "d/"} {
		now = now.Add(time.Second)
		_, err := cache.Get(context.Background(), root)
		require.NoError(t, err)
	}

	cache.SetMaxEntries(2)
	assert.Equal(t, 2, cache.Len())

	cache.SetMaxEntries(0)
	assert.Equal(t, 2, cache.Len())
}
