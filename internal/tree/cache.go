package tree

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/damacus/bucketview/internal/models"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheEntries bounds the number of cached roots when no explicit
// limit is set
const DefaultCacheEntries = 256

// Source builds a tree for a prefix; *Builder is the production Source
type Source interface {
	Build(ctx context.Context, prefix string) (models.Tree, error)
}

// CacheObserver receives cache lookups and builds for metrics
type CacheObserver interface {
	ObserveCacheLookup(hit bool)
	ObserveBuild(err error, dur time.Duration)
}

type cacheEntry struct {
	tree    models.Tree
	builtAt time.Time
}

// Cache keeps recently built trees for a short TTL and collapses concurrent
// builds of the same prefix into one. Any mutation made through this service
// must call Invalidate; a tree built before an invalidation is never stored
// or served afterwards. The cache gives no stronger guarantee than the
// store's own eventual consistency. A zero TTL disables caching entirely.
//
// Roots come from callers, so the number of entries is bounded: every store
// first drops expired roots, then evicts the oldest ones beyond the limit.
type Cache struct {
	source     Source
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu         sync.Mutex
	entries    map[string]cacheEntry
	generation uint64

	group    singleflight.Group
	observer CacheObserver
	logger   zerolog.Logger
}

// NewCache wraps source with a TTL cache
func NewCache(source Source, ttl time.Duration) *Cache {
	return &Cache{
		source:     source,
		ttl:        ttl,
		maxEntries: DefaultCacheEntries,
		now:        time.Now,
		entries:    make(map[string]cacheEntry),
		logger:     zerolog.Nop(),
	}
}

// SetMaxEntries bounds the number of cached roots. Values below 1 select
// DefaultCacheEntries.
func (c *Cache) SetMaxEntries(n int) {
	if n < 1 {
		n = DefaultCacheEntries
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxEntries = n
	c.evictLocked(c.now())
}

// SetObserver attaches a metrics observer
func (c *Cache) SetObserver(observer CacheObserver) {
	c.observer = observer
}

// SetLogger sets the logger
func (c *Cache) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// SetClock replaces the clock used for TTL checks
func (c *Cache) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns the tree for prefix, building it when no fresh copy exists
func (c *Cache) Get(ctx context.Context, prefix string) (models.Tree, error) {
	if c.ttl <= 0 {
		return c.build(ctx, prefix)
	}

	c.mu.Lock()
	if e, ok := c.entries[prefix]; ok && c.now().Sub(e.builtAt) < c.ttl {
		c.mu.Unlock()
		c.lookup(true)
		return e.tree, nil
	}
	gen := c.generation
	c.mu.Unlock()
	c.lookup(false)

	// Keyed by generation so callers arriving after an invalidation never
	// join a build that started before it.
	key := strconv.FormatUint(gen, 10) + ":" + prefix
	ch := c.group.DoChan(key, func() (interface{}, error) {
		tree, err := c.build(context.WithoutCancel(ctx), prefix)
		if err != nil {
			return nil, err
		}
		if !hasErrors(tree) {
			c.mu.Lock()
			if c.generation == gen {
				now := c.now()
				delete(c.entries, prefix)
				c.evictLocked(now)
				if len(c.entries) >= c.maxEntries {
					c.evictOldestLocked()
				}
				c.entries[prefix] = cacheEntry{tree: tree, builtAt: now}
			}
			c.mu.Unlock()
		}
		return tree, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(models.Tree), nil
	}
}

// Invalidate drops every cached tree that could contain an entry under
// prefix: trees rooted at an ancestor of prefix and trees rooted beneath it.
func (c *Cache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	for root := range c.entries {
		if strings.HasPrefix(prefix, root) || strings.HasPrefix(root, prefix) {
			delete(c.entries, root)
		}
	}
	c.logger.Debug().Str("prefix", prefix).Uint64("generation", c.generation).Msg("tree cache invalidated")
}

// Len returns the number of cached trees
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// evictLocked drops expired roots, then the oldest roots beyond maxEntries.
// c.mu must be held.
func (c *Cache) evictLocked(now time.Time) {
	for root, e := range c.entries {
		if now.Sub(e.builtAt) >= c.ttl {
			delete(c.entries, root)
		}
	}
	for len(c.entries) > c.maxEntries {
		c.evictOldestLocked()
	}
}

func (c *Cache) evictOldestLocked() {
	var (
		oldest   string
		oldestAt time.Time
		found    bool
	)
	for root, e := range c.entries {
		if !found || e.builtAt.Before(oldestAt) {
			oldest, oldestAt, found = root, e.builtAt, true
		}
	}
	if found {
		delete(c.entries, oldest)
		c.logger.Debug().Str("prefix", oldest).Msg("tree cache full, evicted oldest root")
	}
}

func (c *Cache) build(ctx context.Context, prefix string) (models.Tree, error) {
	start := time.Now()
	tree, err := c.source.Build(ctx, prefix)
	if c.observer != nil {
		c.observer.ObserveBuild(err, time.Since(start))
	}
	return tree, err
}

func (c *Cache) lookup(hit bool) {
	if c.observer != nil {
		c.observer.ObserveCacheLookup(hit)
	}
}

// hasErrors reports whether any folder carries a failure marker; partial
// trees are served but not cached.
func hasErrors(tree models.Tree) bool {
	found := false
	tree.Walk("", func(_ string, n models.Node) {
		if n.Error != "" {
			found = true
		}
	})
	return found
}
