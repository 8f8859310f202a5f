// Package tree rebuilds a folder hierarchy from a flat store that only offers
// delimited prefix listings.
//
// A build lists the root prefix, then lists every returned common prefix
// concurrently, recursing until a level has no common prefixes. Depth and the
// number of in-flight listing calls are both bounded so that a pathological
// or hostile namespace cannot exhaust the process.
package tree

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/damacus/bucketview/internal/models"
	"github.com/damacus/bucketview/internal/services"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultMaxDepth       = 64
	DefaultMaxConcurrency = 16
	DefaultListTimeout    = 10 * time.Second
)

// Lister is the one store operation the builder needs
type Lister interface {
	List(ctx context.Context, prefix string) (services.Listing, error)
}

// Options bounds a build. Zero values select the defaults.
type Options struct {
	// MaxDepth is the deepest listing performed; the root listing is depth 0.
	// Folders that would need a deeper listing are returned truncated.
	MaxDepth int
	// MaxConcurrency caps in-flight listing calls within one build and the
	// number of sibling subtrees walked at once on each level.
	MaxConcurrency int
	// ListTimeout applies to each listing call. Negative disables it.
	ListTimeout time.Duration
	// Strict aborts the whole build on any failing sub-listing. Otherwise the
	// failure is recorded on the folder and the rest of the tree is returned.
	Strict bool
}

func (o Options) withDefaults() Options {
	if o.MaxDepth <= 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = DefaultMaxConcurrency
	}
	if o.ListTimeout == 0 {
		o.ListTimeout = DefaultListTimeout
	}
	return o
}

// Builder assembles trees. It holds no per-build state and is safe for
// concurrent use.
type Builder struct {
	lister Lister
	opts   Options
	logger zerolog.Logger
}

// NewBuilder creates a builder over lister
func NewBuilder(lister Lister, opts Options) *Builder {
	return &Builder{
		lister: lister,
		opts:   opts.withDefaults(),
		logger: zerolog.Nop(),
	}
}

// SetLogger sets the logger used for subtree failures
func (b *Builder) SetLogger(logger zerolog.Logger) {
	b.logger = logger
}

// Options returns the effective bounds
func (b *Builder) Options() Options {
	return b.opts
}

// Build lists prefix and everything beneath it. The result is a snapshot:
// concurrent mutations may leave different branches at different points in
// time. An empty store yields an empty, non-nil tree.
func (b *Builder) Build(ctx context.Context, prefix string) (models.Tree, error) {
	w := &walk{
		Builder: b,
		sem:     semaphore.NewWeighted(int64(b.opts.MaxConcurrency)),
	}
	nodes, err := w.level(ctx, prefix, 0)
	if err != nil {
		return nil, err
	}
	// Non-strict builds swallow subtree failures; a caller that gave up
	// still gets its cancellation back.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return models.Tree(nodes), nil
}

// walk is the state of a single build
type walk struct {
	*Builder
	sem *semaphore.Weighted
}

// list performs one listing while holding a concurrency slot. The slot is
// released before any recursion so a parent never blocks its own children.
func (w *walk) list(ctx context.Context, prefix string) (services.Listing, error) {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return services.Listing{}, err
	}
	defer w.sem.Release(1)

	if w.opts.ListTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.ListTimeout)
		defer cancel()
	}
	return w.lister.List(ctx, prefix)
}

func (w *walk) level(ctx context.Context, prefix string, depth int) ([]models.Node, error) {
	listing, err := w.list(ctx, prefix)
	if err != nil {
		return nil, err
	}

	folders := childPrefixes(prefix, listing.CommonPrefixes)
	files := childObjects(prefix, listing.Objects)

	nodes := make([]models.Node, len(folders), len(folders)+len(files))
	// The semaphore bounds listing calls across the whole build; the group
	// limit bounds goroutines per level, so a wide level does not park one
	// goroutine per sibling on the semaphore. g.Go blocks this goroutine,
	// which holds no listing slot at this point.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.MaxConcurrency)
	for i, folder := range folders {
		nodes[i] = models.NewFolderNode(folder, nil)
		if depth+1 > w.opts.MaxDepth {
			nodes[i].Truncated = true
			continue
		}
		g.Go(func() error {
			children, err := w.level(gctx, folder, depth+1)
			if err != nil {
				if w.opts.Strict {
					return err
				}
				w.logger.Warn().Err(err).Str("prefix", folder).Msg("sub-listing failed, marking folder")
				nodes[i].Error = errorMessage(err)
				return nil
			}
			nodes[i].Children = children
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, obj := range files {
		nodes = append(nodes, models.NewFileNode(obj.Key, obj.Size, obj.LastModified))
	}
	return nodes, nil
}

// childPrefixes keeps store order, drops duplicates and anything that would
// break prefix closure.
func childPrefixes(prefix string, commonPrefixes []string) []string {
	seen := make(map[string]bool, len(commonPrefixes))
	out := make([]string, 0, len(commonPrefixes))
	for _, p := range commonPrefixes {
		if p == prefix || !strings.HasPrefix(p, prefix) || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// childObjects applies the same rules to files, including the directory
// marker rule: an object keyed exactly as the listed prefix is not a file.
func childObjects(prefix string, objects []services.ObjectSummary) []services.ObjectSummary {
	seen := make(map[string]bool, len(objects))
	out := make([]services.ObjectSummary, 0, len(objects))
	for _, obj := range objects {
		if obj.Key == prefix || !strings.HasPrefix(obj.Key, prefix) || seen[obj.Key] {
			continue
		}
		seen[obj.Key] = true
		out = append(out, obj)
	}
	return out
}

func errorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "listing timed out"
	}
	var storeErr *models.StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Message()
	}
	return err.Error()
}
