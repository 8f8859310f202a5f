// Package coordinator sequences every mutation a client can make: deletes,
// capability hand-out for previews and uploads, and upload completion. After
// each successful mutation it invalidates cached trees that may contain the
// affected key.
package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/damacus/bucketview/internal/models"
	"github.com/rs/zerolog"
)

// Deleter is the store operation the coordinator needs
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Issuer mints capabilities
type Issuer interface {
	Issue(ctx context.Context, key string, op models.Operation, ttl time.Duration) (models.Capability, error)
}

// Invalidator drops cached trees under a prefix
type Invalidator interface {
	Invalidate(prefix string)
}

// Coordinator is stateless apart from its collaborators and is safe for
// concurrent use.
type Coordinator struct {
	store  Deleter
	issuer Issuer
	cache  Invalidator
	logger zerolog.Logger
}

var (
	_ CapabilitySource   = (*Coordinator)(nil)
	_ CompletionNotifier = (*Coordinator)(nil)
)

// New creates a coordinator. cache may be nil when trees are not cached.
func New(store Deleter, issuer Issuer, cache Invalidator) *Coordinator {
	return &Coordinator{
		store:  store,
		issuer: issuer,
		cache:  cache,
		logger: zerolog.Nop(),
	}
}

func (c *Coordinator) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// Delete removes key. Deleting a key that does not exist succeeds, so a
// repeated delete is indistinguishable from the first.
func (c *Coordinator) Delete(ctx context.Context, key string) error {
	if key == "" {
		return models.NewValidationError("key", "Missing file key")
	}

	err := c.store.Delete(ctx, key)
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.logger.Debug().Str("key", key).Msg("delete of missing key treated as success")
	case err != nil:
		c.logger.Error().Err(err).Str("key", key).Msg("delete failed")
		return err
	default:
		c.logger.Info().Str("key", key).Msg("object deleted")
	}

	c.invalidate(key)
	return nil
}

// Preview returns a read capability for a file node
func (c *Coordinator) Preview(ctx context.Context, node models.Node) (models.Capability, error) {
	if node.IsFolder() {
		return models.Capability{}, models.NewValidationError("key", "folders cannot be previewed")
	}
	return c.IssueRead(ctx, node.Key)
}

// IssueRead returns a read capability with the default lifetime
func (c *Coordinator) IssueRead(ctx context.Context, key string) (models.Capability, error) {
	return c.issuer.Issue(ctx, key, models.OpRead, 0)
}

// IssueWrite returns a write capability with the default lifetime
func (c *Coordinator) IssueWrite(ctx context.Context, key string) (models.Capability, error) {
	return c.issuer.Issue(ctx, key, models.OpWrite, 0)
}

// CompleteUpload records that a client finished transferring key
func (c *Coordinator) CompleteUpload(ctx context.Context, key string) error {
	if key == "" {
		return models.NewValidationError("key", "Missing key")
	}
	c.logger.Info().Str("key", key).Msg("upload completed")
	c.invalidate(key)
	return nil
}

// NewUpload starts an in-process upload of basename into folder
func (c *Coordinator) NewUpload(transport Transport, folder, basename string) (*Upload, error) {
	u, err := NewUpload(c, transport, c, folder, basename)
	if err != nil {
		return nil, err
	}
	u.SetLogger(c.logger)
	return u, nil
}

func (c *Coordinator) invalidate(key string) {
	if c.cache != nil {
		c.cache.Invalidate(models.ParentPrefix(key))
	}
}
