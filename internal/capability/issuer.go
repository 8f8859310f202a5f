// Package capability mints short-lived URLs that let an untrusted client
// perform exactly one operation on exactly one object without ever seeing the
// store's long-lived credentials.
package capability

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/damacus/bucketview/internal/models"
	"github.com/rs/zerolog"
)

const (
	// DefaultTTL applies when a caller asks for a non-positive lifetime
	DefaultTTL = time.Hour
	// MaxTTL is the longest lifetime S3 accepts for a presigned URL
	MaxTTL = 7 * 24 * time.Hour
)

// Presigner is the store operation capabilities are built on
type Presigner interface {
	Presign(ctx context.Context, key string, op models.Operation, ttl time.Duration) (*url.URL, error)
}

// Observer is notified of every issue attempt
type Observer interface {
	ObserveCapability(op models.Operation, err error)
}

// Issuer hands out capabilities. It performs no existence check: a read
// capability for a missing key is issued and only fails when redeemed.
type Issuer struct {
	presigner  Presigner
	defaultTTL time.Duration
	now        func() time.Time
	observer   Observer
	logger     zerolog.Logger
}

// NewIssuer creates an issuer. defaultTTL <= 0 selects DefaultTTL.
func NewIssuer(presigner Presigner, defaultTTL time.Duration) *Issuer {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if defaultTTL > MaxTTL {
		defaultTTL = MaxTTL
	}
	return &Issuer{
		presigner:  presigner,
		defaultTTL: defaultTTL,
		now:        time.Now,
		logger:     zerolog.Nop(),
	}
}

func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

func (i *Issuer) SetObserver(observer Observer) {
	i.observer = observer
}

func (i *Issuer) SetLogger(logger zerolog.Logger) {
	i.logger = logger
}

// DefaultTTL returns the lifetime used when none is requested
func (i *Issuer) DefaultTTL() time.Duration {
	return i.defaultTTL
}

// Issue mints a capability for op on key. ttl <= 0 uses the default
// lifetime; anything above MaxTTL is clamped.
func (i *Issuer) Issue(ctx context.Context, key string, op models.Operation, ttl time.Duration) (models.Capability, error) {
	c, err := i.issue(ctx, key, op, ttl)
	if i.observer != nil {
		i.observer.ObserveCapability(op, err)
	}
	return c, err
}

// Read is shorthand for Issue with OpRead and the default lifetime
func (i *Issuer) Read(ctx context.Context, key string) (models.Capability, error) {
	return i.Issue(ctx, key, models.OpRead, 0)
}

// Write is shorthand for Issue with OpWrite and the default lifetime
func (i *Issuer) Write(ctx context.Context, key string) (models.Capability, error) {
	return i.Issue(ctx, key, models.OpWrite, 0)
}

func (i *Issuer) issue(ctx context.Context, key string, op models.Operation, ttl time.Duration) (models.Capability, error) {
	if key == "" {
		return models.Capability{}, models.NewValidationError("key", "Missing key")
	}
	if !op.Valid() {
		return models.Capability{}, models.NewValidationError("operation", fmt.Sprintf("unsupported operation %q", op))
	}
	if ttl <= 0 {
		ttl = i.defaultTTL
	}
	if ttl > MaxTTL {
		ttl = MaxTTL
	}

	// Signing happens at whole-second resolution, so report the same instant
	// the signature encodes.
	issuedAt := i.now().Truncate(time.Second)
	u, err := i.presigner.Presign(ctx, key, op, ttl)
	if err != nil {
		i.logger.Error().Err(err).Str("key", key).Str("operation", string(op)).Msg("failed to presign")
		return models.Capability{}, err
	}

	i.logger.Debug().Str("key", key).Str("operation", string(op)).Dur("ttl", ttl).Msg("capability issued")
	return models.Capability{
		Key:       key,
		Operation: op,
		ExpiresAt: issuedAt.Add(ttl).UTC(),
		URL:       u.String(),
	}, nil
}
