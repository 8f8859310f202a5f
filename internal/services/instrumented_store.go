package services

import (
	"context"
	"net/url"
	"time"

	"github.com/damacus/bucketview/internal/models"
	"github.com/rs/zerolog"
)

// StoreObserver receives one observation per store call
type StoreObserver interface {
	ObserveStore(op string, err error, dur time.Duration)
}

// InstrumentedStore decorates an ObjectStore with metrics and debug logging.
// It adds no retries; failures pass through unchanged.
type InstrumentedStore struct {
	inner    ObjectStore
	observer StoreObserver
	logger   zerolog.Logger
}

var _ ObjectStore = (*InstrumentedStore)(nil)

// NewInstrumentedStore wraps inner. A nil observer disables metrics.
func NewInstrumentedStore(inner ObjectStore, observer StoreObserver, logger zerolog.Logger) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, observer: observer, logger: logger}
}

func (s *InstrumentedStore) List(ctx context.Context, prefix string) (Listing, error) {
	start := time.Now()
	listing, err := s.inner.List(ctx, prefix)
	s.observe("list", prefix, err, start)
	return listing, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Delete(ctx, key)
	s.observe("delete", key, err, start)
	return err
}

func (s *InstrumentedStore) Presign(ctx context.Context, key string, op models.Operation, ttl time.Duration) (*url.URL, error) {
	start := time.Now()
	u, err := s.inner.Presign(ctx, key, op, ttl)
	s.observe("presign_"+string(op), key, err, start)
	return u, err
}

func (s *InstrumentedStore) observe(op, key string, err error, start time.Time) {
	dur := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveStore(op, err, dur)
	}
	event := s.logger.Debug()
	if err != nil {
		event = s.logger.Warn().Err(err)
	}
	event.Str("op", op).Str("key", key).Dur("duration", dur).Msg("store call")
}
