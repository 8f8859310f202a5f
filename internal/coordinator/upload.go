package coordinator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/damacus/bucketview/internal/models"
	"github.com/rs/zerolog"
)

// UploadState is a step of the upload state machine
type UploadState int

const (
	StateIdle UploadState = iota
	StateAwaitingCapability
	StateAwaitingTransfer
	StateComplete
	StateFailed
)

func (s UploadState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingCapability:
		return "awaiting_capability"
	case StateAwaitingTransfer:
		return "awaiting_transfer"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("UploadState(%d)", int(s))
}

// Terminal reports whether no further transition can happen
func (s UploadState) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// ErrUploadStarted is returned when Run is called on an upload that already ran
var ErrUploadStarted = errors.New("upload already started")

// CapabilitySource hands out write capabilities
type CapabilitySource interface {
	IssueWrite(ctx context.Context, key string) (models.Capability, error)
}

// Transport moves bytes straight to a capability URL
type Transport interface {
	Put(ctx context.Context, url string, body io.Reader, size int64) error
}

// CompletionNotifier is told that a tree containing key is now stale
type CompletionNotifier interface {
	CompleteUpload(ctx context.Context, key string) error
}

// Upload drives one file through
// Idle -> AwaitingCapability -> AwaitingTransfer -> Complete | Failed.
// Any failure moves it to Failed with the error reported as is; nothing is
// retried.
type Upload struct {
	source    CapabilitySource
	transport Transport
	notifier  CompletionNotifier
	key       string
	logger    zerolog.Logger

	mu           sync.Mutex
	state        UploadState
	err          error
	onTransition func(from, to UploadState)
}

// NewUpload prepares an upload of basename into folder. notifier may be nil.
func NewUpload(source CapabilitySource, transport Transport, notifier CompletionNotifier, folder, basename string) (*Upload, error) {
	if basename == "" {
		return nil, models.NewValidationError("basename", "Missing file name")
	}
	if strings.Contains(basename, models.Delimiter) {
		return nil, models.NewValidationError("basename", "File name must not contain "+models.Delimiter)
	}
	return &Upload{
		source:    source,
		transport: transport,
		notifier:  notifier,
		key:       models.UploadKey(folder, basename),
		logger:    zerolog.Nop(),
		state:     StateIdle,
	}, nil
}

func (u *Upload) SetLogger(logger zerolog.Logger) {
	u.logger = logger
}

// OnTransition registers fn to be called on every state change
func (u *Upload) OnTransition(fn func(from, to UploadState)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.onTransition = fn
}

// Key is the destination object key
func (u *Upload) Key() string {
	return u.key
}

func (u *Upload) State() UploadState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

// Err is the failure that moved the upload to Failed, if any
func (u *Upload) Err() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.err
}

// Run performs the upload. It may be called once.
func (u *Upload) Run(ctx context.Context, body io.Reader, size int64) error {
	// Claim the upload in the same critical section as the Idle check so
	// concurrent callers cannot both start it.
	u.mu.Lock()
	if u.state != StateIdle {
		u.mu.Unlock()
		return ErrUploadStarted
	}
	u.state = StateAwaitingCapability
	fn := u.onTransition
	u.mu.Unlock()
	if fn != nil {
		fn(StateIdle, StateAwaitingCapability)
	}

	capability, err := u.source.IssueWrite(ctx, u.key)
	if err != nil {
		return u.fail(fmt.Errorf("request upload url: %w", err))
	}

	u.transition(StateAwaitingTransfer)
	if err := u.transport.Put(ctx, capability.URL, body, size); err != nil {
		return u.fail(fmt.Errorf("transfer %s: %w", u.key, err))
	}

	u.transition(StateComplete)
	if u.notifier != nil {
		// The object is already stored; a lost notification only delays the
		// next tree refresh.
		if err := u.notifier.CompleteUpload(ctx, u.key); err != nil {
			u.logger.Warn().Err(err).Str("key", u.key).Msg("upload completion notice failed")
		}
	}
	u.logger.Info().Str("key", u.key).Int64("size", size).Msg("upload complete")
	return nil
}

func (u *Upload) fail(err error) error {
	u.mu.Lock()
	u.err = err
	u.mu.Unlock()
	u.transition(StateFailed)
	u.logger.Error().Err(err).Str("key", u.key).Msg("upload failed")
	return err
}

func (u *Upload) transition(to UploadState) {
	u.mu.Lock()
	from := u.state
	u.state = to
	fn := u.onTransition
	u.mu.Unlock()

	if fn != nil {
		fn(from, to)
	}
}
