package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/damacus/bucketview/internal/middleware"
	"github.com/damacus/bucketview/internal/models"
	"github.com/damacus/bucketview/internal/utils"
	"github.com/labstack/echo/v4"
)

// MaxMemoryObjectSize bounds a single upload to the memory backend
const MaxMemoryObjectSize = 64 << 20

// CapabilityStore verifies and redeems capabilities minted by the memory backend
type CapabilityStore interface {
	Authorize(op models.Operation, query url.Values) (string, error)
	Get(ctx context.Context, key string) ([]byte, time.Time, error)
	Put(ctx context.Context, key string, data []byte) error
}

// StoreHandler plays the part of the S3 endpoint for the memory backend:
// requests carry no credentials, only a capability in the query string.
type StoreHandler struct {
	store CapabilityStore
}

func NewStoreHandler(store CapabilityStore) *StoreHandler {
	return &StoreHandler{store: store}
}

// Redeem serves GET/HEAD with a read capability and PUT with a write capability
func (h *StoreHandler) Redeem(c echo.Context) error {
	op, ok := models.OperationForMethod(c.Request().Method)
	if !ok {
		return echo.NewHTTPError(http.StatusMethodNotAllowed, "Method not allowed")
	}

	key, err := h.store.Authorize(op, c.QueryParams())
	if err != nil {
		return capabilityError(err)
	}

	if op == models.OpWrite {
		return h.put(c, key)
	}
	return h.get(c, key)
}

func (h *StoreHandler) get(c echo.Context, key string) error {
	data, modified, err := h.store.Get(c.Request().Context(), key)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "The specified key does not exist.")
		}
		return err
	}

	headers := c.Response().Header()
	headers.Set(echo.HeaderContentDisposition, fmt.Sprintf("inline; filename=%q", models.BaseName(key)))
	headers.Set(echo.HeaderLastModified, modified.UTC().Format(http.TimeFormat))
	headers.Set(echo.HeaderContentLength, strconv.Itoa(len(data)))
	return c.Blob(http.StatusOK, utils.ContentTypeFromExt(key), data)
}

func (h *StoreHandler) put(c echo.Context, key string) error {
	body := http.MaxBytesReader(c.Response(), c.Request().Body, MaxMemoryObjectSize)
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "Your proposed upload exceeds the maximum allowed size")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "Failed to read request body")
	}

	if err := h.store.Put(c.Request().Context(), key, data); err != nil {
		return err
	}
	middleware.Logger(c).Debug().Str("key", key).Int("size", len(data)).Msg("object stored")
	return c.NoContent(http.StatusOK)
}

func capabilityError(err error) error {
	switch {
	case errors.Is(err, models.ErrCapabilityExpired):
		return echo.NewHTTPError(http.StatusForbidden, "Request has expired")
	case errors.Is(err, models.ErrCapabilityInvalid):
		return echo.NewHTTPError(http.StatusForbidden, "Access Denied")
	}
	return err
}
