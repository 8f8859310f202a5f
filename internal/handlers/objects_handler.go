package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/damacus/bucketview/internal/middleware"
	"github.com/damacus/bucketview/internal/models"
	"github.com/labstack/echo/v4"
)

// TreeSource yields the tree for a prefix; *tree.Cache in production
type TreeSource interface {
	Get(ctx context.Context, prefix string) (models.Tree, error)
}

// Mutator is the slice of the coordinator the handlers drive
type Mutator interface {
	Delete(ctx context.Context, key string) error
	IssueRead(ctx context.Context, key string) (models.Capability, error)
	IssueWrite(ctx context.Context, key string) (models.Capability, error)
	CompleteUpload(ctx context.Context, key string) error
}

type ObjectsHandler struct {
	trees   TreeSource
	mutator Mutator
}

func NewObjectsHandler(trees TreeSource, mutator Mutator) *ObjectsHandler {
	return &ObjectsHandler{trees: trees, mutator: mutator}
}

// ListObjects returns the tree under ?prefix (the whole bucket by default)
func (h *ObjectsHandler) ListObjects(c echo.Context) error {
	prefix := c.QueryParam("prefix")

	tree, err := h.trees.Get(c.Request().Context(), prefix)
	if err != nil {
		middleware.Logger(c).Error().Err(err).Str("prefix", prefix).Msg("failed to list objects")
		return c.JSON(http.StatusInternalServerError, StatusResponse{Status: statusError, Message: StoreMessage(err)})
	}
	return c.JSON(http.StatusOK, ObjectsResponse{Status: statusSuccess, Data: tree})
}

// UploadURL issues a write capability for ?key
func (h *ObjectsHandler) UploadURL(c echo.Context) error {
	return h.issue(c, h.mutator.IssueWrite)
}

// SignedURL issues a read capability for ?key
func (h *ObjectsHandler) SignedURL(c echo.Context) error {
	return h.issue(c, h.mutator.IssueRead)
}

func (h *ObjectsHandler) issue(c echo.Context, issue func(context.Context, string) (models.Capability, error)) error {
	key, err := RequireQuery(c, "key", "Missing key")
	if err != nil {
		return err
	}

	capability, err := issue(c.Request().Context(), key)
	if err != nil {
		if models.IsValidation(err) {
			return err
		}
		middleware.Logger(c).Error().Err(err).Str("key", key).Msg("failed to issue capability")
		return echo.NewHTTPError(http.StatusInternalServerError, StoreMessage(err))
	}
	return c.JSON(http.StatusOK, capability)
}

// DeleteFile removes ?key. Deleting a missing key succeeds.
func (h *ObjectsHandler) DeleteFile(c echo.Context) error {
	key, err := RequireQuery(c, "key", "Missing file key")
	if err != nil {
		return err
	}

	if err := h.mutator.Delete(c.Request().Context(), key); err != nil {
		var ve *models.ValidationError
		if errors.As(err, &ve) {
			return err
		}
		middleware.Logger(c).Error().Err(err).Str("key", key).Msg("failed to delete object")
		return c.JSON(http.StatusInternalServerError, StatusResponse{Status: statusError, Message: StoreMessage(err)})
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: statusSuccess, Message: "File deleted"})
}

// UploadComplete is called by a client after its direct PUT succeeded
func (h *ObjectsHandler) UploadComplete(c echo.Context) error {
	key, err := RequireQuery(c, "key", "Missing key")
	if err != nil {
		return err
	}

	if err := h.mutator.CompleteUpload(c.Request().Context(), key); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: statusSuccess, Message: "Upload recorded"})
}
