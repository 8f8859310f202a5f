package handlers

import (
	"context"
	"net/http"

	"github.com/damacus/bucketview/internal/middleware"
	"github.com/damacus/bucketview/internal/services"
	"github.com/labstack/echo/v4"
)

// UsageSource reports bucket usage; *services.UsageReporter in production
type UsageSource interface {
	BucketUsage(ctx context.Context) (services.BucketUsage, error)
}

type UsageHandler struct {
	usage UsageSource
}

// NewUsageHandler creates the handler. A nil source answers 501.
func NewUsageHandler(usage UsageSource) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// GetUsage returns the object count and size of the configured bucket
func (h *UsageHandler) GetUsage(c echo.Context) error {
	if h.usage == nil {
		return echo.NewHTTPError(http.StatusNotImplemented, "Usage reporting is disabled")
	}

	usage, err := h.usage.BucketUsage(c.Request().Context())
	if err != nil {
		middleware.Logger(c).Error().Err(err).Msg("failed to read bucket usage")
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to read bucket usage")
	}
	return c.JSON(http.StatusOK, usage)
}
