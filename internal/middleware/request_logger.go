package middleware

import (
	"github.com/damacus/bucketview/internal/utils"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// RequestLogger logs one line per request and stores a request-scoped logger
// carrying the request id in the echo context. It must run after
// middleware.RequestID.
func RequestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	scoped := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			scopedLogger := logger.With().Str("request_id", id).Logger()
			c.Set(utils.ContextKeyLogger, &scopedLogger)
			return next(c)
		}
	}

	access := middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Info()
			if v.Error != nil {
				event = logger.Warn().Err(v.Error)
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return access(scoped(next))
	}
}

// Logger returns the request-scoped logger, or a no-op logger outside a
// request handled by RequestLogger. It never returns nil.
func Logger(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get(utils.ContextKeyLogger).(*zerolog.Logger); ok && l != nil {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}
