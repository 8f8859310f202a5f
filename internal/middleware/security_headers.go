package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// The service only answers JSON and raw object bytes, so nothing it serves
// may load or embed anything.
const contentSecurityPolicy = "default-src 'none'; frame-ancestors 'none'; sandbox"

// SecurityHeaders sets the baseline response headers. Object previews are
// served to other origins, so the referrer policy never leaks capability
// query strings.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			headers := c.Response().Header()
			headers.Set("X-Frame-Options", "DENY")
			headers.Set("X-Content-Type-Options", "nosniff")
			headers.Set("Referrer-Policy", "no-referrer")
			headers.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=()")
			headers.Set("Content-Security-Policy", contentSecurityPolicy)
			headers.Set("Cache-Control", "no-store")

			if isSecureRequest(c) {
				headers.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			return next(c)
		}
	}
}

func isSecureRequest(c echo.Context) bool {
	req := c.Request()
	if req.TLS != nil {
		return true
	}

	return strings.EqualFold(req.Header.Get("X-Forwarded-Proto"), "https")
}
