package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/damacus/bucketview/internal/services"
	"github.com/damacus/bucketview/internal/utils"
	"github.com/labstack/echo/v4"
)

// APIToken admits requests carrying the shared secret of the upstream proxy
// that authenticates humans. An empty token disables the check. Health,
// metrics and capability redemption are always public; redemption is
// authorized by the capability itself.
func APIToken(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if token == "" || isPublicPath(c.Request().URL.Path) {
				return next(c)
			}

			presented := c.Request().Header.Get(utils.HeaderAPIToken)
			if presented == "" {
				presented = bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}
			return next(c)
		}
	}
}

func isPublicPath(path string) bool {
	return path == "/health" || path == "/metrics" || path == services.MemoryStorePath
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
