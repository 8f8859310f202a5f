package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityHeadersSetsBaselineHeaders(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "geolocation=(), microphone=(), camera=()", rec.Header().Get("Permissions-Policy"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestSecurityHeadersHSTS(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    string
	}{
		{"direct TLS", func(r *http.Request) { r.TLS = &tls.ConnectionState{} }, "max-age=31536000; includeSubDomains"},
		{"terminated at proxy", func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "HTTPS") }, "max-age=31536000; includeSubDomains"},
		{"plain http behind proxy", func(r *http.Request) { r.Header.Set("X-Forwarded-Proto", "http") }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.Use(SecurityHeaders())
			e.GET("/objects", func(c echo.Context) error {
				return c.JSON(http.StatusOK, map[string]string{"status": "success"})
			})

			req := httptest.NewRequest(http.MethodGet, "/objects", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, rec.Header().Get("Strict-Transport-Security"))
		})
	}
}

func TestSecurityHeadersOnErrors(t *testing.T) {
	e := echo.New()
	e.Use(SecurityHeaders())

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
