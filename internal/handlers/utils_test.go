package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/damacus/bucketview/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireQuery(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/signed-url?key=docs%2Fa.txt", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	key, err := RequireQuery(c, "key", "Missing key")
	assert.NoError(t, err)
	assert.Equal(t, "docs/a.txt", key)

	_, err = RequireQuery(c, "prefix", "Missing prefix")
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	assert.Equal(t, "Missing prefix", httpErr.Message)
}

func TestStoreMessage(t *testing.T) {
	wrapped := &models.StoreError{Op: "list", Key: "a/", Err: errors.New("The Access Key Id you provided does not exist in our records.")}

	assert.Equal(t, "The Access Key Id you provided does not exist in our records.", StoreMessage(wrapped))
	assert.Equal(t, "plain", StoreMessage(errors.New("plain")))
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "http error",
			method:   http.MethodGet,
			err:      echo.NewHTTPError(http.StatusBadRequest, "Missing key"),
			wantCode: http.StatusBadRequest,
			wantBody: "Missing key",
		},
		{
			name:     "validation error",
			method:   http.MethodGet,
			err:      models.NewValidationError("basename", "Missing file name"),
			wantCode: http.StatusBadRequest,
			wantBody: "Missing file name",
		},
		{
			name:     "unknown error hides detail",
			method:   http.MethodGet,
			err:      errors.New("dial tcp: connection refused"),
			wantCode: http.StatusInternalServerError,
			wantBody: "Internal Server Error",
		},
		{
			name:     "router not found",
			method:   http.MethodGet,
			err:      echo.ErrNotFound,
			wantCode: http.StatusNotFound,
			wantBody: "Not Found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(tt.method, "/", nil), rec)

			ErrorHandler(zerolog.Nop())(tt.err, c)

			assert.Equal(t, tt.wantCode, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantBody, body.Error)
		})
	}
}

func TestErrorHandler_HeadHasNoBody(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodHead, "/", nil), rec)

	ErrorHandler(zerolog.Nop())(echo.NewHTTPError(http.StatusForbidden, "Access Denied"), c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Body.String())
}
