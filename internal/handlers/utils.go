package handlers

import (
	"errors"
	"net/http"

	"github.com/damacus/bucketview/internal/models"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// StatusResponse is the {status, message} envelope used by listing and delete
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ObjectsResponse is the body of GET /objects
type ObjectsResponse struct {
	Status  string      `json:"status"`
	Data    models.Tree `json:"data"`
	Message string      `json:"message,omitempty"`
}

// ErrorResponse is the {error} body of parameter and capability failures
type ErrorResponse struct {
	Error string `json:"error"`
}

const (
	statusSuccess = "success"
	statusError   = "error"
)

// RequireQuery returns the named query parameter or a 400 with message
func RequireQuery(c echo.Context, name, message string) (string, error) {
	v := c.QueryParam(name)
	if v == "" {
		return "", echo.NewHTTPError(http.StatusBadRequest, message)
	}
	return v, nil
}

// StoreMessage extracts the message a user should see for a failed store call
func StoreMessage(err error) string {
	var storeErr *models.StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Message()
	}
	return err.Error()
}

// ErrorHandler renders every error that reaches echo as {"error": message}.
// Validation errors become 400s; anything else unknown is a 500 whose detail
// is logged rather than returned.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := http.StatusText(code)

		var he *echo.HTTPError
		var ve *models.ValidationError
		switch {
		case errors.As(err, &he):
			code = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(code)
			}
		case errors.As(err, &ve):
			code = http.StatusBadRequest
			message = ve.Message
		default:
			logger.Error().Err(err).Str("uri", c.Request().RequestURI).Msg("unhandled error")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, ErrorResponse{Error: message})
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to write error response")
		}
	}
}
