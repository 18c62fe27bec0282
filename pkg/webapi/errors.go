package webapi

import (
	"net/http"

	"github.com/akademi-crypto/vidhub/pkg/catalog"
	"github.com/akademi-crypto/vidhub/pkg/clog"
	"github.com/akademi-crypto/vidhub/pkg/upload"
	"github.com/akademi-crypto/vidhub/pkg/vhdb/stor"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type errorResponse struct {
	Error string `json:"error"`
}

// StatusFor maps service errors onto HTTP status codes.
func StatusFor(err error) int {
	var he *echo.HTTPError

	switch {
	case errors.As(err, &he):
		return he.Code
	case errors.Is(err, upload.ErrInvalidInput), errors.Is(err, stor.ErrAlreadyExists):
		return http.StatusBadRequest
	case errors.Is(err, upload.ErrNotFound), errors.Is(err, stor.ErrNotFound), errors.Is(err, catalog.ErrNoVideos):
		return http.StatusNotFound
	case errors.Is(err, upload.ErrCancelled):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorHandler writes every error as {"error": message}.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := StatusFor(err)
	message := err.Error()

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(he.Code)
		}
	}

	if status >= http.StatusInternalServerError {
		clog.UsingCtx(clog.HTTP).Errorf("%s %s: %s", c.Request().Method, c.Request().URL.Path, err)
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}

	_ = c.JSON(status, errorResponse{Error: message})
}

// envelope is the response shape shared by the video endpoints.
type envelope struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
