package webapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/akademi-crypto/vidhub/pkg/clog"
	"github.com/akademi-crypto/vidhub/pkg/upload"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

type ProgressController struct {
	uploads   *upload.Service
	keepAlive time.Duration
	upgrader  websocket.Upgrader
}

func NewProgressController(uploads *upload.Service) *ProgressController {
	return &ProgressController{
		uploads:   uploads,
		keepAlive: uploads.Options().KeepAlive,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (c *ProgressController) GetUploadProgress(ctx echo.Context) error {
	rec, err := c.uploads.Get(ctx.Param("uploadId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Upload not found")
	}

	return ctx.JSON(http.StatusOK, envelope{Message: "Upload progress retrieved successfully", Data: rec})
}

func (c *ProgressController) GetAllUploadProgress(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, envelope{
		Message: "All upload progress retrieved successfully",
		Data:    c.uploads.ListAll(),
	})
}

func (c *ProgressController) GetUploadStats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, envelope{Message: "Upload statistics retrieved successfully", Data: c.uploads.Stats()})
}

func (c *ProgressController) CancelUpload(ctx echo.Context) error {
	applied, err := c.uploads.Cancel(ctx.Param("uploadId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Upload not found")
	}

	message := "Upload cancelled successfully"
	if !applied {
		message = "Upload can no longer be cancelled"
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"message":   message,
		"cancelled": applied,
	})
}

// StreamUploadProgress sends the upload's progress events as server sent
// events. The stream ends after the terminal event or when the client goes
// away.
func (c *ProgressController) StreamUploadProgress(ctx echo.Context) error {
	uploadID := ctx.Param("uploadId")

	sub, err := c.uploads.Subscribe(uploadID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Upload not found")
	}
	defer sub.Close()

	w := ctx.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, map[string]string{"type": "connected", "uploadId": uploadID}); err != nil {
		return nil
	}

	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Request().Context().Done():
			return nil

		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}

			if err := writeSSE(w, ev); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := writeSSE(w, upload.KeepAliveEvent()); err != nil {
				return nil
			}
		}
	}
}

func writeSSE(w *echo.Response, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		clog.UsingCtx(clog.HTTP).Errorf("Error marshalling SSE message: %s", err)
		return nil
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}

	w.Flush()
	return nil
}
