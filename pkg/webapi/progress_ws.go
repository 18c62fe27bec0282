package webapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// WatchUploadProgress is the websocket variant of StreamUploadProgress. Ping
// frames replace the keep-alive events.
func (c *ProgressController) WatchUploadProgress(ctx echo.Context) error {
	sub, err := c.uploads.Subscribe(ctx.Param("uploadId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "Upload not found")
	}
	defer sub.Close()

	conn, err := c.upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "websocket upgrade")
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(c.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return nil

		case ev, ok := <-sub.Events():
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "upload finished")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				return nil
			}

			if err := conn.WriteJSON(ev); err != nil {
				return nil
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return nil
			}
		}
	}
}
