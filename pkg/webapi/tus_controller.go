package webapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// TusSessions resolves a finished tus upload to its upload session.
type TusSessions interface {
	SessionFor(tusID string) (string, bool)
}

type TusController struct {
	sessions TusSessions
}

func NewTusController(sessions TusSessions) *TusController {
	return &TusController{sessions: sessions}
}

// GetTusSession answers 404 until the tus upload is finished and its
// session has started.
func (c *TusController) GetTusSession(ctx echo.Context) error {
	uploadID, ok := c.sessions.SessionFor(ctx.Param("tusId"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "No upload session for this tus upload")
	}

	return ctx.JSON(http.StatusOK, map[string]string{"uploadId": uploadID})
}
