package webapi

import (
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/akademi-crypto/vidhub/pkg/clog"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// LogController inspects and changes the level and output of a logging
// context at runtime.
type LogController struct {
	mu      sync.Mutex
	outputs map[string]string
}

func NewLogController() *LogController {
	return &LogController{outputs: map[string]string{clog.Global: "stdout"}}
}

type logSettings struct {
	Context string `json:"context"`
	Level   string `json:"log_level"`
	Output  string `json:"log_output"`
}

func (c *LogController) ShowCurrentLogging(ctx echo.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ctx.JSON(http.StatusOK, c.settingsFor(contextOrGlobal(ctx.QueryParam("context"))))
}

// SetLogging applies log_level and/or log_output. If the output cannot be
// opened the level change is rolled back.
func (c *LogController) SetLogging(ctx echo.Context) error {
	var req logSettings
	if err := ctx.Bind(&req); err != nil {
		return err
	}

	logCtx := contextOrGlobal(req.Context)

	c.mu.Lock()
	defer c.mu.Unlock()

	if logCtx != clog.Global && !clog.HasContext(logCtx) {
		clog.AddLoggingContext(logCtx, os.Stdout)
		c.outputs[logCtx] = "stdout"
	}

	oldLevel := clog.Level(logCtx).String()
	if req.Level != "" {
		if err := clog.SetLevelFromString(logCtx, req.Level); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, errors.Wrapf(err, "invalid log level %s", req.Level).Error())
		}
	}

	if req.Output != "" {
		w, err := openLogOutput(req.Output)
		if err != nil {
			_ = clog.SetLevelFromString(logCtx, oldLevel)
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}

		clog.SetOutput(logCtx, w)
		c.outputs[logCtx] = req.Output
	}

	return ctx.JSON(http.StatusOK, c.settingsFor(logCtx))
}

func (c *LogController) settingsFor(logCtx string) logSettings {
	output, ok := c.outputs[logCtx]
	if !ok {
		output = c.outputs[clog.Global]
	}

	return logSettings{Context: logCtx, Level: clog.Level(logCtx).String(), Output: output}
}

func contextOrGlobal(logCtx string) string {
	if logCtx == "" {
		return clog.Global
	}

	return logCtx
}

func openLogOutput(output string) (io.WriteCloser, error) {
	switch output {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	f, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open log output %s", output)
	}

	return f, nil
}
