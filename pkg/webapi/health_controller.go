package webapi

import (
	"net/http"
	"time"

	"github.com/akademi-crypto/vidhub/pkg/vhdb"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

type HealthController struct {
	db *gorm.DB
}

func NewHealthController(db *gorm.DB) *HealthController {
	return &HealthController{db: db}
}

func (c *HealthController) GetHealthStatus(ctx echo.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)

	if err := vhdb.Ping(c.db); err != nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":    "ERROR",
			"timestamp": now,
			"database":  "disconnected",
			"error":     err.Error(),
		})
	}

	return ctx.JSON(http.StatusOK, map[string]string{
		"status":    "OK",
		"timestamp": now,
		"database":  "connected",
	})
}

func (c *HealthController) GetDatabaseHealth(ctx echo.Context) error {
	version, err := vhdb.Version(c.db)
	if err != nil {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":   "ERROR",
			"database": "disconnected",
			"error":    err.Error(),
		})
	}

	return ctx.JSON(http.StatusOK, map[string]string{
		"status":   "OK",
		"database": "connected",
		"version":  version,
	})
}
