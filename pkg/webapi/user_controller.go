package webapi

import (
	"net/http"

	"github.com/akademi-crypto/vidhub/pkg/vhdb/stor"
	"github.com/akademi-crypto/vidhub/pkg/webapi/apimiddleware"
	"github.com/labstack/echo/v4"
)

type UserController struct {
	userStor stor.UserStor
}

func NewUserController(userStor stor.UserStor) *UserController {
	return &UserController{userStor: userStor}
}

func principal(ctx echo.Context) (apimiddleware.Principal, error) {
	p, ok := apimiddleware.GetPrincipal(ctx)
	if !ok {
		return p, echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
	}

	return p, nil
}

// ListUsers is restricted to admins by the route.
func (c *UserController) ListUsers(ctx echo.Context) error {
	users, err := c.userStor.ListUsers()
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, users)
}

// GetUser lets a user read their own record; admins may read any.
func (c *UserController) GetUser(ctx echo.Context) error {
	p, err := principal(ctx)
	if err != nil {
		return err
	}

	id := ctx.Param("id")
	if p.UserID != id && !p.IsAdmin() {
		return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	}

	user, err := c.userStor.GetUserByID(id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "User not found")
	}

	return ctx.JSON(http.StatusOK, user)
}

// UpdateUser only allows users to change their own username and avatar.
func (c *UserController) UpdateUser(ctx echo.Context) error {
	p, err := principal(ctx)
	if err != nil {
		return err
	}

	id := ctx.Param("id")
	if p.UserID != id {
		return echo.NewHTTPError(http.StatusForbidden, "Forbidden")
	}

	var req struct {
		Username *string `json:"username" validate:"omitempty,min=1,max=191"`
		Avatar   *string `json:"avatar" validate:"omitempty,url"`
	}

	if err := bindAndValidate(ctx, &req); err != nil {
		return err
	}

	user, err := c.userStor.UpdateUser(id, stor.UserUpdates{Username: req.Username, Avatar: req.Avatar})
	if err != nil {
		return err
	}

	return ctx.JSON(http.StatusOK, user)
}
