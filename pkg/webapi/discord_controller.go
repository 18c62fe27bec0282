package webapi

import (
	"context"
	"net/http"

	"github.com/akademi-crypto/vidhub/pkg/clog"
	"github.com/akademi-crypto/vidhub/pkg/discord"
	"github.com/akademi-crypto/vidhub/pkg/vhdb/stor"
	"github.com/labstack/echo/v4"
)

type DiscordAuthenticator interface {
	Authenticate(ctx context.Context, code string) (*discord.User, error)
}

type DiscordController struct {
	auth     DiscordAuthenticator
	userStor stor.UserStor
}

func NewDiscordController(auth DiscordAuthenticator, userStor stor.UserStor) *DiscordController {
	return &DiscordController{auth: auth, userStor: userStor}
}

type discordProfile struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	Discriminator string  `json:"discriminator"`
	Email         string  `json:"email"`
	Avatar        *string `json:"avatar"`
	Verified      bool    `json:"verified"`
}

// DiscordCallback exchanges the authorization code from the mobile app and
// refreshes the linked user's username and avatar.
func (c *DiscordController) DiscordCallback(ctx echo.Context) error {
	var req struct {
		Code string `json:"code"`
	}

	if err := ctx.Bind(&req); err != nil || req.Code == "" {
		return ctx.JSON(http.StatusBadRequest, map[string]interface{}{
			"success": false,
			"error":   "Authorization code not found",
		})
	}

	du, err := c.auth.Authenticate(ctx.Request().Context(), req.Code)
	if err != nil {
		clog.UsingCtx(clog.HTTP).Errorf("Discord OAuth failed: %s", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]interface{}{
			"success": false,
			"error":   "Discord authentication failed",
		})
	}

	profile := discordProfile{
		ID:            du.ID,
		Username:      du.Username,
		Discriminator: du.Discriminator,
		Email:         du.Email,
		Verified:      du.Verified,
	}

	if avatar := du.AvatarURL(); avatar != "" {
		profile.Avatar = &avatar
	}

	if user, err := c.userStor.GetUserByDiscordID(du.ID); err == nil {
		if _, err := c.userStor.UpdateUser(user.ID, stor.UserUpdates{Username: &du.Username, Avatar: profile.Avatar}); err != nil {
			clog.UsingCtx(clog.HTTP).Warnf("Unable to refresh user %s from Discord: %s", user.ID, err)
		}
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Discord login successful",
		"user":    profile,
	})
}
