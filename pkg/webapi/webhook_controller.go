package webapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/akademi-crypto/vidhub/pkg/clog"
	"github.com/akademi-crypto/vidhub/pkg/vhdb/stor"
	"github.com/akademi-crypto/vidhub/pkg/vhdb/vhmodel"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

const maxWebhookBody = 1 << 20

type WebhookController struct {
	userStor         stor.UserStor
	secret           string
	adminEmailDomain string
}

func NewWebhookController(userStor stor.UserStor, secret, adminEmailDomain string) *WebhookController {
	return &WebhookController{userStor: userStor, secret: secret, adminEmailDomain: adminEmailDomain}
}

type clerkEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type clerkUser struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	ImageURL       string `json:"image_url"`
	EmailAddresses []struct {
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
	PublicMetadata struct {
		DiscordID string `json:"discordId"`
	} `json:"public_metadata"`
}

// ClerkWebhook handles identity provider events. Only user.created changes
// anything; other event types are acknowledged and ignored.
func (c *WebhookController) ClerkWebhook(ctx echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBody))
	if err != nil {
		return err
	}

	if !VerifySignature(c.secret, body, ctx.Request().Header.Get("svix-signature")) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid signature")
	}

	var event clerkEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid payload")
	}

	if event.Type == "user.created" {
		if err := c.userCreated(event.Data); err != nil {
			return err
		}
	}

	return ctx.JSON(http.StatusOK, map[string]bool{"received": true})
}

func (c *WebhookController) userCreated(data json.RawMessage) error {
	var u clerkUser
	if err := json.Unmarshal(data, &u); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid user payload")
	}

	user := &vhmodel.User{
		ID:        u.ID,
		DiscordID: u.PublicMetadata.DiscordID,
		Username:  u.Username,
		Role:      vhmodel.RoleClient,
	}

	if user.DiscordID == "" {
		user.DiscordID = "discord-" + u.ID
	}

	if user.Username == "" {
		user.Username = "unknown"
	}

	if u.ImageURL != "" {
		user.Avatar = &u.ImageURL
	}

	if len(u.EmailAddresses) != 0 {
		email := u.EmailAddresses[0].EmailAddress
		user.Email = &email
		if c.adminEmailDomain != "" && strings.HasSuffix(strings.ToLower(email), "@"+strings.ToLower(c.adminEmailDomain)) {
			user.Role = vhmodel.RoleAdmin
		}
	}

	if _, err := c.userStor.CreateUser(user); err != nil {
		if errors.Is(err, stor.ErrAlreadyExists) {
			clog.UsingCtx(clog.HTTP).Infof("Webhook user %s already exists", u.ID)
			return nil
		}
		return err
	}

	return nil
}

// VerifySignature checks the base64 HMAC-SHA256 of body against the header.
// The header may carry several space separated signatures, optionally with
// a "v1," version prefix.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" || header == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := []byte(base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	for _, sig := range strings.Fields(header) {
		if _, rest, ok := strings.Cut(sig, ","); ok {
			sig = rest
		}

		if hmac.Equal([]byte(sig), expected) {
			return true
		}
	}

	return false
}
