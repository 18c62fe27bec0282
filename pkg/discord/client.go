// Package discord exchanges Discord OAuth2 authorization codes and fetches
// the profile of the authorizing user.
package discord

import (
	"context"
	"fmt"

	"github.com/akademi-crypto/vidhub/pkg/config"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	DefaultAPIBase = "https://discord.com/api/v10"
	avatarCDN      = "https://cdn.discordapp.com/avatars"
)

var ErrDiscordAPI = errors.New("discord api")

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	APIBase      string
}

func ConfigFrom(c config.Configer) Config {
	return Config{
		ClientID:     c.GetKey("DISCORD_CLIENT_ID"),
		ClientSecret: c.GetKey("DISCORD_CLIENT_SECRET"),
		RedirectURI:  c.GetKey("DISCORD_REDIRECT_URI"),
		APIBase:      c.GetKeyWithDefault("DISCORD_API_BASE", DefaultAPIBase),
	}
}

// User is the subset of /users/@me this service uses.
type User struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Email         string `json:"email"`
	Avatar        string `json:"avatar"`
	Verified      bool   `json:"verified"`
}

// AvatarURL returns the CDN url of the user's avatar, or "" when unset.
func (u *User) AvatarURL() string {
	if u.Avatar == "" {
		return ""
	}

	return fmt.Sprintf("%s/%s/%s.png", avatarCDN, u.ID, u.Avatar)
}

type Client struct {
	oauth *oauth2.Config
	api   *resty.Client
}

func NewClient(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}

	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       []string{"identify", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.APIBase + "/oauth2/authorize",
				TokenURL:  cfg.APIBase + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		api: resty.New().SetBaseURL(cfg.APIBase),
	}
}

// Exchange trades an authorization code for a token.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := c.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "exchange authorization code")
	}

	return token, nil
}

// CurrentUser fetches the profile of the token's owner.
func (c *Client) CurrentUser(ctx context.Context, token *oauth2.Token) (*User, error) {
	var user User
	resp, err := c.api.R().
		SetContext(ctx).
		SetHeader("Authorization", token.Type()+" "+token.AccessToken).
		SetResult(&user).
		Get("/users/@me")

	switch {
	case err != nil:
		return nil, err
	case resp.IsError():
		return nil, errors.Wrapf(ErrDiscordAPI, "(HTTP Status: %d) %s", resp.StatusCode(), resp.String())
	default:
		return &user, nil
	}
}

// Authenticate runs the whole code exchange and returns the user's profile.
func (c *Client) Authenticate(ctx context.Context, code string) (*User, error) {
	token, err := c.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	return c.CurrentUser(ctx, token)
}
