package apimiddleware

import (
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
)

const principalKey = "Principal"

// Principal is the authenticated caller as described by the session token.
type Principal struct {
	UserID string
	Role   string
}

func (p Principal) IsAdmin() bool {
	return strings.EqualFold(p.Role, "admin")
}

// ClerkClaims are the claims of a Clerk session token. The role may be set
// as a top level custom claim or inside the public metadata.
type ClerkClaims struct {
	jwt.RegisteredClaims
	Role     string `json:"role,omitempty"`
	Metadata struct {
		Role string `json:"role,omitempty"`
	} `json:"metadata,omitempty"`
}

func (c *ClerkClaims) role() string {
	if c.Role != "" {
		return c.Role
	}

	return c.Metadata.Role
}

type ClerkAuthConfig struct {
	Skipper   middleware.Skipper
	PublicKey *rsa.PublicKey
}

// ParsePublicKey parses the PEM encoded key used to verify session tokens.
func ParsePublicKey(pem string) (*rsa.PublicKey, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(strings.ReplaceAll(pem, `\n`, "\n")))
	if err != nil {
		return nil, errors.Wrap(err, "invalid CLERK_JWT_PUBLIC_KEY")
	}

	return key, nil
}

// ClerkAuth verifies the session token from the Authorization header or the
// __session cookie and stores the Principal in the echo context.
func ClerkAuth(config ClerkAuthConfig) echo.MiddlewareFunc {
	if config.Skipper == nil {
		config.Skipper = middleware.DefaultSkipper
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}), jwt.WithExpirationRequired())

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Skipper(c) {
				return next(c)
			}

			raw := tokenFromRequest(c)
			if raw == "" || config.PublicKey == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			var claims ClerkClaims
			_, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
				return config.PublicKey, nil
			})

			if err != nil || claims.Subject == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}

			SetPrincipal(c, Principal{UserID: claims.Subject, Role: claims.role()})
			return next(c)
		}
	}
}

func tokenFromRequest(c echo.Context) string {
	if auth := c.Request().Header.Get(echo.HeaderAuthorization); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}

	if cookie, err := c.Cookie("__session"); err == nil {
		return cookie.Value
	}

	return ""
}

func SetPrincipal(c echo.Context, p Principal) {
	c.Set(principalKey, p)
}

// GetPrincipal returns the caller stored by ClerkAuth.
func GetPrincipal(c echo.Context) (Principal, bool) {
	p, ok := c.Get(principalKey).(Principal)
	return p, ok
}

// RequireAdmin rejects callers whose role is not admin.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, ok := GetPrincipal(c)
		switch {
		case !ok:
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		case !p.IsAdmin():
			return echo.NewHTTPError(http.StatusForbidden, "Admin access required")
		default:
			return next(c)
		}
	}
}
