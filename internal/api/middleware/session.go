package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dhammastream/backoffice/internal/core/domain"
)

// IdentityKey is the echo context key under which Session stores the caller.
const IdentityKey = "identity"

// ReauthenticateMessage is the only body a client sees for any 401.
const ReauthenticateMessage = "please re-authenticate"

// SessionValidator authenticates a bearer token.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*domain.Identity, error)
}

// Session authenticates the request from the session cookie, falling back to
// an Authorization: Bearer header, and injects the caller's identity.
// Invalid, expired and superseded sessions all get the same 401.
func Session(v SessionValidator, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := TokenFromRequest(c, cookieName)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, ReauthenticateMessage).
					SetInternal(domain.ErrUnauthenticated)
			}

			id, err := v.Validate(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) || errors.Is(err, domain.ErrSessionInvalidated) {
					return echo.NewHTTPError(http.StatusUnauthorized, ReauthenticateMessage).SetInternal(err)
				}
				return err
			}

			c.Set(IdentityKey, id)
			return next(c)
		}
	}
}

// TokenFromRequest returns the session token carried by the request, or "".
func TokenFromRequest(c echo.Context, cookieName string) string {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// IdentityFrom returns the identity injected by Session.
func IdentityFrom(c echo.Context) (*domain.Identity, bool) {
	id, ok := c.Get(IdentityKey).(*domain.Identity)
	return id, ok && id != nil
}
