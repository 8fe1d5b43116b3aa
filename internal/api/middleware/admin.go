package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dhammastream/backoffice/internal/core/domain"
)

// RequireAdmin rejects callers whose live record is not an administrator.
// It must run after Session.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, ReauthenticateMessage).
					SetInternal(domain.ErrUnauthenticated)
			}
			if err := domain.RequireAdmin(id); err != nil {
				return echo.NewHTTPError(http.StatusForbidden, ForbiddenReason(err)).SetInternal(err)
			}
			return next(c)
		}
	}
}

// ForbiddenReason extracts the human readable part of a forbidden error.
func ForbiddenReason(err error) string {
	marker := domain.ErrForbidden.Error() + ": "
	if errors.Is(err, domain.ErrForbidden) {
		if _, reason, ok := strings.Cut(err.Error(), marker); ok && reason != "" {
			return reason
		}
	}
	return "administrator rights required"
}
