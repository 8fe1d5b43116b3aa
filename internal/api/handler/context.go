package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dhammastream/backoffice/internal/api/middleware"
	"github.com/dhammastream/backoffice/internal/core/domain"
)

// ctxIdentity returns the caller injected by the Session middleware. Its
// absence means the route was registered without that middleware.
func ctxIdentity(c echo.Context) (*domain.Identity, error) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, middleware.ReauthenticateMessage).
			SetInternal(domain.ErrUnauthenticated)
	}
	return id, nil
}
