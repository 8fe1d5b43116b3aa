package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dhammastream/backoffice/internal/api/middleware"
	"github.com/dhammastream/backoffice/internal/core/domain"
	"github.com/dhammastream/backoffice/internal/core/ports"
)

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

type SessionHandler struct {
	sessions ports.SessionService
	cookie   CookieConfig
}

func NewSessionHandler(sessions ports.SessionService, cookie CookieConfig) *SessionHandler {
	return &SessionHandler{sessions: sessions, cookie: cookie}
}

type loginRequest struct {
	Credential string `json:"credential" validate:"required,jwt"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user"`
}

// Login exchanges a Google ID token for a session. Any session the account
// held before is invalidated.
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Google ID token"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /auth/login [post]
func (h *SessionHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	res, err := h.sessions.Login(c.Request().Context(), req.Credential)
	if err != nil {
		return err
	}

	c.SetCookie(h.sessionCookie(res.Token, int(h.cookie.TTL.Seconds())))
	return c.JSON(http.StatusOK, loginResponse{Token: res.Token, ExpiresAt: res.ExpiresAt, User: res.User})
}

// Logout ends the caller's session and clears the cookie. It always
// succeeds.
//
// @Summary      Sign out
// @Tags         auth
// @Success      204
// @Router       /auth/logout [post]
func (h *SessionHandler) Logout(c echo.Context) error {
	token := middleware.TokenFromRequest(c, h.cookie.Name)
	if err := h.sessions.Logout(c.Request().Context(), token); err != nil {
		return err
	}
	c.SetCookie(h.sessionCookie("", -1))
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated caller.
//
// @Summary      Current identity
// @Tags         auth
// @Produce      json
// @Success      200  {object}  domain.Identity
// @Failure      401  {object}  map[string]string
// @Security     BearerAuth
// @Router       /auth/me [get]
func (h *SessionHandler) Me(c echo.Context) error {
	id, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, id)
}

func (h *SessionHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}
