package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dhammastream/backoffice/internal/core/ports"
)

// AdminHandler serves the back-office roster and revocation endpoints. Every
// route is behind Session and RequireAdmin; the service checks again.
type AdminHandler struct {
	admin    ports.AdminService
	presence ports.PresenceService
}

func NewAdminHandler(admin ports.AdminService, presence ports.PresenceService) *AdminHandler {
	return &AdminHandler{admin: admin, presence: presence}
}

// ListUsers returns every account.
//
// @Summary      List accounts
// @Tags         admin
// @Produce      json
// @Success      200  {array}   domain.User
// @Failure      403  {object}  map[string]string
// @Security     BearerAuth
// @Router       /admin/users [get]
func (h *AdminHandler) ListUsers(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	users, err := h.admin.ListUsers(c.Request().Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, users)
}

// Presence returns the live roster.
//
// @Summary      Live roster
// @Tags         admin
// @Produce      json
// @Success      200  {object}  ports.PresenceSnapshot
// @Security     BearerAuth
// @Router       /admin/presence [get]
func (h *AdminHandler) Presence(c echo.Context) error {
	snap, err := h.presence.Snapshot(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snap)
}

// RevokeSession signs the target out everywhere, effective on their next
// request.
//
// @Summary      Force logout
// @Tags         admin
// @Param        id   path  string  true  "User ID"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /admin/users/{id}/revoke-session [post]
func (h *AdminHandler) RevokeSession(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	if err := h.admin.ForceLogout(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// DeleteUser removes the target account.
//
// @Summary      Delete account
// @Tags         admin
// @Param        id   path  string  true  "User ID"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	if err := h.admin.DeleteUser(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// GrantAdmin gives the target account administrator rights.
//
// @Summary      Grant administrator rights
// @Tags         admin
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  domain.User
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /admin/users/{id}/admin [post]
func (h *AdminHandler) GrantAdmin(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	user, err := h.admin.GrantAdmin(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// RevokeAdmin removes administrator rights from the target account.
//
// @Summary      Revoke administrator rights
// @Tags         admin
// @Produce      json
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  domain.User
// @Failure      404  {object}  map[string]string
// @Security     BearerAuth
// @Router       /admin/users/{id}/admin [delete]
func (h *AdminHandler) RevokeAdmin(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}
	user, err := h.admin.RevokeAdmin(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}
