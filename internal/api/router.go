package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/dhammastream/backoffice/docs"
	"github.com/dhammastream/backoffice/internal/api/handler"
	"github.com/dhammastream/backoffice/internal/api/middleware"
	"github.com/dhammastream/backoffice/internal/core/ports"
	"github.com/dhammastream/backoffice/internal/infrastructure/http/handlers"
	"github.com/dhammastream/backoffice/internal/infrastructure/realtime"
)

// Dependencies are the constructed services the router exposes.
type Dependencies struct {
	Log            zerolog.Logger
	Sessions       ports.SessionService
	Admin          ports.AdminService
	Presence       ports.PresenceService
	Hub            *realtime.Hub
	Cookie         handler.CookieConfig
	AllowedOrigins []string
	// Readiness maps dependency names to their probes.
	Readiness map[string]handlers.Pinger
	// Metrics overrides the default Prometheus registry for HTTP metrics.
	Metrics *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.RequestLogger(deps.Log))
	metricsHandler := echoprometheus.NewHandler()
	if deps.Metrics != nil {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{Subsystem: "backoffice", Registerer: deps.Metrics}))
		metricsHandler = echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: deps.Metrics})
	} else {
		e.Use(echoprometheus.NewMiddleware("backoffice"))
	}

	sessionHandler := handler.NewSessionHandler(deps.Sessions, deps.Cookie)
	adminHandler := handler.NewAdminHandler(deps.Admin, deps.Presence)
	realtimeHandler := handler.NewRealtimeHandler(deps.Hub, deps.Presence, deps.AllowedOrigins, deps.Log.With().Str("component", "realtime").Logger())
	requireSession := middleware.Session(deps.Sessions, deps.Cookie.Name)

	// --- Auth routes ---
	e.POST("/auth/login", sessionHandler.Login)
	e.POST("/auth/logout", sessionHandler.Logout)
	e.GET("/auth/me", sessionHandler.Me, requireSession)

	// --- Realtime ---
	e.GET("/ws", realtimeHandler.Serve, requireSession)

	// --- Back office ---
	admin := e.Group("/admin", requireSession, middleware.RequireAdmin())
	admin.GET("/users", adminHandler.ListUsers)
	admin.GET("/presence", adminHandler.Presence)
	admin.POST("/users/:id/revoke-session", adminHandler.RevokeSession)
	admin.DELETE("/users/:id", adminHandler.DeleteUser)
	admin.POST("/users/:id/admin", adminHandler.GrantAdmin)
	admin.DELETE("/users/:id/admin", adminHandler.RevokeAdmin)

	// --- Health probes, metrics and docs (no auth required) ---
	e.GET("/health", handlers.NewHealthHandler().Liveness)
	e.GET("/health/ready", handlers.NewHealthDependenciesHandler(deps.Readiness).Readiness)
	e.GET("/metrics", metricsHandler)
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
