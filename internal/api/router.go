package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/comanda/restaurant-console/docs"
	"github.com/comanda/restaurant-console/internal/api/handler"
	"github.com/comanda/restaurant-console/internal/api/middleware"
	"github.com/comanda/restaurant-console/internal/core/ports"
	"github.com/comanda/restaurant-console/internal/infrastructure/http/handlers"
)

// Deps are the collaborators the agent's HTTP surface is built from.
type Deps struct {
	Session    ports.SessionService
	Activity   ports.ActivityTracker
	Restaurant ports.RestaurantInfoReader
	// Ready lists the dependencies pinged by /health/ready.
	Ready map[string]ports.Pinger
	Log   zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("console_agent"))

	// --- Session routes ---
	sessionHandler := handler.NewSessionHandler(deps.Session, deps.Activity)
	requireSession := middleware.RequireSession(deps.Session)

	s := e.Group("/session")
	s.GET("", sessionHandler.Get)
	s.POST("/login", sessionHandler.Login)
	s.POST("/logout", sessionHandler.Logout)
	s.POST("/check", sessionHandler.Check)
	s.POST("/refresh", sessionHandler.Refresh)
	s.POST("/activity", sessionHandler.Activity, requireSession)
	s.GET("/permissions", sessionHandler.Permission, requireSession)

	// --- Restaurant routes (session + restaurant:read) ---
	if deps.Restaurant != nil {
		restaurantHandler := handler.NewRestaurantHandler(deps.Restaurant)
		e.GET("/restaurant", restaurantHandler.Get,
			requireSession,
			middleware.RequirePermission("restaurant", "read"),
		)
	}

	// --- Health probes (no session required) ---
	healthHandler := handlers.NewHealthHandler()
	healthDepsHandler := handlers.NewHealthDependenciesHandler(deps.Ready)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Operational endpoints ---
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
