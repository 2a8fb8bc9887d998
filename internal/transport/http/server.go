// Package http assembles the engine's HTTP servers.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/uirun/uirun/config"
	"github.com/uirun/uirun/internal/service"
	"github.com/uirun/uirun/internal/transport/http/internalapi"
	v1 "github.com/uirun/uirun/internal/transport/http/v1"
)

// NewExternalServer creates and configures the public-facing HTTP server.
// It carries the run API, the brand-kit API and artifact serving.
func NewExternalServer(svc *service.Service, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
	}))

	// Handlers
	v1Handler := v1.NewHandler(svc)

	// Register Routes
	v1Handler.RegisterRoutes(e)

	return e
}

// NewInternalServer creates and configures the ops-facing HTTP server.
// It is meant to stay off the public network.
func NewInternalServer(svc *service.Service) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Handlers
	internalHandler := internalapi.NewHandler(svc)

	// Register Routes
	internalHandler.RegisterRoutes(e)

	return e
}
