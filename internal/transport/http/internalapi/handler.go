// Package internalapi provides HTTP handlers for internal run-engine
// APIs. These APIs are only accessible to operator tooling, never to
// end users.
package internalapi

import (
	"github.com/labstack/echo/v4"
	"github.com/uirun/uirun/internal/service"
)

// Handler handles internal HTTP requests from operator tooling.
type Handler struct {
	service *service.Service
}

// NewHandler creates a handler backed by svc.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// RegisterRoutes mounts the operator routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Run inspection
	e.GET("/internal/runs", h.ListRuns)

	// Session upkeep
	e.POST("/internal/sessions/sweep", h.SweepSessions)

	// Policy dry runs
	e.GET("/internal/policy/decision", h.PolicyDecision)
}
