// Package v1 provides the public HTTP handlers for the run engine.
package v1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/uirun/uirun/internal/domain"
	"github.com/uirun/uirun/internal/dsl"
	"github.com/uirun/uirun/internal/service"
)

// Handler carries the public HTTP endpoints.
type Handler struct {
	service *service.Service
}

// NewHandler creates a handler backed by svc.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{service: svc}
}

// RegisterRoutes mounts the public routes on e.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Planning API
	e.POST("/v1/tasks", h.CreateTask)

	// Run API
	e.POST("/v1/runs", h.CreateRun)
	e.GET("/v1/runs", h.ListRuns)
	e.GET("/v1/runs/:run_id", h.GetRun)
	e.POST("/v1/runs/:run_id/steps/next", h.ExecuteNextStep)
	e.POST("/v1/runs/:run_id/approval", h.DecideApproval)
	e.POST("/v1/runs/:run_id/session/close", h.CloseSession)
	e.GET("/v1/runs/:run_id/logs", h.GetRunLogs)

	// Brand kit API
	e.POST("/v1/brandkit/docs", h.IndexBrandDocs)
	e.GET("/v1/brandkit/docs", h.ListBrandDocs)

	// Artifact serving
	e.GET("/artifacts/:run_id/:step_id/:label", h.GetArtifact)

	e.GET("/health", h.Health)
}

// Health returns liveness plus the effective configuration summary.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, h.service.Health())
}

// serviceError maps service failures onto HTTP statuses. Anything not
// recognized is a 500.
func (h *Handler) serviceError(c echo.Context, err error) error {
	var verr *dsl.ValidationError
	if errors.As(err, &verr) {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": verr.Error(),
			"kind":  string(domain.ErrKindPlanValidation),
		})
	}
	if kind := domain.KindOf(err); kind == domain.ErrKindSsrfBlocked {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": err.Error(),
			"kind":  string(kind),
		})
	}

	switch {
	case errors.Is(err, domain.ErrPlannerFailed):
		return c.JSON(http.StatusBadGateway, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrRunBusy):
		return c.JSON(http.StatusConflict, map[string]string{"error": "another step is executing for this run"})
	case errors.Is(err, domain.ErrNoPendingApproval):
		return c.JSON(http.StatusConflict, map[string]string{"error": "no approval is pending for this run"})
	case errors.Is(err, domain.ErrRunTerminal):
		return c.JSON(http.StatusConflict, map[string]string{"error": "run is terminal"})
	case err.Error() == "run not found":
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
