package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/uirun/uirun/internal/domain"
)

// CreateTask plans a natural-language task and creates a run for it.
// POST /v1/tasks
func (h *Handler) CreateTask(c echo.Context) error {
	var req domain.TaskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Task) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "task is required"})
	}

	ctx := c.Request().Context()

	resp, err := h.service.CreateTask(ctx, req)
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}
