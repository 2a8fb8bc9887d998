package internalapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// SweepSessions reclaims idle browser sessions on demand. The periodic
// sweeper does the same on a timer; this endpoint exists so operators
// can force a pass.
// POST /internal/sessions/sweep
func (h *Handler) SweepSessions(c echo.Context) error {
	ctx := c.Request().Context()

	reclaimed := h.service.SweepSessions(ctx)
	if reclaimed == nil {
		reclaimed = []string{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"reclaimed": reclaimed})
}
