package internalapi

import (
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// ListRuns returns recent runs for operator inspection.
// GET /internal/runs?limit=50
func (h *Handler) ListRuns(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		limit = n
	}

	ctx := c.Request().Context()

	runs, err := h.service.ListRuns(ctx, limit)
	if err != nil {
		log.Printf("ERROR: failed to list runs: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list runs"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"runs": runs})
}
