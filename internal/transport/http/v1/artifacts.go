package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetArtifact streams a stored screenshot.
// GET /artifacts/:run_id/:step_id/:label
func (h *Handler) GetArtifact(c echo.Context) error {
	runID := c.Param("run_id")
	stepID := c.Param("step_id")
	label := c.Param("label")

	ctx := c.Request().Context()

	artifact, rc, err := h.service.OpenArtifact(ctx, runID, stepID, label)
	if err != nil {
		return h.serviceError(c, err)
	}
	if artifact == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "artifact not found"})
	}
	defer rc.Close()

	return c.Stream(http.StatusOK, "image/png", rc)
}
