package internalapi

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/uirun/uirun/internal/domain"
)

// PolicyDecision dry-runs the step policy against a hypothetical step
// so operators can check a rego change before rolling it out.
// GET /internal/policy/decision?verb=CLICK_TEXT&arg=Login&kind=ui&requires_approval=false
func (h *Handler) PolicyDecision(c echo.Context) error {
	verb := c.QueryParam("verb")
	if verb == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "verb is required"})
	}
	arg := c.QueryParam("arg")

	kind := domain.StepKindUI
	if raw := c.QueryParam("kind"); raw != "" {
		kind = domain.StepKind(raw)
	}

	requiresApproval := c.QueryParam("requires_approval") == "true"

	ctx := c.Request().Context()

	decision, reason, err := h.service.PolicyDecision(ctx, verb, arg, kind, requiresApproval)
	if err != nil {
		log.Printf("ERROR: policy dry run failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "policy evaluation failed"})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"decision": decision,
		"reason":   reason,
	})
}
