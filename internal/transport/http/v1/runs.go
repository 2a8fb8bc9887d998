package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/uirun/uirun/internal/domain"
)

// CreateRun creates a run from a caller-supplied plan.
// POST /v1/runs
func (h *Handler) CreateRun(c echo.Context) error {
	var req domain.CreateRunRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ctx := c.Request().Context()

	resp, err := h.service.CreateRun(ctx, req)
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(http.StatusOK, resp)
}

// ListRuns returns recent runs, newest first.
// GET /v1/runs?limit=50
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
		return h.serviceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"runs": runs})
}

// GetRun returns a run with its steps and audit log.
// GET /v1/runs/:run_id
func (h *Handler) GetRun(c echo.Context) error {
	runID := c.Param("run_id")
	ctx := c.Request().Context()

	detail, err := h.service.GetRun(ctx, runID)
	if err != nil {
		return h.serviceError(c, err)
	}
	if detail == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	return c.JSON(http.StatusOK, detail)
}

// ExecuteNextStep executes the next pending step of a run.
// POST /v1/runs/:run_id/steps/next
func (h *Handler) ExecuteNextStep(c echo.Context) error {
	runID := c.Param("run_id")
	ctx := c.Request().Context()

	resp, err := h.service.ExecuteNextStep(ctx, runID)
	if err != nil {
		return h.serviceError(c, err)
	}
	if resp == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "run not found"})
	}

	return c.JSON(http.StatusOK, resp)
}

// DecideApproval applies an approve or deny decision to the run's
// pending approval.
// POST /v1/runs/:run_id/approval
func (h *Handler) DecideApproval(c echo.Context) error {
	runID := c.Param("run_id")

	var req domain.ApprovalDecisionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Decision != domain.DecisionApprove && req.Decision != domain.DecisionDeny {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "decision must be \"approve\" or \"deny\""})
	}

	ctx := c.Request().Context()

	approval, err := h.service.DecideApproval(ctx, runID, req)
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(http.StatusOK, approval)
}

// CloseSession closes the run's browser session if one is open.
// POST /v1/runs/:run_id/session/close
func (h *Handler) CloseSession(c echo.Context) error {
	runID := c.Param("run_id")
	ctx := c.Request().Context()

	closed, err := h.service.CloseSession(ctx, runID)
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":     true,
		"run_id": runID,
		"closed": closed,
	})
}

// GetRunLogs returns the run's audit log entries in seq order.
// GET /v1/runs/:run_id/logs?after_seq=0&limit=0
func (h *Handler) GetRunLogs(c echo.Context) error {
	runID := c.Param("run_id")

	var afterSeq int64
	if raw := c.QueryParam("after_seq"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "after_seq must be a non-negative integer"})
		}
		afterSeq = n
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		limit = n
	}

	ctx := c.Request().Context()

	logs, err := h.service.GetRunLogs(ctx, runID, afterSeq, limit)
	if err != nil {
		return h.serviceError(c, err)
	}
	if logs == nil {
		logs = []domain.LogEntry{}
	}

	return c.JSON(http.StatusOK, logs)
}
