package v1

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/uirun/uirun/internal/domain"
)

// IndexBrandDocs embeds and stores brand-kit documents so the planner
// can ground its plans on them.
// POST /v1/brandkit/docs
func (h *Handler) IndexBrandDocs(c echo.Context) error {
	var req domain.IndexDocsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Docs) == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "docs are required"})
	}
	for i, doc := range req.Docs {
		if doc.Title == "" || doc.Content == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("doc %d: title and content are required", i+1)})
		}
	}

	ctx := c.Request().Context()

	resp, err := h.service.IndexBrandDocs(ctx, req)
	if err != nil {
		return h.serviceError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":      true,
		"indexed": resp.Indexed,
	})
}

// ListBrandDocs returns every indexed brand-kit document.
// GET /v1/brandkit/docs
func (h *Handler) ListBrandDocs(c echo.Context) error {
	ctx := c.Request().Context()

	docs, err := h.service.ListBrandDocs(ctx)
	if err != nil {
		return h.serviceError(c, err)
	}
	if docs == nil {
		docs = []domain.BrandDoc{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"docs": docs})
}
