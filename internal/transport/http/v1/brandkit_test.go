package v1

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestIndexBrandDocsValidation(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"empty docs", `{"docs":[]}`},
		{"missing content", `{"docs":[{"title":"Refund policy"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := jsonRequest(e, http.MethodPost, "/v1/brandkit/docs", tt.body)
			err := h.IndexBrandDocs(c)
			assert.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestIndexAndListBrandDocs(t *testing.T) {
	e := echo.New()
	h := newTestHandler(t)

	body := `{"docs":[
		{"title":"Refund policy","content":"Refunds resolve within 5 business days."},
		{"title":"Brand voice","content":"Write plainly and avoid jargon."}
	]}`
	c, rec := jsonRequest(e, http.MethodPost, "/v1/brandkit/docs", body)
	err := h.IndexBrandDocs(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var indexed map[string]interface{}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &indexed))
	assert.Equal(t, true, indexed["ok"])
	assert.Equal(t, float64(2), indexed["indexed"])

	c, rec = jsonRequest(e, http.MethodGet, "/v1/brandkit/docs", "")
	err = h.ListBrandDocs(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Docs []struct {
			DocID string `json:"doc_id"`
			Title string `json:"title"`
		} `json:"docs"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Len(t, listed.Docs, 2)
	for _, doc := range listed.Docs {
		assert.NotEmpty(t, doc.DocID)
	}
}
