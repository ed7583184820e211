package handlers

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
)

// SpecHandler отдаёт OpenAPI-документ в JSON.
type SpecHandler struct {
	doc *openapi3.T
}

// NewSpecHandler создаёт обработчик /api/openapi.json.
func NewSpecHandler(doc *openapi3.T) *SpecHandler {
	return &SpecHandler{doc: doc}
}

// GetOpenAPISpec обрабатывает GET /api/openapi.json.
func (h *SpecHandler) GetOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.doc)
}
