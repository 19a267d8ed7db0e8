package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capscanio/capscan/pkg/apierror"
	"github.com/capscanio/capscan/pkg/domain/capability"
	"github.com/capscanio/capscan/pkg/domain/shared"
	"github.com/capscanio/capscan/pkg/logger"
)

// CapabilityReader is the read side of the semantic index.
type CapabilityReader interface {
	Get(ctx context.Context, id shared.ID) (*capability.Record, error)
	GetByName(ctx context.Context, name string) (*capability.Record, error)
	Search(ctx context.Context, query string) ([]*capability.Record, error)
	Count(ctx context.Context) (int64, error)
}

// CapabilityHandler serves read access to indexed capability records.
type CapabilityHandler struct {
	index  CapabilityReader
	logger *logger.Logger
}

// NewCapabilityHandler creates a new CapabilityHandler.
func NewCapabilityHandler(index CapabilityReader, log *logger.Logger) *CapabilityHandler {
	return &CapabilityHandler{index: index, logger: log}
}

// CapabilityListResponse wraps a search result.
type CapabilityListResponse struct {
	Data  []*capability.Record `json:"data"`
	Total int                  `json:"total"`
}

// Search handles GET /api/v1/capabilities?q=...
func (h *CapabilityHandler) Search(w http.ResponseWriter, r *http.Request) {
	records, err := h.index.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("capability search failed", "error", err)
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}
	if records == nil {
		records = []*capability.Record{}
	}

	writeJSON(w, http.StatusOK, CapabilityListResponse{Data: records, Total: len(records)})
}

// GetByName handles GET /api/v1/capabilities/{name}.
func (h *CapabilityHandler) GetByName(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		apierror.BadRequest("capability name is required").WriteJSON(w)
		return
	}

	record, err := h.index.GetByName(r.Context(), name)
	if err != nil {
		apierror.FromDomainError(err).WriteJSON(w)
		return
	}

	writeJSON(w, http.StatusOK, record)
}
