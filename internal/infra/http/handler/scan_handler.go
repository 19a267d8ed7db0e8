// Package handler implements the HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capscanio/capscan/internal/app/scan"
	"github.com/capscanio/capscan/pkg/apierror"
	"github.com/capscanio/capscan/pkg/logger"
	"github.com/capscanio/capscan/pkg/validator"
)

// ScanHandler handles the scan workflow HTTP requests.
type ScanHandler struct {
	service   *scan.Service
	validator *validator.Validator
	logger    *logger.Logger
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(svc *scan.Service, v *validator.Validator, log *logger.Logger) *ScanHandler {
	return &ScanHandler{
		service:   svc,
		validator: v,
		logger:    log,
	}
}

// Step handles POST /api/v1/scan/step. It is the single entry point for
// the whole scan workflow: session creation, scope selection, item
// specification, progress reads and stop requests.
func (h *ScanHandler) Step(w http.ResponseWriter, r *http.Request) {
	var req scan.StepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest("invalid request body").WriteJSON(w)
		return
	}

	if err := h.validator.Validate(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			apierror.ValidationFailed("request validation failed", verrs).WriteJSON(w)
			return
		}
		apierror.BadRequest(err.Error()).WriteJSON(w)
		return
	}

	resp, err := h.service.Step(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Progress handles GET /api/v1/scan/sessions/{id}/progress.
func (h *ScanHandler) Progress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		apierror.BadRequest("session id is required").WriteJSON(w)
		return
	}

	resp, err := h.service.Progress(r.Context(), sessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *ScanHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierror.FromDomainError(err)
	if apiErr.Status >= 500 {
		h.logger.Error("scan request failed", "path", r.URL.Path, "error", err)
	}
	apiErr.WriteJSON(w)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
