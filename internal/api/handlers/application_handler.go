package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/alumni-portal-be/internal/models"
	"github.com/isdelr/alumni-portal-be/internal/services"
)

// ApplicationHandler handles HTTP requests related to job applications.
type ApplicationHandler struct {
	service services.ApplicationServiceProvider
}

// NewApplicationHandler creates a new ApplicationHandler.
func NewApplicationHandler(service services.ApplicationServiceProvider) *ApplicationHandler {
	return &ApplicationHandler{service: service}
}

// Apply handles a user's application to a posting.
func (h *ApplicationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var payload services.ApplyInput
	if !decodeJSON(w, r, &payload) {
		return
	}
	app, err := h.service.Apply(r.Context(), principal(r), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

// GetMine handles the request for the calling user's applications.
func (h *ApplicationHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.ListMine(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

// GetForJob handles the owning employer's request for a posting's applications.
func (h *ApplicationHandler) GetForJob(w http.ResponseWriter, r *http.Request) {
	apps, err := h.service.ListForJob(r.Context(), principal(r), chi.URLParam(r, "job_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, apps)
}

// UpdateStatus handles the owning employer's decision on an application.
func (h *ApplicationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Status models.ApplicationStatus `json:"status"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	app, err := h.service.UpdateStatus(r.Context(), principal(r), chi.URLParam(r, "id"), payload.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Application status updated",
		"application": app,
	})
}
