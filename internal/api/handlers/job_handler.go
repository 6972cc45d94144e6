package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/alumni-portal-be/internal/services"
)

// JobHandler handles HTTP requests related to job postings.
type JobHandler struct {
	service services.JobServiceProvider
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(service services.JobServiceProvider) *JobHandler {
	return &JobHandler{service: service}
}

// Create handles the request to create a new posting.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload services.JobInput
	if !decodeJSON(w, r, &payload) {
		return
	}
	job, err := h.service.Create(r.Context(), principal(r), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// GetAll handles the request to list every posting.
func (h *JobHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// Get handles the request to get a single posting by its ID.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GetMine handles the request for the calling employer's postings.
func (h *JobHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.ListMine(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// Stats handles the request for per-posting application counts.
func (h *JobHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Delete handles the request to delete a posting.
func (h *JobHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Job deleted successfully")
}
