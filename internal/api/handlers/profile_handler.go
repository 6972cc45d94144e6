package handlers

import (
	"net/http"

	"github.com/isdelr/alumni-portal-be/internal/services"
)

// ProfileHandler handles HTTP requests for the caller's student profile.
type ProfileHandler struct {
	service services.ProfileServiceProvider
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(service services.ProfileServiceProvider) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// Get returns the caller's profile.
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Get(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Update creates or replaces the caller's profile.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	var payload services.ProfileInput
	if !decodeJSON(w, r, &payload) {
		return
	}
	profile, err := h.service.Upsert(r.Context(), principal(r), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
