package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/alumni-portal-be/internal/auth"
	"github.com/isdelr/alumni-portal-be/internal/models"
	"github.com/isdelr/alumni-portal-be/internal/services"
	"github.com/rs/zerolog/log"
)

// AccountHandler handles HTTP requests for registration, login and account administration.
type AccountHandler struct {
	service      services.AccountServiceProvider
	secureCookie bool
}

// NewAccountHandler creates a new AccountHandler. secureCookie marks the
// session cookie Secure and should be set in production.
func NewAccountHandler(service services.AccountServiceProvider, secureCookie bool) *AccountHandler {
	return &AccountHandler{service: service, secureCookie: secureCookie}
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles public account registration.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload services.RegisterInput
	if !decodeJSON(w, r, &payload) {
		return
	}
	account, err := h.service.Register(r.Context(), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// Login authenticates an account and issues a session token, returned in
// the body and set as an HttpOnly cookie.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	result, err := h.service.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		log.Warn().Str("email", payload.Email).Msg("Failed authentication attempt")
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    result.AccessToken,
		Expires:  result.ExpiresAt,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, result)
}

// ForgotPassword starts a password reset. The response is identical whether
// or not the email is registered.
func (h *AccountHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if err := h.service.ForgotPassword(r.Context(), payload.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "If the email is registered, a reset link has been sent")
}

// ResetPassword sets a new password using a mailed reset token.
func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Token       string `json:"token"`
		NewPassword string `json:"new_password"`
	}
	if !decodeJSON(w, r, &payload) {
		return
	}
	if err := h.service.ResetPassword(r.Context(), payload.Token, payload.NewPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Password has been reset")
}

// Dashboard returns the caller's account. Admins are sent to the admin view.
func (h *AccountHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if p.Role == models.RoleAdmin {
		http.Redirect(w, r, "/api/admin", http.StatusTemporaryRedirect)
		return
	}
	account, err := h.service.Dashboard(r.Context(), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// ListAccounts handles the admin listing of every account.
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

// ListAlumni handles the admin listing of alumni accounts.
func (h *AccountHandler) ListAlumni(w http.ResponseWriter, r *http.Request) {
	alumni, err := h.service.ListAlumni(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alumni)
}

// VerifyAlumni asks the verification service to confirm an alumnus.
func (h *AccountHandler) VerifyAlumni(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.VerifyAlumni(r.Context(), principal(r), chi.URLParam(r, "alumni_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// CreateEmployer handles the admin creation of an employer account.
func (h *AccountHandler) CreateEmployer(w http.ResponseWriter, r *http.Request) {
	var payload services.RegisterInput
	if !decodeJSON(w, r, &payload) {
		return
	}
	account, err := h.service.CreateEmployer(r.Context(), principal(r), payload)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}
