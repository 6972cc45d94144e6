package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/isdelr/alumni-portal-be/internal/apperr"
	"github.com/rs/zerolog/log"
)

// TokenCookie is the cookie the login handler sets alongside the JSON token.
const TokenCookie = "token"

// TokenFromRequest extracts the session token from the Authorization header,
// falling back to the token cookie.
func TokenFromRequest(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		scheme, value, found := strings.Cut(authHeader, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
		return ""
	}
	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// Authenticate resolves the principal behind r.
func (m *TokenManager) Authenticate(r *http.Request) (Principal, error) {
	tokenStr := TokenFromRequest(r)
	if tokenStr == "" {
		return Principal{}, apperr.New(apperr.CodeUnauthorized, "Missing auth token")
	}
	p, err := m.Validate(tokenStr)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return Principal{}, apperr.Wrap(apperr.CodeUnauthorized, "Token has expired", err)
		}
		return Principal{}, apperr.Wrap(apperr.CodeUnauthorized, "Invalid auth token", err)
	}
	return p, nil
}

// Middleware rejects requests without a valid session token and passes the
// principal down via the request context.
func (m *TokenManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := m.Authenticate(r)
		if err != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("Rejected unauthenticated request")
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", "Bearer")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": apperr.Message(err)})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}
