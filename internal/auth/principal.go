package auth

import (
	"context"

	"github.com/isdelr/alumni-portal-be/internal/apperr"
	"github.com/isdelr/alumni-portal-be/internal/models"
)

// Principal is the authenticated identity behind a request.
type Principal struct {
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

// IsZero reports whether p carries no identity.
func (p Principal) IsZero() bool {
	return p.Email == "" || p.Role == ""
}

type contextKey string

// PrincipalKey is the context key for the authenticated principal.
const PrincipalKey = contextKey("principal")

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// FromContext returns the principal stored by Middleware.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalKey).(Principal)
	return p, ok && !p.IsZero()
}

// Require fails with Unauthorized when p carries no identity and with
// Forbidden when p's role is not among roles.
func Require(p Principal, roles ...models.Role) error {
	if p.IsZero() {
		return apperr.New(apperr.CodeUnauthorized, "Not authenticated")
	}
	for _, role := range roles {
		if p.Role == role {
			return nil
		}
	}
	return apperr.New(apperr.CodeForbidden, "Access denied")
}
