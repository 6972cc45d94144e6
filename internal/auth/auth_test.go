package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/isdelr/alumni-portal-be/internal/apperr"
	"github.com/isdelr/alumni-portal-be/internal/models"
)

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("pw")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "pw" {
		t.Fatal("hash must not equal the password")
	}
	if !CheckPassword(hash, "pw") {
		t.Error("expected password to match")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("expected wrong password to fail")
	}
	other, _ := HashPassword("pw")
	if other == hash {
		t.Error("hashes must be salted")
	}
}

func TestIssueAndValidate(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	token, expires, err := tm.Issue(Principal{Email: "a@x.com", Role: models.RoleUser})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Errorf("expiry %v is not in the future", expires)
	}
	p, err := tm.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.Email != "a@x.com" || p.Role != models.RoleUser {
		t.Errorf("Validate = %+v", p)
	}
}

func TestValidateFailsClosed(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	good, _, _ := tm.Issue(Principal{Email: "a@x.com", Role: models.RoleAdmin})

	expiredTM := NewTokenManager("secret", time.Hour)
	expiredTM.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, _ := expiredTM.Issue(Principal{Email: "a@x.com", Role: models.RoleAdmin})

	otherKey, _, _ := NewTokenManager("other", time.Hour).Issue(Principal{Email: "a@x.com", Role: models.RoleAdmin})

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Role: models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "a@x.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	noneToken, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	badRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role: "superuser",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "a@x.com",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role:             models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "a@x.com"},
	}).SignedString([]byte("secret"))

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, ErrTokenExpired},
		{"wrong key", otherKey, ErrTokenInvalid},
		{"alg none", noneToken, ErrTokenInvalid},
		{"unknown role", badRole, ErrTokenInvalid},
		{"no expiry", noExpiry, ErrTokenInvalid},
		{"tampered", tampered, ErrTokenInvalid},
		{"garbage", "not-a-token", ErrTokenInvalid},
		{"empty", "", ErrTokenInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tm.Validate(tt.token)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate err = %v, want %v", err, tt.want)
			}
			if !p.IsZero() {
				t.Errorf("expected zero principal, got %+v", p)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	user := Principal{Email: "u@x.com", Role: models.RoleUser}
	if err := Require(user, models.RoleUser); err != nil {
		t.Errorf("Require user: %v", err)
	}
	if err := Require(user, models.RoleAdmin); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("Require admin = %v, want forbidden", err)
	}
	if err := Require(user, models.RoleEmployer); !apperr.Is(err, apperr.CodeForbidden) {
		t.Errorf("Require employer = %v, want forbidden", err)
	}
	if err := Require(Principal{}, models.RoleUser); !apperr.Is(err, apperr.CodeUnauthorized) {
		t.Errorf("Require anonymous = %v, want unauthorized", err)
	}
}

func TestMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour)
	token, _, _ := tm.Issue(Principal{Email: "e@x.com", Role: models.RoleEmployer})

	var seen Principal
	handler := tm.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusNoContent},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, http.StatusNoContent},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookie, Value: token}) }, http.StatusNoContent},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+token) }, http.StatusUnauthorized},
		{"invalid", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = Principal{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusNoContent && seen.Email != "e@x.com" {
				t.Errorf("principal = %+v", seen)
			}
		})
	}
}
