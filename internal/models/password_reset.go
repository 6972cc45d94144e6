package models

import "time"

// PasswordReset is a single-use password reset grant. Only the token hash is stored.
type PasswordReset struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	TokenHash string    `json:"token_hash"`
	ExpiresAt time.Time `json:"expires_at"`
	// ExpiresAtMS mirrors ExpiresAt in Unix milliseconds for range deletes.
	ExpiresAtMS int64 `json:"expires_at_ms"`
	Used      bool      `json:"used"`
}
