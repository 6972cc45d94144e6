package models

import "time"

// Role determines which operations an account may perform.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleUser     Role = "user"
	RoleEmployer Role = "employer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleEmployer:
		return true
	}
	return false
}

// Account represents a registered portal account.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	Role         Role      `json:"role"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
}

// AccountRecord is the stored form of an Account. Unlike Account it
// serializes the password hash, so it must never be written to a response.
type AccountRecord struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         Role      `json:"role"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToRecord converts the account to its stored form.
func (a Account) ToRecord() AccountRecord {
	return AccountRecord(a)
}

// Account converts a stored record back to an Account.
func (r AccountRecord) Account() Account {
	return Account(r)
}
