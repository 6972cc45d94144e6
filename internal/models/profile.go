package models

import "time"

// Profile is the student profile owned by a user account, keyed by email.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Skills    string    `json:"skills,omitempty"`
	ResumeURL string    `json:"resume_url,omitempty"`
	Bio       string    `json:"bio,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
