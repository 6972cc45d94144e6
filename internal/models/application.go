package models

import "time"

// ApplicationStatus is the review state of an application.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusAccepted ApplicationStatus = "accepted"
	StatusDeclined ApplicationStatus = "declined"
)

// IsDecision reports whether s is a status an employer may set.
func (s ApplicationStatus) IsDecision() bool {
	return s == StatusAccepted || s == StatusDeclined
}

// Application is a user's application to a job posting.
type Application struct {
	ID             string            `json:"id"`
	JobID          string            `json:"job_id"`
	ApplicantEmail string            `json:"applicant_email"`
	CoverLetter    string            `json:"cover_letter"`
	Status         ApplicationStatus `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}
