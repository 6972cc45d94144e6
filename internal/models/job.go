package models

import "time"

// JobPosting is a job advertised by an employer.
type JobPosting struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Company       string    `json:"company"`
	Location      string    `json:"location"`
	Requirements  string    `json:"requirements"`
	EmployerEmail string    `json:"employer_email"`
	CreatedAt     time.Time `json:"created_at"`
}

// JobStats summarises applications received by a single posting.
type JobStats struct {
	JobID             string `json:"job_id"`
	Title             string `json:"title"`
	Company           string `json:"company"`
	Location          string `json:"location"`
	ApplicationsCount int    `json:"applications_count"`
}
