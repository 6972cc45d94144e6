package models

import "time"

// Event is an audit record of a privileged action.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`  // e.g., "job.delete", "application.status"
	Level      string    `json:"level"` // e.g., "info", "warn", "error"
	Message    string    `json:"message"`
	ActorEmail string    `json:"actor_email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
