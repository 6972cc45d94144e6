package websocket

// Actions pushed to connected clients.
const (
	// ActionApplicationStatus goes to an applicant when an employer decides.
	ActionApplicationStatus = "application.status"
	// ActionJobCreated goes to every client when a posting is published.
	ActionJobCreated = "job.created"
)

// Message is the envelope of every frame sent to a client.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload"`
}
