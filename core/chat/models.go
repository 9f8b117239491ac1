package chat

import "time"

// Message is one line of a submission's review thread. Immutable once stored.
type Message struct {
	ID           string    `json:"id"`
	SubmissionID string    `json:"submission_id"`
	Sender       string    `json:"sender"` // display name
	SenderRole   string    `json:"sender_role"`
	Body         string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"` // UTC, server-assigned
}
