package session

import (
	"time"

	"github.com/google/uuid"
)

// Role constants define valid message roles. They match Genkit's
// ai.Role values so history round-trips to the model without mapping.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Session represents a conversation session (application-level type).
type Session struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	ModelName    string    `json:"model_name"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message represents a single conversation message (application-level type).
type Message struct {
	ID             int64     `json:"id"`
	SessionID      uuid.UUID `json:"session_id"`
	Role           string    `json:"role"` // "user" | "model"
	Content        string    `json:"content"`
	SequenceNumber int       `json:"sequence_number"`
	CreatedAt      time.Time `json:"created_at"`
}
