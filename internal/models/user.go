package models

import "time"

// User is an authenticated account. The core only ever reads the ID.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is one turn of the assistant conversation, passed back to
// the reasoning service as prior context on follow-up questions.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
