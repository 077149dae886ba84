package keywords

import "time"

// Keyword is a word to watch for in prospect speech, with optional
// guidance for the agent when it fires.
type Keyword struct {
	ID           string    `json:"id"`
	Word         string    `json:"word"`
	TalkingPoint string    `json:"talking_point"`
	Active       bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
