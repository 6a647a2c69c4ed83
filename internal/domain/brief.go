package domain

import "time"

// Brief is the finalized consultation handed to content generation.
type Brief struct {
	SessionID     string    `json:"session_id"`
	UserInput     string    `json:"user_input"`
	Intent        Intent    `json:"intent"`
	Channels      []string  `json:"channels"`
	Summary       string    `json:"summary"`
	QuestionCount int       `json:"question_count"`
	CreatedAt     time.Time `json:"created_at"`
	CompletedAt   time.Time `json:"completed_at"`
	Transcript    []Turn    `json:"transcript,omitempty"`
}
