package domain

import "time"

// Turn is one question and, once given, its answer.
type Turn struct {
	Question   string       `json:"question"`
	Type       QuestionType `json:"question_type"`
	Kind       TurnKind     `json:"kind"`
	Answer     *string      `json:"answer"`
	AskedAt    time.Time    `json:"asked_at"`
	AnsweredAt *time.Time   `json:"answered_at,omitempty"`
}

// Open returns true while the turn awaits an answer.
func (t *Turn) Open() bool {
	return t.Answer == nil
}

// AnswerText returns the answer or an empty string while the turn is open.
func (t *Turn) AnswerText() string {
	if t.Answer == nil {
		return ""
	}
	return *t.Answer
}
