package domain

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxQuestions bounds a consultation when no budget is configured.
const DefaultMaxQuestions = 8

// Session invariant errors.
var (
	ErrQuestionOpen    = errors.New("a question is already open")
	ErrNoOpenQuestion  = errors.New("no question is open")
	ErrQuestionBudget  = errors.New("question budget exhausted")
	ErrStateCorrupt    = errors.New("session state is inconsistent")
	ErrUnknownQuestion = errors.New("unknown question type")
	ErrTerminalSession = errors.New("session has already ended")
)

// StageChange records one stage transition.
type StageChange struct {
	From  Stage     `json:"from"`
	To    Stage     `json:"to"`
	Event string    `json:"event"`
	At    time.Time `json:"at"`
}

// Session is one consultation: the aggregate of its turns, intent and stage.
type Session struct {
	ID              string        `json:"session_id"`
	UserInput       string        `json:"user_input"`
	CreatedAt       time.Time     `json:"created_at"`
	Turns           []Turn        `json:"turns"`
	Intent          Intent        `json:"intent"`
	Stage           Stage         `json:"stage"`
	QuestionCount   int           `json:"question_count"`
	MaxQuestions    int           `json:"max_questions"`
	HasEnoughInfo   bool          `json:"has_enough_info"`
	MissingCritical []Field       `json:"missing_critical"`
	Errors          []string      `json:"errors"`
	FinalSummary    string        `json:"final_summary,omitempty"`
	Evaluation      *Evaluation   `json:"evaluation,omitempty"`
	History         []StageChange `json:"history,omitempty"`
	Recoveries      int           `json:"recoveries"`
	HandedOff       bool          `json:"handed_off"`
	Brief           *Brief        `json:"brief,omitempty"`
}

// NewSession returns a session in the initial stage.
func NewSession(id, userInput string, maxQuestions int, now time.Time) *Session {
	if maxQuestions <= 0 {
		maxQuestions = DefaultMaxQuestions
	}
	return &Session{
		ID:           id,
		UserInput:    userInput,
		CreatedAt:    now,
		Stage:        StageInitial,
		MaxQuestions: maxQuestions,
		Intent:       Intent{Confidence: make(map[Field]float64)},
	}
}

// OpenTurn returns the unanswered turn, or nil.
func (s *Session) OpenTurn() *Turn {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Open() {
			return &s.Turns[i]
		}
	}
	return nil
}

// BudgetLeft returns how many more questions may be asked.
func (s *Session) BudgetLeft() int {
	if n := s.MaxQuestions - s.QuestionCount; n > 0 {
		return n
	}
	return 0
}

// Ask opens a new turn.
func (s *Session) Ask(q Question, now time.Time) error {
	if !q.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, q.Type)
	}
	if s.OpenTurn() != nil {
		return ErrQuestionOpen
	}
	if s.QuestionCount >= s.MaxQuestions {
		return ErrQuestionBudget
	}
	kind := q.Kind
	if kind == "" {
		kind = TurnInitial
	}
	s.Turns = append(s.Turns, Turn{
		Question: q.Text,
		Type:     q.Type,
		Kind:     kind,
		AskedAt:  now,
	})
	s.QuestionCount++
	return nil
}

// Answer closes the open turn with text.
func (s *Session) Answer(text string, now time.Time) (*Turn, error) {
	t := s.OpenTurn()
	if t == nil {
		return nil, ErrNoOpenQuestion
	}
	t.Answer = &text
	t.AnsweredAt = &now
	return t, nil
}

// Asked returns true if any turn asked about topic q.
func (s *Session) Asked(q QuestionType) bool {
	for i := range s.Turns {
		if s.Turns[i].Type == q {
			return true
		}
	}
	return false
}

// Clarifications counts clarification re-asks of topic q.
func (s *Session) Clarifications(q QuestionType) int {
	n := 0
	for i := range s.Turns {
		if s.Turns[i].Type == q && s.Turns[i].Kind == TurnClarification {
			n++
		}
	}
	return n
}

// Answered returns the turns that carry an answer.
func (s *Session) Answered() []Turn {
	out := make([]Turn, 0, len(s.Turns))
	for _, t := range s.Turns {
		if !t.Open() {
			out = append(out, t)
		}
	}
	return out
}

// LastAnswerFor returns the latest answer given to topic q.
func (s *Session) LastAnswerFor(q QuestionType) string {
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Type == q && !s.Turns[i].Open() {
			return s.Turns[i].AnswerText()
		}
	}
	return ""
}

// SetStage moves the session to stage to and records the change.
func (s *Session) SetStage(to Stage, event string, now time.Time) {
	if s.Stage == to {
		return
	}
	s.History = append(s.History, StageChange{From: s.Stage, To: to, Event: event, At: now})
	s.Stage = to
}

// Visited returns true if the session has ever been in stage st.
func (s *Session) Visited(st Stage) bool {
	if s.Stage == st {
		return true
	}
	for _, h := range s.History {
		if h.From == st || h.To == st {
			return true
		}
	}
	return false
}

// AddError appends a user-visible error message.
func (s *Session) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// Validate checks the structural invariants of the session.
func (s *Session) Validate() error {
	if !s.Stage.Valid() {
		return fmt.Errorf("%w: unknown stage %q", ErrStateCorrupt, s.Stage)
	}
	if s.MaxQuestions <= 0 {
		return fmt.Errorf("%w: max questions %d", ErrStateCorrupt, s.MaxQuestions)
	}
	if s.QuestionCount != len(s.Turns) {
		return fmt.Errorf("%w: question count %d but %d turns", ErrStateCorrupt, s.QuestionCount, len(s.Turns))
	}
	if s.QuestionCount > s.MaxQuestions {
		return fmt.Errorf("%w: %d questions exceed budget %d", ErrStateCorrupt, s.QuestionCount, s.MaxQuestions)
	}
	open := 0
	for i := range s.Turns {
		if !s.Turns[i].Type.Valid() {
			return fmt.Errorf("%w: turn %d has unknown type %q", ErrStateCorrupt, i, s.Turns[i].Type)
		}
		if s.Turns[i].Open() {
			open++
			if i != len(s.Turns)-1 {
				return fmt.Errorf("%w: turn %d is open but not last", ErrStateCorrupt, i)
			}
		}
	}
	if open > 1 {
		return fmt.Errorf("%w: %d open questions", ErrStateCorrupt, open)
	}
	return nil
}

// Repair clears structural anomalies found by Validate so the consultation
// can continue gathering. It reports what it changed.
func (s *Session) Repair(now time.Time) []string {
	var fixed []string
	if !s.Stage.Valid() {
		fixed = append(fixed, fmt.Sprintf("stage %q reset", s.Stage))
		s.SetStage(StageGathering, "repair", now)
	}
	if s.MaxQuestions <= 0 {
		s.MaxQuestions = DefaultMaxQuestions
		fixed = append(fixed, "max questions restored")
	}

	kept := s.Turns[:0]
	for i := range s.Turns {
		t := s.Turns[i]
		if !t.Type.Valid() {
			fixed = append(fixed, fmt.Sprintf("dropped turn %d with unknown type", i))
			continue
		}
		if t.Open() && i != len(s.Turns)-1 {
			empty := ""
			t.Answer = &empty
			t.AnsweredAt = &now
			fixed = append(fixed, fmt.Sprintf("closed stale question %d", i))
		}
		kept = append(kept, t)
	}
	s.Turns = kept

	if s.QuestionCount != len(s.Turns) {
		fixed = append(fixed, fmt.Sprintf("question count %d corrected to %d", s.QuestionCount, len(s.Turns)))
		s.QuestionCount = len(s.Turns)
	}
	if s.QuestionCount > s.MaxQuestions {
		s.MaxQuestions = s.QuestionCount
		fixed = append(fixed, "question budget widened to asked count")
	}
	return fixed
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Intent = s.Intent.Clone()
	out.Turns = make([]Turn, len(s.Turns))
	for i, t := range s.Turns {
		if t.Answer != nil {
			a := *t.Answer
			t.Answer = &a
		}
		if t.AnsweredAt != nil {
			at := *t.AnsweredAt
			t.AnsweredAt = &at
		}
		out.Turns[i] = t
	}
	out.MissingCritical = append([]Field(nil), s.MissingCritical...)
	out.Errors = append([]string(nil), s.Errors...)
	out.History = append([]StageChange(nil), s.History...)
	if s.Evaluation != nil {
		ev := *s.Evaluation
		ev.MissingCritical = append([]Field(nil), s.Evaluation.MissingCritical...)
		ev.Recommendations = append([]string(nil), s.Evaluation.Recommendations...)
		if s.Evaluation.Scores != nil {
			ev.Scores = make(map[Criterion]float64, len(s.Evaluation.Scores))
			for k, v := range s.Evaluation.Scores {
				ev.Scores[k] = v
			}
		}
		out.Evaluation = &ev
	}
	if s.Brief != nil {
		b := *s.Brief
		b.Intent = s.Brief.Intent.Clone()
		b.Channels = append([]string(nil), s.Brief.Channels...)
		b.Transcript = append([]Turn(nil), s.Brief.Transcript...)
		out.Brief = &b
	}
	return &out
}
