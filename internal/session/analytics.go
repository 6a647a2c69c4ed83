package session

import (
	"time"
	"unicode/utf8"

	"github.com/ashureev/campaign-consult/internal/domain"
)

// Analytics describes one consultation.
type Analytics struct {
	SessionID           string         `json:"session_id"`
	Stage               domain.Stage   `json:"stage"`
	Duration            time.Duration  `json:"duration_ns"`
	DurationSeconds     float64        `json:"duration_seconds"`
	TurnCount           int            `json:"turn_count"`
	QuestionCount       int            `json:"question_count"`
	AverageAnswerLength float64        `json:"average_answer_length"`
	FieldsGathered      []domain.Field `json:"fields_gathered"`
	Completion          float64        `json:"completion_percentage"`
	Recoveries          int            `json:"recoveries"`
	Client              Client         `json:"client"`
}

// Analytics returns a summary of the session's conversation so far.
func (m *Manager) Analytics(id string) (Analytics, error) {
	e, err := m.acquire(id)
	if err != nil {
		return Analytics{}, err
	}
	defer e.mu.Unlock()

	s := e.session
	end := m.cfg.Clock()
	if !e.meta.CompletedAt.IsZero() {
		end = e.meta.CompletedAt
	}
	answered := s.Answered()
	total := 0
	for _, t := range answered {
		total += utf8.RuneCountInString(t.AnswerText())
	}
	avg := 0.0
	if len(answered) > 0 {
		avg = float64(total) / float64(len(answered))
	}

	d := end.Sub(s.CreatedAt)
	return Analytics{
		SessionID:           s.ID,
		Stage:               s.Stage,
		Duration:            d,
		DurationSeconds:     d.Seconds(),
		TurnCount:           len(answered),
		QuestionCount:       s.QuestionCount,
		AverageAnswerLength: avg,
		FieldsGathered:      s.Intent.Filled(),
		Completion:          e.meta.Completion * 100,
		Recoveries:          s.Recoveries,
		Client:              e.meta.Client,
	}, nil
}

// Stats describes the whole table.
type Stats struct {
	Active            int                  `json:"active_sessions"`
	ByStage           map[domain.Stage]int `json:"by_stage"`
	Created           int64                `json:"total_created"`
	Evicted           int64                `json:"total_evicted"`
	Completed         int64                `json:"total_completed"`
	AverageCompletion float64              `json:"average_completion_percentage"`
	MaxSessions       int                  `json:"max_sessions"`
	TTLSeconds        float64              `json:"session_ttl_seconds"`
}

// Stats returns table-wide counters. It never waits on a busy session.
func (m *Manager) Stats() Stats {
	st := Stats{
		ByStage:     make(map[domain.Stage]int),
		Created:     m.created.Load(),
		Evicted:     m.evicted.Load(),
		Completed:   m.completed.Load(),
		MaxSessions: m.cfg.MaxSessions,
		TTLSeconds:  m.cfg.TTL.Seconds(),
	}
	metas := m.snapshots()
	var sum float64
	for _, meta := range metas {
		st.ByStage[meta.Stage]++
		sum += meta.Completion
	}
	st.Active = len(metas)
	if len(metas) > 0 {
		st.AverageCompletion = sum / float64(len(metas)) * 100
	}
	return st
}
