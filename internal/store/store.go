// Package store archives finalized consultation briefs.
package store

import (
	"context"
	"time"

	"github.com/ashureev/campaign-consult/internal/domain"
)

// BriefSummary is one row of the brief listing.
type BriefSummary struct {
	SessionID     string    `json:"session_id"`
	Goal          string    `json:"goal"`
	Audience      string    `json:"audience"`
	Channels      []string  `json:"channels"`
	QuestionCount int       `json:"question_count"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Repository defines the interface for persisting briefs and transcripts.
type Repository interface {
	// SaveBrief stores a brief; saving the same session again replaces it.
	// The transcript is stored only when withTranscript is true.
	SaveBrief(ctx context.Context, b *domain.Brief, withTranscript bool) error

	// GetBrief retrieves a brief with its transcript. It returns nil, nil when
	// no brief exists for the session.
	GetBrief(ctx context.Context, sessionID string) (*domain.Brief, error)

	// ListBriefs returns the most recently completed briefs first.
	ListBriefs(ctx context.Context, limit, offset int) ([]BriefSummary, error)

	// PruneBriefs removes briefs completed before now minus retention.
	PruneBriefs(ctx context.Context, retention time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
