package consult

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"

	"github.com/ashureev/campaign-consult/internal/domain"
	apperrors "github.com/ashureev/campaign-consult/internal/errors"
	"github.com/ashureev/campaign-consult/internal/handoff"
	"github.com/ashureev/campaign-consult/internal/metrics"
	"github.com/ashureev/campaign-consult/internal/session"
)

// Input limits.
const (
	MaxRequestRunes = 2000
	MaxAnswerRunes  = 2000
)

// DefaultIdempotencyTTL is how long a replayed turn returns the cached result.
const DefaultIdempotencyTTL = 10 * time.Minute

// Service is the entry point for every transport.
type Service struct {
	sessions  *session.Manager
	machine   *Machine
	publisher handoff.Publisher
	replay    *cache.Cache
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// ServiceConfig holds the collaborators of a Service.
type ServiceConfig struct {
	Sessions       *session.Manager
	Machine        *Machine
	Publisher      handoff.Publisher
	IdempotencyTTL time.Duration
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// NewService creates a service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Publisher == nil {
		cfg.Publisher = handoff.Discard{}
	}
	if cfg.Machine == nil {
		cfg.Machine = NewMachine(MachineConfig{Metrics: cfg.Metrics, Logger: cfg.Logger})
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = DefaultIdempotencyTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Service{
		sessions:  cfg.Sessions,
		machine:   cfg.Machine,
		publisher: cfg.Publisher,
		replay:    cache.New(cfg.IdempotencyTTL, 0),
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
	cfg.Sessions.OnEvict(func(id string, _ session.EvictReason) {
		s.forget(id)
	})
	return s
}

// Sessions exposes the session manager for background jobs and transports.
func (s *Service) Sessions() *session.Manager {
	return s.sessions
}

// Start opens a consultation for a marketing request and returns the first question.
func (s *Service) Start(ctx context.Context, input string, client session.Client) (*Outcome, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, apperrors.NewInvalidRequest("message is required")
	}
	if utf8.RuneCountInString(input) > MaxRequestRunes {
		return nil, apperrors.NewInvalidRequest("message is too long")
	}

	id, err := s.sessions.Create(input, client)
	if err != nil {
		return nil, err
	}
	s.logger.Info("consultation started", "session_id", id, "channel", client.Channel)
	return s.turn(ctx, id, nil, "")
}

// Reply applies the user's answer. A repeated idempotencyKey returns the
// result of the first call without applying the answer again.
func (s *Service) Reply(ctx context.Context, id, answer, idempotencyKey string) (*Outcome, error) {
	if utf8.RuneCountInString(answer) > MaxAnswerRunes {
		return nil, apperrors.NewInvalidRequest("answer is too long")
	}
	return s.turn(ctx, id, &answer, idempotencyKey)
}

func replayKey(id, key string) string {
	return id + "\x00" + key
}

func (s *Service) turn(ctx context.Context, id string, answer *string, key string) (*Outcome, error) {
	var (
		out      *Outcome
		replayed bool
	)
	err := s.sessions.WithSession(ctx, id, func(sess *domain.Session) error {
		if key != "" {
			if v, ok := s.replay.Get(replayKey(id, key)); ok {
				out, replayed = v.(*Outcome), true
				return nil
			}
		}

		o, err := s.machine.Advance(ctx, sess, answer)
		if err != nil {
			return err
		}
		if sess.Stage == domain.StageCompleted && !sess.HandedOff && sess.Brief != nil {
			s.handoff(ctx, sess, o)
		}
		if key != "" {
			s.replay.Set(replayKey(id, key), o, cache.DefaultExpiration)
		}
		out = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	if replayed {
		return out, nil
	}

	s.metrics.TurnProcessed(string(out.Stage))
	if out.Stage == domain.StageCompleted {
		if err := s.sessions.Complete(id); err != nil {
			s.logger.Warn("failed to mark consultation complete", "session_id", id, "error", err)
		}
	}
	return out, nil
}

// handoff publishes the brief. Callers hold the session lock, so a brief is
// published at most once per session.
func (s *Service) handoff(ctx context.Context, sess *domain.Session, o *Outcome) {
	if err := s.publisher.Publish(ctx, sess.Brief); err != nil {
		s.metrics.HandoffFailed(s.publisher.Name())
		s.logger.Error("brief handoff failed", "session_id", sess.ID, "publisher", s.publisher.Name(), "error", err)
		msg := "handoff_failed: " + err.Error()
		sess.AddError(msg)
		o.Errors = append(o.Errors, msg)
		return
	}
	sess.HandedOff = true
	s.logger.Info("brief handed off", "session_id", sess.ID, "publisher", s.publisher.Name(), "questions", sess.QuestionCount)
}

// Status describes a consultation without changing it.
func (s *Service) Status(id string) (*Outcome, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	out := &Outcome{
		SessionID:          sess.ID,
		Stage:              sess.Stage,
		ProgressPercentage: Percentage(sess),
		Errors:             sess.Errors,
		Evaluation:         sess.Evaluation,
		Brief:              sess.Brief,
	}
	if t := sess.OpenTurn(); t != nil {
		out.NextQuestion = &domain.Question{Text: t.Question, Type: t.Type, Kind: t.Kind}
	}
	return out, nil
}

// Session returns a copy of the full session record.
func (s *Service) Session(id string) (*domain.Session, error) {
	return s.sessions.Get(id)
}

// Summary returns the markdown summary: the final one once completed,
// otherwise what has been gathered so far.
func (s *Service) Summary(id string) (string, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return "", err
	}
	if sess.FinalSummary != "" {
		return sess.FinalSummary, nil
	}
	draft := &domain.Brief{
		SessionID:  sess.ID,
		UserInput:  sess.UserInput,
		Intent:     sess.Intent,
		Transcript: sess.Answered(),
	}
	return Summarize(sess, draft), nil
}

// Cancel ends a consultation and forgets it.
func (s *Service) Cancel(id string) error {
	if err := s.sessions.Delete(id); err != nil {
		return err
	}
	s.logger.Info("consultation cancelled", "session_id", id)
	return nil
}

// Analytics describes one consultation.
func (s *Service) Analytics(id string) (session.Analytics, error) {
	return s.sessions.Analytics(id)
}

// Stats describes all live consultations.
func (s *Service) Stats() session.Stats {
	return s.sessions.Stats()
}

// PruneReplays drops expired idempotency entries. The cache runs no janitor
// goroutine of its own; the sweep job calls this.
func (s *Service) PruneReplays() {
	s.replay.DeleteExpired()
}

// forget drops cached replays for an evicted session.
func (s *Service) forget(id string) {
	prefix := id + "\x00"
	for k := range s.replay.Items() {
		if strings.HasPrefix(k, prefix) {
			s.replay.Delete(k)
		}
	}
}
