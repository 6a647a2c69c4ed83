package consult

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ashureev/campaign-consult/internal/domain"
	apperrors "github.com/ashureev/campaign-consult/internal/errors"
	"github.com/ashureev/campaign-consult/internal/metrics"
	"github.com/ashureev/campaign-consult/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordingPublisher struct {
	mu     sync.Mutex
	briefs []*domain.Brief
	err    error
}

func (p *recordingPublisher) Name() string { return "recording" }

func (p *recordingPublisher) Publish(_ context.Context, b *domain.Brief) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.briefs = append(p.briefs, b)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.briefs)
}

func newTestService(pub *recordingPublisher) *Service {
	m := metrics.New()
	return NewService(ServiceConfig{
		Sessions:  session.NewManager(session.Config{Progress: Completion, Metrics: m}),
		Publisher: pub,
		Metrics:   m,
	})
}

var happyAnswers = []string{
	"artisan espresso bar downtown",
	"young professionals aged 25-35 who love specialty coffee",
	"around $2000 per month",
	"instagram and email",
}

func TestServiceConsultation(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	svc := newTestService(pub)
	ctx := context.Background()

	out, err := svc.Start(ctx, "promote my coffee shop", session.Client{Channel: "http"})
	require.NoError(t, err)
	require.Equal(t, domain.StageGathering, out.Stage)
	require.NotNil(t, out.NextQuestion)
	id := out.SessionID

	draft, err := svc.Summary(id)
	require.NoError(t, err)
	require.Contains(t, draft, "**Request:** promote my coffee shop")

	for _, a := range happyAnswers {
		out, err = svc.Reply(ctx, id, a, "")
		require.NoError(t, err)
	}
	require.Equal(t, domain.StageCompleted, out.Stage)
	require.NotNil(t, out.Brief)
	require.Equal(t, 1, pub.count())
	require.Equal(t, id, pub.briefs[0].SessionID)

	sess, err := svc.Session(id)
	require.NoError(t, err)
	require.True(t, sess.HandedOff)

	summary, err := svc.Summary(id)
	require.NoError(t, err)
	require.Equal(t, sess.FinalSummary, summary)

	meta, err := svc.Sessions().Meta(id)
	require.NoError(t, err)
	require.False(t, meta.CompletedAt.IsZero())

	_, err = svc.Reply(ctx, id, "one more thing", "")
	require.True(t, apperrors.Is(err, apperrors.ErrSessionClosed), "got %v", err)
	require.Equal(t, 1, pub.count(), "brief published twice")

	status, err := svc.Status(id)
	require.NoError(t, err)
	require.Equal(t, domain.StageCompleted, status.Stage)
	require.Equal(t, 100, status.ProgressPercentage)
}

func TestServiceReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	svc := newTestService(&recordingPublisher{})
	ctx := context.Background()
	out, err := svc.Start(ctx, "promote my coffee shop", session.Client{})
	require.NoError(t, err)
	id := out.SessionID

	first, err := svc.Reply(ctx, id, happyAnswers[0], "turn-1")
	require.NoError(t, err)
	again, err := svc.Reply(ctx, id, "something different entirely", "turn-1")
	require.NoError(t, err)
	require.Same(t, first, again)

	sess, err := svc.Session(id)
	require.NoError(t, err)
	require.Equal(t, 2, sess.QuestionCount)
	require.Len(t, sess.Answered(), 1)

	// A new key is a new turn.
	_, err = svc.Reply(ctx, id, happyAnswers[1], "turn-2")
	require.NoError(t, err)
	sess, err = svc.Session(id)
	require.NoError(t, err)
	require.Len(t, sess.Answered(), 2)
}

func TestServiceHandoffFailure(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{err: errors.New("queue unavailable")}
	svc := newTestService(pub)
	ctx := context.Background()

	out, err := svc.Start(ctx, "promote my coffee shop", session.Client{})
	require.NoError(t, err)
	id := out.SessionID
	for _, a := range happyAnswers {
		out, err = svc.Reply(ctx, id, a, "")
		require.NoError(t, err)
	}

	require.Equal(t, domain.StageCompleted, out.Stage)
	require.Contains(t, out.Errors, "handoff_failed: queue unavailable")
	sess, err := svc.Session(id)
	require.NoError(t, err)
	require.False(t, sess.HandedOff)
}

func TestServiceRejectsBadInput(t *testing.T) {
	t.Parallel()

	svc := newTestService(&recordingPublisher{})
	ctx := context.Background()

	_, err := svc.Start(ctx, "   ", session.Client{})
	require.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest), "empty: %v", err)

	_, err = svc.Start(ctx, strings.Repeat("a", MaxRequestRunes+1), session.Client{})
	require.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest), "long: %v", err)
	require.Zero(t, svc.Sessions().Len())

	out, err := svc.Start(ctx, "promote my coffee shop", session.Client{})
	require.NoError(t, err)
	_, err = svc.Reply(ctx, out.SessionID, strings.Repeat("b", MaxAnswerRunes+1), "")
	require.True(t, apperrors.Is(err, apperrors.ErrInvalidRequest), "long answer: %v", err)

	_, err = svc.Reply(ctx, "consultation_missing", "hello", "")
	require.True(t, apperrors.Is(err, apperrors.ErrNotFound), "unknown: %v", err)
	_, err = svc.Status("consultation_missing")
	require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestServiceCancelForgetsReplays(t *testing.T) {
	t.Parallel()

	svc := newTestService(&recordingPublisher{})
	ctx := context.Background()
	out, err := svc.Start(ctx, "promote my coffee shop", session.Client{})
	require.NoError(t, err)
	id := out.SessionID

	_, err = svc.Reply(ctx, id, happyAnswers[0], "k")
	require.NoError(t, err)
	require.Equal(t, 1, svc.replay.ItemCount())

	require.NoError(t, svc.Cancel(id))
	require.Zero(t, svc.replay.ItemCount())
	_, err = svc.Status(id)
	require.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	require.True(t, apperrors.Is(svc.Cancel(id), apperrors.ErrNotFound))
}

func TestServiceConcurrentConsultations(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	svc := newTestService(pub)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.Start(ctx, "promote my coffee shop", session.Client{})
			if err != nil {
				errs <- err
				return
			}
			for _, a := range happyAnswers {
				if out, err = svc.Reply(ctx, out.SessionID, a, ""); err != nil {
					errs <- err
					return
				}
			}
			if out.Stage != domain.StageCompleted {
				errs <- errors.New("consultation ended in " + string(out.Stage))
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	require.Equal(t, n, pub.count())
	stats := svc.Stats()
	require.Equal(t, n, stats.Active)
	require.Equal(t, n, stats.ByStage[domain.StageCompleted])
}
