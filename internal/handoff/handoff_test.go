package handoff

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/campaign-consult/internal/domain"
	"github.com/ashureev/campaign-consult/internal/store"
)

type recorder struct {
	name  string
	err   error
	calls int
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Publish(context.Context, *domain.Brief) error {
	r.calls++
	return r.err
}

func TestMultiPublishesToAll(t *testing.T) {
	t.Parallel()

	failing := &recorder{name: "redis", err: errors.New("connection refused")}
	ok := &recorder{name: "archive"}
	err := Multi{failing, ok}.Publish(context.Background(), &domain.Brief{SessionID: "consultation_x"})

	if err == nil || !strings.Contains(err.Error(), "redis: connection refused") {
		t.Fatalf("Publish() error = %v", err)
	}
	if failing.calls != 1 || ok.calls != 1 {
		t.Errorf("calls = %d, %d; want 1, 1", failing.calls, ok.calls)
	}
}

func TestArchivePublish(t *testing.T) {
	t.Parallel()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "briefs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	now := time.Unix(1_700_000_000, 0)
	b := &domain.Brief{
		SessionID:   "consultation_arch",
		UserInput:   "promote my bakery",
		Intent:      domain.Intent{Goal: "bakery", Audience: "local families"},
		Channels:    []string{"Instagram"},
		CreatedAt:   now,
		CompletedAt: now,
	}
	if err := NewArchive(repo, true).Publish(context.Background(), b); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	got, err := repo.GetBrief(context.Background(), "consultation_arch")
	if err != nil || got == nil || got.Intent.Audience != "local families" {
		t.Fatalf("GetBrief() = %+v, %v", got, err)
	}
}

func TestNewRedisQueueRejectsBadURL(t *testing.T) {
	t.Parallel()

	if _, err := NewRedisQueue(context.Background(), "://nope", ""); err == nil {
		t.Fatal("NewRedisQueue() accepted a malformed URL")
	}
}
