package consult

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ashureev/campaign-consult/internal/domain"
)

func TestFinalizeFillsDefaults(t *testing.T) {
	t.Parallel()

	s := newTestSession("promote my bakery")
	s.Intent.Set(domain.FieldGoal, "sourdough bakery", domain.ConfidenceDirect)
	s.Intent.Set(domain.FieldChannels, "instagram and email", domain.ConfidenceExtracted)
	askAndAnswer(t, s, domain.Question{Text: "What are you promoting?", Type: domain.QuestionProductService}, "sourdough bakery")
	s.Evaluation = &domain.Evaluation{HasEnoughInfo: true, Path: domain.EvalPathHeuristic, Confidence: 0.6}

	b := Finalize(s, testNow)

	if b.Intent.Goal != "sourdough bakery" {
		t.Errorf("Goal = %q, gathered value must survive", b.Intent.Goal)
	}
	if b.Intent.Audience != DefaultAudience || b.Intent.ConfidenceOf(domain.FieldAudience) != 0 {
		t.Errorf("Audience = %q (%v), want default with zero confidence",
			b.Intent.Audience, b.Intent.ConfidenceOf(domain.FieldAudience))
	}
	if b.Intent.Tone != DefaultTone {
		t.Errorf("Tone = %q, want %q", b.Intent.Tone, DefaultTone)
	}
	if diff := cmp.Diff([]string{"Instagram", "Email"}, b.Channels); diff != "" {
		t.Errorf("Channels mismatch (-want +got):\n%s", diff)
	}
	for _, f := range domain.Fields {
		if s.Intent.Get(f) == "" {
			t.Errorf("session field %s left empty", f)
		}
	}
	if len(b.Transcript) != 1 || b.QuestionCount != 1 {
		t.Errorf("Transcript = %d turns, QuestionCount = %d", len(b.Transcript), b.QuestionCount)
	}
	if !b.CompletedAt.Equal(testNow) {
		t.Errorf("CompletedAt = %v", b.CompletedAt)
	}

	for _, want := range []string{
		"# Campaign brief",
		"**Request:** promote my bakery",
		"- **Audience:** general audience",
		"- **Unique Value:** not specified",
		"1. **Q:** What are you promoting?",
		"Assessed by heuristic with confidence 0.60.",
	} {
		if !strings.Contains(b.Summary, want) {
			t.Errorf("Summary missing %q:\n%s", want, b.Summary)
		}
	}
}

func TestFinalizeEmptyInputUsesDefaultGoal(t *testing.T) {
	t.Parallel()

	s := newTestSession("   ")
	b := Finalize(s, testNow)
	if b.Intent.Goal != DefaultGoal {
		t.Errorf("Goal = %q, want %q", b.Intent.Goal, DefaultGoal)
	}
	if diff := cmp.Diff([]string{"Email", "Instagram"}, b.Channels); diff != "" {
		t.Errorf("Channels mismatch (-want +got):\n%s", diff)
	}
	if strings.Contains(b.Summary, "## Conversation") {
		t.Error("Summary has a conversation section without answers")
	}
}

func TestSplitChannels(t *testing.T) {
	t.Parallel()

	tests := map[string][]string{
		"instagram and email":                   {"Instagram", "Email"},
		"Instagram, email / TikTok & instagram": {"Instagram", "Email", "TikTok"},
		"google ads":                            {"Google Ads"},
		" , ":                                   nil,
	}
	for in, want := range tests {
		if diff := cmp.Diff(want, SplitChannels(in)); diff != "" {
			t.Errorf("SplitChannels(%q) mismatch (-want +got):\n%s", in, diff)
		}
	}
}

func TestCompletion(t *testing.T) {
	t.Parallel()

	s := newTestSession("x")
	if got := Percentage(s); got != 0 {
		t.Errorf("Percentage() empty gathering = %d, want 0", got)
	}

	for _, f := range []domain.Field{domain.FieldGoal, domain.FieldAudience, domain.FieldChannels, domain.FieldTone} {
		s.Intent.Set(f, "something concrete "+string(f), domain.ConfidenceExtracted)
	}
	s.QuestionCount = 3
	if got := Percentage(s); got != 35 {
		t.Errorf("Percentage() = %d, want 35", got)
	}

	for st, want := range map[domain.Stage]int{
		domain.StageInitial:    10,
		domain.StageValidating: 80,
		domain.StageReady:      90,
		domain.StageCompleted:  100,
	} {
		s.Stage = st
		if got := Percentage(s); got != want {
			t.Errorf("Percentage() in %s = %d, want %d", st, got, want)
		}
	}
}
