package consult

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ashureev/campaign-consult/internal/domain"
	"github.com/ashureev/campaign-consult/internal/extract"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"corrupt", fmt.Errorf("validate: %w", domain.ErrStateCorrupt), ErrorStateCorruption},
		{"illegal transition", fmt.Errorf("%w: gathering on finalize", ErrIllegalTransition), ErrorStateCorruption},
		{"question already open", domain.ErrQuestionOpen, ErrorStateCorruption},
		{"extractor", fmt.Errorf("turn: %w", extract.Failure{Field: domain.FieldBudget, Err: errors.New("boom")}), ErrorExtraction},
		{"evaluator", &EvaluatorError{Err: errors.New("panic")}, ErrorEvaluator},
		{"other", errors.New("disk on fire"), ErrorUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestRecoveryPolicyDecide(t *testing.T) {
	t.Parallel()

	sessionWith := func(answered, recoveries int) *domain.Session {
		s := newTestSession("x")
		for i := 0; i < answered; i++ {
			qt := domain.QuestionTypes[i]
			if err := s.Ask(domain.Question{Text: "q", Type: qt}, testNow); err != nil {
				t.Fatalf("Ask() error = %v", err)
			}
			if _, err := s.Answer("answer", testNow); err != nil {
				t.Fatalf("Answer() error = %v", err)
			}
		}
		s.Recoveries = recoveries
		return s
	}

	tests := []struct {
		name       string
		answered   int
		recoveries int
		kind       ErrorKind
		want       RecoveryAction
	}{
		{"corruption resets", 3, 0, ErrorStateCorruption, RecoveryReset},
		{"evaluator failure before the product question guides", 0, 0, ErrorEvaluator, RecoveryGuidance},
		{"unknown failure before the product question guides", 0, 1, ErrorUnknown, RecoveryGuidance},
		{"evaluator failure after the product question retries", 1, 0, ErrorEvaluator, RecoveryRetry},
		{"unknown failure after the product question retries", 1, 0, ErrorUnknown, RecoveryRetry},
		{"late evaluator failure retries", 2, 0, ErrorEvaluator, RecoveryRetry},
		{"extraction failure retries", 0, 0, ErrorExtraction, RecoveryRetry},
		{"limit escalates", 3, DefaultMaxRecoveries, ErrorStateCorruption, RecoveryEscalate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := RecoveryPolicy{}.Decide(sessionWith(tt.answered, tt.recoveries), tt.kind)
			if got != tt.want {
				t.Errorf("Decide() = %s, want %s", got, tt.want)
			}
		})
	}

	if got := (RecoveryPolicy{MaxRecoveries: 1}).Decide(sessionWith(0, 1), ErrorUnknown); got != RecoveryEscalate {
		t.Errorf("Decide() with custom limit = %s, want escalate", got)
	}
}
