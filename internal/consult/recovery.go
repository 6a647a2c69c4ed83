package consult

import (
	"errors"

	"github.com/ashureev/campaign-consult/internal/domain"
	"github.com/ashureev/campaign-consult/internal/extract"
)

// ErrorKind classifies a failure inside a turn.
type ErrorKind string

// Error kinds.
const (
	ErrorExtraction      ErrorKind = "extraction_failure"
	ErrorEvaluator       ErrorKind = "evaluator_failure"
	ErrorStateCorruption ErrorKind = "state_corruption"
	ErrorUnknown         ErrorKind = "unknown"
)

// RecoveryAction is what the machine does about a failure.
type RecoveryAction string

// Recovery actions.
const (
	RecoveryReset    RecoveryAction = "reset_to_gathering"
	RecoveryGuidance RecoveryAction = "provide_guidance"
	RecoveryRetry    RecoveryAction = "retry_last_action"
	RecoveryEscalate RecoveryAction = "escalate"
)

// DefaultMaxRecoveries is how many recoveries a session gets before it fails.
const DefaultMaxRecoveries = 3

// Classify maps an error to its kind.
func Classify(err error) ErrorKind {
	var (
		failure extract.Failure
		evalErr *EvaluatorError
	)
	switch {
	case errors.Is(err, domain.ErrStateCorrupt),
		errors.Is(err, ErrIllegalTransition),
		errors.Is(err, domain.ErrQuestionOpen),
		errors.Is(err, domain.ErrNoOpenQuestion):
		return ErrorStateCorruption
	case errors.As(err, &failure):
		return ErrorExtraction
	case errors.As(err, &evalErr):
		return ErrorEvaluator
	default:
		return ErrorUnknown
	}
}

// RecoveryPolicy decides how to recover from a classified failure.
type RecoveryPolicy struct {
	MaxRecoveries int
}

// Decide picks the recovery action for a failure of kind in s.
func (p RecoveryPolicy) Decide(s *domain.Session, kind ErrorKind) RecoveryAction {
	limit := p.MaxRecoveries
	if limit <= 0 {
		limit = DefaultMaxRecoveries
	}
	if s.Recoveries >= limit {
		return RecoveryEscalate
	}
	switch kind {
	case ErrorStateCorruption:
		return RecoveryReset
	case ErrorEvaluator, ErrorUnknown:
		// Guidance reopens the product topic, so it is only offered before
		// that topic has been asked.
		if !s.Asked(domain.QuestionProductService) {
			return RecoveryGuidance
		}
	}
	return RecoveryRetry
}
