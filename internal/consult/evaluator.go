package consult

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/ashureev/campaign-consult/internal/domain"
	"github.com/ashureev/campaign-consult/internal/metrics"
)

// DefaultJudgeTimeout bounds a single judge call.
const DefaultJudgeTimeout = 10 * time.Second

// heuristicQuestionFloor is the question count after which budget stops
// blocking the heuristic verdict.
const heuristicQuestionFloor = 4

// EvaluatorError wraps a failure inside the evaluator itself.
type EvaluatorError struct {
	Err error
}

func (e *EvaluatorError) Error() string {
	return fmt.Sprintf("evaluator: %v", e.Err)
}

func (e *EvaluatorError) Unwrap() error {
	return e.Err
}

// Completeness is what the machine asks whether a session is ready.
type Completeness interface {
	Evaluate(ctx context.Context, s *domain.Session) (domain.Evaluation, error)
}

// Evaluator decides whether a session holds enough information for a brief.
type Evaluator struct {
	judge   Judge
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithJudge enables model-assisted adjudication.
func WithJudge(j Judge) EvaluatorOption {
	return func(e *Evaluator) { e.judge = j }
}

// WithJudgeTimeout bounds each judge call.
func WithJudgeTimeout(d time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithEvaluatorMetrics records judge latency and verdicts.
func WithEvaluatorMetrics(m *metrics.Metrics) EvaluatorOption {
	return func(e *Evaluator) { e.metrics = m }
}

// WithEvaluatorLogger sets the logger.
func WithEvaluatorLogger(l *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.logger = l }
}

// NewEvaluator creates an evaluator. Without a judge every verdict comes from
// the audit or the heuristic.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{timeout: DefaultJudgeTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the completeness verdict for s. It does not modify s.
// Judge failures, panics included, fall back to the heuristic; only a fault
// in the audit or the merge is returned as an error.
func (e *Evaluator) Evaluate(ctx context.Context, s *domain.Session) (ev domain.Evaluation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &EvaluatorError{Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	audit := RunAudit(s)
	switch {
	case len(audit.Missing) > 1:
		ev = domain.Evaluation{
			HasEnoughInfo:   false,
			MissingCritical: unionFields(missingCore(&s.Intent), audit.Missing),
			Reasoning:       fmt.Sprintf("basic audit: %s still missing", joinFields(audit.Missing)),
			Confidence:      0.9,
			Scores:          audit.Scores,
			Path:            domain.EvalPathAudit,
		}
	case e.judge != nil:
		ev = e.adjudicate(ctx, s, audit)
	default:
		ev = heuristic(s, audit)
	}

	if s.QuestionCount >= s.MaxQuestions && !ev.HasEnoughInfo {
		ev.HasEnoughInfo = true
		ev.Forced = true
		ev.Reasoning += "; question budget exhausted"
	}
	ev.Recommendations = append(ev.Recommendations, recommendations(s, audit)...)
	e.metrics.Evaluated(string(ev.Path), ev.HasEnoughInfo)
	return ev, nil
}

func (e *Evaluator) adjudicate(ctx context.Context, s *domain.Session, audit Audit) domain.Evaluation {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := JudgeRequest{
		SessionID:     s.ID,
		UserInput:     s.UserInput,
		Transcript:    s.Answered(),
		Intent:        s.Intent.Clone(),
		QuestionCount: s.QuestionCount,
		MaxQuestions:  s.MaxQuestions,
	}
	start := time.Now()
	v, err := e.callJudge(callCtx, req)
	e.metrics.JudgeCalled(e.judge.Name(), time.Since(start).Seconds(), err)
	if err == nil && v == nil {
		err = ErrVerdictMalformed
	}
	if err != nil {
		e.logger.Warn("judge failed, using heuristic", "session_id", s.ID, "judge", e.judge.Name(), "error", err)
		ev := heuristic(s, audit)
		ev.JudgeError = err.Error()
		return ev
	}
	return merge(s, audit, v)
}

func (e *Evaluator) callJudge(ctx context.Context, req JudgeRequest) (v *Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("judge %s panicked: %v", e.judge.Name(), r)
		}
	}()
	return e.judge.Judge(ctx, req)
}

// heuristic requires the critical triad plus a budget, unless enough
// questions have been asked that budget no longer blocks.
func heuristic(s *domain.Session, audit Audit) domain.Evaluation {
	missing := missingCore(&s.Intent)
	budgetOK := s.Intent.Has(domain.FieldBudget) || s.QuestionCount >= heuristicQuestionFloor
	if !budgetOK {
		missing = append(missing, domain.FieldBudget)
	}
	ready := len(missing) == 0

	ev := domain.Evaluation{
		HasEnoughInfo:   ready,
		MissingCritical: unionFields(missing, audit.Missing),
		Scores:          audit.Scores,
		Path:            domain.EvalPathHeuristic,
		Confidence:      0.4,
	}
	if ready {
		ev.Confidence = 0.6
		ev.Reasoning = "goal, audience and channels are known"
	} else {
		ev.Reasoning = fmt.Sprintf("still missing %s", joinFields(missing))
	}
	return ev
}

// merge combines the judge verdict with the audit: each criterion keeps the
// lower score and readiness still requires the critical triad.
func merge(s *domain.Session, audit Audit, v *Verdict) domain.Evaluation {
	scores := make(map[domain.Criterion]float64, len(domain.Criteria))
	for _, c := range domain.Criteria {
		judged, ok := v.QualityAssessment[string(c)]
		if !ok {
			judged = defaultCriterionScore
		}
		if a, ok := audit.Scores[c]; ok {
			judged = math.Min(judged, a)
		}
		scores[c] = round(judged)
	}

	core := missingCore(&s.Intent)
	ready := v.HasEnoughInfo && len(core) == 0

	conf := v.ConfidenceScore
	if heuristic(s, audit).HasEnoughInfo == v.HasEnoughInfo {
		conf = math.Min(conf*1.2, 1)
	} else {
		conf *= 0.8
	}

	var mentioned []domain.Field
	for _, m := range v.MissingCriticalInfo {
		if f, ok := fieldFromMention(m); ok {
			mentioned = append(mentioned, f)
		}
	}

	reasoning := strings.TrimSpace(v.Reasoning)
	if v.HasEnoughInfo && !ready {
		reasoning = strings.TrimSpace(reasoning + " (overridden: " + joinFields(core) + " still missing)")
	}
	return domain.Evaluation{
		HasEnoughInfo:   ready,
		MissingCritical: unionFields(mentioned, audit.Missing, core),
		Reasoning:       reasoning,
		Confidence:      round(conf),
		Scores:          scores,
		Recommendations: append([]string(nil), v.Recommendations...),
		Path:            domain.EvalPathJudge,
	}
}

var fieldAdvice = map[domain.Field]string{
	domain.FieldGoal:     "Clarify exactly what is being promoted and what makes it stand out",
	domain.FieldAudience: "Narrow the audience by age, profession, interests or location",
	domain.FieldBudget:   "Set at least a rough budget range so channels can be sized",
	domain.FieldChannels: "Pick one or two channels where the audience already spends time",
}

func recommendations(s *domain.Session, audit Audit) []string {
	var out []string
	for _, f := range domain.AuditFields {
		if audit.FieldScores[f] < 0.6 {
			out = append(out, fieldAdvice[f])
		}
	}
	if len(s.Answered()) > 0 && audit.Engagement < 0.5 {
		out = append(out, "Ask for more detail; answers so far are short")
	}
	return out
}

func joinFields(fs []domain.Field) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}
