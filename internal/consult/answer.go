package consult

import (
	"errors"
	"strings"
	"time"

	"github.com/ashureev/campaign-consult/internal/domain"
	"github.com/ashureev/campaign-consult/internal/extract"
)

// Action is what the processor recommends after an answer.
type Action string

// Processor actions.
const (
	ActionRequestResponse Action = "request_response"
	ActionClarify         Action = "clarify_response"
	ActionValidate        Action = "validate_completeness"
	ActionContinue        Action = "continue_questioning"
)

// DefaultValidateAfter is the answered-question count after which any
// extraction triggers a completeness check.
const DefaultValidateAfter = 4

// Processed is the result of applying one answer.
type Processed struct {
	Extracted []extract.Candidate `json:"extracted"`
	Merged    []domain.Field      `json:"merged"`
	Quality   Quality             `json:"quality"`
	Action    Action              `json:"action"`
}

// Processor interprets answers and merges them into the session intent.
type Processor struct {
	registry      *extract.Registry
	validateAfter int
}

// NewProcessor creates a processor. A nil registry uses extract.Default.
func NewProcessor(registry *extract.Registry, validateAfter int) *Processor {
	if registry == nil {
		registry = extract.Default()
	}
	if validateAfter <= 0 {
		validateAfter = DefaultValidateAfter
	}
	return &Processor{registry: registry, validateAfter: validateAfter}
}

// Process applies answer to the open turn of s.
// An empty answer leaves the session untouched. Extractor failures are
// reported as issues and never abort the turn.
func (p *Processor) Process(s *domain.Session, answer string, now time.Time) Processed {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Processed{Quality: Assess("", "", nil), Action: ActionRequestResponse}
	}

	open := s.OpenTurn()
	if open == nil {
		q := Assess(answer, "", nil)
		q.Issues = append(q.Issues, IssueNoOpenQuestion)
		return Processed{Quality: q, Action: ActionContinue}
	}
	qt := open.Type
	primary := qt.Field()

	var (
		found  []extract.Candidate
		issues []string
	)
	c, ok, err := p.registry.Extract(answer, primary)
	if err != nil {
		issues = append(issues, failureIssue(err))
	}
	if !ok {
		c, ok = extract.Direct(answer, primary)
	}
	if ok {
		found = append(found, c)
	}
	others, errs := p.registry.ExtractAll(answer, primary)
	found = append(found, others...)
	for _, err := range errs {
		issues = append(issues, failureIssue(err))
	}

	if _, err := s.Answer(answer, now); err != nil {
		// OpenTurn was checked above; a failure here means the session changed under us.
		q := Assess(answer, qt, found)
		q.Issues = append(q.Issues, IssueNoOpenQuestion)
		return Processed{Extracted: found, Quality: q, Action: ActionContinue}
	}

	var merged []domain.Field
	for _, c := range found {
		if s.Intent.Merge(c.Field, c.Value, c.Confidence) {
			merged = append(merged, c.Field)
		}
	}

	q := Assess(answer, qt, found)
	q.Issues = append(q.Issues, issues...)
	return Processed{
		Extracted: found,
		Merged:    merged,
		Quality:   q,
		Action:    p.nextAction(s, found, q),
	}
}

func (p *Processor) nextAction(s *domain.Session, found []extract.Candidate, q Quality) Action {
	switch {
	case s.Intent.HasCore():
		// A weak answer to an optional topic never holds up a complete triad.
		return ActionValidate
	case len(found) == 0 && q.Score < 0.3:
		return ActionClarify
	case q.NeedsClarification():
		return ActionClarify
	case len(found) > 0 && len(s.Answered()) >= p.validateAfter:
		return ActionValidate
	default:
		return ActionContinue
	}
}

func failureIssue(err error) string {
	var f extract.Failure
	if errors.As(err, &f) {
		return "extraction_failed:" + string(f.Field)
	}
	return "extraction_failed"
}
