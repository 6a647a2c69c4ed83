package consult

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/ashureev/campaign-consult/internal/domain"
)

// Judge is a model-assisted completeness adjudicator.
type Judge interface {
	Name() string
	Judge(ctx context.Context, req JudgeRequest) (*Verdict, error)
}

// JudgeRequest is everything a judge sees about a consultation.
type JudgeRequest struct {
	SessionID     string
	UserInput     string
	Transcript    []domain.Turn
	Intent        domain.Intent
	QuestionCount int
	MaxQuestions  int
}

// Verdict is a judge's structured answer.
type Verdict struct {
	HasEnoughInfo       bool               `json:"has_enough_info"`
	MissingCriticalInfo []string           `json:"missing_critical_info"`
	QualityAssessment   map[string]float64 `json:"quality_assessment"`
	Reasoning           string             `json:"reasoning"`
	Recommendations     []string           `json:"recommendations"`
	ConfidenceScore     float64            `json:"confidence_score"`
}

// ErrVerdictMalformed is returned when a judge reply cannot be read as a verdict.
var ErrVerdictMalformed = errors.New("malformed verdict")

const (
	defaultCriterionScore    = 0.5
	defaultVerdictConfidence = 0.7
)

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

type rawVerdict struct {
	HasEnoughInfo       *bool              `json:"has_enough_info"`
	MissingCriticalInfo []string           `json:"missing_critical_info"`
	QualityAssessment   map[string]float64 `json:"quality_assessment"`
	Reasoning           string             `json:"reasoning"`
	Recommendations     []string           `json:"recommendations"`
	ConfidenceScore     *float64           `json:"confidence_score"`
}

// ParseVerdict reads a judge reply. The reply is parsed strictly first; if that
// fails, the outermost JSON object embedded in the text is tried. Missing
// criterion scores default to 0.5 and a missing confidence to 0.7.
func ParseVerdict(raw string) (*Verdict, error) {
	var rv rawVerdict
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &rv); err != nil {
		obj := jsonObject.FindString(raw)
		if obj == "" {
			return nil, fmt.Errorf("%w: no JSON object in reply", ErrVerdictMalformed)
		}
		rv = rawVerdict{}
		if err := json.Unmarshal([]byte(obj), &rv); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrVerdictMalformed, err)
		}
	}
	if rv.HasEnoughInfo == nil {
		return nil, fmt.Errorf("%w: has_enough_info missing", ErrVerdictMalformed)
	}

	v := &Verdict{
		HasEnoughInfo:       *rv.HasEnoughInfo,
		MissingCriticalInfo: rv.MissingCriticalInfo,
		QualityAssessment:   make(map[string]float64, len(domain.Criteria)),
		Reasoning:           rv.Reasoning,
		Recommendations:     rv.Recommendations,
		ConfidenceScore:     defaultVerdictConfidence,
	}
	for _, c := range domain.Criteria {
		score, ok := rv.QualityAssessment[string(c)]
		if !ok {
			score = defaultCriterionScore
		}
		v.QualityAssessment[string(c)] = clamp01(score)
	}
	if rv.ConfidenceScore != nil {
		v.ConfidenceScore = clamp01(*rv.ConfidenceScore)
	}
	return v, nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

// fieldFromMention maps a judge's free-text missing item to a field.
func fieldFromMention(s string) (domain.Field, bool) {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "goal"), strings.Contains(s, "product"):
		return domain.FieldGoal, true
	case strings.Contains(s, "audience"):
		return domain.FieldAudience, true
	case strings.Contains(s, "budget"):
		return domain.FieldBudget, true
	case strings.Contains(s, "channel"):
		return domain.FieldChannels, true
	case strings.Contains(s, "tone"):
		return domain.FieldTone, true
	case strings.Contains(s, "timeline"), strings.Contains(s, "timing"):
		return domain.FieldTimeline, true
	default:
		return "", false
	}
}

// JudgeSystemPrompt instructs the judge model.
const JudgeSystemPrompt = `You are a senior marketing strategist reviewing a client intake conversation.
Decide whether there is enough information to write a focused marketing campaign.
Score each criterion from 0 to 1 and respond with JSON only.`

// BuildPrompt renders the judge's user prompt.
func BuildPrompt(req JudgeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original request: %s\n\n", req.UserInput)

	b.WriteString("Conversation:\n")
	if len(req.Transcript) == 0 {
		b.WriteString("(no questions asked yet)\n")
	}
	for i, t := range req.Transcript {
		fmt.Fprintf(&b, "Q%d [%s]: %s\n", i+1, t.Type, t.Question)
		if t.Open() {
			b.WriteString("A: (awaiting answer)\n")
		} else {
			fmt.Fprintf(&b, "A: %s\n", t.AnswerText())
		}
	}

	b.WriteString("\nExtracted so far:\n")
	for _, f := range domain.Fields {
		v := req.Intent.Get(f)
		if v == "" {
			v = "(unknown)"
		}
		fmt.Fprintf(&b, "- %s: %s\n", f, v)
	}

	fmt.Fprintf(&b, "\nQuestions asked: %d of %d\n\n", req.QuestionCount, req.MaxQuestions)
	b.WriteString("Criteria: ")
	for i, c := range domain.Criteria {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(c))
	}
	b.WriteString(`

Respond with a JSON object:
{"has_enough_info": bool, "missing_critical_info": [string], "quality_assessment": {criterion: number}, "reasoning": string, "recommendations": [string], "confidence_score": number}`)
	return b.String()
}
