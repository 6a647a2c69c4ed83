package consult

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ashureev/campaign-consult/internal/domain"
	"github.com/ashureev/campaign-consult/internal/extract"
)

// Quality issues attached to an answer.
const (
	IssueTooBrief       = "response_too_brief"
	IssueTooGeneric     = "response_too_generic"
	IssueNotRelevant    = "response_not_relevant"
	IssueUnclear        = "unclear_information"
	IssueNoOpenQuestion = "no_open_question"
	IssueEmpty          = "empty_response"
)

// Quality scores one answer. All scores are in [0, 1].
type Quality struct {
	Score       float64  `json:"score"`
	Length      float64  `json:"length"`
	Specificity float64  `json:"specificity"`
	Relevance   float64  `json:"relevance"`
	Confidence  float64  `json:"confidence"`
	Issues      []string `json:"issues,omitempty"`
}

// Adequate returns true if the answer is good enough to move on without a
// clarification.
func (q Quality) Adequate() bool {
	return q.Score >= 0.6 && len(q.Issues) <= 1
}

// NeedsClarification returns true if the answer should be re-asked.
func (q Quality) NeedsClarification() bool {
	return q.Score < 0.4 || q.has(IssueUnclear)
}

func (q Quality) has(issue string) bool {
	for _, i := range q.Issues {
		if i == issue {
			return true
		}
	}
	return false
}

var specificityIndicators = []*regexp.Regexp{
	regexp.MustCompile(`\d+`),
	regexp.MustCompile(`(?i)\b(?:specific|exactly|precisely)\b`),
	regexp.MustCompile(`(?i)\b(?:aged|between|from|to)\s+\d`),
	regexp.MustCompile(`\$\s?\d`),
	regexp.MustCompile(`(?i)\b(?:daily|weekly|monthly|annually)\b`),
}

var answerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:yes|no|maybe|sure|okay)\b`),
	regexp.MustCompile(`(?i)\bi (?:want|need|prefer)\b`),
	regexp.MustCompile(`(?i)\b(?:my|our|the|this|that)\b`),
}

var expectedKeywords = map[domain.QuestionType][]string{
	domain.QuestionProductService: {"goal", "product", "service"},
	domain.QuestionTargetAudience: {"audience", "demographics", "target"},
	domain.QuestionBudget:         {"budget", "cost", "spending"},
	domain.QuestionChannels:       {"channels", "platforms", "media"},
	domain.QuestionToneStyle:      {"tone", "style", "voice"},
	domain.QuestionTimeline:       {"timeline", "date", "schedule"},
	domain.QuestionGoalsMetrics:   {"goals", "metrics", "success"},
	domain.QuestionConstraints:    {"constraints", "requirements", "limitations"},
}

// Assess scores an answer given to a question of type qt. An empty qt means
// there is no question context.
func Assess(answer string, qt domain.QuestionType, found []extract.Candidate) Quality {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Quality{Issues: []string{IssueEmpty}}
	}

	q := Quality{
		Length:      lengthScore(answer),
		Specificity: specificityScore(answer, len(found)),
		Relevance:   relevanceScore(answer, qt),
		Confidence:  extractionConfidence(found),
	}
	q.Score = round((q.Length + q.Specificity + q.Relevance + q.Confidence) / 4)

	if q.Length < 0.3 {
		q.Issues = append(q.Issues, IssueTooBrief)
	}
	if q.Specificity < 0.3 {
		q.Issues = append(q.Issues, IssueTooGeneric)
	}
	if q.Relevance < 0.5 {
		q.Issues = append(q.Issues, IssueNotRelevant)
	}
	if q.Confidence < 0.3 {
		q.Issues = append(q.Issues, IssueUnclear)
	}
	return q
}

func lengthScore(answer string) float64 {
	switch n := utf8.RuneCountInString(answer); {
	case n < 3:
		return 0
	case n < 10:
		return 0.3
	case n < 25:
		return 0.7
	default:
		return 1
	}
}

func specificityScore(answer string, extracted int) float64 {
	score := 0.3
	for _, re := range specificityIndicators {
		if re.MatchString(answer) {
			score += 0.2
		}
	}
	if extracted > 1 {
		score += 0.1 * float64(extracted)
	}
	return round(math.Min(score, 1))
}

func relevanceScore(answer string, qt domain.QuestionType) float64 {
	if qt == "" {
		return 0.7
	}
	lower := strings.ToLower(answer)
	score := 0.5
	for _, kw := range expectedKeywords[qt] {
		if strings.Contains(lower, kw) {
			score += 0.2
		}
	}
	for _, re := range answerPatterns {
		if re.MatchString(answer) {
			score += 0.1
			break
		}
	}
	return round(math.Min(score, 1))
}

func extractionConfidence(found []extract.Candidate) float64 {
	if len(found) == 0 {
		return 0
	}
	score := 0.5 + 0.1*float64(len(found))
	total := 0
	for _, c := range found {
		total += utf8.RuneCountInString(c.Value)
	}
	switch avg := float64(total) / float64(len(found)); {
	case avg > 10:
		score += 0.2
	case avg > 5:
		score += 0.1
	}
	return round(math.Min(score, 1))
}

// round keeps scores stable across float noise: 0.1+0.2 must compare as 0.3.
func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
