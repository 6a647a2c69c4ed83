package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ashureev/campaign-consult/internal/domain"
)

var (
	questionLead = regexp.MustCompile(`(?i)^(?:what|how|why|who|when|where|which|can|could|should|would|do|does|did|is|will)\b`)
	budgetHint   = regexp.MustCompile(`(?i)\d|\b(?:budget|dollars?|bucks|cheap|free|low|small|tight|flexible|limited|nothing|zero)\b`)
)

// directLimits caps how long a verbatim answer may be for each field.
var directLimits = map[domain.Field]int{
	domain.FieldGoal:           120,
	domain.FieldAudience:       120,
	domain.FieldChannels:       80,
	domain.FieldTone:           60,
	domain.FieldBudget:         60,
	domain.FieldTimeline:       60,
	domain.FieldUniqueValue:    160,
	domain.FieldSuccessMetrics: 160,
	domain.FieldConstraints:    160,
}

// Direct accepts the whole answer as the value for f when the question asked
// for exactly that field and no pattern matched. Questions, vague fillers and
// rambling answers are refused.
func Direct(text string, f domain.Field) (Candidate, bool) {
	v := cleanPhrase(text)
	if v == "" || domain.IsVague(v) {
		return Candidate{}, false
	}
	limit, ok := directLimits[f]
	if !ok || utf8.RuneCountInString(v) > limit {
		return Candidate{}, false
	}
	if strings.Contains(text, "?") || questionLead.MatchString(v) {
		return Candidate{}, false
	}
	if f == domain.FieldBudget && !budgetHint.MatchString(v) {
		return Candidate{}, false
	}
	return Candidate{Field: f, Value: v, Confidence: domain.ConfidenceDirect}, true
}
