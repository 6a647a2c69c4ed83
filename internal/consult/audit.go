package consult

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ashureev/campaign-consult/internal/domain"
)

type auditRule struct {
	minLength int
	avoid     []string
}

var auditRules = map[domain.Field]auditRule{
	domain.FieldGoal:     {minLength: 3, avoid: []string{"idea", "business", "thing", "stuff"}},
	domain.FieldAudience: {minLength: 3, avoid: []string{"people", "everyone", "customers", "users"}},
	domain.FieldBudget:   {minLength: 2},
	domain.FieldChannels: {minLength: 3},
}

var auditCriteria = map[domain.Field]domain.Criterion{
	domain.FieldGoal:     domain.CriterionGoalClarity,
	domain.FieldAudience: domain.CriterionAudienceSpecificity,
	domain.FieldBudget:   domain.CriterionBudgetAdequacy,
	domain.FieldChannels: domain.CriterionChannelAppropriateness,
}

// missingThreshold is the field score below which a field counts as missing.
const missingThreshold = 0.3

// Audit is the rule-based pass over the fields every brief needs.
type Audit struct {
	FieldScores map[domain.Field]float64     `json:"field_scores"`
	Scores      map[domain.Criterion]float64 `json:"scores"`
	Missing     []domain.Field               `json:"missing"`
	Engagement  float64                      `json:"engagement"`
}

// RunAudit scores the audited fields of s.
func RunAudit(s *domain.Session) Audit {
	a := Audit{
		FieldScores: make(map[domain.Field]float64, len(domain.AuditFields)),
		Scores:      make(map[domain.Criterion]float64, len(domain.Criteria)),
	}
	var sum float64
	for _, f := range domain.AuditFields {
		score := fieldScore(s.Intent.Get(f), auditRules[f])
		a.FieldScores[f] = score
		a.Scores[auditCriteria[f]] = score
		sum += score
		if score < missingThreshold {
			a.Missing = append(a.Missing, f)
		}
	}
	a.Scores[domain.CriterionOverallViability] = round(sum / float64(len(domain.AuditFields)))
	a.Engagement = engagement(s)
	return a
}

func fieldScore(value string, rule auditRule) float64 {
	value = strings.TrimSpace(value)
	if value == "" || domain.IsVague(value) {
		return 0
	}
	n := utf8.RuneCountInString(value)
	score := 1.0
	if n < rule.minLength {
		score *= float64(n) / float64(rule.minLength)
	}
	lower := strings.ToLower(value)
	for _, term := range rule.avoid {
		if containsWord(lower, term) {
			score *= 0.3
		}
	}
	if n > 20 {
		score = math.Min(score*1.2, 1)
	}
	return round(score)
}

func containsWord(text, word string) bool {
	for _, w := range strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '\'')
	}) {
		if w == word {
			return true
		}
	}
	return false
}

// engagement rates how much the user has written, saturating at 20 characters per answer.
func engagement(s *domain.Session) float64 {
	answered := s.Answered()
	if len(answered) == 0 {
		return 0
	}
	total := 0
	for _, t := range answered {
		total += utf8.RuneCountInString(t.AnswerText())
	}
	avg := float64(total) / float64(len(answered))
	return round(math.Min(avg/20, 1))
}

// missingCore returns the critical triad fields that are not filled.
func missingCore(in *domain.Intent) []domain.Field {
	var out []domain.Field
	for _, f := range domain.CoreFields {
		if !in.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// unionFields merges field lists, keeping first-seen order.
func unionFields(lists ...[]domain.Field) []domain.Field {
	seen := make(map[domain.Field]bool)
	var out []domain.Field
	for _, l := range lists {
		for _, f := range l {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	return out
}
