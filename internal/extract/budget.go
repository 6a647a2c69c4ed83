package extract

import (
	"regexp"
	"strings"

	"github.com/ashureev/campaign-consult/internal/domain"
)

var (
	budgetRange = regexp.MustCompile(`(?i)(?:between\s+)?\$\s?\d[\d,]*(?:\.\d+)?\s*(?:k|m|thousand)?\s*(?:-|to|and)\s*\$?\s?\d[\d,]*(?:\.\d+)?\s*(?:k|m|thousand|million)?\b`)
	budgetDollar = regexp.MustCompile(`(?i)(?:(?:under|below|less than|up to|no more than|max(?:imum)?(?: of)?|around|about|approximately|roughly|~|over|above|more than|at least)\s*)?\$\s?\d[\d,]*(?:\.\d+)?(?:\s*(?:k|m|thousand|million)\b)?`)
	budgetWords  = regexp.MustCompile(`(?i)(?:(?:under|below|less than|up to|around|about|approximately|roughly|over|above|more than|at least)\s+)?\b\d[\d,]*(?:\.\d+)?\s*(?:k\b|thousand\b|grand\b|dollars\b|bucks\b|usd\b|euros?\b|pounds\b)`)
	budgetAdj    = regexp.MustCompile(`(?i)\b(?:(?:very|pretty|fairly|quite|relatively)\s+)?(?:small|limited|tight|modest|shoestring|minimal|low|moderate|decent|medium|healthy|large|big|generous|substantial|flexible|unlimited|zero|no)\s+budget\b`)
	budgetPeriod = regexp.MustCompile(`(?i)^\s*(?:(?:per|a|an|/|each)\s*(?:month|week|year|day|quarter)|monthly|weekly|annually|yearly|daily|quarterly)\b`)
	budgetPrefix = regexp.MustCompile(`(?i)\b(monthly|weekly|annual|yearly|daily|quarterly)\s+(?:budget|spend|ad spend)\b`)

	// countNouns after a number mean it is not money.
	countNouns = map[string]bool{
		"followers": true, "subscribers": true, "users": true, "people": true,
		"views": true, "likes": true, "customers": true, "downloads": true,
		"members": true, "visitors": true, "fans": true, "employees": true,
	}
)

type budgetExtractor struct{}

// Budget extracts spending amounts, ranges and budget descriptors.
func Budget() Extractor {
	return budgetExtractor{}
}

func (budgetExtractor) Field() domain.Field { return domain.FieldBudget }

func (budgetExtractor) Extract(text string) (Candidate, bool) {
	for _, re := range []*regexp.Regexp{budgetRange, budgetDollar, budgetWords} {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			rest := text[loc[1]:]
			if countNouns[firstWord(strings.TrimSpace(rest))] {
				continue
			}
			v := cleanPhrase(text[loc[0]:loc[1]])
			if p := budgetPeriod.FindString(rest); p != "" {
				v += " " + strings.TrimSpace(p)
			} else if m := budgetPrefix.FindStringSubmatch(text); m != nil {
				v += " " + strings.ToLower(m[1])
			}
			return Candidate{Field: domain.FieldBudget, Value: v, Confidence: domain.ConfidenceExtracted}, true
		}
	}
	if m := budgetAdj.FindString(text); m != "" {
		return Candidate{Field: domain.FieldBudget, Value: strings.ToLower(cleanPhrase(m)), Confidence: domain.ConfidenceExtracted}, true
	}
	return Candidate{}, false
}
