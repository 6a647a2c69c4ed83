package extract

import (
	"regexp"

	"github.com/ashureev/campaign-consult/internal/domain"
)

// UniqueValue extracts what sets the offering apart.
func UniqueValue() Extractor {
	return &patternExtractor{
		field: domain.FieldUniqueValue,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:what makes (?:us|it|me|them) (?:special|unique|different) is|(?:it'?s|we'?re) (?:special|unique|different) because|stands? out because|unlike (?:other|our) competitors,?|our (?:secret|edge|advantage|difference) is|(?:we'?re|we are) known for|the only one (?:that|who))\s+(.+?)(?:[.;!?]|$)`),
			regexp.MustCompile(`(?i)\b((?:100%\s+)?(?:handmade|hand-made|organic|locally sourced|sustainable|award-winning|family-owned|family owned|artisan(?:al)?|eco-friendly|vegan|gluten-free|small-batch|fair trade|ethically sourced)(?:\s+[a-z-]+){0,3})`),
		},
	}
}

// SuccessMetrics extracts how the campaign will be judged.
func SuccessMetrics() Extractor {
	return &patternExtractor{
		field: domain.FieldSuccessMetrics,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:success (?:would be|is|means|looks like)|we'?d measure (?:it|success) by|measured by)\s+(.+?)(?:[.;!?]|$)`),
			regexp.MustCompile(`(?i)\b((?:increase|grow|boost|double|triple|drive|get|gain|reach|generate|hit|improve|more)\s+(?:our\s+|my\s+)?(?:online\s+|monthly\s+|weekly\s+)?(?:sales|revenue|followers|signups|sign-ups|leads|traffic|bookings|downloads|subscribers|foot traffic|engagement|awareness|brand awareness|conversions|orders|visits|reservations|members|installs|memberships)(?:\s+by\s+\d+%?)?(?:\s+(?:to|by)\s+\d[\d,]*%?)?)`),
			regexp.MustCompile(`(?i)\b(\d[\d,]*%?\s+(?:more\s+|new\s+)?(?:sales|customers|followers|signups|sign-ups|leads|subscribers|downloads|bookings|orders|visits|reservations|members))\b`),
		},
	}
}

// Constraints extracts requirements and limits the campaign must respect.
func Constraints() Extractor {
	return &patternExtractor{
		field: domain.FieldConstraints,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b((?:must(?:\s+not)?|cannot|can'?t|avoid|don'?t want to|do not want to|needs? to comply with|has to comply with|restricted to|no more than|only allowed to)\s+.+?)(?:[.;!?]|$)`),
			regexp.MustCompile(`(?i)\b((?:gdpr|hipaa|fda|ftc|coppa|alcohol|age-restricted|compliance|legal)\s+(?:rules|regulations|requirements|restrictions|approval|review)?)`),
		},
	}
}
