package extract

import (
	"regexp"

	"github.com/ashureev/campaign-consult/internal/domain"
)

var goalStopWords = map[string]bool{
	"budget": true, "campaign": true, "campaigns": true, "strategy": true, "plan": true,
	"channel": true, "channels": true, "materials": true, "tone": true, "it": true,
	"this": true, "that": true, "them": true, "something": true, "online": true,
	"more": true, "better": true, "myself": true, "ourselves": true,
}

// stop marks where a goal phrase ends.
const goalStop = `(?:\s+(?:to|for|on|via|using|with|targeting|aimed|in|at|by|next|this|who|that|which)\b|[.,;!?]|$)`

// Goal extracts what is being promoted.
func Goal() Extractor {
	return &patternExtractor{
		field: domain.FieldGoal,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:promot|market|advertis|launch)(?:e|es|ed|ing)?\s+(?:my|our|a|an|the)?\s*(.+?)` + goalStop),
			regexp.MustCompile(`(?i)\b(?:campaign|marketing|ads?)\s+for\s+(?:my|our|a|an|the)?\s*(.+?)` + goalStop),
			regexp.MustCompile(`(?i)\b(?:we|i)\s+(?:sell|offer|provide|make|run|own|build|operate|opened)\s+(?:a|an)?\s*(.+?)` + goalStop),
			regexp.MustCompile(`(?i)\b(?:it'?s|it is|this is|we'?re|we are)\s+(?:a|an)\s+(.+?)(?:[.,;!?]|$)`),
			regexp.MustCompile(`(?i)\b(?:a|an|my|our)\s+((?:[\w'-]+\s+){0,3}(?:business|service|product|app|website|shop|store|restaurant|cafe|bakery|studio|agency|brand|company|startup|event|course|book|podcast|clinic|gym|salon|bar|boutique|brewery|practice|platform))\b`),
		},
		reject: func(v string) bool {
			return goalStopWords[firstWord(v)]
		},
	}
}
