package extract

import (
	"regexp"
	"strings"

	"github.com/ashureev/campaign-consult/internal/domain"
)

// toneKeywords lists the tone words recognised on their own, grouped by register.
var toneKeywords = [][]string{
	{"professional", "formal", "serious", "corporate"},
	{"casual", "friendly", "relaxed", "informal", "warm", "approachable"},
	{"fun", "playful", "energetic", "exciting", "upbeat", "quirky", "humorous", "funny", "witty"},
	{"elegant", "sophisticated", "premium", "luxury", "luxurious", "refined"},
	{"authentic", "genuine", "honest", "transparent", "heartfelt"},
	{"modern", "trendy", "hip", "contemporary", "edgy", "bold"},
	{"traditional", "classic", "timeless", "conservative", "nostalgic"},
	{"inspirational", "inspiring", "motivational", "empowering"},
	{"educational", "informative", "helpful"},
}

var (
	toneWord     = wordsRegexp(flattenTone())
	tonePhrase   = regexp.MustCompile(`(?i)\b([a-z-]+(?:(?:,\s*|\s+and\s+|\s+but\s+)[a-z-]+){0,2})\s+(?:tone|style|voice|vibe)\b`)
	toneStopping = map[string]bool{
		"the": true, "a": true, "our": true, "my": true, "what": true, "which": true,
		"any": true, "brand": true, "marketing": true, "same": true, "right": true, "that": true,
	}
)

func flattenTone() []string {
	var all []string
	for _, group := range toneKeywords {
		all = append(all, group...)
	}
	return all
}

type toneExtractor struct{}

// Tone extracts the desired voice of the campaign.
func Tone() Extractor {
	return toneExtractor{}
}

func (toneExtractor) Field() domain.Field { return domain.FieldTone }

func (toneExtractor) Extract(text string) (Candidate, bool) {
	if m := tonePhrase.FindStringSubmatch(text); m != nil {
		v := strings.ToLower(cleanPhrase(m[1]))
		if v != "" && !toneStopping[firstWord(v)] && !domain.IsVague(v) {
			return Candidate{Field: domain.FieldTone, Value: v, Confidence: domain.ConfidenceExtracted}, true
		}
	}

	var found []string
	seen := make(map[string]bool)
	for _, w := range toneWord.FindAllString(text, -1) {
		w = strings.ToLower(w)
		if !seen[w] {
			seen[w] = true
			found = append(found, w)
		}
	}
	if len(found) == 0 {
		return Candidate{}, false
	}
	return Candidate{Field: domain.FieldTone, Value: strings.Join(found, ", "), Confidence: domain.ConfidenceExtracted}, true
}
