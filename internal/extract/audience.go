package extract

import (
	"regexp"

	"github.com/ashureev/campaign-consult/internal/domain"
)

const (
	audienceAdjectives = `(?:young|older|elderly|senior|middle-aged|busy|working|local|urban|suburban|rural|new|first-time|college|university|high school|small|affluent|wealthy|remote|single|married|active|female|male|corporate|independent|retired|creative|professional|tech|fitness|outdoor|pet|dog|cat|[a-z]+(?:-[a-z]+)+)`
	audienceNouns      = `(?:professionals|students|parents|moms|mothers|dads|fathers|families|teens|teenagers|millennials|gen z|gen x|boomers|baby boomers|seniors|retirees|entrepreneurs|developers|engineers|designers|gamers|athletes|runners|homeowners|renters|couples|women|men|kids|children|owners|managers|executives|freelancers|creators|travelers|tourists|commuters|shoppers|foodies|lovers|enthusiasts|artists|musicians|nurses|doctors|teachers|startups|companies|businesses|smbs|workers|employees|residents|neighbors|locals|buyers|readers|fans|b2b)`
	audienceAge        = `(?:\s+(?:aged?\s+|ages\s+|between\s+)?\d{1,2}\s*(?:-|to|and)\s*\d{1,2}\+?(?:\s+years?\s+old)?)?`
)

// Audience extracts who the campaign should reach.
func Audience() Extractor {
	return &patternExtractor{
		field: domain.FieldAudience,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:target(?:ing)?|aimed at|aiming at|geared towards?|catering to)\s+(?:audience\s+(?:is|are|would be)\s+)?(.+?)(?:[.;!?]|$)`),
			regexp.MustCompile(`(?i)\b(?:audience|customers|clients|buyers|market)\s+(?:is|are|would be|will be|includes?)\s+(.+?)(?:[.;!?]|$)`),
			regexp.MustCompile(`(?i)\b((?:` + audienceAdjectives + `\s+){0,3}(?:[a-z]+\s+)?` + audienceNouns + audienceAge + `)\b`),
			regexp.MustCompile(`(?i)\b((?:aged?|ages|between)\s+\d{1,2}\s*(?:-|to|and)\s*\d{1,2}\+?)`),
		},
		reject: func(v string) bool {
			// A bare channel or verb in front of a noun is not an audience.
			switch firstWord(v) {
			case "on", "via", "instagram", "facebook", "tiktok", "email", "with", "sell", "promote", "market":
				return true
			}
			return false
		},
	}
}
