package extract

import (
	"regexp"

	"github.com/ashureev/campaign-consult/internal/domain"
)

const months = `january|february|march|april|june|july|august|september|october|november|december|jan|feb|mar|apr|jun|jul|aug|sept|sep|oct|nov|dec`

// Timeline extracts when the campaign should run.
func Timeline() Extractor {
	return &patternExtractor{
		field: domain.FieldTimeline,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(asap|as soon as possible|immediately|right away|urgently|soon)\b`),
			regexp.MustCompile(`(?i)\b((?:next|this|within (?:a|the next))\s+(?:week|weekend|month|quarter|year|few weeks|couple of weeks))\b`),
			regexp.MustCompile(`(?i)\b((?:in|within)\s+(?:\d+|a|one|two|three|four|six|a few|a couple of)\s+(?:days?|weeks?|months?))\b`),
			regexp.MustCompile(`(?i)\b((?:(?:by|before|after|around|in|starting|from|early|mid|late|end of)\s+)?(?:` + months + `)(?:\s+\d{1,2}(?:st|nd|rd|th)?)?(?:,?\s+\d{4})?)\b`),
			regexp.MustCompile(`(?i)\b((?:in|by|before|early|mid|late|end of)\s+may(?:\s+\d{1,2})?)\b`),
			regexp.MustCompile(`(?i)\b((?:(?:this|next|early|late|mid|before|by|for|in)\s+)?(?:spring|summer|fall|autumn|winter))\b`),
			regexp.MustCompile(`(?i)\b((?:(?:before|by|for|around|during)\s+(?:the\s+)?)?(?:christmas|holiday season|holidays|black friday|cyber monday|thanksgiving|valentine'?s(?: day)?|easter|halloween|new year'?s?|mother'?s day|father'?s day|back to school|prime day))\b`),
			regexp.MustCompile(`(?i)\b((?:by|before|on|starting)\s+(?:\d{1,2}/\d{1,2}(?:/\d{2,4})?|\d{4}-\d{2}-\d{2}))\b`),
			regexp.MustCompile(`(?i)\b((?:in|by|during)?\s*q[1-4](?:\s+\d{4})?)\b`),
			regexp.MustCompile(`(?i)\b(by\s+(?:the\s+end\s+of\s+(?:the\s+)?\w+|monday|tuesday|wednesday|thursday|friday|saturday|sunday|tomorrow))\b`),
		},
	}
}
