package consult

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ashureev/campaign-consult/internal/domain"
)

// Brief defaults for fields the consultation never filled.
const (
	DefaultGoal           = "marketing campaign"
	DefaultAudience       = "general audience"
	DefaultBudget         = "not specified"
	DefaultChannels       = "Email, Instagram"
	DefaultTone           = "professional"
	DefaultTimeline       = "when ready"
	DefaultUniqueValue    = "not specified"
	DefaultSuccessMetrics = "not specified"
	DefaultConstraints    = "none specified"
)

var channelSep = regexp.MustCompile(`(?i)\s*(?:,|/|\band\b|&)\s*`)

// titleCase returns s in English title case. A Caser keeps state, so each
// call gets its own.
func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}

// Finalize fills every missing field with its default and builds the brief.
// It mutates s.Intent.
func Finalize(s *domain.Session, now time.Time) *domain.Brief {
	goal := strings.TrimSpace(s.UserInput)
	if goal == "" {
		goal = DefaultGoal
	}
	defaults := map[domain.Field]string{
		domain.FieldGoal:           goal,
		domain.FieldAudience:       DefaultAudience,
		domain.FieldBudget:         DefaultBudget,
		domain.FieldChannels:       DefaultChannels,
		domain.FieldTone:           DefaultTone,
		domain.FieldTimeline:       DefaultTimeline,
		domain.FieldUniqueValue:    DefaultUniqueValue,
		domain.FieldSuccessMetrics: DefaultSuccessMetrics,
		domain.FieldConstraints:    DefaultConstraints,
	}
	for _, f := range domain.Fields {
		if strings.TrimSpace(s.Intent.Get(f)) == "" {
			s.Intent.Set(f, defaults[f], 0)
		}
	}

	channels := SplitChannels(s.Intent.Channels)
	if len(channels) == 0 {
		channels = SplitChannels(DefaultChannels)
	}

	b := &domain.Brief{
		SessionID:     s.ID,
		UserInput:     s.UserInput,
		Intent:        s.Intent.Clone(),
		Channels:      channels,
		QuestionCount: s.QuestionCount,
		CreatedAt:     s.CreatedAt,
		CompletedAt:   now,
		Transcript:    s.Answered(),
	}
	b.Summary = Summarize(s, b)
	return b
}

// SplitChannels splits a channels value into a list, title-casing lowercase names.
func SplitChannels(v string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, part := range channelSep.Split(v, -1) {
		part = strings.Trim(part, " .;")
		if part == "" {
			continue
		}
		if part == strings.ToLower(part) {
			part = titleCase(part)
		}
		key := strings.ToLower(part)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, part)
	}
	return out
}

// Summarize renders the brief as markdown.
func Summarize(s *domain.Session, b *domain.Brief) string {
	var sb strings.Builder
	sb.WriteString("# Campaign brief\n\n")
	fmt.Fprintf(&sb, "**Request:** %s\n\n", b.UserInput)

	sb.WriteString("## Requirements\n\n")
	for _, f := range domain.Fields {
		fmt.Fprintf(&sb, "- **%s:** %s\n", fieldLabel(f), b.Intent.Get(f))
	}

	if len(b.Transcript) > 0 {
		sb.WriteString("\n## Conversation\n\n")
		for i, t := range b.Transcript {
			fmt.Fprintf(&sb, "%d. **Q:** %s\n   **A:** %s\n", i+1, t.Question, t.AnswerText())
		}
	}

	if ev := s.Evaluation; ev != nil {
		sb.WriteString("\n## Readiness\n\n")
		fmt.Fprintf(&sb, "Assessed by %s with confidence %.2f", ev.Path, ev.Confidence)
		if ev.Forced {
			sb.WriteString(" (question limit reached)")
		}
		sb.WriteString(".\n")
	}
	return sb.String()
}

func fieldLabel(f domain.Field) string {
	return titleCase(strings.ReplaceAll(string(f), "_", " "))
}
