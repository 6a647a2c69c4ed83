// Package extract pulls campaign brief fields out of free-text answers.
//
// Each field has its own Extractor; a Registry dispatches by field and keeps a
// misbehaving extractor from taking the caller down with it.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ashureev/campaign-consult/internal/domain"
)

// Candidate is a value found for a field.
type Candidate struct {
	Field      domain.Field `json:"field"`
	Value      string       `json:"value"`
	Confidence float64      `json:"confidence"`
}

// Extractor finds a value for one field in free text. Implementations are pure.
type Extractor interface {
	Field() domain.Field
	Extract(text string) (Candidate, bool)
}

// Failure records an extractor that panicked.
type Failure struct {
	Field domain.Field
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("extract %s: %v", f.Field, f.Err)
}

// Registry dispatches extraction by field.
type Registry struct {
	byField map[domain.Field]Extractor
	order   []domain.Field
}

// NewRegistry builds a registry; later extractors replace earlier ones for the same field.
func NewRegistry(exts ...Extractor) *Registry {
	r := &Registry{byField: make(map[domain.Field]Extractor)}
	for _, e := range exts {
		r.Register(e)
	}
	return r
}

// Default returns a registry with every built-in extractor.
func Default() *Registry {
	return NewRegistry(
		Goal(),
		Audience(),
		Budget(),
		Channels(),
		Tone(),
		Timeline(),
		UniqueValue(),
		SuccessMetrics(),
		Constraints(),
	)
}

// Register adds or replaces the extractor for e.Field().
func (r *Registry) Register(e Extractor) {
	f := e.Field()
	if _, ok := r.byField[f]; !ok {
		r.order = append(r.order, f)
	}
	r.byField[f] = e
}

// Fields returns the registered fields in registration order.
func (r *Registry) Fields() []domain.Field {
	return append([]domain.Field(nil), r.order...)
}

// Extract runs the extractor for field f. A panicking extractor is reported as
// a Failure instead of propagating.
func (r *Registry) Extract(text string, f domain.Field) (c Candidate, ok bool, err error) {
	e, found := r.byField[f]
	if !found {
		return Candidate{}, false, nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			c, ok = Candidate{}, false
			err = Failure{Field: f, Err: fmt.Errorf("panic: %v", rec)}
		}
	}()
	c, ok = e.Extract(text)
	if ok {
		c.Field = f
	}
	return c, ok, nil
}

// ExtractAll runs every extractor except those for the skipped fields.
func (r *Registry) ExtractAll(text string, skip ...domain.Field) ([]Candidate, []error) {
	var (
		out  []Candidate
		errs []error
	)
	for _, f := range r.order {
		if containsField(skip, f) {
			continue
		}
		c, ok, err := r.Extract(text, f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, errs
}

// Initial extracts whatever the opening request already states. Every value
// is provisional until an answer confirms it.
func (r *Registry) Initial(text string) ([]Candidate, []error) {
	found, errs := r.ExtractAll(text)
	for i := range found {
		found[i].Confidence = domain.ConfidenceProvisional
	}
	return found, errs
}

func containsField(fields []domain.Field, f domain.Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}

// patternExtractor returns the first cleaned capture of its patterns.
type patternExtractor struct {
	field    domain.Field
	patterns []*regexp.Regexp
	reject   func(string) bool
}

func (e *patternExtractor) Field() domain.Field { return e.field }

func (e *patternExtractor) Extract(text string) (Candidate, bool) {
	for _, re := range e.patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v := cleanPhrase(m[1])
			if v == "" || domain.IsVague(v) {
				continue
			}
			if e.reject != nil && e.reject(v) {
				continue
			}
			return Candidate{Field: e.field, Value: v, Confidence: domain.ConfidenceExtracted}, true
		}
	}
	return Candidate{}, false
}

var leadingNoise = map[string]bool{
	"my": true, "our": true, "the": true, "a": true, "an": true, "some": true,
	"mostly": true, "mainly": true, "primarily": true,
	"to": true, "for": true, "and": true, "at": true, "is": true, "are": true,
	"really": true, "just": true, "probably": true, "definitely": true,
}

const maxPhraseRunes = 120

// cleanPhrase trims punctuation and leading filler words and caps the length.
func cleanPhrase(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, " .,;:!?\"'()[]")
	for {
		first, rest, ok := strings.Cut(s, " ")
		if !ok || !leadingNoise[strings.ToLower(first)] {
			break
		}
		s = rest
	}
	if utf8.RuneCountInString(s) > maxPhraseRunes {
		runes := []rune(s)[:maxPhraseRunes]
		s = string(runes)
		if i := strings.LastIndex(s, " "); i > 0 {
			s = s[:i]
		}
	}
	return strings.Trim(s, " .,;:!?\"'()[]")
}

func firstWord(s string) string {
	w, _, _ := strings.Cut(strings.ToLower(s), " ")
	return w
}

// wordsRegexp matches any of the given phrases as whole words.
func wordsRegexp(words []string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}
