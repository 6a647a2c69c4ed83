package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Field names an Intent slot.
type Field string

// Intent fields.
const (
	FieldGoal           Field = "goal"
	FieldAudience       Field = "audience"
	FieldChannels       Field = "channels"
	FieldTone           Field = "tone"
	FieldBudget         Field = "budget"
	FieldTimeline       Field = "timeline"
	FieldUniqueValue    Field = "unique_value"
	FieldSuccessMetrics Field = "success_metrics"
	FieldConstraints    Field = "constraints"
)

// Fields lists every intent field.
var Fields = []Field{
	FieldGoal,
	FieldAudience,
	FieldChannels,
	FieldTone,
	FieldBudget,
	FieldTimeline,
	FieldUniqueValue,
	FieldSuccessMetrics,
	FieldConstraints,
}

// CoreFields must all be filled before a consultation can be ready.
var CoreFields = []Field{FieldGoal, FieldAudience, FieldChannels}

// AuditFields are scored by the basic completeness audit.
var AuditFields = []Field{FieldGoal, FieldAudience, FieldBudget, FieldChannels}

// Confidence levels attached to merged values.
const (
	ConfidenceProvisional = 0.5
	ConfidenceDirect      = 0.6
	ConfidenceExtracted   = 0.8
)

// Intent is the structured campaign brief accumulated over a consultation.
// An empty string means the field is unknown.
type Intent struct {
	Goal           string `json:"goal,omitempty"`
	Audience       string `json:"audience,omitempty"`
	Channels       string `json:"channels,omitempty"`
	Tone           string `json:"tone,omitempty"`
	Budget         string `json:"budget,omitempty"`
	Timeline       string `json:"timeline,omitempty"`
	UniqueValue    string `json:"unique_value,omitempty"`
	SuccessMetrics string `json:"success_metrics,omitempty"`
	Constraints    string `json:"constraints,omitempty"`

	Confidence map[Field]float64 `json:"confidence,omitempty"`
}

func (in *Intent) slot(f Field) *string {
	switch f {
	case FieldGoal:
		return &in.Goal
	case FieldAudience:
		return &in.Audience
	case FieldChannels:
		return &in.Channels
	case FieldTone:
		return &in.Tone
	case FieldBudget:
		return &in.Budget
	case FieldTimeline:
		return &in.Timeline
	case FieldUniqueValue:
		return &in.UniqueValue
	case FieldSuccessMetrics:
		return &in.SuccessMetrics
	case FieldConstraints:
		return &in.Constraints
	default:
		return nil
	}
}

// Get returns the value of field f.
func (in *Intent) Get(f Field) string {
	if p := in.slot(f); p != nil {
		return *p
	}
	return ""
}

// Set stores a value unconditionally. Consultation code uses Merge; Set is
// for finalization defaults and repairs.
func (in *Intent) Set(f Field, value string, confidence float64) {
	p := in.slot(f)
	if p == nil {
		return
	}
	*p = value
	if in.Confidence == nil {
		in.Confidence = make(map[Field]float64)
	}
	in.Confidence[f] = confidence
}

// Has returns true if the field holds a non-vague value.
func (in *Intent) Has(f Field) bool {
	v := in.Get(f)
	return v != "" && !IsVague(v)
}

// ConfidenceOf returns the confidence recorded for field f.
func (in *Intent) ConfidenceOf(f Field) float64 {
	return in.Confidence[f]
}

// Provisional returns true if f holds a value that no answer has confirmed yet.
func (in *Intent) Provisional(f Field) bool {
	return in.Get(f) != "" && in.Confidence[f] < ConfidenceDirect
}

// Merge offers a new value for f and reports whether it was accepted.
// Vague values are never accepted. A filled field is only replaced by a longer
// value, or by one of equal length with higher confidence.
func (in *Intent) Merge(f Field, value string, confidence float64) bool {
	p := in.slot(f)
	if p == nil {
		return false
	}
	value = strings.TrimSpace(value)
	if value == "" || IsVague(value) {
		return false
	}

	cur := *p
	curLen, newLen := utf8.RuneCountInString(cur), utf8.RuneCountInString(value)
	curConf := in.Confidence[f]

	switch {
	case cur == "", IsVague(cur):
	case strings.EqualFold(cur, value):
		// Same value restated: keep the text, keep the better confidence.
		if confidence > curConf {
			in.Set(f, cur, confidence)
		}
		return false
	case newLen > curLen:
	case newLen == curLen && confidence > curConf:
	default:
		return false
	}

	in.Set(f, value, confidence)
	return true
}

// Filled returns the fields holding non-vague values.
func (in *Intent) Filled() []Field {
	var out []Field
	for _, f := range Fields {
		if in.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// HasCore returns true if every core field is filled.
func (in *Intent) HasCore() bool {
	for _, f := range CoreFields {
		if !in.Has(f) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (in Intent) Clone() Intent {
	out := in
	if in.Confidence != nil {
		out.Confidence = make(map[Field]float64, len(in.Confidence))
		for k, v := range in.Confidence {
			out.Confidence[k] = v
		}
	}
	return out
}

// vagueTerms are generic fillers that say nothing about a campaign.
var vagueTerms = map[string]bool{
	"business": true, "businesses": true,
	"idea": true, "ideas": true,
	"thing": true, "things": true,
	"stuff": true,
	"product": true, "products": true,
	"service": true, "services": true,
	"customer": true, "customers": true,
	"people": true, "person": true,
	"everyone": true, "everybody": true,
	"anyone": true, "anybody": true,
	"user": true, "users": true,
	"client": true, "clients": true,
	"public": true, "general": true,
	"idk": true, "dunno": true, "whatever": true,
	"something": true, "nothing": true, "none": true,
	"n/a": true, "na": true, "no": true, "yes": true,
	"ok": true, "okay": true, "maybe": true, "sure": true,
}

// fillerWords carry no meaning on their own and are ignored by IsVague.
var fillerWords = map[string]bool{
	"a": true, "an": true, "the": true, "my": true, "our": true, "your": true,
	"all": true, "any": true, "some": true, "of": true, "and": true, "or": true,
	"just": true, "really": true, "basically": true, "kind": true, "sort": true,
	"i": true, "we": true, "it": true, "is": true, "are": true, "to": true,
	"in": true, "for": true, "know": true, "don't": true, "dont": true, "not": true,
	"sell": true, "like": true, "etc": true, "sorts": true, "types": true,
}

// IsVague reports whether value is too generic to describe a campaign: it is
// shorter than three characters, or every meaningful word is a generic filler.
func IsVague(value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	if utf8.RuneCountInString(value) < 3 {
		return true
	}
	words := strings.FieldsFunc(value, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '/' && r != '-'
	})
	for _, w := range words {
		if fillerWords[w] {
			continue
		}
		if !vagueTerms[w] {
			return false
		}
	}
	return true
}
