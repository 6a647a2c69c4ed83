package consult

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ashureev/campaign-consult/internal/domain"
)

//go:embed templates.yaml
var defaultTemplates []byte

// Template keys used by the prioritizer.
const (
	TemplateInitial       = "initial"
	TemplateClarification = "clarification"
	TemplateDetails       = "details"
	TemplateDemographic   = "demographic"
	TemplateRange         = "range"
	TemplateProductType   = "product_type"
	TemplateGuidance      = "guidance"
)

// DefaultMaxClarifications caps clarification re-asks per topic.
const DefaultMaxClarifications = 1

// Bank is the question template bank.
type Bank struct {
	Questions          map[domain.QuestionType]map[string]string `yaml:"questions"`
	Generic            map[string]string                         `yaml:"generic"`
	ProductTypes       []ProductType                             `yaml:"product_types"`
	DefaultProductType string                                    `yaml:"default_product_type"`
}

// ProductType maps goal words to the noun used in {product_type}.
type ProductType struct {
	Label string   `yaml:"label"`
	Words []string `yaml:"words"`
}

// LoadBank reads a template bank from path, or the built-in bank when path is empty.
func LoadBank(path string) (*Bank, error) {
	if path == "" {
		return ParseBank(defaultTemplates)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	return ParseBank(data)
}

// DefaultBank returns the built-in bank.
func DefaultBank() *Bank {
	b, err := ParseBank(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("built-in templates: %v", err))
	}
	return b
}

// ParseBank decodes and validates a YAML template bank.
func ParseBank(data []byte) (*Bank, error) {
	var b Bank
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	for _, qt := range domain.QuestionTypes {
		if b.Questions[qt][TemplateInitial] == "" {
			return nil, fmt.Errorf("templates: %s has no %q template", qt, TemplateInitial)
		}
	}
	for qt := range b.Questions {
		if !qt.Valid() {
			return nil, fmt.Errorf("templates: %w: %q", domain.ErrUnknownQuestion, qt)
		}
	}
	if b.Generic[TemplateClarification] == "" || b.Generic[TemplateGuidance] == "" {
		return nil, fmt.Errorf("templates: generic clarification and guidance are required")
	}
	if b.DefaultProductType == "" {
		b.DefaultProductType = "products"
	}
	return &b, nil
}

// Prioritizer picks the next question to ask.
type Prioritizer struct {
	bank              *Bank
	maxClarifications int
}

// NewPrioritizer creates a prioritizer over bank; nil uses the built-in bank.
func NewPrioritizer(bank *Bank) *Prioritizer {
	if bank == nil {
		bank = DefaultBank()
	}
	return &Prioritizer{bank: bank, maxClarifications: DefaultMaxClarifications}
}

// MaxClarifications returns the per-topic clarification limit.
func (p *Prioritizer) MaxClarifications() int {
	return p.maxClarifications
}

// Eligible returns the topics that may still be asked, best first.
func (p *Prioritizer) Eligible(s *domain.Session) []domain.QuestionType {
	var out []domain.QuestionType
	for pr := domain.PriorityCritical; pr <= domain.PriorityOptional; pr++ {
		for _, qt := range domain.QuestionTypes {
			if qt.Priority() == pr && eligible(s, qt) {
				out = append(out, qt)
			}
		}
	}
	return out
}

func eligible(s *domain.Session, qt domain.QuestionType) bool {
	if s.Asked(qt) {
		return false
	}
	f := qt.Field()
	if !s.Intent.Has(f) {
		return true
	}
	return qt.Priority() == domain.PriorityCritical && s.Intent.Provisional(f)
}

// Next returns the highest-priority question still worth asking.
func (p *Prioritizer) Next(s *domain.Session) (domain.Question, bool) {
	topics := p.Eligible(s)
	if len(topics) == 0 {
		return domain.Question{}, false
	}
	qt := topics[0]
	return domain.Question{Text: p.render(s, qt, p.templateFor(s, qt), ""), Type: qt, Kind: domain.TurnInitial}, true
}

func (p *Prioritizer) templateFor(s *domain.Session, qt domain.QuestionType) string {
	switch qt {
	case domain.QuestionProductService:
		if s.Intent.Provisional(domain.FieldGoal) {
			return TemplateDetails
		}
	case domain.QuestionTargetAudience:
		if !s.Intent.Has(domain.FieldGoal) {
			return TemplateDemographic
		}
	case domain.QuestionBudget:
		if len(s.Answered()) > 2 {
			return TemplateRange
		}
	case domain.QuestionChannels:
		if s.Intent.Has(domain.FieldGoal) {
			return TemplateProductType
		}
	}
	return TemplateInitial
}

// Clarify renders the clarification variant of topic qt, quoting the last answer.
func (p *Prioritizer) Clarify(s *domain.Session, qt domain.QuestionType) domain.Question {
	text := p.render(s, qt, TemplateClarification, s.LastAnswerFor(qt))
	return domain.Question{Text: text, Type: qt, Kind: domain.TurnClarification}
}

// Targeted renders a re-ask for a missing field: the initial question if the
// topic was never asked, its clarification while the limit allows, otherwise none.
func (p *Prioritizer) Targeted(s *domain.Session, f domain.Field) (domain.Question, bool) {
	qt, ok := domain.QuestionFor(f)
	if !ok {
		return domain.Question{}, false
	}
	if !s.Asked(qt) {
		return domain.Question{Text: p.render(s, qt, p.templateFor(s, qt), ""), Type: qt, Kind: domain.TurnTargeted}, true
	}
	if s.Clarifications(qt) < p.maxClarifications {
		return p.Clarify(s, qt), true
	}
	return domain.Question{}, false
}

// Guidance returns the question asked after repeated misunderstanding.
func (p *Prioritizer) Guidance() domain.Question {
	return domain.Question{
		Text: p.bank.Generic[TemplateGuidance],
		Type: domain.QuestionProductService,
		Kind: domain.TurnGuidance,
	}
}

// Progress returns the priority-weighted share of topics that are covered,
// either asked or already filled.
func (p *Prioritizer) Progress(s *domain.Session) float64 {
	var covered, total float64
	for _, qt := range domain.QuestionTypes {
		w := float64(domain.PriorityOptional - qt.Priority() + 1)
		total += w
		if s.Asked(qt) || s.Intent.Has(qt.Field()) {
			covered += w
		}
	}
	return round(covered / total)
}

var placeholder = regexp.MustCompile(`\{(\w+)\}`)

// render fills key's template for qt; a template with unresolved placeholders
// falls back to the topic's initial template, then to the generic one.
func (p *Prioritizer) render(s *domain.Session, qt domain.QuestionType, key, answer string) string {
	candidates := []string{p.bank.Questions[qt][key]}
	if key == TemplateClarification {
		candidates = append(candidates, p.bank.Generic[TemplateClarification])
	} else {
		candidates = append(candidates, p.bank.Questions[qt][TemplateInitial], p.bank.Generic[TemplateInitial])
	}
	for _, tmpl := range candidates {
		if tmpl == "" {
			continue
		}
		if text, ok := p.fill(s, tmpl, answer); ok {
			return text
		}
	}
	return p.bank.Generic[TemplateClarification]
}

func (p *Prioritizer) fill(s *domain.Session, tmpl, answer string) (string, bool) {
	ok := true
	text := placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		var v string
		switch m[1 : len(m)-1] {
		case "product":
			v = s.Intent.Get(domain.FieldGoal)
		case "audience":
			v = s.Intent.Get(domain.FieldAudience)
		case "product_type":
			if goal := s.Intent.Get(domain.FieldGoal); goal != "" {
				v = p.productType(goal)
			}
		case "answer":
			v = strings.TrimSpace(answer)
		}
		if v == "" {
			ok = false
		}
		return v
	})
	return text, ok
}

func (p *Prioritizer) productType(goal string) string {
	words := strings.FieldsFunc(strings.ToLower(goal), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	for _, pt := range p.bank.ProductTypes {
		for _, w := range words {
			for _, want := range pt.Words {
				if w == want {
					return pt.Label
				}
			}
		}
	}
	return p.bank.DefaultProductType
}
