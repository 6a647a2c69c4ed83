package domain

// QuestionType is the topic a consultation question asks about.
type QuestionType string

// Question topics.
const (
	QuestionProductService QuestionType = "product_service"
	QuestionTargetAudience QuestionType = "target_audience"
	QuestionBudget         QuestionType = "budget"
	QuestionChannels       QuestionType = "channels"
	QuestionToneStyle      QuestionType = "tone_style"
	QuestionTimeline       QuestionType = "timeline"
	QuestionGoalsMetrics   QuestionType = "goals_metrics"
	QuestionConstraints    QuestionType = "constraints"
)

// QuestionTypes lists every topic in priority order, ties broken by declaration order.
var QuestionTypes = []QuestionType{
	QuestionProductService,
	QuestionTargetAudience,
	QuestionBudget,
	QuestionChannels,
	QuestionToneStyle,
	QuestionTimeline,
	QuestionGoalsMetrics,
	QuestionConstraints,
}

// Priority ranks question topics; lower values are asked first.
type Priority int

// Question priorities.
const (
	PriorityCritical  Priority = 1
	PriorityImportant Priority = 2
	PriorityUseful    Priority = 3
	PriorityOptional  Priority = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityImportant:
		return "important"
	case PriorityUseful:
		return "useful"
	case PriorityOptional:
		return "optional"
	default:
		return "unknown"
	}
}

// Priority returns the topic's priority.
func (q QuestionType) Priority() Priority {
	switch q {
	case QuestionProductService, QuestionTargetAudience:
		return PriorityCritical
	case QuestionBudget, QuestionChannels:
		return PriorityImportant
	case QuestionToneStyle, QuestionTimeline:
		return PriorityUseful
	default:
		return PriorityOptional
	}
}

// Field returns the intent field a topic fills.
func (q QuestionType) Field() Field {
	switch q {
	case QuestionProductService:
		return FieldGoal
	case QuestionTargetAudience:
		return FieldAudience
	case QuestionBudget:
		return FieldBudget
	case QuestionChannels:
		return FieldChannels
	case QuestionToneStyle:
		return FieldTone
	case QuestionTimeline:
		return FieldTimeline
	case QuestionGoalsMetrics:
		return FieldSuccessMetrics
	case QuestionConstraints:
		return FieldConstraints
	default:
		return ""
	}
}

// Valid returns true if q is one of the known topics.
func (q QuestionType) Valid() bool {
	return q.Field() != ""
}

// QuestionFor returns the topic that asks for field f.
func QuestionFor(f Field) (QuestionType, bool) {
	for _, q := range QuestionTypes {
		if q.Field() == f {
			return q, true
		}
	}
	return "", false
}

// TurnKind records why a question was asked.
type TurnKind string

// Turn kinds.
const (
	TurnInitial       TurnKind = "initial"
	TurnClarification TurnKind = "clarification"
	TurnTargeted      TurnKind = "targeted"
	TurnGuidance      TurnKind = "guidance"
)

// Question is a rendered question ready to be asked.
type Question struct {
	Text string       `json:"text"`
	Type QuestionType `json:"question_type"`
	Kind TurnKind     `json:"kind"`
}
