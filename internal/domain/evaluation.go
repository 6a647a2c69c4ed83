package domain

// EvalPath names the branch that produced a readiness verdict.
type EvalPath string

// Evaluation paths.
const (
	EvalPathAudit     EvalPath = "audit"
	EvalPathJudge     EvalPath = "judge"
	EvalPathHeuristic EvalPath = "heuristic"
)

// Criterion is one axis of the readiness rubric.
type Criterion string

// Rubric criteria.
const (
	CriterionGoalClarity            Criterion = "goal_clarity"
	CriterionAudienceSpecificity    Criterion = "audience_specificity"
	CriterionBudgetAdequacy         Criterion = "budget_adequacy"
	CriterionChannelAppropriateness Criterion = "channel_appropriateness"
	CriterionOverallViability       Criterion = "overall_viability"
)

// Criteria lists the rubric in presentation order.
var Criteria = []Criterion{
	CriterionGoalClarity,
	CriterionAudienceSpecificity,
	CriterionBudgetAdequacy,
	CriterionChannelAppropriateness,
	CriterionOverallViability,
}

// Evaluation is the completeness verdict for a session.
type Evaluation struct {
	HasEnoughInfo   bool                  `json:"has_enough_info"`
	MissingCritical []Field               `json:"missing_critical"`
	Reasoning       string                `json:"reasoning"`
	Confidence      float64               `json:"confidence"`
	Scores          map[Criterion]float64 `json:"scores,omitempty"`
	Recommendations []string              `json:"recommendations,omitempty"`
	Path            EvalPath              `json:"path"`
	Forced          bool                  `json:"forced,omitempty"`
	JudgeError      string                `json:"judge_error,omitempty"`
}
