package consult

import (
	"math"

	"github.com/ashureev/campaign-consult/internal/domain"
)

// progressFields are the brief fields counted toward gathering progress.
var progressFields = []domain.Field{
	domain.FieldGoal,
	domain.FieldAudience,
	domain.FieldChannels,
	domain.FieldTone,
	domain.FieldBudget,
	domain.FieldTimeline,
	domain.FieldUniqueValue,
	domain.FieldSuccessMetrics,
}

// Completion estimates how far along a consultation is, in [0, 1].
func Completion(s *domain.Session) float64 {
	switch s.Stage {
	case domain.StageInitial, domain.StageFailed:
		return 0.1
	case domain.StageValidating:
		return 0.8
	case domain.StageReady:
		return 0.9
	case domain.StageCompleted:
		return 1
	}

	filled := 0
	for _, f := range progressFields {
		if s.Intent.Has(f) {
			filled++
		}
	}
	fields := float64(filled) / float64(len(progressFields))
	questions := math.Min(float64(s.QuestionCount)/6, 1)
	return round((fields*0.7 + questions*0.3) * 0.7)
}

// Percentage converts Completion to a whole percentage.
func Percentage(s *domain.Session) int {
	return int(math.Round(Completion(s) * 100))
}
