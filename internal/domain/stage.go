// Package domain contains core domain types for the consultation service.
package domain

// Stage is a consultation session's position in the consultation state machine.
type Stage string

// Consultation stages.
const (
	StageInitial    Stage = "initial"
	StageGathering  Stage = "gathering"
	StageValidating Stage = "validating"
	StageReady      Stage = "ready"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// Stages lists every stage in lifecycle order.
var Stages = []Stage{
	StageInitial,
	StageGathering,
	StageValidating,
	StageReady,
	StageCompleted,
	StageFailed,
}

// IsTerminal returns true if no further transition can leave the stage.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Valid returns true if s is one of the known stages.
func (s Stage) Valid() bool {
	for _, st := range Stages {
		if s == st {
			return true
		}
	}
	return false
}

func (s Stage) String() string {
	return string(s)
}
