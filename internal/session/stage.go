package session

// Stage identifies one wizard stage. Stages are ordered and linear; the
// named-stage model is canonical and no parallel integer index is kept.
type Stage string

const (
	StageConfig        Stage = "config"
	StageInput         Stage = "input"
	StageClarification Stage = "clarification"
	StagePlan          Stage = "plan"
	StageSubtasks      Stage = "subtasks"
	StageApproval      Stage = "approval"
)

// Stages lists every stage in wizard order.
var Stages = []Stage{
	StageConfig,
	StageInput,
	StageClarification,
	StagePlan,
	StageSubtasks,
	StageApproval,
}

// stagePos returns the position of s in the stage order, or -1.
func stagePos(s Stage) int {
	for i, stage := range Stages {
		if stage == s {
			return i
		}
	}
	return -1
}

// Next returns the stage after s, or s itself when s is last or unknown.
func Next(s Stage) (Stage, bool) {
	pos := stagePos(s)
	if pos < 0 || pos+1 >= len(Stages) {
		return s, false
	}
	return Stages[pos+1], true
}

// Before reports whether a comes at or before b in wizard order.
func Before(a, b Stage) bool {
	return stagePos(a) <= stagePos(b)
}

// Title returns the display name of the stage.
func (s Stage) Title() string {
	switch s {
	case StageConfig:
		return "Configuration"
	case StageInput:
		return "Load Issue"
	case StageClarification:
		return "Clarification"
	case StagePlan:
		return "Plan Review"
	case StageSubtasks:
		return "Subtasks"
	case StageApproval:
		return "Approval"
	default:
		return string(s)
	}
}
