package agent

import "github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"

// MaxCycles bounds the REASON → ACT iterations of one invocation
const MaxCycles = 2

// Phase is a node of the control loop
type Phase string

const (
	PhasePerceive Phase = "perceive"
	PhaseReason   Phase = "reason"
	PhaseAct      Phase = "act"
	PhaseReflect  Phase = "reflect"
	PhaseDone     Phase = "done"
)

// RunState is the record threaded through one invocation of the loop
type RunState struct {
	RunID          string
	Observations   string
	Plan           *domain.Plan
	ActionResult   string
	Reflection     string
	Done           bool
	Step           int
	LastActionType domain.ActionType
	ActionFailed   bool
	// ActionSkipped is set when the confidence gate stopped the last plan
	ActionSkipped bool
}

// LastAction returns the last action name, "none" when nothing ran
func (s RunState) LastAction() string {
	if s.LastActionType == "" {
		return "none"
	}
	return string(s.LastActionType)
}

// nextAfterAct decides where the loop goes once an action has run. Only a
// successful free action may loop back, and never past MaxCycles.
func nextAfterAct(s RunState) Phase {
	if s.Step >= MaxCycles {
		return PhaseReflect
	}
	if s.LastActionType.IsFree() && !s.ActionFailed && !s.ActionSkipped {
		return PhaseReason
	}
	return PhaseReflect
}
