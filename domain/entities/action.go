package entities

import "time"

// ReplayAction is the action requested when replaying a stored selector.
type ReplayAction string

const (
	// ActionResolve locates the target without dispatching anything.
	ActionResolve ReplayAction = "resolve"
	ActionInvoke  ReplayAction = "invoke"
	ActionClick   ReplayAction = "click"
	ActionRead    ReplayAction = "read"
)

// Valid reports whether the action is one of the declared replay actions.
func (a ReplayAction) Valid() bool {
	switch a {
	case ActionResolve, ActionInvoke, ActionClick, ActionRead:
		return true
	}
	return false
}

// ActionMethod identifies one entry of the fixed action execution precedence.
type ActionMethod string

const (
	MethodInvoke          ActionMethod = "invoke"
	MethodSyntheticClick  ActionMethod = "synthetic_click"
	MethodCoordinateClick ActionMethod = "coordinate_click"
)

// ActionPrecedence returns the fixed order in which execution methods are
// attempted: the invoke pattern first, then a synthetic click on the node
// center, then a raw click at the last known coordinates.
func ActionPrecedence() []ActionMethod {
	return []ActionMethod{MethodInvoke, MethodSyntheticClick, MethodCoordinateClick}
}

// ActionOutcome reports a successful resolution and the action performed on
// it. Method names the precedence entry that carried the action; it is empty
// for resolve-only and read outcomes.
type ActionOutcome struct {
	Action  ReplayAction  `json:"action"`
	Method  ActionMethod  `json:"method,omitempty"`
	Value   string        `json:"value,omitempty"`
	Point   Point         `json:"point"`
	Latency time.Duration `json:"latency"`
}

// ReplayDiagnostic records how one cascade entry fared during replay.
type ReplayDiagnostic struct {
	Kind        StrategyKind  `json:"kind"`
	Score       float64       `json:"score"`
	Succeeded   bool          `json:"succeeded"`
	FailureKind ErrorKind     `json:"failure_kind,omitempty"`
	Detail      string        `json:"detail,omitempty"`
	Latency     time.Duration `json:"latency"`
}

// ReplayReport aggregates a full cascade replay: whether any entry carried
// the action, which one, and a diagnostic for every attempted entry.
// WinningIndex is -1 when no entry succeeded.
type ReplayReport struct {
	Succeeded    bool               `json:"succeeded"`
	WinningIndex int                `json:"winning_index"`
	Outcome      *ActionOutcome     `json:"outcome,omitempty"`
	Diagnostics  []ReplayDiagnostic `json:"diagnostics"`
}

// RiskLevel classifies how dangerous dispatching an action is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)
