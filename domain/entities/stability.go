package entities

// Stability classifies how likely an attribute value is to survive between
// executions of the target application.
type Stability string

const (
	StabilityStable   Stability = "stable"
	StabilityVolatile Stability = "volatile"
	StabilityUnknown  Stability = "unknown"
)

// StabilityVerdict is the per-attribute classification produced by stability
// analysis. Reasons name the heuristics that fired.
type StabilityVerdict struct {
	Attribute  string    `json:"attribute"`
	Stability  Stability `json:"stability"`
	Confidence float64   `json:"confidence"`
	Reasons    []string  `json:"reasons,omitempty"`
}

// Usable reports whether the attribute may anchor a selector predicate.
// Unknown verdicts count as unusable so generation stays conservative.
func (v StabilityVerdict) Usable() bool {
	return v.Stability == StabilityStable
}

// Score folds the verdict into a single 0-1 stability estimate.
func (v StabilityVerdict) Score() float64 {
	switch v.Stability {
	case StabilityStable:
		return v.Confidence
	case StabilityVolatile:
		return 1 - v.Confidence
	default:
		return 0.5
	}
}

// StabilityReport groups the verdicts for every analyzed attribute of a
// snapshot.
type StabilityReport struct {
	AutomationID StabilityVerdict `json:"automation_id"`
	Name         StabilityVerdict `json:"name"`
	ClassName    StabilityVerdict `json:"class_name"`
	ControlType  StabilityVerdict `json:"control_type"`
	SiblingIndex StabilityVerdict `json:"sibling_index"`
}

// Verdicts returns the report entries in declaration order, for rendering.
func (r StabilityReport) Verdicts() []StabilityVerdict {
	return []StabilityVerdict{
		r.AutomationID,
		r.Name,
		r.ClassName,
		r.ControlType,
		r.SiblingIndex,
	}
}
