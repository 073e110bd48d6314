package entities

import "sort"

// StrategyKind identifies how a candidate strategy locates its target.
type StrategyKind string

const (
	StrategyAutomationID StrategyKind = "automation_id"
	StrategyNameAndType  StrategyKind = "name_and_type"
	StrategyClassIndex   StrategyKind = "class_name_index"
	StrategyHierarchical StrategyKind = "hierarchical"
	StrategyVisualAnchor StrategyKind = "visual_anchor"
	StrategyCoordinate   StrategyKind = "coordinate"
)

// StrategyTraits quantifies the intrinsic properties of a strategy kind.
// Weight is the robustness prior in [0,1] used by scoring.
type StrategyTraits struct {
	Kind        StrategyKind `json:"kind"`
	Weight      float64      `json:"weight"`
	Description string       `json:"description"`
}

var strategyTraits = map[StrategyKind]StrategyTraits{
	StrategyAutomationID: {
		Kind:        StrategyAutomationID,
		Weight:      1.00,
		Description: "stable automation id on the final hop",
	},
	StrategyNameAndType: {
		Kind:        StrategyNameAndType,
		Weight:      0.90,
		Description: "name plus control type, optionally scoped to an ancestor",
	},
	StrategyClassIndex: {
		Kind:        StrategyClassIndex,
		Weight:      0.75,
		Description: "class name plus index among matching siblings",
	},
	StrategyHierarchical: {
		Kind:        StrategyHierarchical,
		Weight:      0.70,
		Description: "one predicate per ancestor hop down to the target",
	},
	StrategyVisualAnchor: {
		Kind:        StrategyVisualAnchor,
		Weight:      0.55,
		Description: "pixel offset from a stable anchor element",
	},
	StrategyCoordinate: {
		Kind:        StrategyCoordinate,
		Weight:      0.30,
		Description: "window-relative coordinates, last resort",
	},
}

// TraitsFor returns the canonical traits for a strategy kind. Unknown kinds
// yield a zero-weight trait set.
func TraitsFor(kind StrategyKind) StrategyTraits {
	return strategyTraits[kind]
}

// Weight returns the intrinsic robustness weight of the kind.
func (k StrategyKind) Weight() float64 {
	return strategyTraits[k].Weight
}

// Valid reports whether the kind is one of the declared strategy kinds.
func (k StrategyKind) Valid() bool {
	_, ok := strategyTraits[k]
	return ok
}

// AllStrategyKinds returns the declared kinds ordered by descending intrinsic
// weight.
func AllStrategyKinds() []StrategyKind {
	kinds := make([]StrategyKind, 0, len(strategyTraits))
	for k := range strategyTraits {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return kinds[i].Weight() > kinds[j].Weight()
	})
	return kinds
}
