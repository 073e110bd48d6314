package entities

import "fmt"

// Tier is the discrete reliability classification derived from a numeric
// score.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierModerate  Tier = "moderate"
	TierLow       Tier = "low"
	TierPoor      Tier = "poor"
)

// TierForScore maps a 0-100 score onto its reliability tier.
func TierForScore(value float64) Tier {
	switch {
	case value >= 90:
		return TierExcellent
	case value >= 75:
		return TierGood
	case value >= 50:
		return TierModerate
	case value >= 25:
		return TierLow
	default:
		return TierPoor
	}
}

// Score is the ranked reliability of a validated strategy on a 0-100 scale.
type Score struct {
	Value float64 `json:"value"`
	Tier  Tier    `json:"tier"`
}

// NewScore clamps the value into [0,100] and derives the tier.
func NewScore(value float64) Score {
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	return Score{Value: value, Tier: TierForScore(value)}
}

// CascadeEntry pairs a candidate strategy with its validated score.
type CascadeEntry struct {
	Strategy CandidateStrategy `json:"strategy"`
	Score    Score             `json:"score"`
}

// Cascade is the ordered fallback list produced by ranking. Entries are
// strictly descending by score and no two entries share a predicate chain.
type Cascade struct {
	Entries []CascadeEntry `json:"entries"`
}

// Len returns the number of entries.
func (c Cascade) Len() int {
	return len(c.Entries)
}

// Best returns the highest-ranked entry.
func (c Cascade) Best() (CascadeEntry, bool) {
	if len(c.Entries) == 0 {
		return CascadeEntry{}, false
	}
	return c.Entries[0], true
}

// Validate checks the cascade invariants: strictly descending scores and
// pairwise-distinct predicate chains.
func (c Cascade) Validate() error {
	chains := make(map[string]bool, len(c.Entries))
	for i, entry := range c.Entries {
		key := entry.Strategy.ChainKey()
		if chains[key] {
			return fmt.Errorf("cascade entry %d repeats the predicate chain of an earlier entry", i)
		}
		chains[key] = true
		if i > 0 && entry.Score.Value >= c.Entries[i-1].Score.Value {
			return fmt.Errorf("cascade entry %d does not strictly descend in score", i)
		}
	}
	return nil
}
