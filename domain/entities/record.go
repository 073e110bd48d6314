package entities

import (
	"strings"
	"time"
)

// Fingerprint summarizes the identity of a captured element for similarity
// lookups across capture sessions. Stability maps attribute names to their
// 0-1 stability estimates at capture time.
type Fingerprint struct {
	Name         string             `json:"name,omitempty"`
	ClassName    string             `json:"class_name,omitempty"`
	ControlType  string             `json:"control_type,omitempty"`
	WindowTitle  string             `json:"window_title,omitempty"`
	SiblingIndex int                `json:"sibling_index"`
	Stability    map[string]float64 `json:"stability,omitempty"`
}

// Fingerprint similarity weights. Control type dominates because it almost
// never changes between versions of an application.
const (
	fpWeightControlType  = 0.30
	fpWeightName         = 0.25
	fpWeightClassName    = 0.20
	fpWeightWindowTitle  = 0.15
	fpWeightSiblingIndex = 0.10
)

// Similarity returns a weighted 0-1 similarity between two fingerprints.
// A partial substring match earns half credit.
func (f Fingerprint) Similarity(other Fingerprint) float64 {
	var total, score float64
	field := func(weight float64, a, b string) {
		total += weight
		la, lb := strings.ToLower(a), strings.ToLower(b)
		switch {
		case la == lb:
			score += weight
		case la == "" || lb == "":
		case strings.Contains(la, lb) || strings.Contains(lb, la):
			score += weight / 2
		}
	}
	field(fpWeightControlType, f.ControlType, other.ControlType)
	field(fpWeightName, f.Name, other.Name)
	field(fpWeightClassName, f.ClassName, other.ClassName)
	field(fpWeightWindowTitle, f.WindowTitle, other.WindowTitle)
	total += fpWeightSiblingIndex
	if f.SiblingIndex == other.SiblingIndex {
		score += fpWeightSiblingIndex
	}
	if total == 0 {
		return 0
	}
	return score / total
}

// CapturedElement is the persisted record of one captured element: its
// fingerprint, the scored fallback cascade, and a single legacy selector for
// consumers that predate cascades.
type CapturedElement struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	WindowTitle    string      `json:"window_title"`
	ProcessName    string      `json:"process_name,omitempty"`
	Fingerprint    Fingerprint `json:"fingerprint"`
	Cascade        Cascade     `json:"cascade"`
	LegacySelector string      `json:"legacy_selector,omitempty"`
	CapturedAt     time.Time   `json:"captured_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// CapturedElementSummary is the index entry kept for each stored element so
// listing and fingerprint lookups do not load full records.
type CapturedElementSummary struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	WindowTitle string      `json:"window_title"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Entries     int         `json:"entries"`
	BestTier    Tier        `json:"best_tier,omitempty"`
	CapturedAt  time.Time   `json:"captured_at"`
}
