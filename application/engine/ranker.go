package engine

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"ui_relocator/domain/entities"
)

// Composite score weights on the 0-100 scale: observed success and intrinsic
// robustness carry 40 points each, normalized speed the remaining 20.
const (
	successWeight = 40.0
	robustWeight  = 40.0
	speedWeight   = 20.0

	// ambiguityPenalty is charged once if any trial matched several nodes.
	ambiguityPenalty = 15.0

	// scoreFloor is the minimum score worth keeping in a cascade.
	scoreFloor = 25.0

	// maxCascadeLength caps how many fallbacks a cascade carries.
	maxCascadeLength = 5
)

// Ranker turns validation results into scores and assembles the fallback
// cascade.
type Ranker struct {
	logger *logrus.Logger
}

// NewRanker builds a ranker.
func NewRanker(logger *logrus.Logger) *Ranker {
	return &Ranker{logger: logger}
}

// ScoreResult computes the composite score for one validation result.
// minLatency and maxLatency are the latency extremes across the whole
// validation batch; they normalize the speed term.
func (r *Ranker) ScoreResult(result *entities.ValidationResult, minLatency, maxLatency time.Duration) entities.Score {
	value := successWeight*result.SuccessRatio() +
		robustWeight*result.Strategy.Kind.Weight() +
		speedWeight*normalizedSpeed(result.AverageLatency(), minLatency, maxLatency)
	if result.AmbiguousSeen {
		value -= ambiguityPenalty
	}
	return entities.NewScore(value)
}

// Assemble scores every result and builds the cascade: sorted by score,
// deduplicated by predicate chain, exact ties dropped so the order stays
// strictly descending, floored at the minimum worthwhile score and capped.
// When nothing clears the floor, the best-scoring strategy that resolved at
// least once survives so the cascade is only empty when nothing resolved at
// all. Every result leaves in the scored state.
func (r *Ranker) Assemble(results []entities.ValidationResult) entities.Cascade {
	if len(results) == 0 {
		return entities.Cascade{}
	}
	minL, maxL := latencyRange(results)

	type scored struct {
		entry    entities.CascadeEntry
		resolved bool
		order    int
	}
	list := make([]scored, 0, len(results))
	for i := range results {
		res := &results[i]
		score := r.ScoreResult(res, minL, maxL)
		res.State = entities.ValidationScored
		r.logger.Debugf("scored %s strategy: %.1f (%s)", res.Strategy.Kind, score.Value, score.Tier)
		list = append(list, scored{
			entry:    entities.CascadeEntry{Strategy: res.Strategy, Score: score},
			resolved: res.Resolutions() > 0,
			order:    i,
		})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].entry.Score.Value != list[j].entry.Score.Value {
			return list[i].entry.Score.Value > list[j].entry.Score.Value
		}
		wi := list[i].entry.Strategy.Kind.Weight()
		wj := list[j].entry.Strategy.Kind.Weight()
		if wi != wj {
			return wi > wj
		}
		return list[i].order < list[j].order
	})

	seen := make(map[string]bool, len(list))
	kept := list[:0]
	lastScore := -1.0
	for _, s := range list {
		key := s.entry.Strategy.ChainKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		if s.entry.Score.Value == lastScore {
			// An exact tie cannot strictly descend; the earlier entry
			// already covers this rank.
			continue
		}
		lastScore = s.entry.Score.Value
		kept = append(kept, s)
	}

	entries := make([]entities.CascadeEntry, 0, len(kept))
	for _, s := range kept {
		if s.entry.Score.Value >= scoreFloor {
			entries = append(entries, s.entry)
		}
	}
	if len(entries) == 0 {
		for _, s := range kept {
			if s.resolved {
				entries = append(entries, s.entry)
				break
			}
		}
	}
	if len(entries) > maxCascadeLength {
		entries = entries[:maxCascadeLength]
	}
	return entities.Cascade{Entries: entries}
}

// normalizedSpeed maps an average latency onto [0,1], 1 for the fastest
// strategy in the batch and 0 for the slowest.
func normalizedSpeed(avg, min, max time.Duration) float64 {
	if max <= min {
		return 1.0
	}
	v := float64(max-avg) / float64(max-min)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// latencyRange returns the extremes of the per-result average latencies,
// skipping results with no trials.
func latencyRange(results []entities.ValidationResult) (time.Duration, time.Duration) {
	var min, max time.Duration
	first := true
	for i := range results {
		if len(results[i].Trials) == 0 {
			continue
		}
		avg := results[i].AverageLatency()
		if first {
			min, max = avg, avg
			first = false
			continue
		}
		if avg < min {
			min = avg
		}
		if avg > max {
			max = avg
		}
	}
	return min, max
}
