package entities

import "time"

// ValidationState tracks a candidate strategy through validation.
// The machine runs Pending, Resolving, then Succeeded or Failed, and ends
// at Scored once ranking has consumed the result.
type ValidationState string

const (
	ValidationPending   ValidationState = "pending"
	ValidationResolving ValidationState = "resolving"
	ValidationSucceeded ValidationState = "succeeded"
	ValidationFailed    ValidationState = "failed"
	ValidationScored    ValidationState = "scored"
)

// Terminal reports whether no further trials will run in this state.
func (s ValidationState) Terminal() bool {
	switch s {
	case ValidationSucceeded, ValidationFailed, ValidationScored:
		return true
	}
	return false
}

// RetryPolicy bounds validation trials and resolution attempts. It is passed
// explicitly into the validator and matcher rather than living in loop
// constants.
type RetryPolicy struct {
	Trials         int           `json:"trials"`
	SettleDelay    time.Duration `json:"settle_delay"`
	AttemptTimeout time.Duration `json:"attempt_timeout"`
}

// DefaultRetryPolicy returns the validation defaults: three trials, a short
// settle delay between trials so UI transition animations do not bleed into
// the next trial, and a two second bound per resolution attempt.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Trials:         3,
		SettleDelay:    250 * time.Millisecond,
		AttemptTimeout: 2 * time.Second,
	}
}

// Normalized replaces non-positive fields with their defaults.
func (p RetryPolicy) Normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.Trials <= 0 {
		p.Trials = def.Trials
	}
	if p.SettleDelay <= 0 {
		p.SettleDelay = def.SettleDelay
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = def.AttemptTimeout
	}
	return p
}

// TrialRecord captures the outcome of a single validation trial.
type TrialRecord struct {
	Attempt     int           `json:"attempt"`
	Resolved    bool          `json:"resolved"`
	Unique      bool          `json:"unique"`
	ActionOK    bool          `json:"action_ok"`
	Latency     time.Duration `json:"latency"`
	FailureKind ErrorKind     `json:"failure_kind,omitempty"`
	Detail      string        `json:"detail,omitempty"`
}

// Succeeded reports whether the trial resolved and completed its action.
func (t TrialRecord) Succeeded() bool {
	return t.Resolved && t.FailureKind == ""
}

// ValidationResult aggregates the trials run against one candidate strategy.
type ValidationResult struct {
	Strategy      CandidateStrategy `json:"strategy"`
	State         ValidationState   `json:"state"`
	Trials        []TrialRecord     `json:"trials"`
	AmbiguousSeen bool              `json:"ambiguous_seen"`
}

// Successes counts trials that resolved and completed their action.
func (r *ValidationResult) Successes() int {
	n := 0
	for _, t := range r.Trials {
		if t.Succeeded() {
			n++
		}
	}
	return n
}

// Resolutions counts trials that resolved, action outcome aside.
func (r *ValidationResult) Resolutions() int {
	n := 0
	for _, t := range r.Trials {
		if t.Resolved {
			n++
		}
	}
	return n
}

// SuccessRatio returns successes over trials, 0 when no trial ran.
func (r *ValidationResult) SuccessRatio() float64 {
	if len(r.Trials) == 0 {
		return 0
	}
	return float64(r.Successes()) / float64(len(r.Trials))
}

// UniquenessRatio returns the share of trials that resolved to exactly one
// node, 0 when no trial ran.
func (r *ValidationResult) UniquenessRatio() float64 {
	if len(r.Trials) == 0 {
		return 0
	}
	n := 0
	for _, t := range r.Trials {
		if t.Unique {
			n++
		}
	}
	return float64(n) / float64(len(r.Trials))
}

// AverageLatency returns the mean trial latency. Failed attempts poll until
// the attempt bound, so they charge the full bound here.
func (r *ValidationResult) AverageLatency() time.Duration {
	if len(r.Trials) == 0 {
		return 0
	}
	var sum time.Duration
	for _, t := range r.Trials {
		sum += t.Latency
	}
	return sum / time.Duration(len(r.Trials))
}
