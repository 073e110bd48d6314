package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ui_relocator/domain/entities"
)

// Validator drives the matcher through repeated trials per candidate
// strategy and aggregates the outcomes. Trials run strictly sequentially:
// the live tree is shared and trials may dispatch real input, so running
// them concurrently would double real-world side effects.
type Validator struct {
	matcher *Matcher
	policy  entities.RetryPolicy
	logger  *logrus.Logger
	action  entities.ReplayAction
}

// NewValidator builds a validator that resolves without dispatching input.
func NewValidator(matcher *Matcher, policy entities.RetryPolicy, logger *logrus.Logger) *Validator {
	return &Validator{
		matcher: matcher,
		policy:  policy.Normalized(),
		logger:  logger,
		action:  entities.ActionResolve,
	}
}

// WithAction returns a validator that dispatches the given action on every
// trial. Real actions need the same approval path as replay, so callers opt
// in explicitly.
func (v *Validator) WithAction(action entities.ReplayAction) *Validator {
	clone := *v
	clone.action = action
	return &clone
}

// ValidateAll runs the trial budget against every candidate in order.
// Cancellation is honored between trials and between candidates, never in
// the middle of a dispatched action.
func (v *Validator) ValidateAll(ctx context.Context, candidates []entities.CandidateStrategy) ([]entities.ValidationResult, error) {
	results := make([]entities.ValidationResult, 0, len(candidates))
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("validation canceled: %w", err)
		}
		results = append(results, v.validate(ctx, c))
	}
	return results, nil
}

func (v *Validator) validate(ctx context.Context, strategy entities.CandidateStrategy) entities.ValidationResult {
	result := entities.ValidationResult{Strategy: strategy, State: entities.ValidationPending}
	v.logger.Debugf("validating %s strategy over %d trials", strategy.Kind, v.policy.Trials)
	for attempt := 1; attempt <= v.policy.Trials; attempt++ {
		if attempt > 1 {
			// Settle so the previous trial's UI transitions finish before
			// the next resolution starts.
			select {
			case <-ctx.Done():
			case <-time.After(v.policy.SettleDelay):
			}
			if ctx.Err() != nil {
				break
			}
		}
		result.State = entities.ValidationResolving
		trial := v.runTrial(ctx, strategy, attempt)
		result.Trials = append(result.Trials, trial)
		if trial.FailureKind == entities.ErrAmbiguousMatch {
			result.AmbiguousSeen = true
		}
	}
	if result.Successes() > 0 {
		result.State = entities.ValidationSucceeded
	} else {
		result.State = entities.ValidationFailed
	}
	v.logger.Debugf("validation %s: %s %d/%d trials succeeded",
		strategy.Kind, result.State, result.Successes(), len(result.Trials))
	return result
}

func (v *Validator) runTrial(ctx context.Context, strategy entities.CandidateStrategy, attempt int) entities.TrialRecord {
	start := time.Now()
	trial := entities.TrialRecord{Attempt: attempt}
	res, _, err := v.matcher.Execute(ctx, strategy, v.action)
	trial.Latency = time.Since(start)
	if res != nil {
		trial.Resolved = true
		trial.Unique = res.Unique
	}
	if err != nil {
		trial.FailureKind = entities.KindOf(err)
		trial.Detail = err.Error()
		return trial
	}
	trial.ActionOK = v.action != entities.ActionResolve
	return trial
}
