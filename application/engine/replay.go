package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ui_relocator/domain/entities"
)

// Replayer walks a cascade strictly in rank order and stops at the first
// entry that resolves and carries the requested action.
type Replayer struct {
	matcher *Matcher
	logger  *logrus.Logger
}

// NewReplayer builds a replayer over the given matcher.
func NewReplayer(matcher *Matcher, logger *logrus.Logger) *Replayer {
	return &Replayer{matcher: matcher, logger: logger}
}

// Replay tries each cascade entry in order. Cancellation is honored between
// entries only; a dispatched action always runs to completion. The report
// carries one diagnostic per attempted entry, and an error is returned only
// when the cascade is empty or every entry failed.
func (r *Replayer) Replay(ctx context.Context, cascade entities.Cascade, action entities.ReplayAction) (entities.ReplayReport, error) {
	report := entities.ReplayReport{WinningIndex: -1}
	if cascade.Len() == 0 {
		return report, fmt.Errorf("cascade is empty")
	}
	for i, entry := range cascade.Entries {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("replay canceled: %w", err)
		}
		start := time.Now()
		diag := entities.ReplayDiagnostic{
			Kind:  entry.Strategy.Kind,
			Score: entry.Score.Value,
		}
		_, outcome, err := r.matcher.Execute(ctx, entry.Strategy, action)
		diag.Latency = time.Since(start)
		if err != nil {
			diag.FailureKind = entities.KindOf(err)
			diag.Detail = err.Error()
			report.Diagnostics = append(report.Diagnostics, diag)
			r.logger.Debugf("cascade entry %d (%s) failed: %v", i, entry.Strategy.Kind, err)
			continue
		}
		diag.Succeeded = true
		report.Diagnostics = append(report.Diagnostics, diag)
		report.Succeeded = true
		report.WinningIndex = i
		report.Outcome = outcome
		r.logger.Infof("cascade entry %d (%s) carried the %s action", i, entry.Strategy.Kind, action)
		return report, nil
	}
	return report, fmt.Errorf("all %d cascade entries failed", cascade.Len())
}
