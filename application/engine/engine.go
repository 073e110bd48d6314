package engine

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"ui_relocator/domain/entities"
	"ui_relocator/domain/interfaces"
)

// Engine is the selector robustness pipeline over one live tree: stability
// analysis, strategy generation, validation and ranking on the way in,
// cascade replay on the way out.
type Engine struct {
	tree      interfaces.UITree
	analyzer  *Analyzer
	generator *Generator
	matcher   *Matcher
	validator *Validator
	ranker    *Ranker
	replayer  *Replayer
	logger    *logrus.Logger
}

// NewEngine wires the pipeline stages over the given tree and policy.
func NewEngine(tree interfaces.UITree, policy entities.RetryPolicy, logger *logrus.Logger) *Engine {
	matcher := NewMatcher(tree, policy, logger)
	return &Engine{
		tree:      tree,
		analyzer:  NewAnalyzer(tree, logger),
		generator: NewGenerator(tree, logger),
		matcher:   matcher,
		validator: NewValidator(matcher, policy, logger),
		ranker:    NewRanker(logger),
		replayer:  NewReplayer(matcher, logger),
		logger:    logger,
	}
}

// Analyze returns the stability report for a snapshot without generating
// anything.
func (e *Engine) Analyze(ctx context.Context, snap *entities.ElementSnapshot) (entities.StabilityReport, error) {
	return e.analyzer.Analyze(ctx, snap)
}

// BuildCascade runs the full pipeline for one snapshot: analyze, generate,
// validate every candidate sequentially, then rank into a cascade.
func (e *Engine) BuildCascade(ctx context.Context, snap *entities.ElementSnapshot) (entities.Cascade, entities.StabilityReport, error) {
	report, err := e.analyzer.Analyze(ctx, snap)
	if err != nil {
		return entities.Cascade{}, report, fmt.Errorf("failed to analyze snapshot: %w", err)
	}
	candidates := e.generator.Generate(ctx, snap, report)
	if len(candidates) == 0 {
		return entities.Cascade{}, report, fmt.Errorf("no candidate strategies could be generated")
	}
	e.logger.Infof("generated %d candidate strategies", len(candidates))
	results, err := e.validator.ValidateAll(ctx, candidates)
	if err != nil {
		return entities.Cascade{}, report, err
	}
	cascade := e.ranker.Assemble(results)
	e.logger.Infof("assembled cascade with %d of %d candidates", cascade.Len(), len(candidates))
	return cascade, report, nil
}

// Resolve locates a single strategy's target on the live tree.
func (e *Engine) Resolve(ctx context.Context, strategy entities.CandidateStrategy) (*Resolution, error) {
	return e.matcher.Resolve(ctx, strategy)
}

// Replay walks a stored cascade and performs the requested action with the
// first entry that works.
func (e *Engine) Replay(ctx context.Context, cascade entities.Cascade, action entities.ReplayAction) (entities.ReplayReport, error) {
	return e.replayer.Replay(ctx, cascade, action)
}
