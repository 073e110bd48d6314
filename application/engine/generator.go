package engine

import (
	"context"
	"math"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"ui_relocator/domain/entities"
	"ui_relocator/domain/interfaces"
)

const (
	// Names longer than this are matched by prefix containment instead of
	// exact equality, so trailing counters and dates stop breaking matches.
	maxExactNameLength = 20

	anchorTolerance = 5
)

// Generator synthesizes candidate strategies for relocating a captured
// element. Only attributes the stability report classed stable anchor
// predicates; volatile and unknown attributes are passed over. Strategies
// come out ordered by descending intrinsic robustness.
type Generator struct {
	probe  *Matcher
	logger *logrus.Logger
}

// NewGenerator builds a generator. A nil tree disables the live uniqueness
// probe that decides whether name-based strategies need an ancestor scope.
func NewGenerator(tree interfaces.UITree, logger *logrus.Logger) *Generator {
	g := &Generator{logger: logger}
	if tree != nil {
		probePolicy := entities.RetryPolicy{
			Trials:         1,
			SettleDelay:    time.Millisecond,
			AttemptTimeout: 500 * time.Millisecond,
		}
		g.probe = NewMatcher(tree, probePolicy, logger)
	}
	return g
}

// Generate returns every strategy the snapshot and its stability report
// support.
func (g *Generator) Generate(ctx context.Context, snap *entities.ElementSnapshot, report entities.StabilityReport) []entities.CandidateStrategy {
	if snap == nil {
		return nil
	}
	window := entities.WindowNode{Title: snap.WindowTitle, ProcessName: snap.ProcessName}
	var out []entities.CandidateStrategy
	if report.AutomationID.Usable() && snap.AutomationID != "" {
		out = append(out, g.automationIDStrategy(window, snap))
	}
	if report.Name.Usable() && snap.Name != "" && snap.ControlType != "" {
		out = append(out, g.nameAndTypeStrategy(ctx, window, snap))
	}
	if report.ClassName.Usable() && snap.ClassName != "" {
		out = append(out, g.classIndexStrategy(window, snap))
	}
	if s, ok := g.hierarchicalStrategy(window, snap, report); ok {
		out = append(out, s)
	}
	if s, ok := g.visualAnchorStrategy(window, snap); ok {
		out = append(out, s)
	}
	if s, ok := g.coordinateStrategy(window, snap); ok {
		out = append(out, s)
	}
	for _, s := range out {
		g.logger.Debugf("generated %s strategy: %s", s.Kind, s.Serialize())
	}
	return out
}

func (g *Generator) automationIDStrategy(window entities.WindowNode, snap *entities.ElementSnapshot) entities.CandidateStrategy {
	leaf := entities.ElementNode{
		AutomationID: snap.AutomationID,
		ControlType:  snap.ControlType,
	}
	return entities.CandidateStrategy{
		Kind:     entities.StrategyAutomationID,
		Window:   window,
		Elements: []entities.ElementNode{leaf},
	}
}

// nameAndTypeStrategy matches by name plus control type. When a live probe
// shows the pair is not unique inside the window, the nearest stable
// ancestor is added as a scope hop.
func (g *Generator) nameAndTypeStrategy(ctx context.Context, window entities.WindowNode, snap *entities.ElementSnapshot) entities.CandidateStrategy {
	leaf := entities.ElementNode{ControlType: snap.ControlType}
	if utf8.RuneCountInString(snap.Name) > maxExactNameLength {
		leaf.NameContains = truncateRunes(snap.Name, maxExactNameLength)
	} else {
		leaf.Name = snap.Name
	}
	s := entities.CandidateStrategy{
		Kind:     entities.StrategyNameAndType,
		Window:   window,
		Elements: []entities.ElementNode{leaf},
	}
	if g.ambiguousLive(ctx, s) {
		if scope, ok := g.scopeAncestor(snap); ok {
			s.Elements = []entities.ElementNode{scope, leaf}
		}
	}
	return s
}

func (g *Generator) classIndexStrategy(window entities.WindowNode, snap *entities.ElementSnapshot) entities.CandidateStrategy {
	idx := snap.SiblingIndex
	leaf := entities.ElementNode{
		ClassName:   snap.ClassName,
		ControlType: snap.ControlType,
		Index:       &idx,
	}
	return entities.CandidateStrategy{
		Kind:     entities.StrategyClassIndex,
		Window:   window,
		Elements: []entities.ElementNode{leaf},
	}
}

// hierarchicalStrategy emits one predicate per ancestor hop between the
// window and the target. Ancestors with nothing stable to match on are
// skipped. Without at least one ancestor hop the strategy would collapse
// into one of the flat ones, so it is skipped entirely.
func (g *Generator) hierarchicalStrategy(window entities.WindowNode, snap *entities.ElementSnapshot, report entities.StabilityReport) (entities.CandidateStrategy, bool) {
	var hops []entities.ElementNode
	for _, anc := range intermediateAncestors(snap) {
		if node, ok := ancestorPredicate(anc); ok {
			hops = append(hops, node)
		}
	}
	if len(hops) == 0 {
		return entities.CandidateStrategy{}, false
	}
	hops = append(hops, g.hierarchicalLeaf(snap, report))
	return entities.CandidateStrategy{
		Kind:     entities.StrategyHierarchical,
		Window:   window,
		Elements: hops,
	}, true
}

func (g *Generator) hierarchicalLeaf(snap *entities.ElementSnapshot, report entities.StabilityReport) entities.ElementNode {
	leaf := entities.ElementNode{ControlType: snap.ControlType}
	switch {
	case report.AutomationID.Usable() && snap.AutomationID != "":
		leaf.AutomationID = snap.AutomationID
	case report.Name.Usable() && snap.Name != "":
		if utf8.RuneCountInString(snap.Name) > maxExactNameLength {
			leaf.NameContains = truncateRunes(snap.Name, maxExactNameLength)
		} else {
			leaf.Name = snap.Name
		}
	case report.ClassName.Usable() && snap.ClassName != "":
		leaf.ClassName = snap.ClassName
		idx := snap.SiblingIndex
		leaf.Index = &idx
	default:
		idx := snap.SiblingIndex
		leaf.Index = &idx
	}
	return leaf
}

// visualAnchorStrategy records the pixel offset between the target's center
// and the nearest stable ancestor's center.
func (g *Generator) visualAnchorStrategy(window entities.WindowNode, snap *entities.ElementSnapshot) (entities.CandidateStrategy, bool) {
	if snap.Rect.IsZero() {
		return entities.CandidateStrategy{}, false
	}
	anchor, pred, ok := findAnchor(snap)
	if !ok {
		return entities.CandidateStrategy{}, false
	}
	offX := snap.Rect.Center().X - anchor.Rect.Center().X
	offY := snap.Rect.Center().Y - anchor.Rect.Center().Y
	leaf := entities.ElementNode{
		ControlType: snap.ControlType,
		OffsetX:     &offX,
		OffsetY:     &offY,
		Tolerance:   anchorTolerance,
	}
	return entities.CandidateStrategy{
		Kind:     entities.StrategyVisualAnchor,
		Window:   window,
		Elements: []entities.ElementNode{pred, leaf},
	}, true
}

// coordinateStrategy stores the target center as percentages of the window
// rectangle, the last resort when nothing attribute-based survived.
func (g *Generator) coordinateStrategy(window entities.WindowNode, snap *entities.ElementSnapshot) (entities.CandidateStrategy, bool) {
	wr := snap.WindowRect
	if wr.Width() <= 0 || wr.Height() <= 0 || snap.Rect.IsZero() {
		return entities.CandidateStrategy{}, false
	}
	c := snap.Rect.Center()
	cx := roundPercent(float64(c.X-wr.Left) / float64(wr.Width()) * 100)
	cy := roundPercent(float64(c.Y-wr.Top) / float64(wr.Height()) * 100)
	leaf := entities.ElementNode{
		CoordinateX: &cx,
		CoordinateY: &cy,
		Tolerance:   anchorTolerance,
	}
	return entities.CandidateStrategy{
		Kind:     entities.StrategyCoordinate,
		Window:   window,
		Elements: []entities.ElementNode{leaf},
	}, true
}

// ambiguousLive reports whether the strategy matches more than one node on
// the live tree right now.
func (g *Generator) ambiguousLive(ctx context.Context, s entities.CandidateStrategy) bool {
	if g.probe == nil {
		return false
	}
	_, err := g.probe.Resolve(ctx, s)
	return entities.IsKind(err, entities.ErrAmbiguousMatch)
}

// scopeAncestor returns a predicate for the nearest ancestor below the
// window that has something stable to match on.
func (g *Generator) scopeAncestor(snap *entities.ElementSnapshot) (entities.ElementNode, bool) {
	for i := len(snap.Ancestors) - 1; i >= 1; i-- {
		if node, ok := ancestorPredicate(snap.Ancestors[i]); ok {
			return node, true
		}
	}
	return entities.ElementNode{}, false
}

// ancestorPredicate picks the strongest stable attribute an ancestor offers:
// automation id, then name, then class name pinned by index.
func ancestorPredicate(anc entities.AncestorSnapshot) (entities.ElementNode, bool) {
	node := entities.ElementNode{ControlType: anc.ControlType}
	switch {
	case anc.AutomationID != "" && !looksDynamicID(anc.AutomationID):
		node.AutomationID = anc.AutomationID
	case anc.Name != "" && !nameLooksDynamic(anc.Name):
		if utf8.RuneCountInString(anc.Name) > maxExactNameLength {
			node.NameContains = truncateRunes(anc.Name, maxExactNameLength)
		} else {
			node.Name = anc.Name
		}
	case anc.ClassName != "" && !classLooksDynamic(anc.ClassName):
		node.ClassName = anc.ClassName
		idx := anc.SiblingIndex
		node.Index = &idx
	default:
		return entities.ElementNode{}, false
	}
	return node, true
}

// findAnchor returns the nearest ancestor below the window usable as a
// visual anchor: stable predicate and a real rectangle.
func findAnchor(snap *entities.ElementSnapshot) (entities.AncestorSnapshot, entities.ElementNode, bool) {
	for i := len(snap.Ancestors) - 1; i >= 1; i-- {
		anc := snap.Ancestors[i]
		if anc.Rect.IsZero() {
			continue
		}
		if pred, ok := ancestorPredicate(anc); ok {
			return anc, pred, true
		}
	}
	return entities.AncestorSnapshot{}, entities.ElementNode{}, false
}

// intermediateAncestors returns the ancestors strictly between the window
// and the target.
func intermediateAncestors(snap *entities.ElementSnapshot) []entities.AncestorSnapshot {
	if len(snap.Ancestors) <= 1 {
		return nil
	}
	return snap.Ancestors[1:]
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func roundPercent(v float64) float64 {
	return math.Round(v*10) / 10
}
