package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"ui_relocator/domain/entities"
	"ui_relocator/domain/interfaces"
)

const (
	defaultMaxDepth        = 12
	defaultAnchorTolerance = 5
	resolvePollInterval    = 100 * time.Millisecond
)

// Resolution is the outcome of resolving a strategy: the node handle, its
// attributes and rectangle at resolve time, and the point an input dispatch
// would target. Coordinate resolutions may carry only the point, with a zero
// node handle and Unique false.
type Resolution struct {
	Node   entities.NodeRef
	Attrs  entities.NodeAttributes
	Rect   entities.Rect
	Point  entities.Point
	Unique bool
}

// Matcher resolves selector documents against a live tree and executes
// actions on the resolved node. Resolution is strict: every hop must match
// exactly one node unless the hop carries an explicit index or geometric
// predicate.
type Matcher struct {
	tree     interfaces.UITree
	policy   entities.RetryPolicy
	logger   *logrus.Logger
	maxDepth int
}

// NewMatcher builds a matcher over the given tree.
func NewMatcher(tree interfaces.UITree, policy entities.RetryPolicy, logger *logrus.Logger) *Matcher {
	return &Matcher{
		tree:     tree,
		policy:   policy.Normalized(),
		logger:   logger,
		maxDepth: defaultMaxDepth,
	}
}

// SetMaxDepth bounds how deep each hop searches below its scope node.
func (m *Matcher) SetMaxDepth(depth int) {
	if depth > 0 {
		m.maxDepth = depth
	}
}

// Resolve locates the strategy's target. Not-found passes are retried until
// the attempt bound elapses, because the target may still be rendering. An
// ambiguous match aborts immediately: ambiguity is a correctness defect, not
// a transient condition, and waiting would not fix it.
func (m *Matcher) Resolve(ctx context.Context, strategy entities.CandidateStrategy) (*Resolution, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.policy.AttemptTimeout)
	defer cancel()
	var lastErr error
	for {
		res, err := m.resolveOnce(attemptCtx, strategy)
		if err == nil {
			return res, nil
		}
		if entities.IsKind(err, entities.ErrAmbiguousMatch) {
			return nil, err
		}
		lastErr = err
		select {
		case <-attemptCtx.Done():
			if entities.KindOf(lastErr) != "" {
				return nil, lastErr
			}
			return nil, &entities.LocateError{
				Kind:   entities.ErrTimeout,
				Hop:    entities.WindowHop,
				Detail: fmt.Sprintf("no pass completed within %s: %v", m.policy.AttemptTimeout, lastErr),
			}
		case <-time.After(resolvePollInterval):
		}
	}
}

// Execute resolves the strategy and performs the requested action. The
// action phase runs on a context detached from the caller's cancellation so
// dispatched input is never cut off halfway.
func (m *Matcher) Execute(ctx context.Context, strategy entities.CandidateStrategy, action entities.ReplayAction) (*Resolution, *entities.ActionOutcome, error) {
	if action == "" {
		action = entities.ActionResolve
	}
	start := time.Now()
	res, err := m.Resolve(ctx, strategy)
	if err != nil {
		return nil, nil, err
	}
	if action == entities.ActionResolve {
		return res, &entities.ActionOutcome{Action: action, Point: res.Point, Latency: time.Since(start)}, nil
	}
	actionCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.policy.AttemptTimeout)
	defer cancel()
	outcome, err := m.performAction(actionCtx, res, action)
	if err != nil {
		return res, nil, err
	}
	outcome.Latency = time.Since(start)
	return res, outcome, nil
}

func (m *Matcher) resolveOnce(ctx context.Context, s entities.CandidateStrategy) (*Resolution, error) {
	win, err := m.resolveWindow(ctx, s.Window)
	if err != nil {
		return nil, err
	}
	scope := win
	for i, el := range s.Elements {
		switch {
		case el.IsCoordinate():
			return m.resolveCoordinate(ctx, win, el)
		case el.HasOffset():
			node, err := m.resolveOffset(ctx, scope, el, i)
			if err != nil {
				return nil, err
			}
			scope = node
		default:
			node, err := m.resolveFilter(ctx, scope, el, i)
			if err != nil {
				return nil, err
			}
			scope = node
		}
	}
	return m.describe(ctx, scope)
}

func (m *Matcher) describe(ctx context.Context, node entities.NodeRef) (*Resolution, error) {
	attrs, err := m.tree.Attributes(ctx, node)
	if err != nil {
		return nil, err
	}
	rect, err := m.tree.BoundingRect(ctx, node)
	if err != nil {
		return nil, err
	}
	return &Resolution{Node: node, Attrs: attrs, Rect: rect, Point: rect.Center(), Unique: true}, nil
}

// resolveWindow finds the top-level window by exact title. When several
// windows share the title, the process name disambiguates; without one the
// match is ambiguous.
func (m *Matcher) resolveWindow(ctx context.Context, w entities.WindowNode) (entities.NodeRef, error) {
	wins, err := m.tree.Windows(ctx)
	if err != nil {
		return entities.NodeRef{}, fmt.Errorf("failed to enumerate windows: %w", err)
	}
	var matches, owned []entities.NodeRef
	for _, win := range wins {
		attrs, err := m.tree.Attributes(ctx, win)
		if err != nil {
			if ctx.Err() != nil {
				return entities.NodeRef{}, ctx.Err()
			}
			continue // window vanished mid-enumeration
		}
		if attrs.Name != w.Title {
			continue
		}
		matches = append(matches, win)
		if w.ProcessName != "" && attrs.ProcessName == w.ProcessName {
			owned = append(owned, win)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) == 0 {
		return entities.NodeRef{}, entities.NewNotFound(entities.WindowHop, fmt.Sprintf("no window titled %q", w.Title))
	}
	if w.ProcessName == "" {
		return entities.NodeRef{}, entities.NewAmbiguous(entities.WindowHop, len(matches))
	}
	switch len(owned) {
	case 1:
		return owned[0], nil
	case 0:
		return entities.NodeRef{}, entities.NewNotFound(entities.WindowHop,
			fmt.Sprintf("no window titled %q owned by %q", w.Title, w.ProcessName))
	default:
		return entities.NodeRef{}, entities.NewAmbiguous(entities.WindowHop, len(owned))
	}
}

// resolveFilter applies the hop's attribute predicates over the scope's
// descendants in document order, then the positional index if one is set.
func (m *Matcher) resolveFilter(ctx context.Context, scope entities.NodeRef, el entities.ElementNode, hop int) (entities.NodeRef, error) {
	nodes, err := m.descendants(ctx, scope)
	if err != nil {
		return entities.NodeRef{}, err
	}
	var matched []entities.NodeRef
	for _, n := range nodes {
		attrs, err := m.tree.Attributes(ctx, n)
		if err != nil {
			if ctx.Err() != nil {
				return entities.NodeRef{}, ctx.Err()
			}
			continue // node vanished mid-walk
		}
		if el.Matches(attrs) {
			matched = append(matched, n)
		}
	}
	if el.Index != nil {
		if *el.Index >= len(matched) {
			return entities.NodeRef{}, entities.NewNotFound(hop,
				fmt.Sprintf("index %d outside %d attribute matches", *el.Index, len(matched)))
		}
		return matched[*el.Index], nil
	}
	switch len(matched) {
	case 0:
		return entities.NodeRef{}, entities.NewNotFound(hop, describeElementNode(el))
	case 1:
		return matched[0], nil
	default:
		return entities.NodeRef{}, entities.NewAmbiguous(hop, len(matched))
	}
}

// resolveOffset projects the offset from the anchor's center and picks the
// matching node nearest the projected point. Several nodes inside the
// tolerance radius are not ambiguous here: anchor offsets drift a few pixels
// between executions, so nearest center wins.
func (m *Matcher) resolveOffset(ctx context.Context, anchor entities.NodeRef, el entities.ElementNode, hop int) (entities.NodeRef, error) {
	anchorRect, err := m.tree.BoundingRect(ctx, anchor)
	if err != nil {
		return entities.NodeRef{}, err
	}
	target := entities.Point{
		X: anchorRect.Center().X + *el.OffsetX,
		Y: anchorRect.Center().Y + *el.OffsetY,
	}
	scope := anchor
	if parent, err := m.tree.Parent(ctx, anchor); err == nil && !parent.IsZero() {
		scope = parent
	}
	nodes, err := m.descendants(ctx, scope)
	if err != nil {
		return entities.NodeRef{}, err
	}
	tol := el.Tolerance
	if tol <= 0 {
		tol = defaultAnchorTolerance
	}
	var best entities.NodeRef
	bestDist := math.MaxFloat64
	for _, n := range nodes {
		if n == anchor {
			continue
		}
		if el.HasAttributes() {
			attrs, err := m.tree.Attributes(ctx, n)
			if err != nil {
				if ctx.Err() != nil {
					return entities.NodeRef{}, ctx.Err()
				}
				continue
			}
			if !el.Matches(attrs) {
				continue
			}
		}
		rect, err := m.tree.BoundingRect(ctx, n)
		if err != nil {
			if ctx.Err() != nil {
				return entities.NodeRef{}, ctx.Err()
			}
			continue
		}
		d := pointDistance(rect.Center(), target)
		if d <= float64(tol) && d < bestDist {
			best = n
			bestDist = d
		}
	}
	if best.IsZero() {
		return entities.NodeRef{}, entities.NewNotFound(hop,
			fmt.Sprintf("no node within %dpx of the anchor offset", tol))
	}
	return best, nil
}

// resolveCoordinate converts window-relative percentages into an absolute
// point using the window's current rectangle, then asks the tree what sits
// there. When the backend cannot name a node the resolution degrades to the
// bare point. Coordinate resolutions never claim uniqueness.
func (m *Matcher) resolveCoordinate(ctx context.Context, win entities.NodeRef, el entities.ElementNode) (*Resolution, error) {
	wr, err := m.tree.BoundingRect(ctx, win)
	if err != nil {
		return nil, err
	}
	if wr.Width() <= 0 || wr.Height() <= 0 {
		return nil, entities.NewNotFound(entities.WindowHop, "window rectangle is empty")
	}
	pt := entities.Point{
		X: wr.Left + int(math.Round(*el.CoordinateX/100*float64(wr.Width()))),
		Y: wr.Top + int(math.Round(*el.CoordinateY/100*float64(wr.Height()))),
	}
	node, err := m.tree.NodeAtPoint(ctx, pt)
	if err != nil || node.IsZero() {
		return &Resolution{Point: pt}, nil
	}
	attrs, err := m.tree.Attributes(ctx, node)
	if err != nil {
		return &Resolution{Point: pt}, nil
	}
	rect, err := m.tree.BoundingRect(ctx, node)
	if err != nil {
		return &Resolution{Node: node, Attrs: attrs, Point: pt}, nil
	}
	return &Resolution{Node: node, Attrs: attrs, Rect: rect, Point: pt}, nil
}

// descendants collects the scope's descendants in document order, bounded by
// the matcher's depth limit.
func (m *Matcher) descendants(ctx context.Context, root entities.NodeRef) ([]entities.NodeRef, error) {
	var out []entities.NodeRef
	var walk func(node entities.NodeRef, depth int) error
	walk = func(node entities.NodeRef, depth int) error {
		if depth == 0 {
			return nil
		}
		kids, err := m.tree.Children(ctx, node)
		if err != nil {
			return err
		}
		for _, k := range kids {
			out = append(out, k)
			if err := walk(k, depth-1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(root, m.maxDepth); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Matcher) performAction(ctx context.Context, res *Resolution, action entities.ReplayAction) (*entities.ActionOutcome, error) {
	if action == entities.ActionRead {
		if res.Node.IsZero() {
			return nil, entities.NewActionUnsupported("coordinate resolution carries no readable node")
		}
		if !res.Attrs.HasPattern(entities.PatternValue) {
			return nil, entities.NewActionUnsupported("node does not advertise the value pattern")
		}
		value, err := m.tree.ReadValue(ctx, res.Node)
		if err != nil {
			return nil, fmt.Errorf("failed to read value: %w", err)
		}
		return &entities.ActionOutcome{Action: action, Value: value, Point: res.Point}, nil
	}
	var lastErr error
	for _, method := range entities.ActionPrecedence() {
		err := m.attemptMethod(ctx, method, res)
		if err == nil {
			return &entities.ActionOutcome{Action: action, Method: method, Point: res.Point}, nil
		}
		lastErr = err
		m.logger.Debugf("action method %s failed: %v", method, err)
	}
	return nil, entities.NewActionUnsupported(fmt.Sprintf("every action method failed, last: %v", lastErr))
}

func (m *Matcher) attemptMethod(ctx context.Context, method entities.ActionMethod, res *Resolution) error {
	switch method {
	case entities.MethodInvoke:
		if res.Node.IsZero() {
			return errors.New("no node handle to invoke")
		}
		if !res.Attrs.HasPattern(entities.PatternInvoke) {
			return errors.New("invoke pattern not advertised")
		}
		return m.tree.Invoke(ctx, res.Node)
	case entities.MethodSyntheticClick:
		if res.Node.IsZero() {
			return errors.New("no node handle to click")
		}
		rect, err := m.tree.BoundingRect(ctx, res.Node)
		if err != nil {
			return fmt.Errorf("node went stale before the click: %w", err)
		}
		return m.tree.ClickAt(ctx, rect.Center())
	case entities.MethodCoordinateClick:
		return m.tree.ClickAt(ctx, res.Point)
	default:
		return fmt.Errorf("unknown action method %s", method)
	}
}

func describeElementNode(el entities.ElementNode) string {
	var parts []string
	if el.AutomationID != "" {
		parts = append(parts, "automationId="+el.AutomationID)
	}
	if el.Name != "" {
		parts = append(parts, "name="+el.Name)
	}
	if el.NameContains != "" {
		parts = append(parts, "nameContains="+el.NameContains)
	}
	if el.ClassName != "" {
		parts = append(parts, "className="+el.ClassName)
	}
	if el.ControlType != "" {
		parts = append(parts, "controlType="+el.ControlType)
	}
	if len(parts) == 0 {
		return "no node under scope"
	}
	return "no node matching " + strings.Join(parts, " ")
}

func pointDistance(a, b entities.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}
