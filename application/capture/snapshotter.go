package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ui_relocator/domain/entities"
	"ui_relocator/domain/interfaces"
)

const captureMaxDepth = 12

// Snapshotter builds element snapshots from the live tree, the form the
// engine consumes. A snapshot is taken once and stays immutable; everything
// downstream works off the copy.
type Snapshotter struct {
	tree   interfaces.UITree
	logger *logrus.Logger
}

// NewSnapshotter builds a snapshotter over the given tree.
func NewSnapshotter(tree interfaces.UITree, logger *logrus.Logger) *Snapshotter {
	return &Snapshotter{tree: tree, logger: logger}
}

// Snapshot captures the first node under the window titled windowTitle that
// carries the given automation id, or failing that the given name. The
// returned snapshot includes the ancestor chain from the window down to the
// element's parent and the element's position among same-type siblings.
func (s *Snapshotter) Snapshot(ctx context.Context, windowTitle, automationID, name string) (*entities.ElementSnapshot, error) {
	if automationID == "" && name == "" {
		return nil, fmt.Errorf("nothing to capture: need an automation id or a name")
	}
	win, winAttrs, err := s.findWindow(ctx, windowTitle)
	if err != nil {
		return nil, err
	}
	target, err := s.findTarget(ctx, win, automationID, name)
	if err != nil {
		return nil, err
	}
	return s.buildSnapshot(ctx, win, winAttrs, target)
}

func (s *Snapshotter) findWindow(ctx context.Context, title string) (entities.NodeRef, entities.NodeAttributes, error) {
	wins, err := s.tree.Windows(ctx)
	if err != nil {
		return entities.NodeRef{}, entities.NodeAttributes{}, fmt.Errorf("failed to enumerate windows: %w", err)
	}
	for _, win := range wins {
		attrs, err := s.tree.Attributes(ctx, win)
		if err != nil {
			continue
		}
		if attrs.Name == title {
			return win, attrs, nil
		}
	}
	return entities.NodeRef{}, entities.NodeAttributes{}, entities.NewNotFound(entities.WindowHop,
		fmt.Sprintf("no window titled %q", title))
}

func (s *Snapshotter) findTarget(ctx context.Context, win entities.NodeRef, automationID, name string) (entities.NodeRef, error) {
	var found entities.NodeRef
	var walk func(node entities.NodeRef, depth int) error
	walk = func(node entities.NodeRef, depth int) error {
		if depth == 0 || !found.IsZero() {
			return nil
		}
		kids, err := s.tree.Children(ctx, node)
		if err != nil {
			return err
		}
		for _, k := range kids {
			attrs, err := s.tree.Attributes(ctx, k)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			if automationID != "" && attrs.AutomationID == automationID {
				found = k
				return nil
			}
			if automationID == "" && attrs.Name == name {
				found = k
				return nil
			}
			if err := walk(k, depth-1); err != nil {
				return err
			}
			if !found.IsZero() {
				return nil
			}
		}
		return nil
	}
	if err := walk(win, captureMaxDepth); err != nil {
		return entities.NodeRef{}, err
	}
	if found.IsZero() {
		query := automationID
		if query == "" {
			query = name
		}
		return entities.NodeRef{}, entities.NewNotFound(0, fmt.Sprintf("no element matching %q", query))
	}
	return found, nil
}

func (s *Snapshotter) buildSnapshot(ctx context.Context, win entities.NodeRef, winAttrs entities.NodeAttributes, target entities.NodeRef) (*entities.ElementSnapshot, error) {
	attrs, err := s.tree.Attributes(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to read element attributes: %w", err)
	}
	rect, err := s.tree.BoundingRect(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to read element rectangle: %w", err)
	}
	winRect, err := s.tree.BoundingRect(ctx, win)
	if err != nil {
		return nil, fmt.Errorf("failed to read window rectangle: %w", err)
	}
	idx, count, err := s.siblingPosition(ctx, target, attrs.ControlType)
	if err != nil {
		return nil, err
	}
	ancestors, err := s.ancestorChain(ctx, win, target)
	if err != nil {
		return nil, err
	}
	snap := &entities.ElementSnapshot{
		AutomationID:      attrs.AutomationID,
		Name:              attrs.Name,
		ClassName:         attrs.ClassName,
		ControlType:       attrs.ControlType,
		SiblingIndex:      idx,
		SiblingCount:      count,
		SupportedPatterns: attrs.Patterns,
		Rect:              rect,
		Ancestors:         ancestors,
		WindowTitle:       winAttrs.Name,
		WindowRect:        winRect,
		ProcessName:       winAttrs.ProcessName,
		CapturedAt:        time.Now(),
	}
	s.logger.Debugf("captured %s %q under %q with %d ancestors",
		snap.ControlType, snap.Name, snap.WindowTitle, len(snap.Ancestors))
	return snap, nil
}

// siblingPosition returns the node's index among siblings sharing its
// control type and how many such siblings exist, the node included.
func (s *Snapshotter) siblingPosition(ctx context.Context, node entities.NodeRef, controlType string) (int, int, error) {
	parent, err := s.tree.Parent(ctx, node)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read parent: %w", err)
	}
	if parent.IsZero() {
		return 0, 1, nil
	}
	kids, err := s.tree.Children(ctx, parent)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read siblings: %w", err)
	}
	index, count := 0, 0
	for _, k := range kids {
		attrs, err := s.tree.Attributes(ctx, k)
		if err != nil {
			continue
		}
		if attrs.ControlType != controlType {
			continue
		}
		if k == node {
			index = count
		}
		count++
	}
	if count == 0 {
		count = 1
	}
	return index, count, nil
}

func (s *Snapshotter) ancestorChain(ctx context.Context, win, target entities.NodeRef) ([]entities.AncestorSnapshot, error) {
	var chain []entities.AncestorSnapshot
	cur := target
	for i := 0; i < captureMaxDepth+2; i++ {
		parent, err := s.tree.Parent(ctx, cur)
		if err != nil {
			return nil, fmt.Errorf("failed to walk ancestors: %w", err)
		}
		if parent.IsZero() {
			break
		}
		anc, err := s.describeAncestor(ctx, parent)
		if err != nil {
			return nil, err
		}
		chain = append(chain, anc)
		if parent == win {
			break
		}
		cur = parent
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (s *Snapshotter) describeAncestor(ctx context.Context, node entities.NodeRef) (entities.AncestorSnapshot, error) {
	attrs, err := s.tree.Attributes(ctx, node)
	if err != nil {
		return entities.AncestorSnapshot{}, fmt.Errorf("failed to read ancestor attributes: %w", err)
	}
	rect, err := s.tree.BoundingRect(ctx, node)
	if err != nil {
		return entities.AncestorSnapshot{}, fmt.Errorf("failed to read ancestor rectangle: %w", err)
	}
	idx, _, err := s.siblingPosition(ctx, node, attrs.ControlType)
	if err != nil {
		return entities.AncestorSnapshot{}, err
	}
	return entities.AncestorSnapshot{
		AutomationID: attrs.AutomationID,
		Name:         attrs.Name,
		ClassName:    attrs.ClassName,
		ControlType:  attrs.ControlType,
		SiblingIndex: idx,
		Rect:         rect,
	}, nil
}
