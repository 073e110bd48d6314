package uitree

import (
	"context"
	"fmt"
	"sync"

	"ui_relocator/domain/entities"
	"ui_relocator/domain/interfaces"
)

// Node is one scriptable node of an in-memory tree. Trees are built from
// literals in tests and YAML fixtures; MemoryTree assigns handles when the
// node is registered.
type Node struct {
	Attrs    entities.NodeAttributes
	Rect     entities.Rect
	Value    string
	Children []*Node

	id     string
	parent *Node
}

// NewNode builds a node with the given attributes, rectangle and children.
func NewNode(attrs entities.NodeAttributes, rect entities.Rect, children ...*Node) *Node {
	return &Node{Attrs: attrs, Rect: rect, Children: children}
}

// MemoryTree is a scriptable UITree used by tests and the offline backend.
// Mutation helpers change the tree between resolutions the way a live
// application would, which is what stale-handle and index-drift scenarios
// are made of.
type MemoryTree struct {
	mu      sync.Mutex
	windows []*Node
	nodes   map[string]*Node
	nextID  int

	clicks    []entities.Point
	invoked   []string
	clickErr  error
	invokeErr error
}

var _ interfaces.UITree = (*MemoryTree)(nil)

// NewMemoryTree registers the given windows and their subtrees.
func NewMemoryTree(windows ...*Node) *MemoryTree {
	t := &MemoryTree{nodes: make(map[string]*Node)}
	for _, w := range windows {
		t.AddWindow(w)
	}
	return t
}

// AddWindow registers a top-level window and its subtree.
func (t *MemoryTree) AddWindow(w *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windows = append(t.windows, w)
	t.register(w, nil)
}

func (t *MemoryTree) register(n *Node, parent *Node) {
	n.parent = parent
	if n.id == "" {
		t.nextID++
		n.id = fmt.Sprintf("n%d", t.nextID)
	}
	t.nodes[n.id] = n
	for _, c := range n.Children {
		t.register(c, n)
	}
}

func (t *MemoryTree) unregister(n *Node) {
	delete(t.nodes, n.id)
	for _, c := range n.Children {
		t.unregister(c)
	}
}

// RefOf returns the live handle for a registered node.
func (t *MemoryTree) RefOf(n *Node) entities.NodeRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	return entities.NodeRef{ID: n.id}
}

// SetAutomationID rewrites the node's automation id, simulating a framework
// that regenerates ids per execution.
func (t *MemoryTree) SetAutomationID(n *Node, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n.Attrs.AutomationID = id
}

// SetName rewrites the node's name.
func (t *MemoryTree) SetName(n *Node, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n.Attrs.Name = name
}

// ReverseChildren reverses the child order of n, shifting sibling indexes.
func (t *MemoryTree) ReverseChildren(n *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, j := 0, len(n.Children)-1; i < j; i, j = i+1, j-1 {
		n.Children[i], n.Children[j] = n.Children[j], n.Children[i]
	}
}

// Remove detaches n from its parent. Handles into the removed subtree go
// stale.
func (t *MemoryTree) Remove(n *Node) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n.parent != nil {
		kids := n.parent.Children
		for i, c := range kids {
			if c == n {
				n.parent.Children = append(kids[:i:i], kids[i+1:]...)
				break
			}
		}
	} else {
		for i, w := range t.windows {
			if w == n {
				t.windows = append(t.windows[:i:i], t.windows[i+1:]...)
				break
			}
		}
	}
	t.unregister(n)
}

// OffsetSubtree shifts the rectangles of n and every descendant, simulating
// a layout change.
func (t *MemoryTree) OffsetSubtree(n *Node, dx, dy int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var shift func(*Node)
	shift = func(m *Node) {
		m.Rect.Left += dx
		m.Rect.Right += dx
		m.Rect.Top += dy
		m.Rect.Bottom += dy
		for _, c := range m.Children {
			shift(c)
		}
	}
	shift(n)
}

// SetClickError makes every subsequent ClickAt fail with err.
func (t *MemoryTree) SetClickError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clickErr = err
}

// SetInvokeError makes every subsequent Invoke fail with err.
func (t *MemoryTree) SetInvokeError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.invokeErr = err
}

// Clicks returns every point clicked so far.
func (t *MemoryTree) Clicks() []entities.Point {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]entities.Point, len(t.clicks))
	copy(out, t.clicks)
	return out
}

// Invoked returns the automation ids or names of every node invoked so far.
func (t *MemoryTree) Invoked() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, len(t.invoked))
	copy(out, t.invoked)
	return out
}

func (t *MemoryTree) lookup(ref entities.NodeRef) (*Node, error) {
	n, ok := t.nodes[ref.ID]
	if !ok {
		return nil, entities.NewStale(entities.WindowHop, fmt.Sprintf("handle %q is no longer attached", ref.ID))
	}
	return n, nil
}

// Windows returns the registered top-level windows in order.
func (t *MemoryTree) Windows(ctx context.Context) ([]entities.NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	refs := make([]entities.NodeRef, 0, len(t.windows))
	for _, w := range t.windows {
		refs = append(refs, entities.NodeRef{ID: w.id})
	}
	return refs, nil
}

// Children returns the direct children of node in document order.
func (t *MemoryTree) Children(ctx context.Context, node entities.NodeRef) ([]entities.NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookup(node)
	if err != nil {
		return nil, err
	}
	refs := make([]entities.NodeRef, 0, len(n.Children))
	for _, c := range n.Children {
		refs = append(refs, entities.NodeRef{ID: c.id})
	}
	return refs, nil
}

// Parent returns the parent handle, or a zero ref for a top-level window.
func (t *MemoryTree) Parent(ctx context.Context, node entities.NodeRef) (entities.NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return entities.NodeRef{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookup(node)
	if err != nil {
		return entities.NodeRef{}, err
	}
	if n.parent == nil {
		return entities.NodeRef{}, nil
	}
	return entities.NodeRef{ID: n.parent.id}, nil
}

// Attributes returns the node's attribute set.
func (t *MemoryTree) Attributes(ctx context.Context, node entities.NodeRef) (entities.NodeAttributes, error) {
	if err := ctx.Err(); err != nil {
		return entities.NodeAttributes{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookup(node)
	if err != nil {
		return entities.NodeAttributes{}, err
	}
	return n.Attrs, nil
}

// BoundingRect returns the node's rectangle.
func (t *MemoryTree) BoundingRect(ctx context.Context, node entities.NodeRef) (entities.Rect, error) {
	if err := ctx.Err(); err != nil {
		return entities.Rect{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookup(node)
	if err != nil {
		return entities.Rect{}, err
	}
	return n.Rect, nil
}

// NodeAtPoint returns the deepest registered node whose rectangle contains
// p, or a zero ref when none does.
func (t *MemoryTree) NodeAtPoint(ctx context.Context, p entities.Point) (entities.NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return entities.NodeRef{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var best *Node
	bestDepth := -1
	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		if n.Rect.Contains(p) && depth > bestDepth {
			best = n
			bestDepth = depth
		}
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	for _, w := range t.windows {
		walk(w, 0)
	}
	if best == nil {
		return entities.NodeRef{}, nil
	}
	return entities.NodeRef{ID: best.id}, nil
}

// Invoke triggers the node's invoke pattern and records the invocation.
func (t *MemoryTree) Invoke(ctx context.Context, node entities.NodeRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookup(node)
	if err != nil {
		return err
	}
	if t.invokeErr != nil {
		return t.invokeErr
	}
	if !n.Attrs.HasPattern(entities.PatternInvoke) {
		return entities.NewActionUnsupported("node does not advertise the invoke pattern")
	}
	label := n.Attrs.AutomationID
	if label == "" {
		label = n.Attrs.Name
	}
	t.invoked = append(t.invoked, label)
	return nil
}

// ReadValue reads the node's value pattern.
func (t *MemoryTree) ReadValue(ctx context.Context, node entities.NodeRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := t.lookup(node)
	if err != nil {
		return "", err
	}
	if !n.Attrs.HasPattern(entities.PatternValue) {
		return "", entities.NewActionUnsupported("node does not advertise the value pattern")
	}
	return n.Value, nil
}

// ClickAt records a synthetic click at p.
func (t *MemoryTree) ClickAt(ctx context.Context, p entities.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.clickErr != nil {
		return t.clickErr
	}
	t.clicks = append(t.clicks, p)
	return nil
}

// Close is a no-op for the in-memory backend.
func (t *MemoryTree) Close() error {
	return nil
}
