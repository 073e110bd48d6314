package interfaces

import (
	"context"

	"ui_relocator/domain/entities"
)

// UITree is the live-tree accessor supplied by a platform automation
// adapter. Node handles are transient: they go stale once the underlying
// tree mutates, so callers re-resolve instead of caching them.
type UITree interface {
	// Windows returns the top-level windows currently visible.
	Windows(ctx context.Context) ([]entities.NodeRef, error)

	// Children returns the direct children of node in document order.
	Children(ctx context.Context, node entities.NodeRef) ([]entities.NodeRef, error)

	// Parent returns the parent of node, or a zero ref for a top-level
	// window.
	Parent(ctx context.Context, node entities.NodeRef) (entities.NodeRef, error)

	// Attributes returns the platform attribute set of node.
	Attributes(ctx context.Context, node entities.NodeRef) (entities.NodeAttributes, error)

	// BoundingRect returns the node's bounding rectangle in screen
	// coordinates.
	BoundingRect(ctx context.Context, node entities.NodeRef) (entities.Rect, error)

	// NodeAtPoint returns the deepest node covering the given point, or a
	// zero ref when nothing does.
	NodeAtPoint(ctx context.Context, p entities.Point) (entities.NodeRef, error)

	// Invoke triggers the node's default action pattern.
	Invoke(ctx context.Context, node entities.NodeRef) error

	// ReadValue reads the node's value pattern.
	ReadValue(ctx context.Context, node entities.NodeRef) (string, error)

	// ClickAt dispatches a synthetic click at the given point.
	ClickAt(ctx context.Context, p entities.Point) error

	// Close releases the underlying automation session.
	Close() error
}
