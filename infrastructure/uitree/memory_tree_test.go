package uitree

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ui_relocator/domain/entities"
)

func twoButtonWindow() (*MemoryTree, *Node, *Node, *Node) {
	ok := NewNode(entities.NodeAttributes{
		AutomationID: "btnOK",
		Name:         "OK",
		ControlType:  "button",
		Patterns:     []string{entities.PatternInvoke},
	}, entities.Rect{Left: 10, Top: 50, Right: 90, Bottom: 80})
	cancel := NewNode(entities.NodeAttributes{
		Name:        "Cancel",
		ControlType: "button",
	}, entities.Rect{Left: 100, Top: 50, Right: 180, Bottom: 80})
	win := NewNode(entities.NodeAttributes{
		Name:        "Dialog",
		ControlType: "window",
		ProcessName: "app.exe",
	}, entities.Rect{Left: 0, Top: 0, Right: 200, Bottom: 100},
		ok, cancel)
	return NewMemoryTree(win), win, ok, cancel
}

func TestChildrenKeepDocumentOrder(t *testing.T) {
	tree, win, ok, cancel := twoButtonWindow()
	ctx := context.Background()

	wins, err := tree.Windows(ctx)
	require.NoError(t, err)
	require.Len(t, wins, 1)
	assert.Equal(t, tree.RefOf(win), wins[0])

	kids, err := tree.Children(ctx, wins[0])
	require.NoError(t, err)
	require.Len(t, kids, 2)
	assert.Equal(t, tree.RefOf(ok), kids[0])
	assert.Equal(t, tree.RefOf(cancel), kids[1])

	tree.ReverseChildren(win)
	kids, err = tree.Children(ctx, wins[0])
	require.NoError(t, err)
	assert.Equal(t, tree.RefOf(cancel), kids[0])
	assert.Equal(t, tree.RefOf(ok), kids[1])
}

func TestAttributesAndGeometry(t *testing.T) {
	tree, _, ok, _ := twoButtonWindow()
	ctx := context.Background()

	attrs, err := tree.Attributes(ctx, tree.RefOf(ok))
	require.NoError(t, err)
	assert.Equal(t, "btnOK", attrs.AutomationID)
	assert.Equal(t, "OK", attrs.Name)
	assert.True(t, attrs.HasPattern(entities.PatternInvoke))

	rect, err := tree.BoundingRect(ctx, tree.RefOf(ok))
	require.NoError(t, err)
	assert.Equal(t, entities.Rect{Left: 10, Top: 50, Right: 90, Bottom: 80}, rect)
}

func TestParentWalk(t *testing.T) {
	tree, win, ok, _ := twoButtonWindow()
	ctx := context.Background()

	parent, err := tree.Parent(ctx, tree.RefOf(ok))
	require.NoError(t, err)
	assert.Equal(t, tree.RefOf(win), parent)

	top, err := tree.Parent(ctx, tree.RefOf(win))
	require.NoError(t, err)
	assert.True(t, top.IsZero(), "windows have no parent")
}

func TestHandlesGoStaleAfterRemove(t *testing.T) {
	tree, win, ok, _ := twoButtonWindow()
	ctx := context.Background()
	ref := tree.RefOf(ok)

	tree.Remove(ok)

	_, err := tree.Attributes(ctx, ref)
	require.Error(t, err)
	assert.True(t, entities.IsKind(err, entities.ErrStaleReference))
	assert.Contains(t, err.Error(), "no longer attached")

	kids, err := tree.Children(ctx, tree.RefOf(win))
	require.NoError(t, err)
	assert.Len(t, kids, 1, "the window keeps its remaining child")
}

func TestRemoveDetachesTheWholeSubtree(t *testing.T) {
	leaf := NewNode(entities.NodeAttributes{Name: "Leaf", ControlType: "text"},
		entities.Rect{Left: 20, Top: 20, Right: 40, Bottom: 30})
	pane := NewNode(entities.NodeAttributes{AutomationID: "pnl", ControlType: "pane"},
		entities.Rect{Left: 10, Top: 10, Right: 90, Bottom: 90}, leaf)
	win := NewNode(entities.NodeAttributes{Name: "Main", ControlType: "window"},
		entities.Rect{Left: 0, Top: 0, Right: 100, Bottom: 100}, pane)
	tree := NewMemoryTree(win)
	leafRef := tree.RefOf(leaf)

	tree.Remove(pane)

	_, err := tree.Attributes(context.Background(), leafRef)
	assert.True(t, entities.IsKind(err, entities.ErrStaleReference))
}

func TestNodeAtPointPicksTheDeepestHit(t *testing.T) {
	tree, win, ok, _ := twoButtonWindow()
	ctx := context.Background()

	tests := []struct {
		name  string
		point entities.Point
		want  entities.NodeRef
	}{
		{"inside the button", entities.Point{X: 50, Y: 65}, tree.RefOf(ok)},
		{"window chrome outside any child", entities.Point{X: 50, Y: 10}, tree.RefOf(win)},
		{"right and bottom edges are exclusive", entities.Point{X: 90, Y: 80}, tree.RefOf(win)},
		{"outside every window", entities.Point{X: 500, Y: 500}, entities.NodeRef{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tree.NodeAtPoint(ctx, tt.point)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOffsetSubtreeShiftsEveryDescendant(t *testing.T) {
	tree, win, ok, _ := twoButtonWindow()
	ctx := context.Background()

	tree.OffsetSubtree(win, 100, 50)

	rect, err := tree.BoundingRect(ctx, tree.RefOf(win))
	require.NoError(t, err)
	assert.Equal(t, entities.Rect{Left: 100, Top: 50, Right: 300, Bottom: 150}, rect)

	rect, err = tree.BoundingRect(ctx, tree.RefOf(ok))
	require.NoError(t, err)
	assert.Equal(t, entities.Rect{Left: 110, Top: 100, Right: 190, Bottom: 130}, rect)
}

func TestInvoke(t *testing.T) {
	tree, _, ok, cancel := twoButtonWindow()
	ctx := context.Background()

	t.Run("records the automation id", func(t *testing.T) {
		require.NoError(t, tree.Invoke(ctx, tree.RefOf(ok)))
		assert.Equal(t, []string{"btnOK"}, tree.Invoked())
	})

	t.Run("requires the invoke pattern", func(t *testing.T) {
		err := tree.Invoke(ctx, tree.RefOf(cancel))
		require.Error(t, err)
		assert.True(t, entities.IsKind(err, entities.ErrActionUnsupported))
		assert.Contains(t, err.Error(), "invoke pattern")
	})

	t.Run("scripted failure", func(t *testing.T) {
		boom := errors.New("automation peer hung")
		tree.SetInvokeError(boom)
		assert.ErrorIs(t, tree.Invoke(ctx, tree.RefOf(ok)), boom)
	})
}

func TestInvokeFallsBackToTheName(t *testing.T) {
	named := NewNode(entities.NodeAttributes{
		Name:        "Apply",
		ControlType: "button",
		Patterns:    []string{entities.PatternInvoke},
	}, entities.Rect{Left: 0, Top: 0, Right: 10, Bottom: 10})
	win := NewNode(entities.NodeAttributes{Name: "Main", ControlType: "window"},
		entities.Rect{Left: 0, Top: 0, Right: 100, Bottom: 100}, named)
	tree := NewMemoryTree(win)

	require.NoError(t, tree.Invoke(context.Background(), tree.RefOf(named)))
	assert.Equal(t, []string{"Apply"}, tree.Invoked())
}

func TestReadValue(t *testing.T) {
	edit := NewNode(entities.NodeAttributes{
		AutomationID: "txtCity",
		ControlType:  "edit",
		Patterns:     []string{entities.PatternValue},
	}, entities.Rect{Left: 0, Top: 0, Right: 10, Bottom: 10})
	edit.Value = "Curitiba"
	label := NewNode(entities.NodeAttributes{Name: "City", ControlType: "text"},
		entities.Rect{Left: 0, Top: 20, Right: 10, Bottom: 30})
	win := NewNode(entities.NodeAttributes{Name: "Main", ControlType: "window"},
		entities.Rect{Left: 0, Top: 0, Right: 100, Bottom: 100}, edit, label)
	tree := NewMemoryTree(win)
	ctx := context.Background()

	value, err := tree.ReadValue(ctx, tree.RefOf(edit))
	require.NoError(t, err)
	assert.Equal(t, "Curitiba", value)

	_, err = tree.ReadValue(ctx, tree.RefOf(label))
	require.Error(t, err)
	assert.True(t, entities.IsKind(err, entities.ErrActionUnsupported))
	assert.Contains(t, err.Error(), "value pattern")
}

func TestClickAt(t *testing.T) {
	tree, _, _, _ := twoButtonWindow()
	ctx := context.Background()

	require.NoError(t, tree.ClickAt(ctx, entities.Point{X: 50, Y: 65}))
	require.NoError(t, tree.ClickAt(ctx, entities.Point{X: 140, Y: 65}))
	assert.Equal(t, []entities.Point{{X: 50, Y: 65}, {X: 140, Y: 65}}, tree.Clicks())

	boom := errors.New("input blocked")
	tree.SetClickError(boom)
	assert.ErrorIs(t, tree.ClickAt(ctx, entities.Point{X: 1, Y: 1}), boom)
	assert.Len(t, tree.Clicks(), 2, "failed clicks are not recorded")
}

func TestCanceledContextStopsEveryCall(t *testing.T) {
	tree, _, ok, _ := twoButtonWindow()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ref := tree.RefOf(ok)

	_, err := tree.Windows(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = tree.Children(ctx, ref)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = tree.Attributes(ctx, ref)
	assert.ErrorIs(t, err, context.Canceled)
	_, err = tree.NodeAtPoint(ctx, entities.Point{X: 1, Y: 1})
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, tree.Invoke(ctx, ref), context.Canceled)
	assert.ErrorIs(t, tree.ClickAt(ctx, entities.Point{X: 1, Y: 1}), context.Canceled)
}
