package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ui_relocator/domain/entities"
	"ui_relocator/infrastructure/uitree"
)

func TestResolveByAutomationID(t *testing.T) {
	fx := newOrderFixture()
	m := NewMatcher(fx.tree, quickPolicy(), testLogger())

	res, err := m.Resolve(context.Background(), byAutomationID("btnSave"))
	require.NoError(t, err)
	assert.True(t, res.Unique)
	assert.Equal(t, "btnSave", res.Attrs.AutomationID)
	assert.Equal(t, entities.Rect{Left: 180, Top: 200, Right: 260, Bottom: 230}, res.Rect)
	assert.Equal(t, entities.Point{X: 220, Y: 215}, res.Point)
}

func TestResolveAmbiguousMatchAbortsImmediately(t *testing.T) {
	fx := newOrderFixture()
	// A long attempt bound shows ambiguity is not polled until the deadline.
	policy := entities.RetryPolicy{Trials: 1, SettleDelay: time.Millisecond, AttemptTimeout: 5 * time.Second}
	m := NewMatcher(fx.tree, policy, testLogger())

	start := time.Now()
	_, err := m.Resolve(context.Background(), byClassName("Button"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	var le *entities.LocateError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, entities.ErrAmbiguousMatch, le.Kind)
	assert.Equal(t, 0, le.Hop)
	assert.Equal(t, 2, le.Matches)
}

func TestResolveIndexSelectsAmongAttributeMatches(t *testing.T) {
	fx := newOrderFixture()
	m := NewMatcher(fx.tree, quickPolicy(), testLogger())

	strategy := byClassName("Button")
	strategy.Elements[0].Index = intPtr(1)
	res, err := m.Resolve(context.Background(), strategy)
	require.NoError(t, err)
	assert.Equal(t, "Cancel", res.Attrs.Name)

	strategy.Elements[0].Index = intPtr(5)
	_, err = m.Resolve(context.Background(), strategy)
	require.Error(t, err)
	assert.True(t, entities.IsKind(err, entities.ErrNotFound))
	assert.Contains(t, err.Error(), "index 5 outside 2 attribute matches")
}

func TestResolveWindowDisambiguatedByProcessName(t *testing.T) {
	fx := newOrderFixture()
	twin := uitree.NewNode(entities.NodeAttributes{
		Name:        "Order Entry",
		ControlType: "window",
		ProcessName: "viewer.exe",
	}, entities.Rect{Left: 0, Top: 0, Right: 800, Bottom: 500},
		uitree.NewNode(entities.NodeAttributes{
			AutomationID: "btnSaveCopy",
			Name:         "Save",
			ControlType:  "button",
		}, entities.Rect{Left: 10, Top: 10, Right: 90, Bottom: 40}))
	fx.tree.AddWindow(twin)
	m := NewMatcher(fx.tree, quickPolicy(), testLogger())

	t.Run("same title without process name is ambiguous", func(t *testing.T) {
		_, err := m.Resolve(context.Background(), byNameAndType("Save", "button"))
		require.Error(t, err)
		var le *entities.LocateError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, entities.ErrAmbiguousMatch, le.Kind)
		assert.Equal(t, entities.WindowHop, le.Hop)
	})

	t.Run("process name picks the owning window", func(t *testing.T) {
		strategy := byNameAndType("Save", "button")
		strategy.Window.ProcessName = "erp.exe"
		res, err := m.Resolve(context.Background(), strategy)
		require.NoError(t, err)
		assert.Equal(t, "btnSave", res.Attrs.AutomationID)

		strategy.Window.ProcessName = "viewer.exe"
		res, err = m.Resolve(context.Background(), strategy)
		require.NoError(t, err)
		assert.Equal(t, "btnSaveCopy", res.Attrs.AutomationID)
	})

	t.Run("unknown process name reports not found", func(t *testing.T) {
		strategy := byNameAndType("Save", "button")
		strategy.Window.ProcessName = "missing.exe"
		_, err := m.Resolve(context.Background(), strategy)
		require.Error(t, err)
		assert.True(t, entities.IsKind(err, entities.ErrNotFound))
		assert.Contains(t, err.Error(), `owned by "missing.exe"`)
	})
}

func TestResolveMissingWindow(t *testing.T) {
	fx := newOrderFixture()
	m := NewMatcher(fx.tree, quickPolicy(), testLogger())

	strategy := byAutomationID("btnSave")
	strategy.Window.Title = "No Such Window"
	_, err := m.Resolve(context.Background(), strategy)
	require.Error(t, err)
	assert.True(t, entities.IsKind(err, entities.ErrNotFound))
	assert.Contains(t, err.Error(), `no window titled "No Such Window"`)
}

func TestResolveDepthBound(t *testing.T) {
	fx := newOrderFixture()
	m := NewMatcher(fx.tree, quickPolicy(), testLogger())

	m.SetMaxDepth(1)
	_, err := m.Resolve(context.Background(), byAutomationID("btnSave"))
	require.Error(t, err)
	assert.True(t, entities.IsKind(err, entities.ErrNotFound))

	m.SetMaxDepth(2)
	res, err := m.Resolve(context.Background(), byAutomationID("btnSave"))
	require.NoError(t, err)
	assert.Equal(t, "btnSave", res.Attrs.AutomationID)
}

func TestResolvePollsUntilTheTargetAppears(t *testing.T) {
	fx := newOrderFixture()
	policy := entities.RetryPolicy{Trials: 1, SettleDelay: time.Millisecond, AttemptTimeout: 1500 * time.Millisecond}
	m := NewMatcher(fx.tree, policy, testLogger())

	// The id is restored mid-attempt, the way a form finishes rendering
	// after the first resolution pass already ran.
	fx.tree.SetAutomationID(fx.save, "rendering")
	restore := time.AfterFunc(250*time.Millisecond, func() {
		fx.tree.SetAutomationID(fx.save, "btnSave")
	})
	defer restore.Stop()

	start := time.Now()
	res, err := m.Resolve(context.Background(), byAutomationID("btnSave"))
	require.NoError(t, err)
	assert.Equal(t, "Save", res.Attrs.Name)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestResolveSynthesizesTimeoutWithoutTypedFailure(t *testing.T) {
	fx := newOrderFixture()
	m := NewMatcher(fx.tree, quickPolicy(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Resolve(ctx, byAutomationID("btnSave"))
	require.Error(t, err)
	assert.True(t, entities.IsKind(err, entities.ErrTimeout))
	assert.Contains(t, err.Error(), "no pass completed")
}

func TestResolveVisualAnchorOffset(t *testing.T) {
	fx := newOrderFixture()
	m := NewMatcher(fx.tree, quickPolicy(), testLogger())

	offX, offY := -280, -100
	strategy := entities.CandidateStrategy{
		Kind:   entities.StrategyVisualAnchor,
		Window: entities.WindowNode{Title: "Order Entry"},
		Elements: []entities.ElementNode{
			{AutomationID: "pnlForm", ControlType: "pane"},
			{ControlType: "button", OffsetX: &offX, OffsetY: &offY, Tolerance: 5},
		},
	}

	t.Run("exact offset resolves the target", func(t *testing.T) {
		res, err := m.Resolve(context.Background(), strategy)
		require.NoError(t, err)
		assert.Equal(t, "btnSave", res.Attrs.AutomationID)
	})

	t.Run("drift inside the tolerance still resolves", func(t *testing.T) {
		fx.tree.OffsetSubtree(fx.save, 3, 2)
		res, err := m.Resolve(context.Background(), strategy)
		require.NoError(t, err)
		assert.Equal(t, "btnSave", res.Attrs.AutomationID)
	})

	t.Run("drift beyond the tolerance fails", func(t *testing.T) {
		fx.tree.OffsetSubtree(fx.save, 10, 10)
		_, err := m.Resolve(context.Background(), strategy)
		require.Error(t, err)
		assert.True(t, entities.IsKind(err, entities.ErrNotFound))
		assert.Contains(t, err.Error(), "no node within 5px of the anchor offset")
	})
}

func TestResolveCoordinateTracksWindowRect(t *testing.T) {
	fx := newOrderFixture()
	m := NewMatcher(fx.tree, quickPolicy(), testLogger())

	cx, cy := 22.0, 35.8
	strategy := entities.CandidateStrategy{
		Kind:   entities.StrategyCoordinate,
		Window: entities.WindowNode{Title: "Order Entry"},
		Elements: []entities.ElementNode{
			{CoordinateX: &cx, CoordinateY: &cy, Tolerance: 5},
		},
	}

	t.Run("percentages land on the captured node", func(t *testing.T) {
		res, err := m.Resolve(context.Background(), strategy)
		require.NoError(t, err)
		assert.False(t, res.Unique)
		assert.Equal(t, entities.Point{X: 220, Y: 215}, res.Point)
		assert.Equal(t, "btnSave", res.Attrs.AutomationID)
	})

	t.Run("moving the window moves the point with it", func(t *testing.T) {
		fx.tree.OffsetSubtree(fx.window, 100, 50)
		res, err := m.Resolve(context.Background(), strategy)
		require.NoError(t, err)
		assert.Equal(t, entities.Point{X: 320, Y: 265}, res.Point)
		assert.Equal(t, "btnSave", res.Attrs.AutomationID)
	})

	t.Run("resizing the window lands on whatever sits there now", func(t *testing.T) {
		fx.window.Rect.Right += 500
		res, err := m.Resolve(context.Background(), strategy)
		require.NoError(t, err)
		assert.Equal(t, entities.Point{X: 430, Y: 265}, res.Point)
		assert.Equal(t, "Cancel", res.Attrs.Name)
	})
}

func TestResolveCoordinateDegradesToBarePoint(t *testing.T) {
	fx := newOrderFixture()
	m := NewMatcher(fx.tree, quickPolicy(), testLogger())

	cx, cy := 100.0, 100.0
	strategy := entities.CandidateStrategy{
		Kind:   entities.StrategyCoordinate,
		Window: entities.WindowNode{Title: "Order Entry"},
		Elements: []entities.ElementNode{
			{CoordinateX: &cx, CoordinateY: &cy, Tolerance: 5},
		},
	}
	res, err := m.Resolve(context.Background(), strategy)
	require.NoError(t, err)
	assert.True(t, res.Node.IsZero())
	assert.False(t, res.Unique)
	assert.Equal(t, entities.Point{X: 1000, Y: 600}, res.Point)
}

func TestExecuteActionPrecedence(t *testing.T) {
	t.Run("invoke pattern wins", func(t *testing.T) {
		fx := newOrderFixture()
		m := NewMatcher(fx.tree, quickPolicy(), testLogger())
		res, outcome, err := m.Execute(context.Background(), byAutomationID("btnSave"), entities.ActionClick)
		require.NoError(t, err)
		assert.Equal(t, "btnSave", res.Attrs.AutomationID)
		assert.Equal(t, entities.MethodInvoke, outcome.Method)
		assert.Equal(t, []string{"btnSave"}, fx.tree.Invoked())
		assert.Empty(t, fx.tree.Clicks())
	})

	t.Run("falls back to a synthetic click", func(t *testing.T) {
		fx := newOrderFixture()
		m := NewMatcher(fx.tree, quickPolicy(), testLogger())
		_, outcome, err := m.Execute(context.Background(), byNameAndType("Cancel", "button"), entities.ActionClick)
		require.NoError(t, err)
		assert.Equal(t, entities.MethodSyntheticClick, outcome.Method)
		assert.Equal(t, []entities.Point{{X: 320, Y: 215}}, fx.tree.Clicks())
		assert.Empty(t, fx.tree.Invoked())
	})

	t.Run("every method failing is action unsupported", func(t *testing.T) {
		fx := newOrderFixture()
		fx.tree.SetClickError(errors.New("input blocked"))
		m := NewMatcher(fx.tree, quickPolicy(), testLogger())
		res, outcome, err := m.Execute(context.Background(), byNameAndType("Cancel", "button"), entities.ActionClick)
		require.Error(t, err)
		assert.NotNil(t, res)
		assert.Nil(t, outcome)
		assert.True(t, entities.IsKind(err, entities.ErrActionUnsupported))
		assert.Contains(t, err.Error(), "every action method failed")
	})
}

func TestExecuteRead(t *testing.T) {
	fx := newOrderFixture()
	m := NewMatcher(fx.tree, quickPolicy(), testLogger())

	t.Run("reads the value pattern", func(t *testing.T) {
		_, outcome, err := m.Execute(context.Background(), byAutomationID("txtUser"), entities.ActionRead)
		require.NoError(t, err)
		assert.Equal(t, "alice", outcome.Value)
		assert.Empty(t, outcome.Method)
	})

	t.Run("rejects nodes without the value pattern", func(t *testing.T) {
		_, _, err := m.Execute(context.Background(), byAutomationID("lblUser"), entities.ActionRead)
		require.Error(t, err)
		assert.True(t, entities.IsKind(err, entities.ErrActionUnsupported))
		assert.Contains(t, err.Error(), "value pattern")
	})
}

func TestExecuteResolveDispatchesNothing(t *testing.T) {
	fx := newOrderFixture()
	m := NewMatcher(fx.tree, quickPolicy(), testLogger())

	_, outcome, err := m.Execute(context.Background(), byAutomationID("btnSave"), entities.ActionResolve)
	require.NoError(t, err)
	assert.Empty(t, outcome.Method)
	assert.Equal(t, entities.Point{X: 220, Y: 215}, outcome.Point)
	assert.Empty(t, fx.tree.Invoked())
	assert.Empty(t, fx.tree.Clicks())
}
