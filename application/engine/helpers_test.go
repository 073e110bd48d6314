package engine

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"ui_relocator/domain/entities"
	"ui_relocator/infrastructure/uitree"
)

// orderFixture is an in-memory order entry form shared by the engine tests:
// one window holding a form panel with a label, two text boxes and two
// buttons.
type orderFixture struct {
	tree   *uitree.MemoryTree
	window *uitree.Node
	panel  *uitree.Node
	label  *uitree.Node
	user   *uitree.Node
	pass   *uitree.Node
	save   *uitree.Node
	cancel *uitree.Node
}

func newOrderFixture() *orderFixture {
	fx := &orderFixture{}
	fx.label = uitree.NewNode(entities.NodeAttributes{
		AutomationID: "lblUser",
		Name:         "Username",
		ClassName:    "Label",
		ControlType:  "text",
	}, entities.Rect{Left: 40, Top: 80, Right: 160, Bottom: 100})
	fx.user = uitree.NewNode(entities.NodeAttributes{
		AutomationID: "txtUser",
		ClassName:    "TextBox",
		ControlType:  "edit",
		Patterns:     []string{entities.PatternValue},
	}, entities.Rect{Left: 180, Top: 80, Right: 400, Bottom: 100})
	fx.user.Value = "alice"
	fx.pass = uitree.NewNode(entities.NodeAttributes{
		ClassName:   "TextBox",
		ControlType: "edit",
		Patterns:    []string{entities.PatternValue},
	}, entities.Rect{Left: 180, Top: 120, Right: 400, Bottom: 140})
	fx.save = uitree.NewNode(entities.NodeAttributes{
		AutomationID: "btnSave",
		Name:         "Save",
		ClassName:    "Button",
		ControlType:  "button",
		Patterns:     []string{entities.PatternInvoke},
	}, entities.Rect{Left: 180, Top: 200, Right: 260, Bottom: 230})
	fx.cancel = uitree.NewNode(entities.NodeAttributes{
		Name:        "Cancel",
		ClassName:   "Button",
		ControlType: "button",
	}, entities.Rect{Left: 280, Top: 200, Right: 360, Bottom: 230})
	fx.panel = uitree.NewNode(entities.NodeAttributes{
		AutomationID: "pnlForm",
		ClassName:    "FormPanel",
		ControlType:  "pane",
	}, entities.Rect{Left: 10, Top: 40, Right: 990, Bottom: 590},
		fx.label, fx.user, fx.pass, fx.save, fx.cancel)
	fx.window = uitree.NewNode(entities.NodeAttributes{
		Name:        "Order Entry",
		ControlType: "window",
		ProcessName: "erp.exe",
	}, entities.Rect{Left: 0, Top: 0, Right: 1000, Bottom: 600},
		fx.panel)
	fx.tree = uitree.NewMemoryTree(fx.window)
	return fx
}

// saveButtonSnapshot mirrors fx.save the way the snapshotter would capture
// it.
func saveButtonSnapshot() *entities.ElementSnapshot {
	return &entities.ElementSnapshot{
		AutomationID:      "btnSave",
		Name:              "Save",
		ClassName:         "Button",
		ControlType:       "button",
		SiblingIndex:      0,
		SiblingCount:      2,
		SupportedPatterns: []string{entities.PatternInvoke},
		Rect:              entities.Rect{Left: 180, Top: 200, Right: 260, Bottom: 230},
		Ancestors: []entities.AncestorSnapshot{
			{
				Name:        "Order Entry",
				ControlType: "window",
				Rect:        entities.Rect{Left: 0, Top: 0, Right: 1000, Bottom: 600},
			},
			{
				AutomationID: "pnlForm",
				ClassName:    "FormPanel",
				ControlType:  "pane",
				Rect:         entities.Rect{Left: 10, Top: 40, Right: 990, Bottom: 590},
			},
		},
		WindowTitle: "Order Entry",
		WindowRect:  entities.Rect{Left: 0, Top: 0, Right: 1000, Bottom: 600},
		ProcessName: "erp.exe",
		CapturedAt:  time.Now(),
	}
}

func byAutomationID(id string) entities.CandidateStrategy {
	return entities.CandidateStrategy{
		Kind:     entities.StrategyAutomationID,
		Window:   entities.WindowNode{Title: "Order Entry"},
		Elements: []entities.ElementNode{{AutomationID: id}},
	}
}

func byNameAndType(name, controlType string) entities.CandidateStrategy {
	return entities.CandidateStrategy{
		Kind:     entities.StrategyNameAndType,
		Window:   entities.WindowNode{Title: "Order Entry"},
		Elements: []entities.ElementNode{{Name: name, ControlType: controlType}},
	}
}

func byClassName(class string) entities.CandidateStrategy {
	return entities.CandidateStrategy{
		Kind:     entities.StrategyClassIndex,
		Window:   entities.WindowNode{Title: "Order Entry"},
		Elements: []entities.ElementNode{{ClassName: class}},
	}
}

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }

// quickPolicy keeps failing resolutions from polling for the production
// bound.
func quickPolicy() entities.RetryPolicy {
	return entities.RetryPolicy{
		Trials:         3,
		SettleDelay:    time.Millisecond,
		AttemptTimeout: 50 * time.Millisecond,
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
