package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"ui_relocator/application/capture"
	"ui_relocator/application/engine"
	"ui_relocator/domain/entities"
	"ui_relocator/domain/interfaces"
	"ui_relocator/infrastructure/guard"
	"ui_relocator/infrastructure/storage"
	"ui_relocator/infrastructure/uitree"
)

// TerminalInterface is the interactive shell over the relocation pipeline:
// capture elements, inspect what is stored, replay cascades against the
// live tree.
type TerminalInterface struct {
	cfg         Config
	tree        interfaces.UITree
	engine      *engine.Engine
	store       interfaces.ElementStore
	guard       interfaces.ActionGuard
	snapshotter *capture.Snapshotter
	workflow    *capture.Workflow
	logger      *logrus.Logger
	reader      *bufio.Reader
}

func NewTerminalInterface() (*TerminalInterface, error) {
	cfg := loadConfig()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	tree, err := buildTree(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s backend: %w", cfg.Backend, err)
	}

	store, err := storage.NewJSONStore(cfg.HomeDir, logger)
	if err != nil {
		tree.Close()
		return nil, fmt.Errorf("failed to initialize element store: %w", err)
	}

	eng := engine.NewEngine(tree, cfg.Policy, logger)
	session := capture.NewSession(cfg.DebounceWindow)

	return &TerminalInterface{
		cfg:         cfg,
		tree:        tree,
		engine:      eng,
		store:       store,
		guard:       guard.NewActionGuard(logger),
		snapshotter: capture.NewSnapshotter(tree, logger),
		workflow:    capture.NewWorkflow(eng, store, session, logger),
		logger:      logger,
		reader:      bufio.NewReader(os.Stdin),
	}, nil
}

// buildTree picks the UI tree backend. The memory backend reads a YAML
// fixture when one is configured and falls back to a built-in demo window.
func buildTree(cfg Config, logger *logrus.Logger) (interfaces.UITree, error) {
	switch cfg.Backend {
	case "playwright":
		return uitree.NewPlaywrightTree(cfg.StartURL, cfg.Headless, logger)
	case "rod":
		return uitree.NewRodTree(cfg.StartURL, cfg.Headless, logger)
	case "memory", "":
		if cfg.FixturePath != "" {
			return uitree.LoadFixture(cfg.FixturePath)
		}
		return demoTree(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func demoTree() *uitree.MemoryTree {
	win := uitree.NewNode(
		entities.NodeAttributes{Name: "Demo Login", ControlType: "window", ProcessName: "demo"},
		entities.Rect{Left: 0, Top: 0, Right: 800, Bottom: 600},
		uitree.NewNode(
			entities.NodeAttributes{AutomationID: "pnlForm", ClassName: "FormPanel", ControlType: "pane"},
			entities.Rect{Left: 100, Top: 100, Right: 700, Bottom: 500},
			uitree.NewNode(
				entities.NodeAttributes{
					AutomationID: "txtUser",
					Name:         "Username",
					ClassName:    "TextBox",
					ControlType:  "edit",
					Patterns:     []string{entities.PatternValue},
				},
				entities.Rect{Left: 120, Top: 140, Right: 680, Bottom: 180},
			),
			uitree.NewNode(
				entities.NodeAttributes{
					AutomationID: "btnLogin",
					Name:         "Sign in",
					ClassName:    "Button",
					ControlType:  "button",
					Patterns:     []string{entities.PatternInvoke},
				},
				entities.Rect{Left: 120, Top: 200, Right: 300, Bottom: 240},
			),
		),
	)
	return uitree.NewMemoryTree(win)
}

func (t *TerminalInterface) Run() error {
	defer t.tree.Close()

	fmt.Println("UI Relocator")
	fmt.Println("============")
	fmt.Printf("Backend: %s, store: %s\n", t.cfg.Backend, t.storeDir())
	t.printMenu()

	for {
		fmt.Print("> ")
		input, err := t.reader.ReadString('\n')
		if err != nil {
			return err
		}

		input = strings.ToLower(strings.TrimSpace(input))
		if input == "" {
			continue
		}

		switch input {
		case "1", "capture":
			t.runCapture()
		case "2", "list":
			t.runList()
		case "3", "replay":
			t.runReplay()
		case "4", "stability", "analyze":
			t.runStability()
		case "5", "delete":
			t.runDelete()
		case "6", "h", "help":
			t.printMenu()
		case "7", "q", "quit", "exit":
			fmt.Println("Bye!")
			return nil
		default:
			printWarning("unknown command %q, type 'help' for the menu", input)
		}
	}
}

func (t *TerminalInterface) Close() error {
	return t.tree.Close()
}

func (t *TerminalInterface) storeDir() string {
	if s, ok := t.store.(*storage.JSONStore); ok {
		return s.Dir()
	}
	return t.cfg.HomeDir
}

func (t *TerminalInterface) printMenu() {
	fmt.Println()
	fmt.Println("  1. capture    capture an element and build its selector cascade")
	fmt.Println("  2. list       list captured elements")
	fmt.Println("  3. replay     re-find a captured element and act on it")
	fmt.Println("  4. stability  show the stability report for a live element")
	fmt.Println("  5. delete     delete a captured element")
	fmt.Println("  6. help       show this menu")
	fmt.Println("  7. quit       exit")
	fmt.Println()
}

func (t *TerminalInterface) prompt(label string) string {
	fmt.Print(label)
	input, err := t.reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(input)
}

func (t *TerminalInterface) confirm(label string) bool {
	answer := strings.ToLower(t.prompt(label + " [y/N]: "))
	return answer == "y" || answer == "yes"
}

func (t *TerminalInterface) runCapture() {
	printHeader("Capture")
	label := t.prompt("Element label: ")
	window := t.prompt("Window title: ")
	automationID := t.prompt("Automation id (optional): ")
	nameAttr := t.prompt("Name attribute (optional): ")

	ctx := context.Background()
	snap, err := t.snapshotter.Snapshot(ctx, window, automationID, nameAttr)
	if err != nil {
		printError("failed to capture snapshot: %v", err)
		return
	}
	printInfo("captured %s in window %q", describeSnapshot(snap), snap.WindowTitle)

	record, err := t.workflow.Capture(ctx, label, snap)
	if err != nil {
		if errors.Is(err, capture.ErrDebounced) {
			printWarning("capture trigger ignored, another capture just ran")
			return
		}
		printError("failed to capture element: %v", err)
		return
	}

	printSuccess("stored element %s (%s)", record.ID, record.Name)
	t.printCascade(record.Cascade)
	if record.LegacySelector != "" {
		fmt.Println("Legacy selector:")
		fmt.Printf("  %s\n", record.LegacySelector)
	}
}

func (t *TerminalInterface) runList() {
	summaries, err := t.store.List()
	if err != nil {
		printError("failed to list elements: %v", err)
		return
	}
	if len(summaries) == 0 {
		printInfo("no captured elements yet")
		return
	}

	printHeader("Captured elements")
	for i, s := range summaries {
		fmt.Printf("  %2d. %-8s %-20s %-24s %d entries, best %s, %s\n",
			i+1, shorten(s.ID, 8), shorten(s.Name, 20), shorten(s.WindowTitle, 24),
			s.Entries, colorize(tierColor(s.BestTier), string(s.BestTier)),
			s.CapturedAt.Format("2006-01-02 15:04"))
	}

	choice := t.prompt("Show details for which number (enter to skip): ")
	if choice == "" {
		return
	}
	summary, ok := pickSummary(summaries, choice)
	if !ok {
		printWarning("no element %q", choice)
		return
	}
	record, err := t.store.Load(summary.ID)
	if err != nil {
		printError("failed to load element: %v", err)
		return
	}
	t.printRecord(record)
}

func (t *TerminalInterface) runReplay() {
	summaries, err := t.store.List()
	if err != nil {
		printError("failed to list elements: %v", err)
		return
	}
	if len(summaries) == 0 {
		printInfo("nothing to replay, capture an element first")
		return
	}

	printHeader("Replay")
	for i, s := range summaries {
		fmt.Printf("  %2d. %-8s %-20s %s\n", i+1, shorten(s.ID, 8), shorten(s.Name, 20), s.WindowTitle)
	}
	choice := t.prompt("Which element: ")
	summary, ok := pickSummary(summaries, choice)
	if !ok {
		printWarning("no element %q", choice)
		return
	}
	record, err := t.store.Load(summary.ID)
	if err != nil {
		printError("failed to load element: %v", err)
		return
	}

	action, err := parseAction(t.prompt("Action [resolve/invoke/click/read] (default resolve): "))
	if err != nil {
		printError("%v", err)
		return
	}

	ctx := context.Background()
	target := replayTarget(record)
	risk := t.guard.RiskLevel(ctx, action, target)
	if t.guard.RequiresApproval(ctx, action, target) {
		printWarning("action %s on %q carries %s risk", action, record.Name, risk)
		if !t.confirm("Proceed anyway?") {
			printInfo("replay canceled")
			return
		}
	}

	report, err := t.engine.Replay(ctx, record.Cascade, action)
	t.printDiagnostics(report)
	if err != nil {
		printError("replay failed: %v", err)
		return
	}
	if outcome := report.Outcome; outcome != nil {
		if outcome.Method != "" {
			printSuccess("entry %d carried %s via %s in %s",
				report.WinningIndex+1, outcome.Action, outcome.Method, outcome.Latency)
		} else {
			printSuccess("entry %d carried %s in %s",
				report.WinningIndex+1, outcome.Action, outcome.Latency)
		}
		if outcome.Value != "" {
			fmt.Printf("Value: %s\n", outcome.Value)
		}
		if outcome.Point != (entities.Point{}) {
			fmt.Printf("Point: %d,%d\n", outcome.Point.X, outcome.Point.Y)
		}
	}
}

func (t *TerminalInterface) runStability() {
	printHeader("Stability report")
	window := t.prompt("Window title: ")
	automationID := t.prompt("Automation id (optional): ")
	nameAttr := t.prompt("Name attribute (optional): ")

	ctx := context.Background()
	snap, err := t.snapshotter.Snapshot(ctx, window, automationID, nameAttr)
	if err != nil {
		printError("failed to capture snapshot: %v", err)
		return
	}
	report, err := t.engine.Analyze(ctx, snap)
	if err != nil {
		printError("failed to analyze snapshot: %v", err)
		return
	}

	fmt.Printf("%-14s %-10s %-11s %s\n", "ATTRIBUTE", "STABILITY", "CONFIDENCE", "REASONS")
	for _, v := range report.Verdicts() {
		fmt.Printf("%-14s %-19s %-11s %s\n",
			v.Attribute,
			colorize(stabilityColor(v.Stability), string(v.Stability)),
			fmt.Sprintf("%.0f%%", v.Confidence*100),
			strings.Join(v.Reasons, "; "))
	}
}

func (t *TerminalInterface) runDelete() {
	summaries, err := t.store.List()
	if err != nil {
		printError("failed to list elements: %v", err)
		return
	}
	if len(summaries) == 0 {
		printInfo("no captured elements yet")
		return
	}

	printHeader("Delete")
	for i, s := range summaries {
		fmt.Printf("  %2d. %-8s %-20s %s\n", i+1, shorten(s.ID, 8), shorten(s.Name, 20), s.WindowTitle)
	}
	choice := t.prompt("Which element: ")
	summary, ok := pickSummary(summaries, choice)
	if !ok {
		printWarning("no element %q", choice)
		return
	}
	if !t.confirm(fmt.Sprintf("Delete %q (%s)?", summary.Name, shorten(summary.ID, 8))) {
		printInfo("delete canceled")
		return
	}
	if err := t.store.Delete(summary.ID); err != nil {
		printError("failed to delete element: %v", err)
		return
	}
	printSuccess("deleted %s", summary.ID)
}

func (t *TerminalInterface) printCascade(cascade entities.Cascade) {
	if cascade.Len() == 0 {
		printWarning("cascade is empty, no strategy survived validation")
		return
	}
	fmt.Println("Cascade:")
	for i, entry := range cascade.Entries {
		fmt.Printf("  %d. %-17s %5.1f %s\n", i+1, entry.Strategy.Kind,
			entry.Score.Value, colorize(tierColor(entry.Score.Tier), string(entry.Score.Tier)))
		fmt.Printf("     %s\n", entry.Strategy.Serialize())
	}
}

func (t *TerminalInterface) printRecord(record *entities.CapturedElement) {
	printHeader(record.Name)
	fmt.Printf("ID:       %s\n", record.ID)
	fmt.Printf("Window:   %s (%s)\n", record.WindowTitle, record.ProcessName)
	fmt.Printf("Captured: %s\n", record.CapturedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:  %s\n", record.UpdatedAt.Format("2006-01-02 15:04:05"))
	fp := record.Fingerprint
	fmt.Printf("Fingerprint: name=%q class=%q type=%q sibling=%d\n",
		fp.Name, fp.ClassName, fp.ControlType, fp.SiblingIndex)
	t.printCascade(record.Cascade)
	if record.LegacySelector != "" {
		fmt.Println("Legacy selector:")
		fmt.Printf("  %s\n", record.LegacySelector)
	}
}

func (t *TerminalInterface) printDiagnostics(report entities.ReplayReport) {
	if len(report.Diagnostics) == 0 {
		return
	}
	fmt.Println("Attempts:")
	for i, d := range report.Diagnostics {
		status := colorize(colorGreen, "ok")
		if !d.Succeeded {
			status = colorize(colorRed, string(d.FailureKind))
		}
		fmt.Printf("  %d. %-17s %5.1f %-22s %s\n", i+1, d.Kind, d.Score, status, d.Latency)
		if d.Detail != "" {
			fmt.Printf("     %s\n", d.Detail)
		}
	}
}

// replayTarget rebuilds the attribute set the guard inspects from what the
// record retained.
func replayTarget(record *entities.CapturedElement) entities.NodeAttributes {
	attrs := entities.NodeAttributes{
		Name:        record.Fingerprint.Name,
		ClassName:   record.Fingerprint.ClassName,
		ControlType: record.Fingerprint.ControlType,
	}
	if record.LegacySelector != "" {
		if sel, err := entities.ParseSelector(record.LegacySelector); err == nil && len(sel.Elements) > 0 {
			attrs.AutomationID = sel.Elements[len(sel.Elements)-1].AutomationID
		}
	}
	return attrs
}

func parseAction(input string) (entities.ReplayAction, error) {
	if input == "" {
		return entities.ActionResolve, nil
	}
	action := entities.ReplayAction(strings.ToLower(input))
	if !action.Valid() {
		return "", fmt.Errorf("unknown action %q", input)
	}
	return action, nil
}

func pickSummary(summaries []entities.CapturedElementSummary, choice string) (entities.CapturedElementSummary, bool) {
	if n, err := strconv.Atoi(choice); err == nil {
		if n < 1 || n > len(summaries) {
			return entities.CapturedElementSummary{}, false
		}
		return summaries[n-1], true
	}
	for _, s := range summaries {
		if s.ID == choice || strings.HasPrefix(s.ID, choice) {
			return s, true
		}
	}
	return entities.CapturedElementSummary{}, false
}

func describeSnapshot(snap *entities.ElementSnapshot) string {
	switch {
	case snap.AutomationID != "":
		return fmt.Sprintf("%s %q", snap.ControlType, snap.AutomationID)
	case snap.Name != "":
		return fmt.Sprintf("%s %q", snap.ControlType, snap.Name)
	default:
		return snap.ControlType
	}
}

func tierColor(tier entities.Tier) string {
	switch tier {
	case entities.TierExcellent, entities.TierGood:
		return colorGreen
	case entities.TierModerate:
		return colorYellow
	default:
		return colorRed
	}
}

func stabilityColor(s entities.Stability) string {
	switch s {
	case entities.StabilityStable:
		return colorGreen
	case entities.StabilityVolatile:
		return colorRed
	default:
		return colorYellow
	}
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
