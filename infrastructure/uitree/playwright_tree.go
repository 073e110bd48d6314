package uitree

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"

	"ui_relocator/domain/entities"
	"ui_relocator/domain/interfaces"
)

// elementProbeJS reads the attribute set the relocation model works with:
// DOM ids become automation ids, accessible names become names, roles and
// tag names become control types.
const elementProbeJS = `el => {
	const text = (el.innerText || el.textContent || "").trim();
	const role = el.getAttribute("role");
	return {
		automationId: el.id || "",
		name: el.getAttribute("aria-label") || el.getAttribute("name") || text.slice(0, 80),
		className: typeof el.className === "string" ? el.className : "",
		controlType: role ? role : el.tagName.toLowerCase(),
		clickable: el.tagName === "BUTTON" || el.tagName === "A" || role === "button" || el.onclick != null,
		editable: "value" in el
	};
}`

// PlaywrightTree adapts one Chromium page to the UITree contract. The page
// body is the single top-level window; coordinates are viewport coordinates.
type PlaywrightTree struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	logger  *logrus.Logger

	mu        sync.Mutex
	handles   map[string]playwright.ElementHandle
	windowRef entities.NodeRef
	nextID    int
}

var _ interfaces.UITree = (*PlaywrightTree)(nil)

// NewPlaywrightTree launches Chromium and opens startURL when one is given.
func NewPlaywrightTree(startURL string, headless bool, logger *logrus.Logger) (*PlaywrightTree, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--no-first-run",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	page, err := browser.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	t := &PlaywrightTree{
		pw:      pw,
		browser: browser,
		page:    page,
		logger:  logger,
		handles: make(map[string]playwright.ElementHandle),
	}
	if startURL != "" {
		if _, err := page.Goto(startURL, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		}); err != nil {
			t.Close()
			return nil, fmt.Errorf("failed to open %s: %w", startURL, err)
		}
	}
	logger.Infof("playwright backend ready (headless=%v)", headless)
	return t, nil
}

func (t *PlaywrightTree) register(h playwright.ElementHandle) entities.NodeRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := fmt.Sprintf("pw-%d", t.nextID)
	t.handles[id] = h
	return entities.NodeRef{ID: id}
}

func (t *PlaywrightTree) handle(ref entities.NodeRef) (playwright.ElementHandle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.handles[ref.ID]
	if !ok {
		return nil, entities.NewStale(entities.WindowHop, fmt.Sprintf("handle %q expired", ref.ID))
	}
	return h, nil
}

// Windows re-probes the page body and hands out a fresh window handle. The
// handle table resets here: every resolution pass starts from Windows, so
// handles from earlier passes are stale by contract.
func (t *PlaywrightTree) Windows(ctx context.Context) ([]entities.NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := t.page.QuerySelector("body")
	if err != nil || body == nil {
		return nil, fmt.Errorf("failed to find page body: %w", err)
	}
	t.mu.Lock()
	t.handles = make(map[string]playwright.ElementHandle)
	t.nextID = 0
	t.mu.Unlock()
	ref := t.register(body)
	t.mu.Lock()
	t.windowRef = ref
	t.mu.Unlock()
	return []entities.NodeRef{ref}, nil
}

// Children returns the element's direct children in document order.
func (t *PlaywrightTree) Children(ctx context.Context, node entities.NodeRef) ([]entities.NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, err := t.handle(node)
	if err != nil {
		return nil, err
	}
	kids, err := h.QuerySelectorAll(":scope > *")
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	refs := make([]entities.NodeRef, 0, len(kids))
	for _, k := range kids {
		refs = append(refs, t.register(k))
	}
	return refs, nil
}

// Parent returns the element's parent, or a zero ref for the window body.
func (t *PlaywrightTree) Parent(ctx context.Context, node entities.NodeRef) (entities.NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return entities.NodeRef{}, err
	}
	t.mu.Lock()
	isWindow := node == t.windowRef
	windowRef := t.windowRef
	t.mu.Unlock()
	if isWindow {
		return entities.NodeRef{}, nil
	}
	h, err := t.handle(node)
	if err != nil {
		return entities.NodeRef{}, err
	}
	parent, err := h.EvaluateHandle("el => el.parentElement")
	if err != nil {
		return entities.NodeRef{}, fmt.Errorf("failed to read parent: %w", err)
	}
	el := parent.AsElement()
	if el == nil {
		return entities.NodeRef{}, nil
	}
	tag, err := el.Evaluate("el => el.tagName")
	if err == nil {
		if name, ok := tag.(string); ok && name == "BODY" {
			return windowRef, nil
		}
	}
	return t.register(el), nil
}

// Attributes probes the element's attribute set.
func (t *PlaywrightTree) Attributes(ctx context.Context, node entities.NodeRef) (entities.NodeAttributes, error) {
	if err := ctx.Err(); err != nil {
		return entities.NodeAttributes{}, err
	}
	h, err := t.handle(node)
	if err != nil {
		return entities.NodeAttributes{}, err
	}
	t.mu.Lock()
	isWindow := node == t.windowRef
	t.mu.Unlock()
	if isWindow {
		title, err := t.page.Title()
		if err != nil {
			return entities.NodeAttributes{}, entities.NewAttributeUnavailable(entities.WindowHop,
				fmt.Sprintf("page title is unavailable: %v", err))
		}
		return entities.NodeAttributes{
			Name:        title,
			ControlType: "window",
			ProcessName: "chromium",
		}, nil
	}
	raw, err := h.Evaluate(elementProbeJS)
	if err != nil {
		return entities.NodeAttributes{}, entities.NewAttributeUnavailable(entities.WindowHop,
			fmt.Sprintf("element probe failed: %v", err))
	}
	probe, ok := raw.(map[string]interface{})
	if !ok {
		return entities.NodeAttributes{}, fmt.Errorf("unexpected probe result %T", raw)
	}
	attrs := entities.NodeAttributes{
		AutomationID: getString(probe, "automationId"),
		Name:         getString(probe, "name"),
		ClassName:    getString(probe, "className"),
		ControlType:  getString(probe, "controlType"),
	}
	if getBool(probe, "clickable") {
		attrs.Patterns = append(attrs.Patterns, entities.PatternInvoke)
	}
	if getBool(probe, "editable") {
		attrs.Patterns = append(attrs.Patterns, entities.PatternValue)
	}
	return attrs, nil
}

// BoundingRect returns the element's viewport rectangle.
func (t *PlaywrightTree) BoundingRect(ctx context.Context, node entities.NodeRef) (entities.Rect, error) {
	if err := ctx.Err(); err != nil {
		return entities.Rect{}, err
	}
	h, err := t.handle(node)
	if err != nil {
		return entities.Rect{}, err
	}
	box, err := h.BoundingBox()
	if err != nil {
		return entities.Rect{}, fmt.Errorf("failed to read bounding box: %w", err)
	}
	if box == nil {
		return entities.Rect{}, entities.NewStale(entities.WindowHop, "element is not rendered")
	}
	return entities.Rect{
		Left:   int(math.Round(box.X)),
		Top:    int(math.Round(box.Y)),
		Right:  int(math.Round(box.X + box.Width)),
		Bottom: int(math.Round(box.Y + box.Height)),
	}, nil
}

// NodeAtPoint asks the DOM what sits at the given viewport point.
func (t *PlaywrightTree) NodeAtPoint(ctx context.Context, p entities.Point) (entities.NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return entities.NodeRef{}, err
	}
	handle, err := t.page.EvaluateHandle(
		"arg => document.elementFromPoint(arg.x, arg.y)",
		map[string]interface{}{"x": p.X, "y": p.Y},
	)
	if err != nil {
		return entities.NodeRef{}, fmt.Errorf("failed to probe point: %w", err)
	}
	el := handle.AsElement()
	if el == nil {
		return entities.NodeRef{}, nil
	}
	return t.register(el), nil
}

// Invoke clicks the element through its default activation.
func (t *PlaywrightTree) Invoke(ctx context.Context, node entities.NodeRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h, err := t.handle(node)
	if err != nil {
		return err
	}
	if err := h.Click(); err != nil {
		return fmt.Errorf("failed to invoke element: %w", err)
	}
	return nil
}

// ReadValue reads the element's input value, falling back to its text.
func (t *PlaywrightTree) ReadValue(ctx context.Context, node entities.NodeRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h, err := t.handle(node)
	if err != nil {
		return "", err
	}
	if value, err := h.InputValue(); err == nil {
		return value, nil
	}
	text, err := h.TextContent()
	if err != nil {
		return "", entities.NewAttributeUnavailable(entities.WindowHop,
			fmt.Sprintf("element exposes no readable value: %v", err))
	}
	return text, nil
}

// ClickAt dispatches a raw mouse click at the given viewport point.
func (t *PlaywrightTree) ClickAt(ctx context.Context, p entities.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.page.Mouse().Click(float64(p.X), float64(p.Y)); err != nil {
		return fmt.Errorf("failed to click at %d,%d: %w", p.X, p.Y, err)
	}
	return nil
}

// Close shuts the page, the browser and the driver down.
func (t *PlaywrightTree) Close() error {
	if t.page != nil {
		if err := t.page.Close(); err != nil {
			t.logger.Warnf("failed to close page: %v", err)
		}
	}
	if t.browser != nil {
		if err := t.browser.Close(); err != nil {
			t.logger.Warnf("failed to close browser: %v", err)
		}
	}
	if t.pw != nil {
		if err := t.pw.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
	}
	return nil
}

// getString reads a string field from a JS probe result.
func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// getBool reads a bool field from a JS probe result.
func getBool(m map[string]interface{}, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}
