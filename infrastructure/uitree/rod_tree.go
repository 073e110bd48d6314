package uitree

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"

	"ui_relocator/domain/entities"
	"ui_relocator/domain/interfaces"
)

// rodProbeJS mirrors elementProbeJS with rod's this-bound evaluation.
const rodProbeJS = `() => {
	const text = (this.innerText || this.textContent || "").trim();
	const role = this.getAttribute("role");
	return {
		automationId: this.id || "",
		name: this.getAttribute("aria-label") || this.getAttribute("name") || text.slice(0, 80),
		className: typeof this.className === "string" ? this.className : "",
		controlType: role ? role : this.tagName.toLowerCase(),
		clickable: this.tagName === "BUTTON" || this.tagName === "A" || role === "button" || this.onclick != null,
		editable: "value" in this
	};
}`

const rodRectJS = `() => {
	const r = this.getBoundingClientRect();
	return { left: r.left, top: r.top, right: r.right, bottom: r.bottom };
}`

const rodValueJS = `() => {
	if ("value" in this && this.value != null) {
		return String(this.value);
	}
	return (this.innerText || this.textContent || "").trim();
}`

// RodTree adapts one Chromium page to the UITree contract through go-rod.
type RodTree struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	logger   *logrus.Logger

	mu        sync.Mutex
	elements  map[string]*rod.Element
	windowRef entities.NodeRef
	nextID    int
}

var _ interfaces.UITree = (*RodTree)(nil)

// NewRodTree launches Chromium through rod and opens startURL when one is given.
func NewRodTree(startURL string, headless bool, logger *logrus.Logger) (*RodTree, error) {
	l := launcher.New().Headless(headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: startURL})
	if err != nil {
		browser.Close()
		l.Cleanup()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if startURL != "" {
		if err := page.WaitLoad(); err != nil {
			logger.Warnf("failed to wait for page load: %v", err)
		}
	}
	logger.Infof("rod backend ready (headless=%v)", headless)
	return &RodTree{
		launcher: l,
		browser:  browser,
		page:     page,
		logger:   logger,
		elements: make(map[string]*rod.Element),
	}, nil
}

func (t *RodTree) register(el *rod.Element) entities.NodeRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := fmt.Sprintf("rod-%d", t.nextID)
	t.elements[id] = el
	return entities.NodeRef{ID: id}
}

func (t *RodTree) element(ref entities.NodeRef) (*rod.Element, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	el, ok := t.elements[ref.ID]
	if !ok {
		return nil, entities.NewStale(entities.WindowHop, fmt.Sprintf("handle %q expired", ref.ID))
	}
	return el, nil
}

// Windows re-probes the page body and resets the handle table, so handles
// from earlier resolution passes are stale by contract.
func (t *RodTree) Windows(ctx context.Context) ([]entities.NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := t.page.Context(ctx).Element("body")
	if err != nil {
		return nil, fmt.Errorf("failed to find page body: %w", err)
	}
	t.mu.Lock()
	t.elements = make(map[string]*rod.Element)
	t.nextID = 0
	t.mu.Unlock()
	ref := t.register(body)
	t.mu.Lock()
	t.windowRef = ref
	t.mu.Unlock()
	return []entities.NodeRef{ref}, nil
}

// Children returns the element's direct children in document order.
func (t *RodTree) Children(ctx context.Context, node entities.NodeRef) ([]entities.NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	el, err := t.element(node)
	if err != nil {
		return nil, err
	}
	kids, err := el.Context(ctx).Elements(":scope > *")
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
func (t *RodTree) Parent(ctx context.Context, node entities.NodeRef) (entities.NodeRef, error) {
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
	el, err := t.element(node)
	if err != nil {
		return entities.NodeRef{}, err
	}
	parent, err := el.Context(ctx).Parent()
	if err != nil {
		return entities.NodeRef{}, fmt.Errorf("failed to read parent: %w", err)
	}
	tag, err := parent.Eval(`() => this.tagName`)
	if err == nil && tag.Value.Str() == "BODY" {
		return windowRef, nil
	}
	return t.register(parent), nil
}

// Attributes probes the element's attribute set.
func (t *RodTree) Attributes(ctx context.Context, node entities.NodeRef) (entities.NodeAttributes, error) {
	if err := ctx.Err(); err != nil {
		return entities.NodeAttributes{}, err
	}
	el, err := t.element(node)
	if err != nil {
		return entities.NodeAttributes{}, err
	}
	t.mu.Lock()
	isWindow := node == t.windowRef
	t.mu.Unlock()
	if isWindow {
		info, err := t.page.Context(ctx).Info()
		if err != nil {
			return entities.NodeAttributes{}, entities.NewAttributeUnavailable(entities.WindowHop,
				fmt.Sprintf("page title is unavailable: %v", err))
		}
		return entities.NodeAttributes{
			Name:        info.Title,
			ControlType: "window",
			ProcessName: "chromium",
		}, nil
	}
	res, err := el.Context(ctx).Eval(rodProbeJS)
	if err != nil {
		return entities.NodeAttributes{}, entities.NewAttributeUnavailable(entities.WindowHop,
			fmt.Sprintf("element probe failed: %v", err))
	}
	attrs := entities.NodeAttributes{
		AutomationID: res.Value.Get("automationId").Str(),
		Name:         res.Value.Get("name").Str(),
		ClassName:    res.Value.Get("className").Str(),
		ControlType:  res.Value.Get("controlType").Str(),
	}
	if res.Value.Get("clickable").Bool() {
		attrs.Patterns = append(attrs.Patterns, entities.PatternInvoke)
	}
	if res.Value.Get("editable").Bool() {
		attrs.Patterns = append(attrs.Patterns, entities.PatternValue)
	}
	return attrs, nil
}

// BoundingRect returns the element's viewport rectangle.
func (t *RodTree) BoundingRect(ctx context.Context, node entities.NodeRef) (entities.Rect, error) {
	if err := ctx.Err(); err != nil {
		return entities.Rect{}, err
	}
	el, err := t.element(node)
	if err != nil {
		return entities.Rect{}, err
	}
	res, err := el.Context(ctx).Eval(rodRectJS)
	if err != nil {
		return entities.Rect{}, fmt.Errorf("failed to read bounding rect: %w", err)
	}
	return entities.Rect{
		Left:   int(math.Round(res.Value.Get("left").Num())),
		Top:    int(math.Round(res.Value.Get("top").Num())),
		Right:  int(math.Round(res.Value.Get("right").Num())),
		Bottom: int(math.Round(res.Value.Get("bottom").Num())),
	}, nil
}

// NodeAtPoint asks the DOM what sits at the given viewport point.
func (t *RodTree) NodeAtPoint(ctx context.Context, p entities.Point) (entities.NodeRef, error) {
	if err := ctx.Err(); err != nil {
		return entities.NodeRef{}, err
	}
	el, err := t.page.Context(ctx).ElementFromPoint(p.X, p.Y)
	if err != nil {
		t.logger.Debugf("nothing at point %d,%d: %v", p.X, p.Y, err)
		return entities.NodeRef{}, nil
	}
	return t.register(el), nil
}

// Invoke clicks the element through its default activation.
func (t *RodTree) Invoke(ctx context.Context, node entities.NodeRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	el, err := t.element(node)
	if err != nil {
		return err
	}
	if err := el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to invoke element: %w", err)
	}
	return nil
}

// ReadValue reads the element's input value, falling back to its text.
func (t *RodTree) ReadValue(ctx context.Context, node entities.NodeRef) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	el, err := t.element(node)
	if err != nil {
		return "", err
	}
	res, err := el.Context(ctx).Eval(rodValueJS)
	if err != nil {
		return "", entities.NewAttributeUnavailable(entities.WindowHop,
			fmt.Sprintf("element exposes no readable value: %v", err))
	}
	return res.Value.Str(), nil
}

// ClickAt dispatches a raw mouse click at the given viewport point.
func (t *RodTree) ClickAt(ctx context.Context, p entities.Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mouse := t.page.Context(ctx).Mouse
	if err := mouse.MoveTo(proto.Point{X: float64(p.X), Y: float64(p.Y)}); err != nil {
		return fmt.Errorf("failed to move mouse to %d,%d: %w", p.X, p.Y, err)
	}
	if err := mouse.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click at %d,%d: %w", p.X, p.Y, err)
	}
	return nil
}

// Close shuts the browser down and cleans the launcher's profile directory.
func (t *RodTree) Close() error {
	if t.browser != nil {
		if err := t.browser.Close(); err != nil {
			t.logger.Warnf("failed to close browser: %v", err)
		}
	}
	if t.launcher != nil {
		t.launcher.Cleanup()
	}
	return nil
}
