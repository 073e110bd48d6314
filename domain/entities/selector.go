package entities

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WindowNode carries the window-level predicates of a selector document.
// Title matches exactly; ProcessName disambiguates when several windows
// share a title.
type WindowNode struct {
	Title       string `json:"title"`
	ProcessName string `json:"process_name,omitempty"`
}

// ElementNode carries the predicate set for one hop of a selector document.
// Index is a positional constraint applied after attribute filtering; nil
// means no positional constraint. OffsetX/OffsetY are pixel offsets from the
// previous hop's center, CoordinateX/CoordinateY are percentages of the
// window rectangle. Geometric predicates are only valid on the final hop.
type ElementNode struct {
	AutomationID string   `json:"automation_id,omitempty"`
	Name         string   `json:"name,omitempty"`
	NameContains string   `json:"name_contains,omitempty"`
	ClassName    string   `json:"class_name,omitempty"`
	ControlType  string   `json:"control_type,omitempty"`
	Index        *int     `json:"index,omitempty"`
	OffsetX      *int     `json:"offset_x,omitempty"`
	OffsetY      *int     `json:"offset_y,omitempty"`
	CoordinateX  *float64 `json:"coordinate_x,omitempty"`
	CoordinateY  *float64 `json:"coordinate_y,omitempty"`
	Tolerance    int      `json:"tolerance,omitempty"`
}

// HasOffset reports whether the node carries an anchor-offset predicate.
func (e ElementNode) HasOffset() bool {
	return e.OffsetX != nil && e.OffsetY != nil
}

// IsCoordinate reports whether the node is a window-relative coordinate
// predicate.
func (e ElementNode) IsCoordinate() bool {
	return e.CoordinateX != nil && e.CoordinateY != nil
}

// HasAttributes reports whether any attribute predicate is set.
func (e ElementNode) HasAttributes() bool {
	return e.AutomationID != "" || e.Name != "" || e.NameContains != "" ||
		e.ClassName != "" || e.ControlType != ""
}

// Matches reports whether the node attributes satisfy every attribute
// predicate of this hop. Positional and geometric constraints are applied
// by the matcher, not here.
func (e ElementNode) Matches(attrs NodeAttributes) bool {
	if e.AutomationID != "" && attrs.AutomationID != e.AutomationID {
		return false
	}
	if e.Name != "" && attrs.Name != e.Name {
		return false
	}
	if e.NameContains != "" && !strings.Contains(attrs.Name, e.NameContains) {
		return false
	}
	if e.ClassName != "" && attrs.ClassName != e.ClassName {
		return false
	}
	if e.ControlType != "" && attrs.ControlType != e.ControlType {
		return false
	}
	return true
}

// CandidateStrategy is one generated way of relocating a captured element:
// an ordered Window then Element predicate chain tagged with the strategy
// kind that produced it. Its XML form is the selector document exchanged
// with storage. Strategies are immutable once generated.
type CandidateStrategy struct {
	Kind     StrategyKind  `json:"kind,omitempty"`
	Window   WindowNode    `json:"window"`
	Elements []ElementNode `json:"elements"`
}

// ChainKey returns a canonical key for the predicate chain that ignores the
// strategy kind. Two strategies with the same key resolve by identical
// predicates and are interchangeable at replay time.
func (s CandidateStrategy) ChainKey() string {
	bare := s
	bare.Kind = ""
	return bare.Serialize()
}

// Serialize renders the strategy as a selector document. The attribute order
// is canonical so that equal strategies serialize to equal documents.
func (s CandidateStrategy) Serialize() string {
	var b strings.Builder
	b.WriteString("<Selector")
	if s.Kind != "" {
		writeAttr(&b, "kind", string(s.Kind))
	}
	b.WriteString("><Window")
	writeAttr(&b, "title", s.Window.Title)
	if s.Window.ProcessName != "" {
		writeAttr(&b, "processName", s.Window.ProcessName)
	}
	b.WriteString(" />")
	for _, el := range s.Elements {
		writeElementNode(&b, el)
	}
	b.WriteString("</Selector>")
	return b.String()
}

func writeElementNode(b *strings.Builder, el ElementNode) {
	b.WriteString("<Element")
	if el.AutomationID != "" {
		writeAttr(b, "automationId", el.AutomationID)
	}
	if el.Name != "" {
		writeAttr(b, "name", el.Name)
	}
	if el.NameContains != "" {
		writeAttr(b, "nameContains", el.NameContains)
	}
	if el.ClassName != "" {
		writeAttr(b, "className", el.ClassName)
	}
	if el.ControlType != "" {
		writeAttr(b, "controlType", el.ControlType)
	}
	if el.Index != nil {
		writeAttr(b, "index", strconv.Itoa(*el.Index))
	}
	if el.OffsetX != nil {
		writeAttr(b, "offsetX", strconv.Itoa(*el.OffsetX))
	}
	if el.OffsetY != nil {
		writeAttr(b, "offsetY", strconv.Itoa(*el.OffsetY))
	}
	if el.CoordinateX != nil {
		writeAttr(b, "coordinateX", strconv.FormatFloat(*el.CoordinateX, 'f', 1, 64))
	}
	if el.CoordinateY != nil {
		writeAttr(b, "coordinateY", strconv.FormatFloat(*el.CoordinateY, 'f', 1, 64))
	}
	if el.Tolerance != 0 {
		writeAttr(b, "tolerance", strconv.Itoa(el.Tolerance))
	}
	b.WriteString(" />")
}

func writeAttr(b *strings.Builder, name, value string) {
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(`="`)
	xml.EscapeText(b, []byte(value))
	b.WriteByte('"')
}

// ParseSelector parses a selector document back into a strategy. Documents
// written before the kind attribute existed get their kind inferred from the
// predicate shape. Parsing is strict: unknown nodes or attributes, duplicate
// attributes, a missing Window node, an Element node before the Window node
// and an empty element chain are all rejected.
func ParseSelector(doc string) (CandidateStrategy, error) {
	var s CandidateStrategy
	dec := xml.NewDecoder(strings.NewReader(doc))
	rootSeen := false
	windowSeen := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return CandidateStrategy{}, fmt.Errorf("malformed selector document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case !rootSeen:
				if t.Name.Local != "Selector" {
					return CandidateStrategy{}, fmt.Errorf("selector document root must be Selector, got %s", t.Name.Local)
				}
				rootSeen = true
				kind, err := parseSelectorAttrs(t)
				if err != nil {
					return CandidateStrategy{}, err
				}
				s.Kind = kind
			case t.Name.Local == "Window":
				if windowSeen {
					return CandidateStrategy{}, errors.New("selector document has more than one Window node")
				}
				w, err := parseWindowAttrs(t)
				if err != nil {
					return CandidateStrategy{}, err
				}
				s.Window = w
				windowSeen = true
			case t.Name.Local == "Element":
				if !windowSeen {
					return CandidateStrategy{}, errors.New("Element node appears before the Window node")
				}
				el, err := parseElementAttrs(t)
				if err != nil {
					return CandidateStrategy{}, err
				}
				s.Elements = append(s.Elements, el)
			default:
				return CandidateStrategy{}, fmt.Errorf("unknown node %s in selector document", t.Name.Local)
			}
		case xml.CharData:
			if strings.TrimSpace(string(t)) != "" {
				return CandidateStrategy{}, errors.New("selector document must not contain text content")
			}
		}
	}
	if !rootSeen {
		return CandidateStrategy{}, errors.New("selector document is empty")
	}
	if !windowSeen {
		return CandidateStrategy{}, errors.New("selector document has no Window node")
	}
	if len(s.Elements) == 0 {
		return CandidateStrategy{}, errors.New("selector document has an empty element chain")
	}
	for i, el := range s.Elements {
		if err := validateElementNode(el, i == len(s.Elements)-1); err != nil {
			return CandidateStrategy{}, err
		}
	}
	if s.Kind == "" {
		s.Kind = inferKind(s)
	}
	return s, nil
}

func parseSelectorAttrs(t xml.StartElement) (StrategyKind, error) {
	var kind StrategyKind
	seen := make(map[string]bool, len(t.Attr))
	for _, attr := range t.Attr {
		name := attr.Name.Local
		if seen[name] {
			return "", fmt.Errorf("duplicate attribute %s on Selector node", name)
		}
		seen[name] = true
		switch name {
		case "kind":
			kind = StrategyKind(attr.Value)
			if !kind.Valid() {
				return "", fmt.Errorf("unknown strategy kind %q", attr.Value)
			}
		default:
			return "", fmt.Errorf("unknown attribute %s on Selector node", name)
		}
	}
	return kind, nil
}

func parseWindowAttrs(t xml.StartElement) (WindowNode, error) {
	var w WindowNode
	seen := make(map[string]bool, len(t.Attr))
	for _, attr := range t.Attr {
		name := attr.Name.Local
		if seen[name] {
			return WindowNode{}, fmt.Errorf("duplicate attribute %s on Window node", name)
		}
		seen[name] = true
		switch name {
		case "title":
			w.Title = attr.Value
		case "processName":
			w.ProcessName = attr.Value
		default:
			return WindowNode{}, fmt.Errorf("unknown attribute %s on Window node", name)
		}
	}
	return w, nil
}

func parseElementAttrs(t xml.StartElement) (ElementNode, error) {
	var el ElementNode
	seen := make(map[string]bool, len(t.Attr))
	for _, attr := range t.Attr {
		name := attr.Name.Local
		if seen[name] {
			return ElementNode{}, fmt.Errorf("duplicate attribute %s on Element node", name)
		}
		seen[name] = true
		value := attr.Value
		switch name {
		case "automationId":
			el.AutomationID = value
		case "name":
			el.Name = value
		case "nameContains":
			el.NameContains = value
		case "className":
			el.ClassName = value
		case "controlType":
			el.ControlType = value
		case "index":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return ElementNode{}, fmt.Errorf("invalid index %q on Element node", value)
			}
			el.Index = &n
		case "offsetX":
			n, err := strconv.Atoi(value)
			if err != nil {
				return ElementNode{}, fmt.Errorf("invalid offsetX %q on Element node", value)
			}
			el.OffsetX = &n
		case "offsetY":
			n, err := strconv.Atoi(value)
			if err != nil {
				return ElementNode{}, fmt.Errorf("invalid offsetY %q on Element node", value)
			}
			el.OffsetY = &n
		case "coordinateX":
			f, err := parsePercent(value)
			if err != nil {
				return ElementNode{}, fmt.Errorf("invalid coordinateX %q on Element node", value)
			}
			el.CoordinateX = &f
		case "coordinateY":
			f, err := parsePercent(value)
			if err != nil {
				return ElementNode{}, fmt.Errorf("invalid coordinateY %q on Element node", value)
			}
			el.CoordinateY = &f
		case "tolerance":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return ElementNode{}, fmt.Errorf("invalid tolerance %q on Element node", value)
			}
			el.Tolerance = n
		default:
			return ElementNode{}, fmt.Errorf("unknown attribute %s on Element node", name)
		}
	}
	return el, nil
}

// parsePercent tolerates a trailing percent sign for documents written by
// older tooling.
func parsePercent(value string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSuffix(value, "%"), 64)
}

func validateElementNode(el ElementNode, last bool) error {
	if (el.OffsetX == nil) != (el.OffsetY == nil) {
		return errors.New("offsetX and offsetY must be set together")
	}
	if (el.CoordinateX == nil) != (el.CoordinateY == nil) {
		return errors.New("coordinateX and coordinateY must be set together")
	}
	if (el.HasOffset() || el.IsCoordinate()) && !last {
		return errors.New("geometric predicates are only valid on the final hop")
	}
	return nil
}

// inferKind is the best-effort kind inference for documents predating the
// kind attribute.
func inferKind(s CandidateStrategy) StrategyKind {
	last := s.Elements[len(s.Elements)-1]
	switch {
	case last.IsCoordinate():
		return StrategyCoordinate
	case last.HasOffset():
		return StrategyVisualAnchor
	case len(s.Elements) > 1:
		return StrategyHierarchical
	case last.AutomationID != "":
		return StrategyAutomationID
	case last.ClassName != "" && last.Index != nil:
		return StrategyClassIndex
	case last.Name != "" || last.NameContains != "":
		return StrategyNameAndType
	default:
		return StrategyHierarchical
	}
}
