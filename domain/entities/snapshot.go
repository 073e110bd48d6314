package entities

import "time"

// Point is a screen coordinate in pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rect is a bounding rectangle in screen coordinates.
type Rect struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// Width returns the rectangle width in pixels.
func (r Rect) Width() int {
	return r.Right - r.Left
}

// Height returns the rectangle height in pixels.
func (r Rect) Height() int {
	return r.Bottom - r.Top
}

// Center returns the center point of the rectangle.
func (r Rect) Center() Point {
	return Point{X: r.Left + r.Width()/2, Y: r.Top + r.Height()/2}
}

// IsZero reports whether the rectangle is empty.
func (r Rect) IsZero() bool {
	return r == Rect{}
}

// Contains reports whether the point lies inside the rectangle.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.Left && p.X < r.Right && p.Y >= r.Top && p.Y < r.Bottom
}

// AncestorSnapshot records one ancestor of a captured element. SiblingIndex
// counts position among siblings sharing the same control type.
type AncestorSnapshot struct {
	AutomationID string `json:"automation_id,omitempty"`
	Name         string `json:"name,omitempty"`
	ClassName    string `json:"class_name,omitempty"`
	ControlType  string `json:"control_type,omitempty"`
	SiblingIndex int    `json:"sibling_index"`
	Rect         Rect   `json:"rect"`
}

// ElementSnapshot is an immutable record of one UI node at capture time.
// Ancestors run from the owning top-level window down to the direct parent
// of the element.
type ElementSnapshot struct {
	AutomationID      string             `json:"automation_id,omitempty"`
	Name              string             `json:"name,omitempty"`
	ClassName         string             `json:"class_name,omitempty"`
	ControlType       string             `json:"control_type,omitempty"`
	SiblingIndex      int                `json:"sibling_index"`
	SiblingCount      int                `json:"sibling_count"`
	SupportedPatterns []string           `json:"supported_patterns,omitempty"`
	Rect              Rect               `json:"rect"`
	Ancestors         []AncestorSnapshot `json:"ancestors,omitempty"`
	WindowTitle       string             `json:"window_title"`
	WindowRect        Rect               `json:"window_rect"`
	ProcessName       string             `json:"process_name,omitempty"`
	CapturedAt        time.Time          `json:"captured_at"`
}

// HasPattern reports whether the element advertised the given automation
// pattern at capture time.
func (s *ElementSnapshot) HasPattern(name string) bool {
	for _, p := range s.SupportedPatterns {
		if p == name {
			return true
		}
	}
	return false
}
