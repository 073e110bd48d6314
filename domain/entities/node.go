package entities

// Automation pattern names advertised by live tree nodes.
const (
	PatternInvoke = "Invoke"
	PatternValue  = "Value"
	PatternToggle = "Toggle"
)

// NodeRef is an opaque handle onto a node of a live UI tree. Handles become
// stale once the underlying tree mutates, so resolution re-walks the tree
// instead of caching them.
type NodeRef struct {
	ID string `json:"id"`
}

// IsZero reports whether the handle is empty.
func (n NodeRef) IsZero() bool {
	return n.ID == ""
}

// NodeAttributes is the platform attribute set of one live tree node.
// ProcessName is populated for top-level windows only.
type NodeAttributes struct {
	AutomationID string   `json:"automation_id,omitempty"`
	Name         string   `json:"name,omitempty"`
	ClassName    string   `json:"class_name,omitempty"`
	ControlType  string   `json:"control_type,omitempty"`
	ProcessName  string   `json:"process_name,omitempty"`
	Patterns     []string `json:"patterns,omitempty"`
}

// HasPattern reports whether the node advertises the given automation pattern.
func (a NodeAttributes) HasPattern(name string) bool {
	for _, p := range a.Patterns {
		if p == name {
			return true
		}
	}
	return false
}
