package uitree

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ui_relocator/domain/entities"
)

// fixtureRect mirrors a rectangle in a YAML tree fixture.
type fixtureRect struct {
	Left   int `yaml:"left"`
	Top    int `yaml:"top"`
	Right  int `yaml:"right"`
	Bottom int `yaml:"bottom"`
}

// fixtureNode mirrors one node in a YAML tree fixture.
type fixtureNode struct {
	AutomationID string        `yaml:"automation_id"`
	Name         string        `yaml:"name"`
	ClassName    string        `yaml:"class_name"`
	ControlType  string        `yaml:"control_type"`
	ProcessName  string        `yaml:"process_name"`
	Patterns     []string      `yaml:"patterns"`
	Rect         fixtureRect   `yaml:"rect"`
	Value        string        `yaml:"value"`
	Children     []fixtureNode `yaml:"children"`
}

type fixtureFile struct {
	Windows []fixtureNode `yaml:"windows"`
}

// LoadFixture reads a YAML tree fixture from disk into a memory tree. The
// fixture lists top-level windows, each with its nested children.
func LoadFixture(path string) (*MemoryTree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	tree, err := ParseFixture(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fixture %s: %w", path, err)
	}
	return tree, nil
}

// ParseFixture builds a memory tree from YAML fixture bytes.
func ParseFixture(data []byte) (*MemoryTree, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fixture: %w", err)
	}
	if len(f.Windows) == 0 {
		return nil, fmt.Errorf("fixture declares no windows")
	}
	tree := NewMemoryTree()
	for i, w := range f.Windows {
		if w.Name == "" {
			return nil, fmt.Errorf("fixture window %d has no name", i)
		}
		tree.AddWindow(buildFixtureNode(w))
	}
	return tree, nil
}

func buildFixtureNode(fn fixtureNode) *Node {
	attrs := entities.NodeAttributes{
		AutomationID: fn.AutomationID,
		Name:         fn.Name,
		ClassName:    fn.ClassName,
		ControlType:  fn.ControlType,
		ProcessName:  fn.ProcessName,
		Patterns:     fn.Patterns,
	}
	rect := entities.Rect{
		Left:   fn.Rect.Left,
		Top:    fn.Rect.Top,
		Right:  fn.Rect.Right,
		Bottom: fn.Rect.Bottom,
	}
	children := make([]*Node, 0, len(fn.Children))
	for _, c := range fn.Children {
		children = append(children, buildFixtureNode(c))
	}
	n := NewNode(attrs, rect, children...)
	n.Value = fn.Value
	return n
}
