package entities

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int          { return &n }
func floatPtr(f float64) *float64 { return &f }

func TestSerializeCanonicalForm(t *testing.T) {
	s := CandidateStrategy{
		Kind:   StrategyAutomationID,
		Window: WindowNode{Title: "Orders", ProcessName: "erp.exe"},
		Elements: []ElementNode{
			{AutomationID: "btnSave", ControlType: "button"},
		},
	}
	want := `<Selector kind="automation_id"><Window title="Orders" processName="erp.exe" /><Element automationId="btnSave" controlType="button" /></Selector>`
	assert.Equal(t, want, s.Serialize())
}

func TestSerializeEscapesAttributeValues(t *testing.T) {
	s := CandidateStrategy{
		Kind:   StrategyNameAndType,
		Window: WindowNode{Title: `R&D "Lab" <main>`},
		Elements: []ElementNode{
			{Name: "a<b"},
		},
	}
	doc := s.Serialize()
	assert.Contains(t, doc, "R&amp;D")
	assert.Contains(t, doc, "a&lt;b")

	parsed, err := ParseSelector(doc)
	require.NoError(t, err)
	assert.Equal(t, `R&D "Lab" <main>`, parsed.Window.Title)
	assert.Equal(t, "a<b", parsed.Elements[0].Name)
}

func TestParseSerializeRoundTrip(t *testing.T) {
	strategies := []CandidateStrategy{
		{
			Kind:     StrategyAutomationID,
			Window:   WindowNode{Title: "Main", ProcessName: "app.exe"},
			Elements: []ElementNode{{AutomationID: "btnOk", ControlType: "button"}},
		},
		{
			Kind:   StrategyNameAndType,
			Window: WindowNode{Title: "Main"},
			Elements: []ElementNode{
				{AutomationID: "pnlForm", ControlType: "pane"},
				{NameContains: "Save as", ControlType: "button"},
			},
		},
		{
			Kind:   StrategyClassIndex,
			Window: WindowNode{Title: "Main"},
			Elements: []ElementNode{
				{ClassName: "TextBox", ControlType: "edit", Index: intPtr(2)},
			},
		},
		{
			Kind:   StrategyVisualAnchor,
			Window: WindowNode{Title: "Main"},
			Elements: []ElementNode{
				{AutomationID: "lblUser", ControlType: "text"},
				{ControlType: "edit", OffsetX: intPtr(120), OffsetY: intPtr(-4), Tolerance: 5},
			},
		},
		{
			Kind:   StrategyCoordinate,
			Window: WindowNode{Title: "Main"},
			Elements: []ElementNode{
				{CoordinateX: floatPtr(42.2), CoordinateY: floatPtr(87.5), Tolerance: 5},
			},
		},
	}
	for _, s := range strategies {
		t.Run(string(s.Kind), func(t *testing.T) {
			parsed, err := ParseSelector(s.Serialize())
			require.NoError(t, err)
			if diff := cmp.Diff(s, parsed); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseSelectorRejectsMalformedDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "empty document",
			doc:  "",
			want: "empty",
		},
		{
			name: "wrong root node",
			doc:  `<Sel><Window title="W" /><Element name="x" /></Sel>`,
			want: "root must be Selector",
		},
		{
			name: "unknown node",
			doc:  `<Selector><Window title="W" /><Anchor name="x" /></Selector>`,
			want: "unknown node",
		},
		{
			name: "element before window",
			doc:  `<Selector><Element name="x" /><Window title="W" /></Selector>`,
			want: "before the Window",
		},
		{
			name: "missing window",
			doc:  `<Selector><Element name="x" /></Selector>`,
			want: "before the Window",
		},
		{
			name: "duplicate window",
			doc:  `<Selector><Window title="A" /><Window title="B" /><Element name="x" /></Selector>`,
			want: "more than one Window",
		},
		{
			name: "empty element chain",
			doc:  `<Selector><Window title="W" /></Selector>`,
			want: "empty element chain",
		},
		{
			name: "text content",
			doc:  `<Selector><Window title="W" />stray<Element name="x" /></Selector>`,
			want: "text content",
		},
		{
			name: "unknown element attribute",
			doc:  `<Selector><Window title="W" /><Element id="x" /></Selector>`,
			want: "unknown attribute id",
		},
		{
			name: "unknown window attribute",
			doc:  `<Selector><Window title="W" pid="7" /><Element name="x" /></Selector>`,
			want: "unknown attribute pid",
		},
		{
			name: "duplicate attribute",
			doc:  `<Selector><Window title="W" /><Element name="a" name="b" /></Selector>`,
			want: "duplicate attribute name",
		},
		{
			name: "unknown strategy kind",
			doc:  `<Selector kind="psychic"><Window title="W" /><Element name="x" /></Selector>`,
			want: "unknown strategy kind",
		},
		{
			name: "negative index",
			doc:  `<Selector><Window title="W" /><Element className="Row" index="-1" /></Selector>`,
			want: "invalid index",
		},
		{
			name: "non numeric index",
			doc:  `<Selector><Window title="W" /><Element className="Row" index="two" /></Selector>`,
			want: "invalid index",
		},
		{
			name: "offset without pair",
			doc:  `<Selector><Window title="W" /><Element offsetX="10" /></Selector>`,
			want: "offsetX and offsetY",
		},
		{
			name: "coordinate without pair",
			doc:  `<Selector><Window title="W" /><Element coordinateY="10.0" /></Selector>`,
			want: "coordinateX and coordinateY",
		},
		{
			name: "geometric predicate before final hop",
			doc:  `<Selector><Window title="W" /><Element coordinateX="10.0" coordinateY="10.0" /><Element name="x" /></Selector>`,
			want: "final hop",
		},
		{
			name: "unclosed markup",
			doc:  `<Selector><Window title="W"`,
			want: "malformed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSelector(tt.doc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseSelectorInfersKindForLegacyDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want StrategyKind
	}{
		{
			name: "automation id leaf",
			doc:  `<Selector><Window title="W" /><Element automationId="btnOk" /></Selector>`,
			want: StrategyAutomationID,
		},
		{
			name: "name leaf",
			doc:  `<Selector><Window title="W" /><Element name="Save" controlType="button" /></Selector>`,
			want: StrategyNameAndType,
		},
		{
			name: "class and index leaf",
			doc:  `<Selector><Window title="W" /><Element className="TextBox" index="1" /></Selector>`,
			want: StrategyClassIndex,
		},
		{
			name: "multi hop chain",
			doc:  `<Selector><Window title="W" /><Element automationId="pnl" /><Element name="Save" /></Selector>`,
			want: StrategyHierarchical,
		},
		{
			name: "offset leaf",
			doc:  `<Selector><Window title="W" /><Element automationId="lbl" /><Element offsetX="10" offsetY="0" /></Selector>`,
			want: StrategyVisualAnchor,
		},
		{
			name: "coordinate leaf",
			doc:  `<Selector><Window title="W" /><Element coordinateX="50.0" coordinateY="50.0" /></Selector>`,
			want: StrategyCoordinate,
		},
		{
			name: "bare index leaf",
			doc:  `<Selector><Window title="W" /><Element index="0" /></Selector>`,
			want: StrategyHierarchical,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSelector(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Kind)
		})
	}
}

func TestParseSelectorAcceptsPercentSuffixedCoordinates(t *testing.T) {
	doc := `<Selector><Window title="W" /><Element coordinateX="42.2%" coordinateY="87.5%" /></Selector>`
	s, err := ParseSelector(doc)
	require.NoError(t, err)
	require.True(t, s.Elements[0].IsCoordinate())
	assert.Equal(t, 42.2, *s.Elements[0].CoordinateX)
	assert.Equal(t, 87.5, *s.Elements[0].CoordinateY)
}

func TestChainKeyIgnoresKind(t *testing.T) {
	a := CandidateStrategy{
		Kind:     StrategyAutomationID,
		Window:   WindowNode{Title: "W"},
		Elements: []ElementNode{{AutomationID: "btnOk"}},
	}
	b := a
	b.Kind = StrategyHierarchical
	assert.Equal(t, a.ChainKey(), b.ChainKey())

	c := a
	c.Elements = []ElementNode{{AutomationID: "btnCancel"}}
	assert.NotEqual(t, a.ChainKey(), c.ChainKey())
}

func TestElementNodeMatches(t *testing.T) {
	attrs := NodeAttributes{
		AutomationID: "btnSave",
		Name:         "Save document",
		ClassName:    "Button",
		ControlType:  "button",
	}
	tests := []struct {
		name string
		el   ElementNode
		want bool
	}{
		{"empty predicate matches anything", ElementNode{}, true},
		{"automation id match", ElementNode{AutomationID: "btnSave"}, true},
		{"automation id mismatch", ElementNode{AutomationID: "btnCancel"}, false},
		{"exact name match", ElementNode{Name: "Save document"}, true},
		{"name containment", ElementNode{NameContains: "Save"}, true},
		{"name containment miss", ElementNode{NameContains: "Discard"}, false},
		{"combined predicates", ElementNode{ClassName: "Button", ControlType: "button"}, true},
		{"combined with one miss", ElementNode{ClassName: "Button", ControlType: "edit"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.el.Matches(attrs))
		})
	}
}
