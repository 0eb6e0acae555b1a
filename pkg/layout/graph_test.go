package layout

import (
	"strings"
	"testing"

	"github.com/diagramforge/diagramforge/pkg/dsl"
	"github.com/diagramforge/diagramforge/pkg/errors"
	"github.com/diagramforge/diagramforge/pkg/svg"
)

func expandGraphs(t *testing.T, src string, opts GraphOptions) (*dsl.Element, error) {
	t.Helper()
	root := parseDoc(t, src)
	e := testEngine()
	state := CollectIDState(root, testNS)
	err := e.ExpandGraphs(root, state, opts)
	return root, err
}

const simpleGraph = `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg">
  <d:graph direction="TB">
    <d:node id="a"><rect width="40" height="20"/></d:node>
    <d:node id="b"><rect width="40" height="20"/></d:node>
    <d:edge from="a" to="b"/>
  </d:graph>
</d:diagram>`

func TestGraphExpansion(t *testing.T) {
	root, err := expandGraphs(t, simpleGraph, GraphOptions{})
	if err != nil {
		t.Fatalf("ExpandGraphs() error = %v", err)
	}
	group := root.Children[0]
	if group.Local != "g" || group.Space != dsl.SVGNamespace {
		t.Fatalf("graph not replaced by svg group: {%s}%s", group.Space, group.Local)
	}

	var nodeIDs []string
	var paths, markers int
	dsl.Walk(group, func(e *dsl.Element) bool {
		switch e.Local {
		case "g":
			if id := e.ID(); id != "" {
				nodeIDs = append(nodeIDs, id)
			}
		case "path":
			if _, ok := e.Attr("", "d"); ok {
				paths++
			}
		case "marker":
			markers++
		}
		return true
	})
	if got := strings.Join(nodeIDs, " "); got != "a b" {
		t.Errorf("node ids = %q, want %q", got, "a b")
	}
	if paths == 0 {
		t.Error("no edge path emitted")
	}
	if markers != 1 {
		t.Errorf("markers = %d, want 1 default arrowhead", markers)
	}
}

func TestGraphRankSpacing(t *testing.T) {
	root, err := expandGraphs(t, simpleGraph, GraphOptions{})
	if err != nil {
		t.Fatal(err)
	}
	// Node content 40x20 in a padding-8 column: 56x36. Rank 1 starts at
	// rank-0 extent 36 + rank-gap 50 = 86.
	var aT, bT string
	dsl.Walk(root, func(e *dsl.Element) bool {
		if e.ID() == "a" {
			aT, _ = e.Attr("", "transform")
		}
		if e.ID() == "b" {
			bT, _ = e.Attr("", "transform")
		}
		return true
	})
	if aT != "translate(0, 0)" {
		t.Errorf("node a transform = %q, want translate(0, 0)", aT)
	}
	if bT != "translate(0, 86)" {
		t.Errorf("node b transform = %q, want translate(0, 86)", bT)
	}
}

func TestGraphEdgeClippedToBorders(t *testing.T) {
	root, err := expandGraphs(t, simpleGraph, GraphOptions{})
	if err != nil {
		t.Fatal(err)
	}
	var d string
	dsl.Walk(root, func(e *dsl.Element) bool {
		if e.Local == "path" {
			if _, edge := e.Attr("", "stroke"); edge {
				d, _ = e.Attr("", "d")
			}
		}
		return true
	})
	// Vertical edge between stacked 56x36 nodes: centers x=28, from
	// bottom border y=36 to top border of the second node y=86.
	want := "M 28 36 L 28 86"
	if d != want {
		t.Errorf("edge d = %q, want %q", d, want)
	}
}

func TestGraphTwoCycleRendersDeclaredDirections(t *testing.T) {
	src := `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg">
  <d:graph direction="TB">
    <d:node id="a"><rect width="40" height="20"/></d:node>
    <d:node id="b"><rect width="40" height="20"/></d:node>
    <d:edge from="a" to="b"/>
    <d:edge from="b" to="a"/>
  </d:graph>
</d:diagram>`
	root, err := expandGraphs(t, src, GraphOptions{})
	if err != nil {
		t.Fatalf("ExpandGraphs() error = %v", err)
	}
	var ds []string
	dsl.Walk(root, func(e *dsl.Element) bool {
		if e.Local == "path" {
			if _, edge := e.Attr("", "stroke"); edge {
				v, _ := e.Attr("", "d")
				ds = append(ds, v)
			}
		}
		return true
	})
	if len(ds) != 2 {
		t.Fatalf("edge paths = %d, want 2", len(ds))
	}
	// Both edges connect the same borders but in opposite declared
	// directions.
	if ds[0] != "M 28 36 L 28 86" {
		t.Errorf("first edge d = %q, want downward a->b", ds[0])
	}
	if ds[1] != "M 28 86 L 28 36" {
		t.Errorf("second edge d = %q, want upward b->a", ds[1])
	}
}

func TestGraphDirections(t *testing.T) {
	for _, direction := range []string{"TB", "BT", "LR", "RL"} {
		t.Run(direction, func(t *testing.T) {
			src := `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg">
  <d:graph direction="` + direction + `">
    <d:node id="a"><rect width="40" height="20"/></d:node>
    <d:node id="b"><rect width="40" height="20"/></d:node>
    <d:edge from="a" to="b"/>
  </d:graph>
</d:diagram>`
			root, err := expandGraphs(t, src, GraphOptions{})
			if err != nil {
				t.Fatalf("ExpandGraphs(%s) error = %v", direction, err)
			}
			var bT string
			dsl.Walk(root, func(e *dsl.Element) bool {
				if e.ID() == "b" {
					bT, _ = e.Attr("", "transform")
				}
				return true
			})
			var want string
			switch direction {
			case "TB":
				want = "translate(0, 86)"
			case "BT":
				// main origin 86, flipped: -(86+36) = -122.
				want = "translate(0, -122)"
			case "LR":
				// rank extent 56 + gap 50 = 106.
				want = "translate(106, 0)"
			case "RL":
				want = "translate(" + svg.FormatNum(-(106 + 56)) + ", 0)"
			}
			if bT != want {
				t.Errorf("node b transform = %q, want %q", bT, want)
			}
		})
	}
}

func TestGraphValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code errors.Code
	}{
		{
			"self edge",
			`<d:diagram xmlns:d="urn:example:diag"><d:graph>
				<d:node id="a"><rect width="10" height="10"/></d:node>
				<d:edge from="a" to="a"/>
			</d:graph></d:diagram>`,
			errors.CodeGraphSelfEdge,
		},
		{
			"unknown endpoint",
			`<d:diagram xmlns:d="urn:example:diag"><d:graph>
				<d:node id="a"><rect width="10" height="10"/></d:node>
				<d:edge from="a" to="ghost"/>
			</d:graph></d:diagram>`,
			errors.CodeGraphUnknownNode,
		},
		{
			"missing node id",
			`<d:diagram xmlns:d="urn:example:diag"><d:graph>
				<d:node><rect width="10" height="10"/></d:node>
			</d:graph></d:diagram>`,
			errors.CodeGraphNodeMissingID,
		},
		{
			"duplicate node id",
			`<d:diagram xmlns:d="urn:example:diag"><d:graph>
				<d:node id="a"/><d:node id="a"/>
			</d:graph></d:diagram>`,
			errors.CodeGraphDuplicateNode,
		},
		{
			"collision with element id",
			`<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg">
				<rect id="a" width="5" height="5"/>
				<d:graph><d:node id="a"/></d:graph>
			</d:diagram>`,
			errors.CodeGraphIDCollision,
		},
		{
			"collision across graphs",
			`<d:diagram xmlns:d="urn:example:diag"><d:graph>
				<d:node id="a"/>
			</d:graph><d:graph>
				<d:node id="a"/>
			</d:graph></d:diagram>`,
			errors.CodeGraphIDCollision,
		},
		{
			"unsupported child",
			`<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg"><d:graph>
				<rect width="5" height="5"/>
			</d:graph></d:diagram>`,
			errors.CodeGraphChildUnsupported,
		},
		{
			"nested graph",
			`<d:diagram xmlns:d="urn:example:diag"><d:graph>
				<d:node id="a"><d:graph/></d:node>
			</d:graph></d:diagram>`,
			errors.CodeGraphNested,
		},
		{
			"invalid direction",
			`<d:diagram xmlns:d="urn:example:diag"><d:graph direction="sideways"/></d:diagram>`,
			errors.CodeGraphArgs,
		},
		{
			"negative gap",
			`<d:diagram xmlns:d="urn:example:diag"><d:graph node-gap="-3"/></d:diagram>`,
			errors.CodeGraphArgs,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := expandGraphs(t, tt.src, GraphOptions{})
			if err == nil {
				t.Fatal("ExpandGraphs() error = nil, want validation error")
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("error code = %v, want %v (err: %v)", errors.GetCode(err), tt.code, err)
			}
		})
	}
}

func TestGraphSizeGuardrail(t *testing.T) {
	src := `<d:diagram xmlns:d="urn:example:diag"><d:graph>
		<d:node id="a"/><d:node id="b"/><d:node id="c"/>
	</d:graph></d:diagram>`
	_, err := expandGraphs(t, src, GraphOptions{MaxNodes: 2})
	if !errors.Is(err, errors.CodeGraphTooLarge) {
		t.Errorf("error = %v, want E_GRAPH_TOO_LARGE", err)
	}
}

func TestGraphEdgeLabelOffset(t *testing.T) {
	src := `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg">
  <d:graph direction="TB">
    <d:node id="a"><rect width="40" height="20"/></d:node>
    <d:node id="b"><rect width="40" height="20"/></d:node>
    <d:edge from="a" to="b" label="yes"/>
  </d:graph>
</d:diagram>`
	root, err := expandGraphs(t, src, GraphOptions{})
	if err != nil {
		t.Fatal(err)
	}
	var label *dsl.Element
	dsl.Walk(root, func(e *dsl.Element) bool {
		if e.Local == "text" && e.Text == "yes" {
			label = e
		}
		return true
	})
	if label == nil {
		t.Fatal("edge label not emitted")
	}
	// Downward segment (28,36)->(28,86): midpoint (28,61); left normal
	// of (0,50) is (-50,0)/50 = (-1,0), so the label sits 6 left.
	if x, _ := label.Attr("", "x"); x != "22" {
		t.Errorf("label x = %q, want 22", x)
	}
	if y, _ := label.Attr("", "y"); y != "61" {
		t.Errorf("label y = %q, want 61", y)
	}
}

func TestGraphDeterministic(t *testing.T) {
	src := `<d:diagram xmlns:d="urn:example:diag" xmlns="http://www.w3.org/2000/svg">
  <d:graph direction="TB">
    <d:node id="n1"><rect width="30" height="10"/></d:node>
    <d:node id="n2"><rect width="30" height="10"/></d:node>
    <d:node id="n3"><rect width="30" height="10"/></d:node>
    <d:edge from="n1" to="n2"/>
    <d:edge from="n1" to="n3"/>
    <d:edge from="n3" to="n1"/>
  </d:graph>
</d:diagram>`
	render := func() string {
		root, err := expandGraphs(t, src, GraphOptions{})
		if err != nil {
			t.Fatal(err)
		}
		return svg.Marshal(root)
	}
	if a, b := render(), render(); a != b {
		t.Error("graph expansion not deterministic")
	}
}
