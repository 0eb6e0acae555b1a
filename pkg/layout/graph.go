package layout

import (
	"math"
	"strconv"
	"strings"

	"github.com/diagramforge/diagramforge/pkg/dag"
	"github.com/diagramforge/diagramforge/pkg/dsl"
	"github.com/diagramforge/diagramforge/pkg/errors"
	"github.com/diagramforge/diagramforge/pkg/geom"
	"github.com/diagramforge/diagramforge/pkg/svg"
)

// Default graph guardrails and spacing; configurable through
// GraphOptions.
const (
	DefaultGraphMaxNodes = 2000
	DefaultGraphMaxEdges = 8000
	DefaultNodeGap       = 30.0
	DefaultRankGap       = 50.0
)

const (
	defaultNodePad    = 8.0
	defaultLabelSize  = 10.0
	defaultLabelFill  = "#555"
	defaultEdgeStroke = "#555"
)

// GraphOptions carries the size guardrails enforced before layout runs
// and the gap values used when a graph declares no node-gap or
// rank-gap of its own. Zero values select the defaults.
type GraphOptions struct {
	MaxNodes int
	MaxEdges int
	NodeGap  float64
	RankGap  float64
}

func (o GraphOptions) withDefaults() GraphOptions {
	if o.MaxNodes == 0 {
		o.MaxNodes = DefaultGraphMaxNodes
	}
	if o.MaxEdges == 0 {
		o.MaxEdges = DefaultGraphMaxEdges
	}
	if o.NodeGap <= 0 {
		o.NodeGap = DefaultNodeGap
	}
	if o.RankGap <= 0 {
		o.RankGap = DefaultRankGap
	}
	return o
}

// IDState tracks the document's id population while graphs expand, so
// graph-node ids can be validated against ids declared anywhere else.
type IDState struct {
	// NonGraphIDs are ids on elements that are not graph nodes.
	NonGraphIDs map[string]bool
	// TakenIDs is every id in the document, used to mint unique ids.
	TakenIDs map[string]bool

	seenGraphNodeIDs map[string]bool
	graphCounter     int
}

// CollectIDState scans the tree before graph expansion.
func CollectIDState(root *dsl.Element, ns string) *IDState {
	state := &IDState{
		NonGraphIDs:      map[string]bool{},
		TakenIDs:         map[string]bool{},
		seenGraphNodeIDs: map[string]bool{},
	}
	var rec func(e *dsl.Element, insideGraph bool)
	rec = func(e *dsl.Element, insideGraph bool) {
		if id := e.ID(); id != "" {
			state.TakenIDs[id] = true
			if !(insideGraph && e.Is(ns, "node")) {
				state.NonGraphIDs[id] = true
			}
		}
		for _, c := range e.Children {
			rec(c, insideGraph || c.Is(ns, "graph"))
		}
	}
	rec(root, false)
	return state
}

// ReserveUniqueID returns base, or base-N for the first free N, and
// marks the result taken.
func (s *IDState) ReserveUniqueID(base string) string {
	if !s.TakenIDs[base] {
		s.TakenIDs[base] = true
		return base
	}
	for i := 1; ; i++ {
		candidate := base + "-" + strconv.Itoa(i)
		if !s.TakenIDs[candidate] {
			s.TakenIDs[candidate] = true
			return candidate
		}
	}
}

type graphNodeSpec struct {
	id       string
	rendered *dsl.Element
	width    float64
	height   float64
}

type graphEdgeSpec struct {
	fromID      string
	toID        string
	label       string
	labelSize   float64
	labelFill   string
	passthrough []dsl.Attr
}

// ExpandGraphs replaces every diag:graph in the tree with a fully laid
// out SVG group. Validation happens per graph before any geometry is
// computed; the first error aborts the whole expansion.
func (e *Engine) ExpandGraphs(root *dsl.Element, state *IDState, opts GraphOptions) error {
	opts = opts.withDefaults()

	var walk func(node *dsl.Element, insideGraph bool) error
	walk = func(node *dsl.Element, insideGraph bool) error {
		for i, child := range node.Children {
			if child.Is(e.NS, "graph") {
				if insideGraph {
					return errors.New(errors.CodeGraphNested,
						"graph elements cannot be nested inside another graph")
				}
				state.graphCounter++
				rendered, err := e.expandGraph(child, state, opts)
				if err != nil {
					return err
				}
				rendered.Tail = child.Tail
				node.Children[i] = rendered
				continue
			}
			if err := walk(child, insideGraph); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root, false)
}

func (e *Engine) expandGraph(graphEl *dsl.Element, state *IDState, opts GraphOptions) (*dsl.Element, error) {
	direction := strings.ToUpper(strings.TrimSpace(graphEl.AttrOr("", "direction", "TB")))
	switch direction {
	case "TB", "BT", "LR", "RL":
	default:
		return nil, errors.New(errors.CodeGraphArgs,
			"graph has invalid direction %q (expected TB, BT, LR, or RL)", graphEl.AttrOr("", "direction", ""))
	}
	nodeGap, err := nonNegativeAttr(graphEl, "node-gap", opts.NodeGap)
	if err != nil {
		return nil, err
	}
	rankGap, err := nonNegativeAttr(graphEl, "rank-gap", opts.RankGap)
	if err != nil {
		return nil, err
	}
	x, err := numericAttr(graphEl, "x", 0)
	if err != nil {
		return nil, err
	}
	y, err := numericAttr(graphEl, "y", 0)
	if err != nil {
		return nil, err
	}

	var nodes []graphNodeSpec
	nodeIndex := map[string]int{}
	var edges []graphEdgeSpec

	for _, child := range graphEl.Children {
		if child.Space != e.NS {
			return nil, errors.New(errors.CodeGraphChildUnsupported,
				"unsupported child <%s> under graph; only node and edge declarations are allowed", child.Local)
		}
		switch child.Local {
		case "node":
			spec, err := e.collectGraphNode(child)
			if err != nil {
				return nil, err
			}
			if _, dup := nodeIndex[spec.id]; dup {
				return nil, errors.New(errors.CodeGraphDuplicateNode,
					"duplicate node id %q in graph", spec.id)
			}
			if state.NonGraphIDs[spec.id] {
				return nil, errors.New(errors.CodeGraphIDCollision,
					"node id %q collides with an existing element id", spec.id)
			}
			if state.seenGraphNodeIDs[spec.id] {
				return nil, errors.New(errors.CodeGraphIDCollision,
					"node id %q collides with an id from another graph", spec.id)
			}
			nodeIndex[spec.id] = len(nodes)
			nodes = append(nodes, spec)
		case "edge":
			spec, err := collectGraphEdge(child)
			if err != nil {
				return nil, err
			}
			edges = append(edges, spec)
		case "graph":
			return nil, errors.New(errors.CodeGraphNested,
				"graph elements cannot be nested inside another graph")
		default:
			return nil, errors.New(errors.CodeGraphChildUnsupported,
				"unsupported child <%s> under graph; only node and edge declarations are allowed", child.Local)
		}
	}

	if len(nodes) > opts.MaxNodes || len(edges) > opts.MaxEdges {
		return nil, errors.New(errors.CodeGraphTooLarge,
			"graph exceeds configured limits: nodes=%d (max %d), edges=%d (max %d)",
			len(nodes), opts.MaxNodes, len(edges), opts.MaxEdges)
	}

	for _, edge := range edges {
		if edge.fromID == edge.toID {
			return nil, errors.New(errors.CodeGraphSelfEdge,
				"edge from=%q to=%q is a self-edge", edge.fromID, edge.toID)
		}
		if _, ok := nodeIndex[edge.fromID]; !ok {
			return nil, errors.New(errors.CodeGraphUnknownNode,
				"edge from=%q references unknown node id in this graph", edge.fromID)
		}
		if _, ok := nodeIndex[edge.toID]; !ok {
			return nil, errors.New(errors.CodeGraphUnknownNode,
				"edge to=%q references unknown node id in this graph", edge.toID)
		}
	}

	for _, spec := range nodes {
		state.seenGraphNodeIDs[spec.id] = true
	}

	positions := layoutGraph(nodes, edges, nodeIndex, direction, nodeGap, rankGap)

	e.Logger.Debug("graph laid out",
		"nodes", len(nodes), "edges", len(edges), "direction", direction)

	group := dsl.NewElement(dsl.SVGNamespace, "g")
	group.SetAttr("", "transform", "translate("+svg.FormatNum(x)+", "+svg.FormatNum(y)+")")
	if id := graphEl.ID(); id != "" {
		group.SetAttr("", "id", id)
	}

	nodeBBoxes := make([]geom.Rect, len(nodes))
	for i, spec := range nodes {
		p := positions[i]
		nodeBBoxes[i] = geom.NewRect(p.X, p.Y, spec.width, spec.height)
	}

	// Edges without an explicit marker share one default arrowhead.
	defaultMarkerID := ""
	needsMarker := false
	for _, edge := range edges {
		if !hasMarkerAttr(edge.passthrough) {
			needsMarker = true
			break
		}
	}
	if needsMarker {
		defaultMarkerID = state.ReserveUniqueID(
			"diag-graph-arrow-default-" + strconv.Itoa(state.graphCounter))
		defs := dsl.NewElement(dsl.SVGNamespace, "defs")
		defs.Append(ArrowMarker(defaultMarkerID))
		group.Append(defs)
	}

	for _, edge := range edges {
		from := nodeBBoxes[nodeIndex[edge.fromID]]
		to := nodeBBoxes[nodeIndex[edge.toID]]
		pFrom, pTo := edgeEndpoints(from, to)

		path := dsl.NewElement(dsl.SVGNamespace, "path")
		for _, a := range edge.passthrough {
			path.SetAttr("", a.Local, a.Value)
		}
		setDefaultAttr(path, "stroke", defaultEdgeStroke)
		setDefaultAttr(path, "stroke-width", "1")
		setDefaultAttr(path, "fill", "none")
		if defaultMarkerID != "" && !hasMarkerAttr(edge.passthrough) {
			path.SetAttr("", "marker-end", "url(#"+defaultMarkerID+")")
		}
		path.SetAttr("", "d",
			"M "+svg.FormatNum(pFrom.X)+" "+svg.FormatNum(pFrom.Y)+
				" L "+svg.FormatNum(pTo.X)+" "+svg.FormatNum(pTo.Y))
		group.Append(path)
	}

	for i, spec := range nodes {
		p := positions[i]
		wrapper := dsl.NewElement(dsl.SVGNamespace, "g")
		wrapper.SetAttr("", "id", spec.id)
		wrapper.SetAttr("", "transform",
			"translate("+svg.FormatNum(p.X)+", "+svg.FormatNum(p.Y)+")")
		wrapper.Append(spec.rendered)
		group.Append(wrapper)
	}

	for _, edge := range edges {
		if edge.label == "" {
			continue
		}
		from := nodeBBoxes[nodeIndex[edge.fromID]]
		to := nodeBBoxes[nodeIndex[edge.toID]]
		pFrom, pTo := edgeEndpoints(from, to)
		group.Append(edgeLabel(edge, pFrom, pTo))
	}

	return group, nil
}

// collectGraphNode sizes a node by rendering its content inside a
// synthetic column flex container.
func (e *Engine) collectGraphNode(node *dsl.Element) (graphNodeSpec, error) {
	id := strings.TrimSpace(node.ID())
	if id == "" {
		return graphNodeSpec{}, errors.New(errors.CodeGraphNodeMissingID,
			"graph node requires a non-empty id")
	}

	widthAttr, widthExplicit := node.Attr("", "width")
	var width float64
	if widthExplicit {
		n, ok := dsl.ParseLength(widthAttr)
		if !ok {
			return graphNodeSpec{}, errors.New(errors.CodeGraphArgs,
				"graph node %q has invalid width %q", id, widthAttr)
		}
		width = n
	}
	minWidth, err := nonNegativeAttr(node, "min-width", 0)
	if err != nil {
		return graphNodeSpec{}, err
	}
	padding, err := nonNegativeAttr(node, "padding", defaultNodePad)
	if err != nil {
		return graphNodeSpec{}, err
	}
	gap, err := nonNegativeAttr(node, "gap", 0)
	if err != nil {
		return graphNodeSpec{}, err
	}

	var nested bool
	dsl.Walk(node, func(el *dsl.Element) bool {
		if el != node && el.Is(e.NS, "graph") {
			nested = true
		}
		return !nested
	})
	if nested {
		return graphNodeSpec{}, errors.New(errors.CodeGraphNested,
			"graph elements cannot be nested inside another graph")
	}

	flex := dsl.NewElement(e.NS, "flex")
	flex.SetAttr("", "direction", "column")
	flex.SetAttr("", "padding", svg.FormatNum(padding))
	flex.SetAttr("", "gap", svg.FormatNum(gap))
	if widthExplicit {
		flex.SetAttr("", "width", svg.FormatNum(maxF(width, minWidth)))
	} else if minWidth > 0 {
		flex.SetAttr("", "width", svg.FormatNum(minWidth))
	}
	bgClass, _ := node.Attr("", "background-class")
	bgStyle, _ := node.Attr("", "background-style")
	if bgClass != "" {
		flex.SetAttr("", "background-class", bgClass)
	}
	if bgStyle != "" {
		flex.SetAttr("", "background-style", bgStyle)
	}
	for _, child := range node.Children {
		flex.Append(child.Clone())
	}

	r := e.renderFlex(flex, hint{}, fontContext{})

	finalWidth := r.Width
	if widthExplicit {
		finalWidth = maxF(width, minWidth)
	} else {
		finalWidth = maxF(r.Width, minWidth)
	}

	controlAttrs := map[string]bool{
		"id": true, "width": true, "min-width": true, "padding": true,
		"gap": true, "background-class": true, "background-style": true,
	}
	for _, a := range node.Attrs {
		if a.Space != "" || controlAttrs[a.Local] {
			continue
		}
		r.Element.SetAttr("", a.Local, a.Value)
	}

	// Stretch the background rect when an explicit width widens the node
	// beyond its measured content.
	if math.Abs(finalWidth-r.Width) > 1e-9 {
		for _, child := range r.Element.Children {
			if child.Local != "rect" {
				continue
			}
			cls, _ := child.Attr("", "class")
			sty, _ := child.Attr("", "style")
			if (bgClass != "" && cls == bgClass) || (bgClass == "" && bgStyle != "" && sty == bgStyle) {
				child.SetAttr("", "width", svg.FormatNum(finalWidth))
				break
			}
		}
	}

	return graphNodeSpec{
		id:       id,
		rendered: r.Element,
		width:    finalWidth,
		height:   r.Height,
	}, nil
}

func collectGraphEdge(node *dsl.Element) (graphEdgeSpec, error) {
	fromID := strings.TrimSpace(node.AttrOr("", "from", ""))
	toID := strings.TrimSpace(node.AttrOr("", "to", ""))
	if fromID == "" || toID == "" {
		return graphEdgeSpec{}, errors.New(errors.CodeGraphArgs,
			"graph edge requires non-empty from and to attributes")
	}

	labelSize := defaultLabelSize
	if v, ok := node.Attr("", "label-size"); ok {
		n, ok := dsl.ParseLength(v)
		if !ok || n <= 0 {
			return graphEdgeSpec{}, errors.New(errors.CodeGraphArgs,
				"graph edge label-size must be > 0 (got %q)", v)
		}
		labelSize = n
	}

	control := map[string]bool{
		"from": true, "to": true, "label": true,
		"label-size": true, "label-fill": true,
	}
	var passthrough []dsl.Attr
	for _, a := range node.Attrs {
		if a.Space != "" || control[a.Local] {
			continue
		}
		passthrough = append(passthrough, a)
	}

	return graphEdgeSpec{
		fromID:      fromID,
		toID:        toID,
		label:       node.AttrOr("", "label", ""),
		labelSize:   labelSize,
		labelFill:   nonEmpty(node.AttrOr("", "label-fill", ""), defaultLabelFill),
		passthrough: passthrough,
	}, nil
}

// layoutGraph runs the layered phases and converts ranks and orders to
// concrete positions: ranks advance along the main axis by each rank's
// extent plus rank-gap, members advance along the cross axis by
// node-gap, and each rank is centered on the widest rank's span.
func layoutGraph(nodes []graphNodeSpec, edges []graphEdgeSpec, nodeIndex map[string]int, direction string, nodeGap, rankGap float64) []geom.Point {
	g := dag.NewGraph(len(nodes))
	for _, edge := range edges {
		g.AddEdge(nodeIndex[edge.fromID], nodeIndex[edge.toID])
	}
	layered := dag.Layer(g)

	vertical := direction == "TB" || direction == "BT"
	crossSize := func(i int) float64 {
		if vertical {
			return nodes[i].width
		}
		return nodes[i].height
	}
	mainSize := func(i int) float64 {
		if vertical {
			return nodes[i].height
		}
		return nodes[i].width
	}

	rankCount := len(layered.Order)
	crossSpan := make([]float64, rankCount)
	mainExtent := make([]float64, rankCount)
	maxCrossSpan := 0.0
	for r, members := range layered.Order {
		span := 0.0
		extent := 0.0
		for _, n := range members {
			span += crossSize(n)
			if mainSize(n) > extent {
				extent = mainSize(n)
			}
		}
		if len(members) > 0 {
			span += nodeGap * float64(len(members)-1)
		}
		crossSpan[r] = span
		mainExtent[r] = extent
		if span > maxCrossSpan {
			maxCrossSpan = span
		}
	}

	mainOrigin := make([]float64, rankCount)
	cursor := 0.0
	for r := 0; r < rankCount; r++ {
		mainOrigin[r] = cursor
		cursor += mainExtent[r] + rankGap
	}

	positions := make([]geom.Point, len(nodes))
	for r, members := range layered.Order {
		crossCursor := (maxCrossSpan - crossSpan[r]) / 2
		for _, n := range members {
			if vertical {
				yBase := mainOrigin[r]
				yPos := yBase
				if direction == "BT" {
					yPos = -(yBase + nodes[n].height)
				}
				positions[n] = geom.Point{X: crossCursor, Y: yPos}
				crossCursor += nodes[n].width + nodeGap
			} else {
				xBase := mainOrigin[r]
				xPos := xBase
				if direction == "RL" {
					xPos = -(xBase + nodes[n].width)
				}
				positions[n] = geom.Point{X: xPos, Y: crossCursor}
				crossCursor += nodes[n].height + nodeGap
			}
		}
	}
	return positions
}

// edgeEndpoints clips the segment between two node centers to each
// node's border. Coincident centers fall back to the centers.
func edgeEndpoints(from, to geom.Rect) (geom.Point, geom.Point) {
	c1 := from.Center()
	c2 := to.Center()
	p1, ok1 := geom.RayRectIntersection(c1, c2, from)
	if !ok1 {
		p1 = c1
	}
	p2, ok2 := geom.RayRectIntersection(c2, c1, to)
	if !ok2 {
		p2 = c2
	}
	return p1, p2
}

// edgeLabel places a label at the segment midpoint, offset 6 units
// along the left-hand normal of the edge vector. A zero-length segment
// keeps the label at the midpoint.
func edgeLabel(edge graphEdgeSpec, pFrom, pTo geom.Point) *dsl.Element {
	midX := (pFrom.X + pTo.X) / 2
	midY := (pFrom.Y + pTo.Y) / 2
	dx := pTo.X - pFrom.X
	dy := pTo.Y - pFrom.Y
	segLen := math.Hypot(dx, dy)

	lx, ly := midX, midY
	if segLen > 1e-9 {
		lx = midX + (-dy/segLen)*6
		ly = midY + (dx/segLen)*6
	}

	label := dsl.NewElement(dsl.SVGNamespace, "text")
	label.SetAttr("", "x", svg.FormatNum(lx))
	label.SetAttr("", "y", svg.FormatNum(ly))
	label.SetAttr("", "text-anchor", "middle")
	label.SetAttr("", "font-size", svg.FormatNum(edge.labelSize))
	label.SetAttr("", "fill", edge.labelFill)
	label.SetAttr("", "dominant-baseline", "alphabetic")
	label.Text = edge.label
	return label
}

// ArrowMarker builds the default arrowhead marker definition shared by
// graph edges and connectors.
func ArrowMarker(id string) *dsl.Element {
	marker := dsl.NewElement(dsl.SVGNamespace, "marker")
	marker.SetAttr("", "id", id)
	marker.SetAttr("", "viewBox", "0 0 10 10")
	marker.SetAttr("", "refX", "9")
	marker.SetAttr("", "refY", "5")
	marker.SetAttr("", "markerWidth", "6")
	marker.SetAttr("", "markerHeight", "6")
	marker.SetAttr("", "orient", "auto")
	head := dsl.NewElement(dsl.SVGNamespace, "path")
	head.SetAttr("", "d", "M 0 0 L 10 5 L 0 10 z")
	head.SetAttr("", "fill", "#555")
	marker.Append(head)
	return marker
}

func hasMarkerAttr(attrs []dsl.Attr) bool {
	for _, a := range attrs {
		if a.Local == "marker-end" || a.Local == "marker-start" {
			return true
		}
	}
	return false
}

func setDefaultAttr(el *dsl.Element, name, value string) {
	if _, ok := el.Attr("", name); !ok {
		el.SetAttr("", name, value)
	}
}

func nonEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// nonNegativeAttr parses a numeric attribute that must be >= 0.
func nonNegativeAttr(el *dsl.Element, name string, def float64) (float64, error) {
	v, ok := el.Attr("", name)
	if !ok {
		return def, nil
	}
	n, parsed := dsl.ParseLength(v)
	if !parsed || n < 0 {
		return 0, errors.New(errors.CodeGraphArgs,
			"attribute %s must be a non-negative number (got %q)", name, v)
	}
	return n, nil
}

// numericAttr parses a numeric attribute that may be any number.
func numericAttr(el *dsl.Element, name string, def float64) (float64, error) {
	v, ok := el.Attr("", name)
	if !ok {
		return def, nil
	}
	n, parsed := dsl.ParseLength(v)
	if !parsed {
		return 0, errors.New(errors.CodeGraphArgs,
			"attribute %s must be numeric (got %q)", name, v)
	}
	return n, nil
}
