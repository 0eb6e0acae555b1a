package compile

import (
	"math"
	"strconv"
	"strings"

	"github.com/diagramforge/diagramforge/pkg/dsl"
	"github.com/diagramforge/diagramforge/pkg/errors"
	"github.com/diagramforge/diagramforge/pkg/geom"
	"github.com/diagramforge/diagramforge/pkg/layout"
	"github.com/diagramforge/diagramforge/pkg/svg"
)

const (
	defaultConnectorStroke = "#555"
	defaultLabelSize       = 10.0
	defaultLabelFill       = "#555"
)

type anchorSpec struct {
	id         string
	absolute   bool
	x, y       float64
	relativeTo string
	side       string
	offsetX    float64
	offsetY    float64
}

type arrowSpec struct {
	fromID      string
	toID        string
	label       string
	labelSize   float64
	labelFill   string
	passthrough []dsl.Attr
}

var validSides = map[string]bool{
	"top": true, "bottom": true, "left": true, "right": true, "center": true,
}

// collectAnchors gathers anchor declarations anywhere in the tree.
// Anchors produce no output themselves; the renderer drops them along
// with every other DSL element.
func collectAnchors(root *dsl.Element, ns string) ([]anchorSpec, error) {
	var specs []anchorSpec
	var firstErr error
	dsl.Walk(root, func(e *dsl.Element) bool {
		if firstErr != nil {
			return false
		}
		if !e.Is(ns, "anchor") {
			return true
		}
		spec, err := parseAnchor(e)
		if err != nil {
			firstErr = err
			return false
		}
		specs = append(specs, spec)
		return true
	})
	return specs, firstErr
}

func parseAnchor(e *dsl.Element) (anchorSpec, error) {
	id := strings.TrimSpace(e.ID())
	if id == "" {
		return anchorSpec{}, errors.New(errors.CodeAnchorArgs,
			"anchor requires a non-empty id attribute")
	}

	x, hasX := anchorNum(e, "x")
	y, hasY := anchorNum(e, "y")
	relativeTo := strings.TrimSpace(e.AttrOr("", "relative-to", ""))
	side := strings.ToLower(strings.TrimSpace(e.AttrOr("", "side", "center")))
	offsetX, _ := anchorNum(e, "offset-x")
	offsetY, _ := anchorNum(e, "offset-y")

	hasAbs := hasX || hasY
	hasRel := relativeTo != ""
	switch {
	case hasAbs && hasRel:
		return anchorSpec{}, errors.New(errors.CodeAnchorArgs,
			"anchor %q cannot combine absolute (x/y) and relative-to modes", id)
	case !hasAbs && !hasRel:
		return anchorSpec{}, errors.New(errors.CodeAnchorArgs,
			"anchor %q requires either x/y or relative-to", id)
	case hasAbs && (!hasX || !hasY):
		return anchorSpec{}, errors.New(errors.CodeAnchorArgs,
			"anchor %q absolute mode requires both x and y", id)
	}
	if !validSides[side] {
		return anchorSpec{}, errors.New(errors.CodeAnchorArgs,
			"anchor %q side must be one of top|bottom|left|right|center (got %q)", id, side)
	}

	return anchorSpec{
		id:         id,
		absolute:   hasAbs,
		x:          x,
		y:          y,
		relativeTo: relativeTo,
		side:       side,
		offsetX:    offsetX,
		offsetY:    offsetY,
	}, nil
}

func anchorNum(e *dsl.Element, name string) (float64, bool) {
	v, ok := e.Attr("", name)
	if !ok {
		return 0, false
	}
	n, parsed := dsl.ParseLength(v)
	if !parsed {
		return 0, false
	}
	return n, true
}

// collectArrows gathers connector declarations anywhere in the tree.
func collectArrows(root *dsl.Element, ns string) ([]arrowSpec, error) {
	var specs []arrowSpec
	var firstErr error
	dsl.Walk(root, func(e *dsl.Element) bool {
		if firstErr != nil {
			return false
		}
		if !e.Is(ns, "arrow") {
			return true
		}
		spec, err := parseArrow(e)
		if err != nil {
			firstErr = err
			return false
		}
		specs = append(specs, spec)
		return true
	})
	return specs, firstErr
}

func parseArrow(e *dsl.Element) (arrowSpec, error) {
	fromID := strings.TrimSpace(e.AttrOr("", "from", ""))
	toID := strings.TrimSpace(e.AttrOr("", "to", ""))
	if fromID == "" || toID == "" {
		return arrowSpec{}, errors.New(errors.CodeArrowArgs,
			"arrow requires non-empty from and to attributes")
	}

	labelSize := defaultLabelSize
	if v, ok := e.Attr("", "label-size"); ok {
		n, parsed := dsl.ParseLength(v)
		if !parsed || n <= 0 {
			return arrowSpec{}, errors.New(errors.CodeArrowArgs,
				"arrow label-size must be > 0 (got %q)", v)
		}
		labelSize = n
	}

	control := map[string]bool{
		"from": true, "to": true, "label": true,
		"label-size": true, "label-fill": true,
	}
	var passthrough []dsl.Attr
	for _, a := range e.Attrs {
		if a.Space != "" || control[a.Local] {
			continue
		}
		passthrough = append(passthrough, a)
	}

	fill := e.AttrOr("", "label-fill", "")
	if fill == "" {
		fill = defaultLabelFill
	}
	return arrowSpec{
		fromID:      fromID,
		toID:        toID,
		label:       e.AttrOr("", "label", ""),
		labelSize:   labelSize,
		labelFill:   fill,
		passthrough: passthrough,
	}, nil
}

// emitConnectors resolves anchors against the rendered tree's bounding
// boxes and appends one line (plus optional label) per connector at the
// document root, in global coordinates.
func (c *Compiler) emitConnectors(svgRoot *dsl.Element, arrows []arrowSpec, anchors []anchorSpec, rules []layout.StyleRule) error {
	idx := layout.CollectBBoxes(svgRoot, c.measurer, rules)

	anchorSeen := map[string]bool{}
	for _, a := range anchors {
		if anchorSeen[a.id] {
			return errors.New(errors.CodeAnchorDuplicate, "anchor id %q is duplicated", a.id)
		}
		anchorSeen[a.id] = true
		if idx.Counts[a.id] > 0 {
			return errors.New(errors.CodeAnchorDuplicate,
				"anchor id %q collides with an existing element id", a.id)
		}
	}

	anchorPoints := map[string]geom.Point{}
	for _, a := range anchors {
		var p geom.Point
		if a.absolute {
			p = geom.Point{X: a.x, Y: a.y}
		} else {
			switch idx.Counts[a.relativeTo] {
			case 0:
				return errors.New(errors.CodeAnchorTarget,
					"anchor %q relative-to=%q id not found", a.id, a.relativeTo)
			case 1:
			default:
				return errors.New(errors.CodeAnchorTarget,
					"anchor %q relative-to=%q is duplicated", a.id, a.relativeTo)
			}
			rect, ok := idx.Rects[a.relativeTo]
			if !ok {
				return errors.New(errors.CodeAnchorTarget,
					"anchor %q relative-to=%q has no measurable bounding box", a.id, a.relativeTo)
			}
			p = anchorPointFromBBox(rect, a.side)
		}
		anchorPoints[a.id] = geom.Point{X: p.X + a.offsetX, Y: p.Y + a.offsetY}
	}

	markerID := ""
	for _, arrow := range arrows {
		pFrom, pTo, err := c.resolveEndpoints(arrow, anchorPoints, idx)
		if err != nil {
			return err
		}

		line := dsl.NewElement(dsl.SVGNamespace, "line")
		line.SetAttr("", "x1", svg.FormatNum(pFrom.X))
		line.SetAttr("", "y1", svg.FormatNum(pFrom.Y))
		line.SetAttr("", "x2", svg.FormatNum(pTo.X))
		line.SetAttr("", "y2", svg.FormatNum(pTo.Y))
		for _, a := range arrow.passthrough {
			line.SetAttr("", a.Local, a.Value)
		}
		if _, ok := line.Attr("", "stroke"); !ok {
			line.SetAttr("", "stroke", defaultConnectorStroke)
		}
		if _, ok := line.Attr("", "stroke-width"); !ok {
			line.SetAttr("", "stroke-width", "1")
		}
		if !hasMarkerAttr(arrow.passthrough) {
			if markerID == "" {
				markerID = ensureDefaultArrowMarker(svgRoot)
			}
			line.SetAttr("", "marker-end", "url(#"+markerID+")")
		}
		svgRoot.Append(line)

		if arrow.label != "" {
			svgRoot.Append(arrowLabel(arrow, pFrom, pTo))
		}
	}
	return nil
}

// resolveEndpoints turns a connector's from/to references into concrete
// points. Anchor references use the anchor's coordinate verbatim;
// element references clip the segment between the two reference points
// to the element's border.
func (c *Compiler) resolveEndpoints(arrow arrowSpec, anchorPoints map[string]geom.Point, idx layout.BBoxIndex) (geom.Point, geom.Point, error) {
	fromAnchor, fromIsAnchor := anchorPoints[arrow.fromID]
	toAnchor, toIsAnchor := anchorPoints[arrow.toID]

	var fromRect, toRect geom.Rect
	if !fromIsAnchor {
		rect, err := endpointRect(arrow.fromID, "from", idx)
		if err != nil {
			return geom.Point{}, geom.Point{}, err
		}
		fromRect = rect
	}
	if !toIsAnchor {
		rect, err := endpointRect(arrow.toID, "to", idx)
		if err != nil {
			return geom.Point{}, geom.Point{}, err
		}
		toRect = rect
	}

	switch {
	case fromIsAnchor && toIsAnchor:
		return fromAnchor, toAnchor, nil
	case fromIsAnchor:
		return fromAnchor, pointOnBBoxToward(toRect, fromAnchor), nil
	case toIsAnchor:
		return pointOnBBoxToward(fromRect, toAnchor), toAnchor, nil
	default:
		pFrom, pTo := resolveArrowPoints(fromRect, toRect)
		return pFrom, pTo, nil
	}
}

func endpointRect(id, role string, idx layout.BBoxIndex) (geom.Rect, error) {
	switch idx.Counts[id] {
	case 0:
		return geom.Rect{}, errors.New(errors.CodeArrowEndpoint,
			"arrow %s=%q id not found", role, id)
	case 1:
	default:
		return geom.Rect{}, errors.New(errors.CodeArrowEndpoint,
			"arrow %s=%q is duplicated", role, id)
	}
	rect, ok := idx.Rects[id]
	if !ok {
		return geom.Rect{}, errors.New(errors.CodeArrowEndpoint,
			"arrow %s=%q has no measurable bounding box", role, id)
	}
	return rect, nil
}

// resolveArrowPoints clips the segment between two element centers to
// each element's border. Overlapping boxes, where the ray never exits,
// fall back to the centers themselves.
func resolveArrowPoints(from, to geom.Rect) (geom.Point, geom.Point) {
	c1 := from.Center()
	c2 := to.Center()
	p1, ok := geom.RayRectIntersection(c1, c2, from)
	if !ok {
		p1 = c1
	}
	p2, ok := geom.RayRectIntersection(c2, c1, to)
	if !ok {
		p2 = c2
	}
	return p1, p2
}

func anchorPointFromBBox(r geom.Rect, side string) geom.Point {
	center := r.Center()
	switch side {
	case "top":
		return geom.Point{X: center.X, Y: r.MinY}
	case "bottom":
		return geom.Point{X: center.X, Y: r.MaxY}
	case "left":
		return geom.Point{X: r.MinX, Y: center.Y}
	case "right":
		return geom.Point{X: r.MaxX, Y: center.Y}
	default:
		return center
	}
}

// pointOnBBoxToward walks from the box center toward a point and
// returns the border crossing, or the center when the target coincides
// with it.
func pointOnBBoxToward(r geom.Rect, toward geom.Point) geom.Point {
	center := r.Center()
	if p, ok := geom.RayRectIntersection(center, toward, r); ok {
		return p
	}
	return center
}

// ensureDefaultArrowMarker inserts the shared arrowhead marker into the
// document's defs, minting an id that cannot collide.
func ensureDefaultArrowMarker(svgRoot *dsl.Element) string {
	existing := map[string]bool{}
	dsl.Walk(svgRoot, func(e *dsl.Element) bool {
		if id := e.ID(); id != "" {
			existing[id] = true
		}
		return true
	})
	markerID := "diag-arrow-default"
	for i := 1; existing[markerID]; i++ {
		markerID = "diag-arrow-default-" + strconv.Itoa(i)
	}

	var defs *dsl.Element
	for _, child := range svgRoot.Children {
		if child.Space == dsl.SVGNamespace && child.Local == "defs" {
			defs = child
			break
		}
	}
	if defs == nil {
		defs = dsl.NewElement(dsl.SVGNamespace, "defs")
		svgRoot.Children = append([]*dsl.Element{defs}, svgRoot.Children...)
	}
	defs.Append(layout.ArrowMarker(markerID))
	return markerID
}

// arrowLabel places a connector label just off the line at its
// midpoint, on whichever normal points more upward, rotated with the
// segment when it is steep but never upside-down.
func arrowLabel(arrow arrowSpec, pFrom, pTo geom.Point) *dsl.Element {
	dx := pTo.X - pFrom.X
	dy := pTo.Y - pFrom.Y
	segLen := math.Max(math.Hypot(dx, dy), 1e-9)
	midX := (pFrom.X + pTo.X) / 2
	midY := (pFrom.Y + pTo.Y) / 2

	n1x, n1y := dy/segLen, -dx/segLen
	n2x, n2y := -dy/segLen, dx/segLen
	nx, ny := n1x, n1y
	if n2y < n1y {
		nx, ny = n2x, n2y
	}
	offset := math.Max(2, arrow.labelSize*0.25)
	lx := midX + nx*offset
	ly := midY + ny*offset

	angle := math.Atan2(dy, dx) * 180 / math.Pi
	if angle > 90 {
		angle -= 180
	} else if angle < -90 {
		angle += 180
	}

	label := dsl.NewElement(dsl.SVGNamespace, "text")
	label.SetAttr("", "x", svg.FormatNum(lx))
	label.SetAttr("", "y", svg.FormatNum(ly))
	label.SetAttr("", "text-anchor", "middle")
	label.SetAttr("", "font-size", svg.FormatNum(arrow.labelSize))
	label.SetAttr("", "fill", arrow.labelFill)
	label.SetAttr("", "dominant-baseline", "alphabetic")
	if math.Abs(angle) >= 15 {
		label.SetAttr("", "transform",
			"rotate("+svg.FormatNum(angle)+" "+svg.FormatNum(lx)+" "+svg.FormatNum(ly)+")")
	}
	label.Text = arrow.label
	return label
}

func hasMarkerAttr(attrs []dsl.Attr) bool {
	for _, a := range attrs {
		if a.Local == "marker-end" || a.Local == "marker-start" {
			return true
		}
	}
	return false
}
