package layout

import (
	"regexp"
	"strconv"

	"github.com/diagramforge/diagramforge/pkg/dsl"
	"github.com/diagramforge/diagramforge/pkg/geom"
	"github.com/diagramforge/diagramforge/pkg/metrics"
)

// Measure computes the bounding box of a rendered element in its
// parent's coordinate system: the union of the element's own geometry
// and all descendants, with the element's transform attribute composed
// on top. Elements with no measurable content report ok=false rather
// than a zero-size box.
func Measure(e *dsl.Element, m metrics.Measurer, rules []StyleRule) (geom.Rect, bool) {
	local, ok := measureLocal(e, m, rules)
	if !ok {
		return geom.Rect{}, false
	}
	if transform, has := e.Attr("", "transform"); has {
		return geom.ParseTransform(transform).ApplyRect(local), true
	}
	return local, true
}

// measureLocal measures in the element's own (pre-transform) space.
func measureLocal(e *dsl.Element, m metrics.Measurer, rules []StyleRule) (geom.Rect, bool) {
	switch e.Local {
	case "defs", "style", "title", "desc", "metadata", "marker", "symbol":
		return geom.Rect{}, false
	case "rect", "image":
		x := attrNum(e, "x", 0)
		y := attrNum(e, "y", 0)
		w := attrNum(e, "width", 0)
		h := attrNum(e, "height", 0)
		return geom.NewRect(x, y, w, h), true
	case "circle":
		cx := attrNum(e, "cx", 0)
		cy := attrNum(e, "cy", 0)
		r := attrNum(e, "r", 0)
		return geom.Rect{MinX: cx - r, MinY: cy - r, MaxX: cx + r, MaxY: cy + r}, true
	case "ellipse":
		cx := attrNum(e, "cx", 0)
		cy := attrNum(e, "cy", 0)
		rx := attrNum(e, "rx", 0)
		ry := attrNum(e, "ry", 0)
		return geom.Rect{MinX: cx - rx, MinY: cy - ry, MaxX: cx + rx, MaxY: cy + ry}, true
	case "line":
		p1 := geom.Point{X: attrNum(e, "x1", 0), Y: attrNum(e, "y1", 0)}
		p2 := geom.Point{X: attrNum(e, "x2", 0), Y: attrNum(e, "y2", 0)}
		r := geom.Rect{MinX: p1.X, MinY: p1.Y, MaxX: p1.X, MaxY: p1.Y}
		return r.Union(geom.Rect{MinX: p2.X, MinY: p2.Y, MaxX: p2.X, MaxY: p2.Y}), true
	case "polyline", "polygon":
		pts, ok := e.Attr("", "points")
		if !ok {
			return geom.Rect{}, false
		}
		return pointListBounds(pts)
	case "path":
		d, ok := e.Attr("", "d")
		if !ok {
			return geom.Rect{}, false
		}
		return pathBounds(d)
	case "text":
		return textBounds(e, m, rules), true
	default:
		// Grouping constructs and unknown containers: union of children.
		var out geom.Rect
		found := false
		for _, c := range e.Children {
			r, ok := Measure(c, m, rules)
			if !ok {
				continue
			}
			if !found {
				out, found = r, true
			} else {
				out = out.Union(r)
			}
		}
		return out, found
	}
}

// textBounds measures a text element. Wrapped text carries one tspan
// per line; unwrapped text is measured as a single run.
func textBounds(e *dsl.Element, m metrics.Measurer, rules []StyleRule) geom.Rect {
	size := fontSize(e, rules)
	family, path := fontInfo(e, "", rules)
	if family == "" {
		family = DefaultFontFamily
	}
	fm := m.Metrics(size, family, path)

	x := attrNum(e, "x", 0)
	baseline := attrNum(e, "y", 0)

	var width float64
	lineCount := 1
	if hasTspans(e) {
		lineCount = 0
		for _, c := range e.Children {
			if c.Local != "tspan" {
				continue
			}
			lineCount++
			if w := m.Measure(gatherText(c), size, family, path); w > width {
				width = w
			}
		}
		if lineCount == 0 {
			lineCount = 1
		}
	} else {
		width = m.Measure(gatherText(e), size, family, path)
	}

	height := fm.Ascent + fm.Descent + float64(lineCount-1)*fm.LineHeight
	top := baseline - fm.Ascent
	return geom.NewRect(x, top, width, height)
}

func hasTspans(e *dsl.Element) bool {
	for _, c := range e.Children {
		if c.Local == "tspan" {
			return true
		}
	}
	return false
}

// BBoxIndex maps element ids to their bounding boxes in root (global)
// coordinates, with occurrence counts for duplicate detection.
type BBoxIndex struct {
	Rects  map[string]geom.Rect
	Counts map[string]int
}

// CollectBBoxes walks the rendered tree and records, for every
// id-bearing element, its bounding box in the root coordinate system.
// When an id occurs more than once the first occurrence's box is kept
// and the count exposes the duplication.
func CollectBBoxes(root *dsl.Element, m metrics.Measurer, rules []StyleRule) BBoxIndex {
	idx := BBoxIndex{
		Rects:  map[string]geom.Rect{},
		Counts: map[string]int{},
	}
	var rec func(e *dsl.Element, ctm geom.Affine)
	rec = func(e *dsl.Element, ctm geom.Affine) {
		if id := e.ID(); id != "" {
			idx.Counts[id]++
			if _, seen := idx.Rects[id]; !seen {
				if local, ok := Measure(e, m, rules); ok {
					idx.Rects[id] = ctm.ApplyRect(local)
				}
			}
		}
		child := ctm
		if transform, has := e.Attr("", "transform"); has {
			child = ctm.Mul(geom.ParseTransform(transform))
		}
		for _, c := range e.Children {
			rec(c, child)
		}
	}
	rec(root, geom.Identity())
	return idx
}

// ContentBounds returns the union box of the root's children in root
// coordinates, ignoring the root's own attributes.
func ContentBounds(root *dsl.Element, m metrics.Measurer, rules []StyleRule) (geom.Rect, bool) {
	var out geom.Rect
	found := false
	for _, c := range root.Children {
		r, ok := Measure(c, m, rules)
		if !ok {
			continue
		}
		if !found {
			out, found = r, true
		} else {
			out = out.Union(r)
		}
	}
	return out, found
}

func attrNum(e *dsl.Element, name string, def float64) float64 {
	v, ok := e.Attr("", name)
	if !ok {
		return def
	}
	if n, ok := dsl.ParseLength(v); ok {
		return n
	}
	return def
}

var numberRe = regexp.MustCompile(`-?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`)

// pointListBounds computes the bounds of a points attribute.
func pointListBounds(points string) (geom.Rect, bool) {
	nums := numberRe.FindAllString(points, -1)
	if len(nums) < 2 {
		return geom.Rect{}, false
	}
	var out geom.Rect
	found := false
	for i := 0; i+1 < len(nums); i += 2 {
		x, err1 := strconv.ParseFloat(nums[i], 64)
		y, err2 := strconv.ParseFloat(nums[i+1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		p := geom.Rect{MinX: x, MinY: y, MaxX: x, MaxY: y}
		if !found {
			out, found = p, true
		} else {
			out = out.Union(p)
		}
	}
	return out, found
}

var pathTokenRe = regexp.MustCompile(`[MmLlHhVvCcSsQqTtAaZz]|` + numberRe.String())

// pathBounds approximates a path's bounds from its on-curve and control
// points. Curves are bounded by their control hull, so the result can
// slightly overestimate but never underestimates the drawn extent.
func pathBounds(d string) (geom.Rect, bool) {
	tokens := pathTokenRe.FindAllString(d, -1)
	var out geom.Rect
	found := false
	var cur, start geom.Point

	extend := func(p geom.Point) {
		r := geom.Rect{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
		if !found {
			out, found = r, true
		} else {
			out = out.Union(r)
		}
	}

	i := 0
	next := func() (float64, bool) {
		if i >= len(tokens) {
			return 0, false
		}
		v, err := strconv.ParseFloat(tokens[i], 64)
		if err != nil {
			return 0, false
		}
		i++
		return v, true
	}

	cmd := byte(0)
	for i < len(tokens) {
		tok := tokens[i]
		if len(tok) == 1 && (tok[0] < '0' || tok[0] > '9') && tok[0] != '-' && tok[0] != '.' {
			cmd = tok[0]
			i++
			if cmd == 'Z' || cmd == 'z' {
				cur = start
			}
			continue
		}

		rel := cmd >= 'a'
		var coords int
		switch cmd {
		case 'M', 'm', 'L', 'l', 'T', 't':
			coords = 1
		case 'H', 'h', 'V', 'v':
			coords = 0 // handled separately
		case 'Q', 'q', 'S', 's':
			coords = 2
		case 'C', 'c':
			coords = 3
		case 'A', 'a':
			// rx ry rot large-arc sweep x y: bound by the endpoint.
			for k := 0; k < 5; k++ {
				if _, ok := next(); !ok {
					return out, found
				}
			}
			coords = 1
		default:
			return out, found
		}

		if cmd == 'H' || cmd == 'h' {
			v, ok := next()
			if !ok {
				return out, found
			}
			if rel {
				cur.X += v
			} else {
				cur.X = v
			}
			extend(cur)
			continue
		}
		if cmd == 'V' || cmd == 'v' {
			v, ok := next()
			if !ok {
				return out, found
			}
			if rel {
				cur.Y += v
			} else {
				cur.Y = v
			}
			extend(cur)
			continue
		}

		var last geom.Point
		for k := 0; k < coords; k++ {
			x, ok1 := next()
			y, ok2 := next()
			if !ok1 || !ok2 {
				return out, found
			}
			p := geom.Point{X: x, Y: y}
			if rel {
				p.X += cur.X
				p.Y += cur.Y
			}
			extend(p)
			last = p
		}
		cur = last
		if cmd == 'M' || cmd == 'm' {
			start = cur
			// Subsequent coordinate pairs are implicit linetos.
			if cmd == 'M' {
				cmd = 'L'
			} else {
				cmd = 'l'
			}
		}
	}
	return out, found
}
