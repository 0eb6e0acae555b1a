// Package layout implements the box (flex) layout engine and the graph
// layout driver. Both work bottom-up over the dsl tree: children are
// rendered and measured first, then containers derive their own size
// and wrap children in positioned groups.
package layout

import (
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/diagramforge/diagramforge/pkg/dsl"
	"github.com/diagramforge/diagramforge/pkg/geom"
	"github.com/diagramforge/diagramforge/pkg/metrics"
	"github.com/diagramforge/diagramforge/pkg/svg"
)

// Engine renders DSL layout constructs into positioned SVG. It is
// stateless across invocations and safe for concurrent use.
type Engine struct {
	NS       string // DSL namespace URI of the current document
	Measurer metrics.Measurer
	Rules    []StyleRule
	Logger   *log.Logger
}

// NewEngine builds an engine for one document's namespace and style
// rules. A nil measurer falls back to the deterministic heuristic; a
// nil logger discards.
func NewEngine(ns string, m metrics.Measurer, rules []StyleRule, logger *log.Logger) *Engine {
	if m == nil {
		m = metrics.Heuristic{}
	}
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Engine{NS: ns, Measurer: m, Rules: rules, Logger: logger}
}

// Rendered is the result of rendering one node: the output element (nil
// when the node produces no visual output), its measured size, and its
// bounding box in the parent coordinate system when known.
type Rendered struct {
	Element *dsl.Element
	Width   float64
	Height  float64
	BBox    geom.Rect
	HasBBox bool
}

// hint is an optional available-width value for text wrapping.
type hint struct {
	value float64
	ok    bool
}

func someHint(v float64) hint { return hint{value: v, ok: true} }

// fontContext carries inherited font family/path down the tree.
type fontContext struct {
	family string
	path   string
}

func (fc fontContext) merge(family, path string) fontContext {
	out := fc
	if family != "" {
		out.family = family
	}
	if path != "" {
		out.path = path
	}
	return out
}

// RenderNode renders one child of the document (or of a flex container)
// into plain SVG, bottom-up.
func (e *Engine) RenderNode(node *dsl.Element) Rendered {
	return e.renderNode(node, hint{}, fontContext{})
}

// RenderDocumentChild renders a root-level child with the font family
// and path declared on the document root flowing in as the inherited
// context.
func (e *Engine) RenderDocumentChild(node *dsl.Element, family, path string) Rendered {
	return e.renderNode(node, hint{}, fontContext{family: family, path: path})
}

func (e *Engine) renderNode(node *dsl.Element, wrapHint hint, fonts fontContext) Rendered {
	if node.Space == e.NS {
		if node.Local == "flex" {
			return e.renderFlex(node, wrapHint, fonts)
		}
		// Remaining DSL elements (anchors were collected earlier,
		// unknown extensions) emit nothing.
		return Rendered{}
	}

	if node.Local == "text" {
		return e.renderText(node, wrapHint, fonts)
	}
	return e.renderGeneric(node, wrapHint, fonts)
}

// renderFlex lays out a diag:flex container in column or row direction.
func (e *Engine) renderFlex(node *dsl.Element, wrapHint hint, fonts fontContext) Rendered {
	direction := strings.ToLower(strings.TrimSpace(node.AttrOr("", "direction", "column")))
	gap := attrNum(node, "gap", 0)
	padding := attrNum(node, "padding", 0)
	x := attrNum(node, "x", 0)
	y := attrNum(node, "y", 0)
	bgClass, _ := node.Attr("", "background-class")
	bgStyle, _ := node.Attr("", "background-style")

	target := wrapHint
	if v, ok := node.Attr("", "width"); ok {
		if n, ok := dsl.ParseLength(v); ok {
			target = someHint(n)
		}
	}

	family, path := fontInfo(node, e.NS, e.Rules)
	childFonts := fonts.merge(family, path)

	childHint := hint{}
	if target.ok {
		childHint = someHint(maxF(target.value-2*padding, 0))
	}

	var children []Rendered
	for _, child := range node.Children {
		r := e.renderNode(child, childHint, childFonts)
		if r.Element != nil {
			children = append(children, r)
		}
	}

	g := dsl.NewElement(dsl.SVGNamespace, "g")
	g.SetAttr("", "transform", "translate("+svg.FormatNum(x)+", "+svg.FormatNum(y)+")")
	consumed := map[string]bool{
		"x": true, "y": true, "width": true, "direction": true,
		"gap": true, "padding": true,
		"background-class": true, "background-style": true,
	}
	for _, a := range node.Attrs {
		if a.Space != "" || consumed[a.Local] {
			continue
		}
		g.SetAttr("", a.Local, a.Value)
	}

	var width, height float64
	if direction == "row" {
		width, height = e.layoutRow(g, children, target, padding, gap)
	} else {
		width, height = e.layoutColumn(g, children, target, padding, gap)
	}

	if bgClass != "" || bgStyle != "" {
		rect := dsl.NewElement(dsl.SVGNamespace, "rect")
		rect.SetAttr("", "x", "0")
		rect.SetAttr("", "y", "0")
		rect.SetAttr("", "width", svg.FormatNum(width))
		rect.SetAttr("", "height", svg.FormatNum(height))
		if bgClass != "" {
			rect.SetAttr("", "class", bgClass)
		}
		if bgStyle != "" {
			rect.SetAttr("", "style", bgStyle)
		}
		g.Children = append([]*dsl.Element{rect}, g.Children...)
	}

	e.Logger.Debug("flex laid out",
		"direction", direction, "children", len(children),
		"width", width, "height", height)

	return Rendered{
		Element: g,
		Width:   width,
		Height:  height,
		BBox:    geom.NewRect(x, y, width, height),
		HasBBox: true,
	}
}

// layoutColumn stacks children vertically: height is padding plus the
// gap-separated sum of child heights; width tracks the widest child
// unless the explicit target is wider.
func (e *Engine) layoutColumn(container *dsl.Element, children []Rendered, target hint, padding, gap float64) (w, h float64) {
	maxChildWidth := 0.0
	for _, c := range children {
		if c.Width > maxChildWidth {
			maxChildWidth = c.Width
		}
	}
	interiorWidth := maxChildWidth
	if target.ok {
		interiorWidth = maxF(maxF(target.value-2*padding, 0), maxChildWidth)
	}

	yCursor := padding
	for _, c := range children {
		wrapper := dsl.NewElement(dsl.SVGNamespace, "g")
		wrapper.SetAttr("", "transform",
			"translate("+svg.FormatNum(padding)+", "+svg.FormatNum(yCursor)+")")
		wrapper.Append(c.Element)
		container.Append(wrapper)
		yCursor += c.Height + gap
	}
	if len(children) > 0 {
		yCursor -= gap
	}
	interiorHeight := maxF(yCursor-padding, 0)

	totalWidth := interiorWidth + 2*padding
	if target.ok {
		totalWidth = maxF(totalWidth, target.value)
	}
	return totalWidth, interiorHeight + 2*padding
}

// layoutRow stacks children horizontally with the axis roles swapped.
func (e *Engine) layoutRow(container *dsl.Element, children []Rendered, target hint, padding, gap float64) (w, h float64) {
	naturalWidth := 0.0
	maxHeight := 0.0
	for _, c := range children {
		naturalWidth += c.Width
		if c.Height > maxHeight {
			maxHeight = c.Height
		}
	}
	if len(children) > 0 {
		naturalWidth += gap * float64(len(children)-1)
	}
	interiorWidth := naturalWidth
	if target.ok {
		interiorWidth = maxF(maxF(target.value-2*padding, 0), naturalWidth)
	}

	xCursor := padding
	for _, c := range children {
		wrapper := dsl.NewElement(dsl.SVGNamespace, "g")
		wrapper.SetAttr("", "transform",
			"translate("+svg.FormatNum(xCursor)+", "+svg.FormatNum(padding)+")")
		wrapper.Append(c.Element)
		container.Append(wrapper)
		xCursor += c.Width + gap
	}

	totalWidth := interiorWidth + 2*padding
	if target.ok {
		totalWidth = maxF(totalWidth, target.value)
	}
	return totalWidth, maxHeight + 2*padding
}

// renderText measures a text run and, when wrapping is requested and a
// width is available, splits it into tspan lines.
func (e *Engine) renderText(node *dsl.Element, wrapHint hint, fonts fontContext) Rendered {
	wrap := strings.EqualFold(node.AttrOr(e.NS, "wrap", "false"), "true")
	if v, ok := node.Attr(e.NS, "max-width"); ok {
		if n, ok := dsl.ParseLength(v); ok {
			wrapHint = someHint(n)
		}
	}

	size := fontSize(node, e.Rules)
	family, path := fontInfo(node, e.NS, e.Rules)
	if family == "" {
		family = fonts.family
	}
	if path == "" {
		path = fonts.path
	}
	if family == "" {
		family = DefaultFontFamily
	}
	fm := e.Measurer.Metrics(size, family, path)

	if wrap && wrapHint.ok {
		content := gatherText(node)
		lines := metrics.Wrap(e.Measurer, content, wrapHint.value, size, family, path)

		out := dsl.NewElement(node.Space, node.Local)
		copyNonDSLAttrs(node, out, e.NS)
		applyFontAttr(out, family)
		ensureBaseline(out, fm.Ascent)

		baseX := node.AttrOr("", "x", "0")
		maxLineWidth := 0.0
		for i, line := range lines {
			if w := e.Measurer.Measure(line, size, family, path); w > maxLineWidth {
				maxLineWidth = w
			}
			tspan := dsl.NewElement(dsl.SVGNamespace, "tspan")
			tspan.SetAttr("", "x", baseX)
			if i == 0 {
				tspan.SetAttr("", "dy", "0")
			} else {
				tspan.SetAttr("", "dy", "1.2em")
			}
			tspan.Text = line
			out.Append(tspan)
		}

		width := wrapHint.value
		height := fm.Ascent + fm.Descent + float64(len(lines)-1)*fm.LineHeight
		return Rendered{
			Element: out,
			Width:   width,
			Height:  height,
			BBox:    textBBoxAt(node, width, height, fm.Ascent),
			HasBBox: true,
		}
	}

	out := cloneWithoutDSL(node, e.NS)
	applyFontAttr(out, family)
	ensureBaseline(out, fm.Ascent)
	width := e.Measurer.Measure(gatherText(node), size, family, path)
	height := fm.Ascent + fm.Descent
	return Rendered{
		Element: out,
		Width:   width,
		Height:  height,
		BBox:    textBBoxAt(node, width, height, fm.Ascent),
		HasBBox: true,
	}
}

// renderGeneric clones a pass-through SVG element, renders its children
// recursively, and measures the result.
func (e *Engine) renderGeneric(node *dsl.Element, wrapHint hint, fonts fontContext) Rendered {
	clone := dsl.NewElement(node.Space, node.Local)
	copyNonDSLAttrs(node, clone, e.NS)
	clone.Text = node.Text
	for _, child := range node.Children {
		r := e.renderNode(child, wrapHint, fonts)
		if r.Element != nil {
			r.Element.Tail = child.Tail
			clone.Append(r.Element)
		}
	}

	bbox, ok := Measure(clone, e.Measurer, e.Rules)
	if !ok {
		return Rendered{Element: clone}
	}
	return Rendered{
		Element: clone,
		Width:   bbox.Width(),
		Height:  bbox.Height(),
		BBox:    bbox,
		HasBBox: true,
	}
}

// textBBoxAt anchors a measured text box at the element's declared
// x/baseline position.
func textBBoxAt(node *dsl.Element, width, height, ascent float64) geom.Rect {
	x := attrNum(node, "x", 0)
	baseline := attrNum(node, "y", 0)
	return geom.NewRect(x, baseline-ascent, width, height)
}

// cloneWithoutDSL deep-copies a subtree, dropping DSL-namespaced
// attributes everywhere.
func cloneWithoutDSL(node *dsl.Element, ns string) *dsl.Element {
	clone := node.Clone()
	dsl.Walk(clone, func(el *dsl.Element) bool {
		kept := el.Attrs[:0]
		for _, a := range el.Attrs {
			if a.Space != ns {
				kept = append(kept, a)
			}
		}
		el.Attrs = kept
		return true
	})
	return clone
}

func copyNonDSLAttrs(src, dst *dsl.Element, ns string) {
	for _, a := range src.Attrs {
		if a.Space == ns {
			continue
		}
		dst.SetAttr("", a.Local, a.Value)
	}
}

func applyFontAttr(el *dsl.Element, family string) {
	if family == "" {
		return
	}
	if _, ok := el.Attr("", "font-family"); !ok {
		el.SetAttr("", "font-family", family)
	}
}

// ensureBaseline sets the text baseline to the font ascent when no y
// was declared, so the glyph box starts at the local origin.
func ensureBaseline(el *dsl.Element, ascent float64) {
	if _, ok := el.Attr("", "y"); !ok {
		el.SetAttr("", "y", svg.FormatNum(ascent))
	}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
