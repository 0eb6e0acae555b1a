package compile

import (
	"regexp"
	"strings"

	"github.com/diagramforge/diagramforge/pkg/dsl"
	"github.com/diagramforge/diagramforge/pkg/layout"
	"github.com/diagramforge/diagramforge/pkg/svg"
)

// applyBounds measures the rendered tree, applies the diagram padding
// symmetrically, and sets viewBox/width/height on the svg root.
// Explicit root dimensions survive when they cover the needed extent.
func (c *Compiler) applyBounds(svgRoot *dsl.Element, originalWidth, originalHeight string, padding float64, rules []layout.StyleRule) {
	overall, ok := layout.ContentBounds(svgRoot, c.measurer, rules)
	if !ok {
		return
	}

	minX := overall.MinX
	minY := overall.MinY
	width := maxZero(overall.Width())
	height := maxZero(overall.Height())
	if padding > 0 {
		minX -= padding
		minY -= padding
		width += 2 * padding
		height += 2 * padding
	}
	if width == 0 && height == 0 {
		return
	}

	svgRoot.SetAttr("", "viewBox",
		svg.FormatNum(minX)+" "+svg.FormatNum(minY)+" "+
			svg.FormatNum(width)+" "+svg.FormatNum(height))
	ensureDimension(svgRoot, "width", width, originalWidth)
	ensureDimension(svgRoot, "height", height, originalHeight)
}

// ensureDimension keeps an explicitly declared dimension when it is at
// least the needed extent, otherwise writes the computed value.
func ensureDimension(svgRoot *dsl.Element, attr string, needed float64, original string) {
	if needed <= 0 && original != "" {
		svgRoot.SetAttr("", attr, original)
		return
	}
	if original != "" {
		if n, ok := dsl.ParseLength(original); ok && n >= needed {
			svgRoot.SetAttr("", attr, original)
			return
		}
	}
	svgRoot.SetAttr("", attr, svg.FormatNum(maxZero(needed)))
}

var viewBoxSplitRe = regexp.MustCompile(`[ ,]+`)

// applyBackground inserts a full-viewport fill rect as the first child.
// The color comes from the source root's background attribute; "none"
// and "transparent" skip the rect entirely.
func applyBackground(srcRoot, svgRoot *dsl.Element, ns, fallback string) {
	color := strings.TrimSpace(srcRoot.AttrOr(ns, "background", ""))
	if color == "" {
		color = fallback
	}
	if color == "" {
		color = "#fff"
	}
	switch strings.ToLower(color) {
	case "none", "transparent":
		return
	}

	minX, minY := 0.0, 0.0
	var width, height float64
	haveSize := false
	if vb, ok := svgRoot.Attr("", "viewBox"); ok {
		parts := viewBoxSplitRe.Split(strings.TrimSpace(vb), -1)
		if len(parts) >= 4 {
			x, okX := dsl.ParseLength(parts[0])
			y, okY := dsl.ParseLength(parts[1])
			w, okW := dsl.ParseLength(parts[2])
			h, okH := dsl.ParseLength(parts[3])
			if okX && okY && okW && okH {
				minX, minY, width, height = x, y, w, h
				haveSize = true
			}
		}
	}
	if !haveSize {
		w, okW := dsl.ParseLength(svgRoot.AttrOr("", "width", ""))
		h, okH := dsl.ParseLength(svgRoot.AttrOr("", "height", ""))
		if !okW || !okH {
			return
		}
		minX, minY, width, height = 0, 0, w, h
	}

	rect := dsl.NewElement(dsl.SVGNamespace, "rect")
	rect.SetAttr("", "x", svg.FormatNum(minX))
	rect.SetAttr("", "y", svg.FormatNum(minY))
	rect.SetAttr("", "width", svg.FormatNum(width))
	rect.SetAttr("", "height", svg.FormatNum(height))
	rect.SetAttr("", "fill", color)
	svgRoot.Children = append([]*dsl.Element{rect}, svgRoot.Children...)
}

func maxZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
