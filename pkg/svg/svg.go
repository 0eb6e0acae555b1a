// Package svg serializes a compiled element tree to SVG text.
//
// Emission is by hand rather than through an XML encoder so attribute
// order stays exactly as the compiler wrote it. Output is indented two
// spaces per depth, with element text kept inline.
package svg

import (
	"math"
	"strconv"
	"strings"

	"github.com/diagramforge/diagramforge/pkg/dsl"
)

// FormatNum renders a coordinate for output: integers without a decimal
// point, everything else with at most three decimals and trailing zeros
// trimmed.
func FormatNum(v float64) string {
	r := math.Round(v)
	if math.Abs(v-r) < 1e-6 {
		if r == 0 {
			// avoid "-0"
			return "0"
		}
		return strconv.FormatInt(int64(r), 10)
	}
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return s
}

// Marshal serializes the tree rooted at el. The root carries an xmlns
// declaration for the SVG namespace; elements outside that namespace
// are emitted with their namespace URI as a default xmlns of their own
// subtree, which compiled output never contains in practice.
func Marshal(root *dsl.Element) string {
	var b strings.Builder
	writeElement(&b, root, 0, true)
	b.WriteByte('\n')
	return b.String()
}

func writeElement(b *strings.Builder, e *dsl.Element, depth int, isRoot bool) {
	indent := strings.Repeat("  ", depth)
	b.WriteString(indent)
	b.WriteByte('<')
	b.WriteString(e.Local)

	if isRoot && e.Space != "" {
		b.WriteString(` xmlns="`)
		b.WriteString(escapeAttr(e.Space))
		b.WriteByte('"')
	}
	for _, a := range e.Attrs {
		b.WriteByte(' ')
		b.WriteString(a.Local)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.Value))
		b.WriteByte('"')
	}

	text := strings.TrimSpace(e.Text)
	if len(e.Children) == 0 && text == "" {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')

	if len(e.Children) == 0 {
		b.WriteString(escapeText(text))
		b.WriteString("</")
		b.WriteString(e.Local)
		b.WriteByte('>')
		return
	}

	if text != "" {
		b.WriteString(escapeText(text))
	}
	for _, c := range e.Children {
		b.WriteByte('\n')
		writeElement(b, c, depth+1, false)
		if tail := strings.TrimSpace(c.Tail); tail != "" {
			b.WriteString(escapeText(tail))
		}
	}
	b.WriteByte('\n')
	b.WriteString(indent)
	b.WriteString("</")
	b.WriteString(e.Local)
	b.WriteByte('>')
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
)

func escapeAttr(s string) string { return attrEscaper.Replace(s) }

func escapeText(s string) string { return textEscaper.Replace(s) }
