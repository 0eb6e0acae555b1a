// Package dsl defines the namespaced element tree the compiler operates
// on. The tree preserves attribute declaration order and the text/tail
// split around children, which template slot splicing and text layout
// both depend on.
package dsl

import (
	"strconv"
	"strings"
)

// SVGNamespace is the namespace URI of the output vocabulary.
const SVGNamespace = "http://www.w3.org/2000/svg"

// Attr is a single attribute. Space is the namespace URI, empty for
// unprefixed attributes.
type Attr struct {
	Space string
	Local string
	Value string
}

// Element is one node of the document tree.
//
// Text is the character data before the first child. Each child's Tail
// is the character data between that child's end tag and the next
// sibling (or the parent's end tag). This mirrors the text model the
// layout engine needs when splicing subtrees in place of a child.
type Element struct {
	Space    string
	Local    string
	Attrs    []Attr
	Text     string
	Tail     string
	Children []*Element
}

// NewElement builds an element with the given namespace and local name.
func NewElement(space, local string) *Element {
	return &Element{Space: space, Local: local}
}

// Is reports whether the element has the given namespace and local name.
func (e *Element) Is(space, local string) bool {
	return e.Space == space && e.Local == local
}

// Attr returns the value of the first matching attribute.
func (e *Element) Attr(space, local string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Space == space && a.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// AttrOr returns the attribute value or a default when absent.
func (e *Element) AttrOr(space, local, def string) string {
	if v, ok := e.Attr(space, local); ok {
		return v
	}
	return def
}

// SetAttr sets an attribute, replacing an existing one in place so
// declaration order is stable.
func (e *Element) SetAttr(space, local, value string) {
	for i, a := range e.Attrs {
		if a.Space == space && a.Local == local {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, Attr{Space: space, Local: local, Value: value})
}

// DelAttr removes an attribute if present.
func (e *Element) DelAttr(space, local string) {
	for i, a := range e.Attrs {
		if a.Space == space && a.Local == local {
			e.Attrs = append(e.Attrs[:i], e.Attrs[i+1:]...)
			return
		}
	}
}

// ID returns the element's unprefixed id attribute.
func (e *Element) ID() string {
	v, _ := e.Attr("", "id")
	return v
}

// Append adds children at the end.
func (e *Element) Append(children ...*Element) {
	e.Children = append(e.Children, children...)
}

// IndexOf returns the position of child among e's children, or -1.
func (e *Element) IndexOf(child *Element) int {
	for i, c := range e.Children {
		if c == child {
			return i
		}
	}
	return -1
}

// ReplaceChildAt splices the given subtrees in place of the child at
// index i, preserving sibling order.
func (e *Element) ReplaceChildAt(i int, with ...*Element) {
	out := make([]*Element, 0, len(e.Children)-1+len(with))
	out = append(out, e.Children[:i]...)
	out = append(out, with...)
	out = append(out, e.Children[i+1:]...)
	e.Children = out
}

// RemoveChildAt removes the child at index i.
func (e *Element) RemoveChildAt(i int) {
	e.Children = append(e.Children[:i], e.Children[i+1:]...)
}

// Clone returns a deep copy of the element. Tail is copied too, so a
// clone spliced in place of the original keeps surrounding text intact.
func (e *Element) Clone() *Element {
	out := &Element{
		Space: e.Space,
		Local: e.Local,
		Text:  e.Text,
		Tail:  e.Tail,
	}
	if len(e.Attrs) > 0 {
		out.Attrs = make([]Attr, len(e.Attrs))
		copy(out.Attrs, e.Attrs)
	}
	if len(e.Children) > 0 {
		out.Children = make([]*Element, len(e.Children))
		for i, c := range e.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// Walk visits e and every descendant in document order. Returning false
// from fn prunes that subtree.
func Walk(e *Element, fn func(*Element) bool) {
	if !fn(e) {
		return
	}
	for _, c := range e.Children {
		Walk(c, fn)
	}
}

// WalkParent visits every descendant together with its parent, in
// document order. The root is visited with a nil parent.
func WalkParent(e *Element, fn func(parent, node *Element)) {
	fn(nil, e)
	var rec func(parent *Element)
	rec = func(parent *Element) {
		for _, c := range parent.Children {
			fn(parent, c)
			rec(c)
		}
	}
	rec(e)
}

// ParseLength parses the leading decimal number of an attribute value,
// ignoring any trailing unit suffix ("10", "10.5", "10px" all parse as
// their numeric prefix). Returns false when no leading number exists.
func ParseLength(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	end := 0
	seenDigit := false
	for end < len(s) {
		ch := s[end]
		switch {
		case ch >= '0' && ch <= '9':
			seenDigit = true
		case ch == '.':
			// allowed inside a number
		case (ch == '+' || ch == '-') && end == 0:
			// leading sign only
		default:
			goto done
		}
		end++
	}
done:
	if !seenDigit {
		return 0, false
	}
	v, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
