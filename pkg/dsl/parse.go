package dsl

import (
	"encoding/xml"
	"io"
	"strings"

	"github.com/diagramforge/diagramforge/pkg/errors"
)

// Parse reads an XML document into an Element tree. Namespace prefixes
// are resolved to URIs; xmlns declarations themselves are dropped from
// the tree (the URIs on elements and attributes carry the information).
func Parse(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)

	var root *Element
	var stack []*Element

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			if syn, ok := err.(*xml.SyntaxError); ok {
				return nil, errors.New(errors.CodeParse, "line %d: %s", syn.Line, syn.Msg)
			}
			return nil, errors.Wrap(errors.CodeParse, err, "malformed document")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Space: t.Name.Space, Local: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
					continue
				}
				el.Attrs = append(el.Attrs, Attr{Space: a.Name.Space, Local: a.Name.Local, Value: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New(errors.CodeParse, "multiple root elements")
				}
				root = el
			} else {
				top := stack[len(stack)-1]
				top.Children = append(top.Children, el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			if n := len(top.Children); n > 0 {
				top.Children[n-1].Tail += string(t)
			} else {
				top.Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, errors.New(errors.CodeParse, "document has no root element")
	}
	return root, nil
}

// ParseString parses a document held in a string.
func ParseString(s string) (*Element, error) {
	return Parse(strings.NewReader(s))
}
