package compile

import (
	"path/filepath"
	"strings"

	"github.com/diagramforge/diagramforge/pkg/dsl"
	"github.com/diagramforge/diagramforge/pkg/errors"
	"github.com/diagramforge/diagramforge/pkg/svg"
)

// expandIncludes replaces every include element with the compiled
// content of its target, wrapped in one opaque positioned group.
// Reports whether any include was expanded anywhere in the tree.
func (c *Compiler) expandIncludes(node *dsl.Element, ns, baseDir string, rc runContext) (bool, error) {
	found := false
	for i, child := range node.Children {
		if child.Is(ns, "include") {
			wrapper, err := c.expandSingleInclude(child, baseDir, rc)
			if err != nil {
				return false, err
			}
			wrapper.Tail = child.Tail
			node.Children[i] = wrapper
			found = true
			continue
		}
		nested, err := c.expandIncludes(child, ns, baseDir, rc)
		if err != nil {
			return false, err
		}
		found = found || nested
	}
	return found, nil
}

func (c *Compiler) expandSingleInclude(include *dsl.Element, baseDir string, rc runContext) (*dsl.Element, error) {
	src := strings.TrimSpace(include.AttrOr("", "src", ""))
	if err := errors.ValidateIncludeSrc(src); err != nil {
		return nil, err
	}
	x, err := includeNum(include, "x", 0, src)
	if err != nil {
		return nil, err
	}
	y, err := includeNum(include, "y", 0, src)
	if err != nil {
		return nil, err
	}
	scale, err := includeNum(include, "scale", 1, src)
	if err != nil {
		return nil, err
	}
	if scale <= 0 {
		return nil, errors.New(errors.CodeIncludeArgs,
			"include src=%q requires scale > 0 (got %v)", src, scale)
	}

	path := src
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	canonical, err := c.loader.Canonicalize(path)
	if err != nil {
		canonical = filepath.Clean(path)
	}

	// Depth and cycle guards run before the target is even loaded.
	if rc.depth >= c.maxIncludeDepth {
		return nil, errors.New(errors.CodeIncludeDepth,
			"maximum include depth exceeded (%d) while resolving %s", c.maxIncludeDepth, canonical)
	}
	for _, active := range rc.stack {
		if active == canonical {
			chain := strings.Join(append(append([]string{}, rc.stack...), canonical), " -> ")
			return nil, errors.New(errors.CodeIncludeCycle, "include cycle detected: %s", chain)
		}
	}

	text, err := c.loader.Load(canonical)
	if err != nil {
		return nil, errors.Wrap(errors.CodeIncludeNotFound, err,
			"include file not found: %s", canonical)
	}

	parsed, err := dsl.ParseString(text)
	if err != nil {
		return nil, errors.Wrap(errors.CodeIncludeParse, err,
			"invalid include XML in %s", canonical)
	}
	if parsed.Local != "diagram" {
		return nil, errors.New(errors.CodeIncludeRoot,
			"included file %s must use a <diagram> root", canonical)
	}

	childRC := runContext{
		stack: append(append([]string{}, rc.stack...), canonical),
		depth: rc.depth + 1,
	}
	compiled, err := c.compileTree(text, canonical, childRC)
	if err != nil {
		return nil, err
	}

	wrapper := dsl.NewElement(dsl.SVGNamespace, "g")
	wrapper.SetAttr("", "transform",
		"translate("+svg.FormatNum(x)+" "+svg.FormatNum(y)+") scale("+svg.FormatNum(scale)+")")
	if id := include.ID(); id != "" {
		wrapper.SetAttr("", "id", id)
	}
	for _, child := range compiled.Children {
		wrapper.Append(child)
	}
	return wrapper, nil
}

func includeNum(include *dsl.Element, name string, def float64, src string) (float64, error) {
	v, ok := include.Attr("", name)
	if !ok {
		return def, nil
	}
	n, parsed := dsl.ParseLength(v)
	if !parsed {
		return 0, errors.New(errors.CodeIncludeArgs,
			"include src=%q requires numeric %s (got %q)", src, name, v)
	}
	return n, nil
}
